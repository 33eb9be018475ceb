package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/OsGift/safawinet-api/internal/models"
	"github.com/OsGift/safawinet-api/internal/rbac"
	"github.com/OsGift/safawinet-api/internal/utils"
)

// Collection names
const (
	UsersCollection         = "users"
	RoleTemplatesCollection = "role_templates"
	AuditLogsCollection     = "audit_logs"
)

// ConnectMongoDB establishes a connection to MongoDB
func ConnectMongoDB(uri string, logger *zap.Logger) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	// Ping the primary to verify connection
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, err
	}

	logger.Info("connected to MongoDB")
	return client, nil
}

// Ping checks the primary is reachable, used by the health endpoint
func Ping(ctx context.Context, client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return client.Ping(ctx, readpref.Primary())
}

// EnsureIndexes creates the indexes the services rely on
func EnsureIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	indexes := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "created_by", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		RoleTemplatesCollection: {
			{Keys: bson.D{{Key: "name_lower", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "usage_count", Value: -1}}},
		},
		AuditLogsCollection: {
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "action", Value: 1}}},
		},
	}

	for name, idx := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("creating indexes on %s: %w", name, err)
		}
	}
	return nil
}

// SeedDefaultRoleTemplates ensures that the default templates exist and carry current permissions
func SeedDefaultRoleTemplates(db *mongo.Database, logger *zap.Logger) error {
	templatesCollection := db.Collection(RoleTemplatesCollection)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, defaultTemplate := range models.DefaultRoleTemplates {
		nameLower := strings.ToLower(defaultTemplate.Name)
		filter := bson.M{"name_lower": nameLower}
		permissions := rbac.Normalize(defaultTemplate.Permissions)

		var existing models.RoleTemplate
		err := templatesCollection.FindOne(ctx, filter).Decode(&existing)

		if err == mongo.ErrNoDocuments {
			now := time.Now()
			t := defaultTemplate
			t.NameLower = nameLower
			t.Permissions = permissions
			t.IsDefault = true
			t.IsActive = true
			t.CreatedAt = now
			t.UpdatedAt = now
			if _, err := templatesCollection.InsertOne(ctx, t); err != nil {
				return err
			}
			logger.Info("seeded default role template", zap.String("name", t.Name))
		} else if err != nil {
			return err
		} else {
			// Template exists, make sure its permissions are current
			update := bson.M{
				"$set": bson.M{
					"permissions": permissions,
					"is_admin":    defaultTemplate.IsAdmin,
					"is_default":  true,
				},
			}
			if _, err := templatesCollection.UpdateOne(ctx, filter, update); err != nil {
				return err
			}
			logger.Debug("updated existing default role template", zap.String("name", defaultTemplate.Name))
		}
	}
	return nil
}

// SeedAdmin creates a bootstrap administrator when email is set and no admin exists yet
func SeedAdmin(db *mongo.Database, email, password string, logger *zap.Logger) error {
	if email == "" || password == "" {
		return nil
	}
	users := db.Collection(UsersCollection)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	count, err := users.CountDocuments(ctx, bson.M{"is_admin": true})
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	now := time.Now()
	admin := models.User{
		FirstName:         "System",
		LastName:          "Administrator",
		Email:             utils.NormalizeEmail(email),
		Password:          hash,
		IsAdmin:           true,
		Permissions:       []rbac.Permission{},
		RoleName:          "Administrator",
		IsActive:          true,
		PasswordChangedAt: &now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if _, err := users.InsertOne(ctx, admin); err != nil {
		return err
	}
	logger.Info("seeded bootstrap administrator", zap.String("email", admin.Email))
	return nil
}
