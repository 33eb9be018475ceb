package services

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/OsGift/safawinet-api/internal/models"
)

// AuditService writes and queries the audit trail
type AuditService struct {
	auditCollection *mongo.Collection
	retentionDays   int
	logger          *zap.Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(db *mongo.Database, retentionDays int, logger *zap.Logger) *AuditService {
	return &AuditService{
		auditCollection: db.Collection("audit_logs"),
		retentionDays:   retentionDays,
		logger:          logger,
	}
}

// Record stores an entry. Failures are logged, never returned, and a cancelled
// request context does not drop the entry.
func (s *AuditService) Record(ctx context.Context, entry models.AuditLog) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.Status == "" {
		entry.Status = models.AuditStatusSuccess
	}
	if _, err := s.auditCollection.InsertOne(ctx, entry); err != nil {
		s.logger.Error("failed to write audit log",
			zap.String("action", string(entry.Action)),
			zap.String("request_id", entry.RequestID),
			zap.Error(err))
	}
}

// ListLogs retrieves audit entries, newest first
func (s *AuditService) ListLogs(ctx context.Context, filter models.AuditLogFilter) (*models.AuditLogListResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	page, limit := normalizePage(filter.Page, filter.Limit)
	query := buildAuditQuery(filter)

	findOptions := options.Find()
	findOptions.SetSkip((page - 1) * limit)
	findOptions.SetLimit(limit)
	findOptions.SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := s.auditCollection.Find(ctx, query, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	logs := []models.AuditLog{}
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}

	total, err := s.auditCollection.CountDocuments(ctx, query)
	if err != nil {
		return nil, err
	}

	return &models.AuditLogListResponse{
		Logs:       logs,
		Pagination: models.NewPagination(page, limit, total),
	}, nil
}

// ExportLogs returns every entry matching filter, up to maxExportRows
func (s *AuditService) ExportLogs(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(maxExportRows)
	cursor, err := s.auditCollection.Find(ctx, buildAuditQuery(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	logs := []models.AuditLog{}
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// Actors lists the users that appear in the trail, for filter dropdowns
func (s *AuditService) Actors(ctx context.Context, onlyUser *primitive.ObjectID) ([]models.AuditActor, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	match := bson.M{"user_id": bson.M{"$ne": nil}}
	if onlyUser != nil {
		match["user_id"] = *onlyUser
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$user_id"},
			{Key: "user_email", Value: bson.D{{Key: "$first", Value: "$user_email"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "user_email", Value: 1}}}},
	}

	cursor, err := s.auditCollection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	actors := []models.AuditActor{}
	if err := cursor.All(ctx, &actors); err != nil {
		return nil, err
	}
	return actors, nil
}

// Debug summarises the collection
func (s *AuditService) Debug(ctx context.Context) (*models.AuditDebugInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	info := &models.AuditDebugInfo{RetentionDays: s.retentionDays, ByAction: []models.AuditActionCount{}}

	total, err := s.auditCollection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	info.TotalLogs = total

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$action"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}}}},
	}
	cursor, err := s.auditCollection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	if err := cursor.All(ctx, &info.ByAction); err != nil {
		return nil, err
	}

	if total > 0 {
		info.OldestLogAt, err = s.edgeTimestamp(ctx, 1)
		if err != nil {
			return nil, err
		}
		info.NewestLogAt, err = s.edgeTimestamp(ctx, -1)
		if err != nil {
			return nil, err
		}
	}
	return info, nil
}

func (s *AuditService) edgeTimestamp(ctx context.Context, order int) (*time.Time, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: order}}).SetProjection(bson.M{"created_at": 1})
	var entry models.AuditLog
	if err := s.auditCollection.FindOne(ctx, bson.M{}, opts).Decode(&entry); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &entry.CreatedAt, nil
}

// CountSince counts a user's entries for action since the given time
func (s *AuditService) CountSince(ctx context.Context, userID primitive.ObjectID, action models.AuditAction, since time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return s.auditCollection.CountDocuments(ctx, bson.M{
		"user_id":    userID,
		"action":     action,
		"created_at": bson.M{"$gte": since},
	})
}

// CountByActionSince counts all entries for action since the given time
func (s *AuditService) CountByActionSince(ctx context.Context, action models.AuditAction, since, until time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return s.auditCollection.CountDocuments(ctx, bson.M{
		"action":     action,
		"created_at": bson.M{"$gte": since, "$lte": until},
	})
}

// Recent returns a user's latest entries for the given actions
func (s *AuditService) Recent(ctx context.Context, userID primitive.ObjectID, actions []models.AuditAction, limit int64) ([]models.AuditLog, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cursor, err := s.auditCollection.Find(ctx, bson.M{"user_id": userID, "action": bson.M{"$in": actions}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	logs := []models.AuditLog{}
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// PurgeOlderThan deletes entries created before cutoff
func (s *AuditService) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	res, err := s.auditCollection.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// RetentionDays is the configured retention window
func (s *AuditService) RetentionDays() int { return s.retentionDays }

func buildAuditQuery(filter models.AuditLogFilter) bson.M {
	query := bson.M{}
	if filter.Action != "" {
		query["action"] = filter.Action
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.UserID != nil {
		query["user_id"] = *filter.UserID
	}
	if filter.From != nil || filter.To != nil {
		rng := bson.M{}
		if filter.From != nil {
			rng["$gte"] = *filter.From
		}
		if filter.To != nil {
			rng["$lte"] = *filter.To
		}
		query["created_at"] = rng
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"user_email": pattern},
			bson.M{"action": pattern},
			bson.M{"target_id": pattern},
			bson.M{"ip_address": pattern},
		}
	}
	return query
}
