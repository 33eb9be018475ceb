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

	"github.com/OsGift/safawinet-api/internal/cache"
	"github.com/OsGift/safawinet-api/internal/models"
	"github.com/OsGift/safawinet-api/internal/rbac"
	"github.com/OsGift/safawinet-api/internal/utils"
)

// maxExportRows caps a single export
const maxExportRows = 10000

// UserService provides methods for user management
type UserService struct {
	usersCollection *mongo.Collection
	templates       *RoleTemplateService
	authCache       *cache.AuthCache
	logger          *zap.Logger
}

// NewUserService creates a new UserService
func NewUserService(db *mongo.Database, templates *RoleTemplateService, authCache *cache.AuthCache, logger *zap.Logger) *UserService {
	return &UserService{
		usersCollection: db.Collection("users"),
		templates:       templates,
		authCache:       authCache,
		logger:          logger,
	}
}

// CreateUser creates a user on behalf of actor. With a role template the
// template's permissions are copied onto the user and its usage counter bumped.
func (s *UserService) CreateUser(ctx context.Context, actor *models.AuthContext, req models.CreateUserRequest) (*models.User, error) {
	var template *models.RoleTemplate
	if req.RoleTemplateID != "" {
		t, err := s.templates.GetTemplateByID(ctx, req.RoleTemplateID)
		if err != nil {
			return nil, err
		}
		if !t.IsActive {
			return nil, ErrTemplateInactive
		}
		template = t
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user, err := buildNewUser(actor, req, template, hash, time.Now())
	if err != nil {
		return nil, err
	}

	insertCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.usersCollection.InsertOne(insertCtx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	user.ID = res.InsertedID.(primitive.ObjectID)

	if template != nil {
		if _, err := s.templates.IncrementUsage(ctx, template.ID); err != nil {
			s.logger.Warn("failed to increment template usage", zap.String("template_id", template.ID.Hex()), zap.Error(err))
		}
	}
	return user, nil
}

// GetUserByID retrieves a user by their ID
func (s *UserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	return s.findOne(ctx, bson.M{"_id": objID})
}

// GetUserByEmail retrieves a user by their email address
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": utils.NormalizeEmail(email)})
}

func (s *UserService) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var user models.User
	if err := s.usersCollection.FindOne(ctx, filter).Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ListUsers retrieves users with filtering, sorting and pagination
func (s *UserService) ListUsers(ctx context.Context, filter models.UserFilter) (*models.UserListResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	page, limit := normalizePage(filter.Page, filter.Limit)
	query := buildUserQuery(filter)

	findOptions := options.Find()
	findOptions.SetSkip((page - 1) * limit)
	findOptions.SetLimit(limit)
	findOptions.SetSort(userSort(filter))

	cursor, err := s.usersCollection.Find(ctx, query, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}

	total, err := s.usersCollection.CountDocuments(ctx, query)
	if err != nil {
		return nil, err
	}

	return &models.UserListResponse{
		Users:      users,
		Pagination: models.NewPagination(page, limit, total),
	}, nil
}

// ExportUsers returns every user matching filter, up to maxExportRows
func (s *UserService) ExportUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	opts := options.Find().SetSort(userSort(filter)).SetLimit(maxExportRows)
	cursor, err := s.usersCollection.Find(ctx, buildUserQuery(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateUser applies an admin-side partial update
func (s *UserService) UpdateUser(ctx context.Context, actor *models.AuthContext, id string, req models.UpdateUserRequest) (*models.User, error) {
	existing, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	set, err := buildUserUpdate(actor, existing, req, time.Now())
	if err != nil {
		return nil, err
	}
	updated, err := s.applyUpdate(ctx, existing.ID, set)
	if err != nil {
		return nil, err
	}
	s.authCache.Invalidate(ctx, existing.ID.Hex())
	return updated, nil
}

// UpdateProfile lets a user edit their own name, phone and avatar
func (s *UserService) UpdateProfile(ctx context.Context, userID primitive.ObjectID, req models.UpdateProfileRequest) (*models.User, error) {
	set := bson.M{"updated_at": time.Now()}
	if req.FirstName != nil {
		set["first_name"] = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		set["last_name"] = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		set["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.AvatarURL != nil {
		set["avatar_url"] = *req.AvatarURL
	}
	updated, err := s.applyUpdate(ctx, userID, set)
	if err != nil {
		return nil, err
	}
	s.authCache.Invalidate(ctx, userID.Hex())
	return updated, nil
}

// SetAvatar stores an uploaded avatar URL
func (s *UserService) SetAvatar(ctx context.Context, userID primitive.ObjectID, url string) (*models.User, error) {
	return s.applyUpdate(ctx, userID, bson.M{"avatar_url": url, "updated_at": time.Now()})
}

func (s *UserService) applyUpdate(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.User
	err := s.usersCollection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrEmailTaken
		}
		if err == mongo.ErrNoDocuments {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &updated, nil
}

// DeleteUser removes a user. Users cannot delete themselves.
func (s *UserService) DeleteUser(ctx context.Context, actor *models.AuthContext, id string) (*models.User, error) {
	existing, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor != nil && existing.ID == actor.UserID {
		return nil, ErrCannotDeleteSelf
	}
	if existing.IsAdmin && !isAdminActor(actor) {
		return nil, ErrAdminRequired
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.usersCollection.DeleteOne(ctx, bson.M{"_id": existing.ID})
	if err != nil {
		return nil, err
	}
	if res.DeletedCount == 0 {
		return nil, ErrUserNotFound
	}
	s.authCache.Invalidate(ctx, existing.ID.Hex())
	return existing, nil
}

// BulkDeleteUsers removes many users. The caller's own ID, administrators
// when the caller is not one, and users outside a view_own caller's reach
// are skipped and reported.
func (s *UserService) BulkDeleteUsers(ctx context.Context, actor *models.AuthContext, ids []string) (*models.BulkDeleteResponse, error) {
	objIDs, err := parseObjectIDs(ids)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var protected []primitive.ObjectID
	if !isAdminActor(actor) {
		if protected, err = s.findIDs(ctx, bson.M{"_id": bson.M{"$in": objIDs}, "is_admin": true}); err != nil {
			return nil, err
		}
	}

	ownOnly := restrictedToOwn(actor)
	var owned []primitive.ObjectID
	if ownOnly {
		if owned, err = s.findIDs(ctx, bson.M{"_id": bson.M{"$in": objIDs}, "created_by": actor.UserID}); err != nil {
			return nil, err
		}
	}

	deletable, skipped := partitionBulkDelete(actor, objIDs, protected, owned)
	resp := &models.BulkDeleteResponse{Skipped: skipped}
	if len(deletable) > 0 {
		filter := bson.M{"_id": bson.M{"$in": deletable}}
		if ownOnly {
			filter["created_by"] = actor.UserID
		}
		res, err := s.usersCollection.DeleteMany(ctx, filter)
		if err != nil {
			return nil, err
		}
		resp.DeletedCount = res.DeletedCount

		hexIDs := make([]string, len(deletable))
		for i, id := range deletable {
			hexIDs[i] = id.Hex()
		}
		s.authCache.Invalidate(ctx, hexIDs...)
	}
	resp.Message = bulkDeleteMessage(resp.DeletedCount, len(skipped))
	return resp, nil
}

func (s *UserService) findIDs(ctx context.Context, query bson.M) ([]primitive.ObjectID, error) {
	cursor, err := s.usersCollection.Find(ctx, query, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	var found []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &found); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, len(found))
	for i, f := range found {
		ids[i] = f.ID
	}
	return ids, nil
}

// SetPassword stores a new password hash and marks older tokens invalid
func (s *UserService) SetPassword(ctx context.Context, userID primitive.ObjectID, hash string, changedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"password":            hash,
		"password_changed_at": changedAt,
		"updated_at":          changedAt,
	}}
	res, err := s.usersCollection.UpdateByID(ctx, userID, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	s.authCache.Invalidate(ctx, userID.Hex())
	return nil
}

// RecordLogin stamps last_login_at
func (s *UserService) RecordLogin(ctx context.Context, userID primitive.ObjectID, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.usersCollection.UpdateByID(ctx, userID, bson.M{"$set": bson.M{"last_login_at": at}})
	return err
}

// UpdateTwoFactor writes 2FA fields and drops the cached auth context
func (s *UserService) UpdateTwoFactor(ctx context.Context, userID primitive.ObjectID, set bson.M, unset ...string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	set["updated_at"] = time.Now()
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		u := bson.M{}
		for _, f := range unset {
			u[f] = ""
		}
		update["$unset"] = u
	}
	res, err := s.usersCollection.UpdateByID(ctx, userID, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	s.authCache.Invalidate(ctx, userID.Hex())
	return nil
}

func isAdminActor(actor *models.AuthContext) bool {
	return actor != nil && actor.IsAdmin
}

// restrictedToOwn is true when actor may only reach users they created
func restrictedToOwn(actor *models.AuthContext) bool {
	return actor != nil && rbac.ResolveViewScope(actor, rbac.PageUsers) != rbac.ScopeAll
}

func buildNewUser(actor *models.AuthContext, req models.CreateUserRequest, template *models.RoleTemplate, passwordHash string, now time.Time) (*models.User, error) {
	isAdmin := req.IsAdmin
	var permissions []rbac.Permission
	user := &models.User{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     utils.NormalizeEmail(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		Password:  passwordHash,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if template != nil {
		isAdmin = isAdmin || template.IsAdmin
		permissions = rbac.Clone(template.Permissions)
		id := template.ID
		user.RoleTemplateID = &id
		user.RoleName = template.Name
	} else {
		if err := rbac.Validate(req.Permissions); err != nil {
			return nil, err
		}
		permissions = rbac.Normalize(req.Permissions)
		if isAdmin {
			user.RoleName = "Administrator"
		}
	}
	if isAdmin && !isAdminActor(actor) {
		return nil, ErrAdminRequired
	}
	if !isAdminActor(actor) && !rbac.Covers(actor, permissions) {
		return nil, ErrPermissionExceeded
	}

	user.IsAdmin = isAdmin
	user.Permissions = permissions
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if actor != nil {
		id := actor.UserID
		user.CreatedBy = &id
	}
	user.PasswordChangedAt = &now
	return user, nil
}

func buildUserUpdate(actor *models.AuthContext, existing *models.User, req models.UpdateUserRequest, now time.Time) (bson.M, error) {
	if existing.IsAdmin && !isAdminActor(actor) {
		return nil, ErrAdminRequired
	}
	if req.IsAdmin != nil && *req.IsAdmin != existing.IsAdmin && !isAdminActor(actor) {
		return nil, ErrAdminRequired
	}
	if actor != nil && actor.UserID == existing.ID {
		if (req.IsActive != nil && !*req.IsActive) || (req.IsAdmin != nil && !*req.IsAdmin && existing.IsAdmin) {
			return nil, ErrCannotDemoteSelf
		}
	}

	set := bson.M{"updated_at": now}
	if req.FirstName != nil {
		set["first_name"] = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		set["last_name"] = strings.TrimSpace(*req.LastName)
	}
	if req.Email != nil {
		set["email"] = utils.NormalizeEmail(*req.Email)
	}
	if req.Phone != nil {
		set["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.IsAdmin != nil {
		set["is_admin"] = *req.IsAdmin
	}
	if req.IsActive != nil {
		set["is_active"] = *req.IsActive
	}
	if req.Permissions != nil {
		if err := rbac.Validate(*req.Permissions); err != nil {
			return nil, err
		}
		perms := rbac.Normalize(*req.Permissions)
		if !isAdminActor(actor) && !rbac.Equal(perms, existing.Permissions) {
			if actor != nil && actor.UserID == existing.ID {
				return nil, ErrCannotEditOwnAccess
			}
			if !rbac.Covers(actor, perms) {
				return nil, ErrPermissionExceeded
			}
		}
		set["permissions"] = perms
	}
	return set, nil
}

var userSortFields = map[string]string{
	"createdAt": "created_at",
	"firstName": "first_name",
	"lastName":  "last_name",
	"email":     "email",
	"lastLogin": "last_login_at",
}

func userSort(filter models.UserFilter) bson.D {
	field, ok := userSortFields[filter.SortBy]
	if !ok {
		field = "created_at"
	}
	order := -1
	if filter.SortOrder == 1 {
		order = 1
	}
	return bson.D{{Key: field, Value: order}}
}

func buildUserQuery(filter models.UserFilter) bson.M {
	query := bson.M{}
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"first_name": pattern},
			bson.M{"last_name": pattern},
			bson.M{"email": pattern},
			bson.M{"role_name": pattern},
		}
	}
	if filter.IsActive != nil {
		query["is_active"] = *filter.IsActive
	}
	if filter.IsAdmin != nil {
		query["is_admin"] = *filter.IsAdmin
	}
	if filter.RoleTemplateID != nil {
		query["role_template_id"] = *filter.RoleTemplateID
	}
	if filter.CreatedBy != nil {
		query["created_by"] = *filter.CreatedBy
	}
	return query
}

// partitionBulkDelete splits ids into those the actor may delete and those
// skipped: the actor itself, protected ids and, for a view_own actor, any id
// not in owned.
func partitionBulkDelete(actor *models.AuthContext, ids, protected, owned []primitive.ObjectID) (deletable []primitive.ObjectID, skipped []string) {
	skip := make(map[primitive.ObjectID]bool, len(protected)+1)
	for _, id := range protected {
		skip[id] = true
	}
	if actor != nil {
		skip[actor.UserID] = true
	}
	ownOnly := restrictedToOwn(actor)
	reachable := make(map[primitive.ObjectID]bool, len(owned))
	for _, id := range owned {
		reachable[id] = true
	}

	seen := make(map[primitive.ObjectID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if skip[id] || (ownOnly && !reachable[id]) {
			skipped = append(skipped, id.Hex())
			continue
		}
		deletable = append(deletable, id)
	}
	return deletable, skipped
}

func bulkDeleteMessage(deleted int64, skipped int) string {
	msg := "Deleted " + formatValue(deleted) + " user(s)"
	if skipped > 0 {
		msg += ", skipped " + formatValue(skipped)
	}
	return msg
}
