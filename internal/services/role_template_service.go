package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/OsGift/safawinet-api/internal/models"
	"github.com/OsGift/safawinet-api/internal/rbac"
)

// RoleTemplateService manages reusable permission bundles
type RoleTemplateService struct {
	templatesCollection *mongo.Collection
	logger              *zap.Logger
}

// NewRoleTemplateService creates a new RoleTemplateService
func NewRoleTemplateService(db *mongo.Database, logger *zap.Logger) *RoleTemplateService {
	return &RoleTemplateService{
		templatesCollection: db.Collection("role_templates"),
		logger:              logger,
	}
}

// ListTemplates retrieves templates with filtering and pagination
func (s *RoleTemplateService) ListTemplates(ctx context.Context, filter models.RoleTemplateFilter) (*models.RoleTemplateListResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	page, limit := normalizePage(filter.Page, filter.Limit)
	query := buildTemplateQuery(filter)

	findOptions := options.Find()
	findOptions.SetSkip((page - 1) * limit)
	findOptions.SetLimit(limit)
	findOptions.SetSort(bson.D{{Key: "is_default", Value: -1}, {Key: "name", Value: 1}})

	cursor, err := s.templatesCollection.Find(ctx, query, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var templates []models.RoleTemplate
	if err = cursor.All(ctx, &templates); err != nil {
		return nil, err
	}

	total, err := s.templatesCollection.CountDocuments(ctx, query)
	if err != nil {
		return nil, err
	}

	return &models.RoleTemplateListResponse{
		Templates:  toTemplateResponses(templates),
		Pagination: models.NewPagination(page, limit, total),
	}, nil
}

// GetTemplateByID retrieves a template by its ID
func (s *RoleTemplateService) GetTemplateByID(ctx context.Context, id string) (*models.RoleTemplate, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var t models.RoleTemplate
	if err := s.templatesCollection.FindOne(ctx, bson.M{"_id": objID}).Decode(&t); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return &t, nil
}

// CreateTemplate validates and stores a custom template
func (s *RoleTemplateService) CreateTemplate(ctx context.Context, actor *models.AuthContext, req models.CreateRoleTemplateRequest) (*models.RoleTemplate, error) {
	t, err := buildNewTemplate(actor, req, time.Now())
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.ensureNameAvailable(ctx, t.NameLower, primitive.NilObjectID); err != nil {
		return nil, err
	}
	res, err := s.templatesCollection.InsertOne(ctx, t)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateTemplateName
		}
		return nil, err
	}
	t.ID = res.InsertedID.(primitive.ObjectID)

	s.logger.Info("role template created", zap.String("template_id", t.ID.Hex()), zap.String("name", t.Name))
	return t, nil
}

// UpdateTemplate applies a partial update to a custom template
func (s *RoleTemplateService) UpdateTemplate(ctx context.Context, actor *models.AuthContext, id string, req models.UpdateRoleTemplateRequest) (*models.RoleTemplate, error) {
	existing, err := s.GetTemplateByID(ctx, id)
	if err != nil {
		return nil, err
	}
	set, err := buildTemplateUpdate(actor, existing, req, time.Now())
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if nameLower, ok := set["name_lower"].(string); ok {
		if err := s.ensureNameAvailable(ctx, nameLower, existing.ID); err != nil {
			return nil, err
		}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.RoleTemplate
	err = s.templatesCollection.FindOneAndUpdate(ctx, bson.M{"_id": existing.ID}, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateTemplateName
		}
		if err == mongo.ErrNoDocuments {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return &updated, nil
}

// DeleteTemplate removes a template that can be deleted
func (s *RoleTemplateService) DeleteTemplate(ctx context.Context, id string) (*models.RoleTemplate, error) {
	existing, err := s.GetTemplateByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.CanBeDeleted() {
		return nil, ErrDefaultTemplateImmutable
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.templatesCollection.DeleteOne(ctx, bson.M{"_id": existing.ID, "is_default": bson.M{"$ne": true}})
	if err != nil {
		return nil, err
	}
	if res.DeletedCount == 0 {
		return nil, ErrTemplateNotFound
	}
	return existing, nil
}

// ToggleStatus flips is_active on a custom template
func (s *RoleTemplateService) ToggleStatus(ctx context.Context, id string) (*models.RoleTemplate, error) {
	existing, err := s.GetTemplateByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.IsDefault {
		return nil, ErrDefaultTemplateImmutable
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": bson.M{"is_active": !existing.IsActive, "updated_at": time.Now()}}
	var updated models.RoleTemplate
	if err := s.templatesCollection.FindOneAndUpdate(ctx, bson.M{"_id": existing.ID}, update, opts).Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return &updated, nil
}

// ActiveForUserCreation lists active templates, most used first
func (s *RoleTemplateService) ActiveForUserCreation(ctx context.Context) ([]models.RoleTemplateResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "usage_count", Value: -1}, {Key: "name", Value: 1}})
	cursor, err := s.templatesCollection.Find(ctx, bson.M{"is_active": true}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var templates []models.RoleTemplate
	if err := cursor.All(ctx, &templates); err != nil {
		return nil, err
	}
	return toTemplateResponses(templates), nil
}

// IncrementUsage atomically bumps the usage counter
func (s *RoleTemplateService) IncrementUsage(ctx context.Context, id primitive.ObjectID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.RoleTemplate
	err := s.templatesCollection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"usage_count": 1}}, opts).Decode(&updated)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return 0, ErrTemplateNotFound
		}
		return 0, err
	}
	return updated.UsageCount, nil
}

// MatchRoleName finds the template whose name best resembles roleName, for badge styling
func (s *RoleTemplateService) MatchRoleName(ctx context.Context, roleName string) (*models.TemplateMatchResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "is_default", Value: -1}, {Key: "name", Value: 1}})
	cursor, err := s.templatesCollection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var templates []models.RoleTemplate
	if err := cursor.All(ctx, &templates); err != nil {
		return nil, err
	}
	return matchTemplates(roleName, templates), nil
}

func (s *RoleTemplateService) ensureNameAvailable(ctx context.Context, nameLower string, except primitive.ObjectID) error {
	query := bson.M{"name_lower": nameLower}
	if !except.IsZero() {
		query["_id"] = bson.M{"$ne": except}
	}
	n, err := s.templatesCollection.CountDocuments(ctx, query)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrDuplicateTemplateName
	}
	return nil
}

func matchTemplates(roleName string, templates []models.RoleTemplate) *models.TemplateMatchResponse {
	names := make([]string, len(templates))
	for i, t := range templates {
		names[i] = t.Name
	}
	idx, tier, ok := rbac.MatchTemplate(roleName, names)
	if !ok {
		return &models.TemplateMatchResponse{
			Matched: false,
			Tier:    tier.String(),
			Color:   models.DefaultTemplateColor,
			Icon:    models.DefaultTemplateIcon,
		}
	}
	resp := models.NewRoleTemplateResponse(templates[idx])
	return &models.TemplateMatchResponse{
		Matched:  true,
		Tier:     tier.String(),
		Template: &resp,
		Color:    resp.Color,
		Icon:     resp.Icon,
	}
}

func buildNewTemplate(actor *models.AuthContext, req models.CreateRoleTemplateRequest, now time.Time) (*models.RoleTemplate, error) {
	if req.IsAdmin && !isAdminActor(actor) {
		return nil, ErrAdminRequired
	}
	if err := rbac.Validate(req.Permissions); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	t := &models.RoleTemplate{
		Name:        name,
		NameLower:   strings.ToLower(name),
		Description: strings.TrimSpace(req.Description),
		Color:       req.Color,
		Icon:        req.Icon,
		Permissions: rbac.Normalize(req.Permissions),
		IsAdmin:     req.IsAdmin,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.Color == "" {
		t.Color = models.DefaultTemplateColor
	}
	if t.Icon == "" {
		t.Icon = models.DefaultTemplateIcon
	}
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}
	if actor != nil {
		id := actor.UserID
		t.CreatedBy = &id
	}
	return t, nil
}

func buildTemplateUpdate(actor *models.AuthContext, existing *models.RoleTemplate, req models.UpdateRoleTemplateRequest, now time.Time) (bson.M, error) {
	if existing.IsDefault {
		return nil, ErrDefaultTemplateImmutable
	}
	if (existing.IsAdmin || (req.IsAdmin != nil && *req.IsAdmin)) && !isAdminActor(actor) {
		return nil, ErrAdminRequired
	}

	set := bson.M{"updated_at": now}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		set["name"] = name
		set["name_lower"] = strings.ToLower(name)
	}
	if req.Description != nil {
		set["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Color != nil {
		set["color"] = *req.Color
	}
	if req.Icon != nil {
		set["icon"] = *req.Icon
	}
	if req.Permissions != nil {
		if err := rbac.Validate(*req.Permissions); err != nil {
			return nil, err
		}
		set["permissions"] = rbac.Normalize(*req.Permissions)
	}
	if req.IsAdmin != nil {
		set["is_admin"] = *req.IsAdmin
	}
	if req.IsActive != nil {
		set["is_active"] = *req.IsActive
	}
	return set, nil
}

func buildTemplateQuery(filter models.RoleTemplateFilter) bson.M {
	query := bson.M{}
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"description": pattern},
		}
	}
	if filter.IsActive != nil {
		query["is_active"] = *filter.IsActive
	}
	if filter.IsDefault != nil {
		query["is_default"] = *filter.IsDefault
	}
	if filter.CreatedBy != nil {
		query["created_by"] = *filter.CreatedBy
	}
	return query
}

func toTemplateResponses(templates []models.RoleTemplate) []models.RoleTemplateResponse {
	out := make([]models.RoleTemplateResponse, len(templates))
	for i, t := range templates {
		out[i] = models.NewRoleTemplateResponse(t)
	}
	return out
}

// normalizePage clamps list paging to page >= 1 and 1 <= limit <= 100
func normalizePage(page, limit int64) (int64, int64) {
	if page < 1 {
		page = 1
	}
	switch {
	case limit < 1:
		limit = 10
	case limit > 100:
		limit = 100
	}
	return page, limit
}

func parseObjectIDs(ids []string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		objID, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidID, id)
		}
		out = append(out, objID)
	}
	return out, nil
}
