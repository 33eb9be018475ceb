package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/OsGift/safawinet-api/internal/models"
)

// DashboardService provides the figures shown on the dashboard page
type DashboardService struct {
	usersCollection     *mongo.Collection
	templatesCollection *mongo.Collection
	auditService        *AuditService
}

// NewDashboardService creates a new DashboardService
func NewDashboardService(db *mongo.Database, audit *AuditService) *DashboardService {
	return &DashboardService{
		usersCollection:     db.Collection("users"),
		templatesCollection: db.Collection("role_templates"),
		auditService:        audit,
	}
}

// GetDashboardMetrics fetches user, template and login figures for the period
func (s *DashboardService) GetDashboardMetrics(
	ctx context.Context,
	period models.DashboardPeriod,
	startDate, endDate *time.Time,
) (*models.DashboardMetricsResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	metrics := &models.DashboardMetricsResponse{Period: period}

	counts := []struct {
		filter bson.M
		dest   *int64
		coll   *mongo.Collection
	}{
		{bson.M{}, &metrics.TotalUsers, s.usersCollection},
		{bson.M{"is_active": true}, &metrics.ActiveUsers, s.usersCollection},
		{bson.M{"is_admin": true}, &metrics.AdminUsers, s.usersCollection},
		{bson.M{"two_factor_enabled": true}, &metrics.TwoFactorUsers, s.usersCollection},
		{bson.M{}, &metrics.TotalTemplates, s.templatesCollection},
		{bson.M{"is_active": true}, &metrics.ActiveTemplates, s.templatesCollection},
	}
	for _, c := range counts {
		n, err := c.coll.CountDocuments(ctx, c.filter)
		if err != nil {
			return nil, err
		}
		*c.dest = n
	}

	start, end := periodRange(period, startDate, endDate, time.Now())
	metrics.StartDate = &start
	metrics.EndDate = &end

	newUsers, err := s.usersCollection.CountDocuments(ctx, bson.M{
		"created_at": bson.M{"$gte": start, "$lte": end},
	})
	if err != nil {
		return nil, err
	}
	metrics.NewUsers = newUsers

	if metrics.SuccessfulLogins, err = s.auditService.CountByActionSince(ctx, models.AuditLoginSuccess, start, end); err != nil {
		return nil, err
	}
	if metrics.FailedLogins, err = s.auditService.CountByActionSince(ctx, models.AuditLoginFailed, start, end); err != nil {
		return nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "usage_count", Value: -1}}).
		SetLimit(5).
		SetProjection(bson.M{"name": 1, "usage_count": 1})
	cursor, err := s.templatesCollection.Find(ctx, bson.M{"usage_count": bson.M{"$gt": 0}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	metrics.TopTemplates = []models.TemplateUsage{}
	if err = cursor.All(ctx, &metrics.TopTemplates); err != nil {
		return nil, err
	}

	return metrics, nil
}

// periodRange resolves the reporting window. Custom uses the given bounds;
// weeks start on Monday.
func periodRange(period models.DashboardPeriod, startDate, endDate *time.Time, now time.Time) (time.Time, time.Time) {
	if period == models.PeriodCustom && startDate != nil && endDate != nil {
		return *startDate, *endDate
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch period {
	case models.PeriodDaily:
		return today, now
	case models.PeriodWeekly:
		weekday := int(now.Weekday())
		if weekday == 0 { // Sunday
			weekday = 7
		}
		return today.AddDate(0, 0, -(weekday - 1)), now
	default:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), now
	}
}
