package models

import "time"

// DashboardPeriod defines possible date filters
type DashboardPeriod string

const (
	PeriodDaily   DashboardPeriod = "daily"
	PeriodWeekly  DashboardPeriod = "weekly"
	PeriodMonthly DashboardPeriod = "monthly"
	PeriodCustom  DashboardPeriod = "custom"
)

// TemplateUsage is a template name with how many users were created from it
type TemplateUsage struct {
	Name       string `bson:"name" json:"name"`
	UsageCount int64  `bson:"usage_count" json:"usageCount"`
}

// DashboardMetricsResponse holds the figures shown on the dashboard page
type DashboardMetricsResponse struct {
	TotalUsers       int64           `json:"totalUsers"`
	ActiveUsers      int64           `json:"activeUsers"`
	AdminUsers       int64           `json:"adminUsers"`
	TwoFactorUsers   int64           `json:"twoFactorUsers"`
	NewUsers         int64           `json:"newUsers"` // created in the period
	TotalTemplates   int64           `json:"totalTemplates"`
	ActiveTemplates  int64           `json:"activeTemplates"`
	TopTemplates     []TemplateUsage `json:"topTemplates"`
	SuccessfulLogins int64           `json:"successfulLogins"` // in the period
	FailedLogins     int64           `json:"failedLogins"`     // in the period
	StartDate        *time.Time      `json:"startDate,omitempty"`
	EndDate          *time.Time      `json:"endDate,omitempty"`
	Period           DashboardPeriod `json:"period"`
}
