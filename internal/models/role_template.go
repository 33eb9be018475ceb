package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/OsGift/safawinet-api/internal/rbac"
)

// RoleTemplate is a named, reusable bundle of permissions with display metadata
type RoleTemplate struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	Name        string              `bson:"name" json:"name"`
	NameLower   string              `bson:"name_lower" json:"-"` // unique index
	Description string              `bson:"description,omitempty" json:"description,omitempty"`
	Color       string              `bson:"color" json:"color"`
	Icon        string              `bson:"icon" json:"icon"`
	Permissions []rbac.Permission   `bson:"permissions" json:"permissions"`
	IsAdmin     bool                `bson:"is_admin" json:"isAdmin"`
	IsDefault   bool                `bson:"is_default" json:"isDefault"`
	IsActive    bool                `bson:"is_active" json:"isActive"`
	UsageCount  int64               `bson:"usage_count" json:"usageCount"`
	CreatedBy   *primitive.ObjectID `bson:"created_by,omitempty" json:"createdBy,omitempty"`
	CreatedAt   time.Time           `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time           `bson:"updated_at" json:"updatedAt"`
}

// CanBeDeleted reports whether the template may be removed. Default templates are permanent.
func (t *RoleTemplate) CanBeDeleted() bool {
	return !t.IsDefault
}

// RoleTemplateResponse adds derived fields to a template
type RoleTemplateResponse struct {
	RoleTemplate
	CanBeDeleted bool `json:"canBeDeleted"`
}

// NewRoleTemplateResponse wraps a template for output
func NewRoleTemplateResponse(t RoleTemplate) RoleTemplateResponse {
	return RoleTemplateResponse{RoleTemplate: t, CanBeDeleted: t.CanBeDeleted()}
}

// Fallback badge style when no template matches a role name
const (
	DefaultTemplateColor = "#6B7280"
	DefaultTemplateIcon  = "user"
)

// DefaultRoleTemplates are seeded at startup and cannot be edited or deleted
var DefaultRoleTemplates = []RoleTemplate{
	{
		Name:        "Administrator",
		Description: "Full access to every page and action",
		Color:       "#DC2626",
		Icon:        "shield",
		IsAdmin:     true,
		Permissions: []rbac.Permission{},
	},
	{
		Name:        "Manager",
		Description: "Manages users and reads the audit trail",
		Color:       "#2563EB",
		Icon:        "briefcase",
		Permissions: []rbac.Permission{
			{Page: rbac.PageDashboard, Actions: []rbac.Action{rbac.ActionView}},
			{Page: rbac.PageUsers, Actions: []rbac.Action{rbac.ActionView, rbac.ActionAdd, rbac.ActionEdit, rbac.ActionExport}},
			{Page: rbac.PageRoleTemplates, Actions: []rbac.Action{rbac.ActionView}},
			{Page: rbac.PageAuditLogs, Actions: []rbac.Action{rbac.ActionViewOwn}},
		},
	},
	{
		Name:        "Auditor",
		Description: "Reads and exports audit logs",
		Color:       "#7C3AED",
		Icon:        "clipboard",
		Permissions: []rbac.Permission{
			{Page: rbac.PageDashboard, Actions: []rbac.Action{rbac.ActionView}},
			{Page: rbac.PageAuditLogs, Actions: []rbac.Action{rbac.ActionView, rbac.ActionExport}},
		},
	},
	{
		Name:        "Viewer",
		Description: "Read-only access to users they created",
		Color:       "#059669",
		Icon:        "eye",
		Permissions: []rbac.Permission{
			{Page: rbac.PageDashboard, Actions: []rbac.Action{rbac.ActionView}},
			{Page: rbac.PageUsers, Actions: []rbac.Action{rbac.ActionViewOwn}},
		},
	},
}

// CreateRoleTemplateRequest creates a custom template
type CreateRoleTemplateRequest struct {
	Name        string            `json:"name" validate:"required,min=2,max=50"`
	Description string            `json:"description,omitempty" validate:"max=255"`
	Color       string            `json:"color,omitempty" validate:"omitempty,hexcolor"`
	Icon        string            `json:"icon,omitempty" validate:"omitempty,max=30"`
	Permissions []rbac.Permission `json:"permissions"`
	IsAdmin     bool              `json:"isAdmin"`
	IsActive    *bool             `json:"isActive,omitempty"`
}

// UpdateRoleTemplateRequest updates any subset of a custom template
type UpdateRoleTemplateRequest struct {
	Name        *string            `json:"name,omitempty" validate:"omitempty,min=2,max=50"`
	Description *string            `json:"description,omitempty" validate:"omitempty,max=255"`
	Color       *string            `json:"color,omitempty" validate:"omitempty,hexcolor"`
	Icon        *string            `json:"icon,omitempty" validate:"omitempty,max=30"`
	Permissions *[]rbac.Permission `json:"permissions,omitempty"`
	IsAdmin     *bool              `json:"isAdmin,omitempty"`
	IsActive    *bool              `json:"isActive,omitempty"`
}

// RoleTemplateFilter holds list query parameters for templates
type RoleTemplateFilter struct {
	Search    string
	IsActive  *bool
	IsDefault *bool
	CreatedBy *primitive.ObjectID
	Page      int64
	Limit     int64
}

// RoleTemplateListResponse holds templates and pagination metadata
type RoleTemplateListResponse struct {
	Templates  []RoleTemplateResponse `json:"templates"`
	Pagination Pagination             `json:"pagination"`
}

// TemplateMatchResponse is the result of matching a role name to a template
type TemplateMatchResponse struct {
	Matched  bool                  `json:"matched"`
	Tier     string                `json:"tier"`
	Template *RoleTemplateResponse `json:"template,omitempty"`
	Color    string                `json:"color"`
	Icon     string                `json:"icon"`
}
