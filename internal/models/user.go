package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/OsGift/safawinet-api/internal/rbac"
)

// User represents a user in the system
type User struct {
	ID                     primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	FirstName              string              `bson:"first_name" json:"firstName"`
	LastName               string              `bson:"last_name" json:"lastName"`
	Email                  string              `bson:"email" json:"email"`
	Phone                  string              `bson:"phone,omitempty" json:"phone,omitempty"`
	Password               string              `bson:"password" json:"-"`
	IsAdmin                bool                `bson:"is_admin" json:"isAdmin"`
	Permissions            []rbac.Permission   `bson:"permissions" json:"permissions"`
	RoleTemplateID         *primitive.ObjectID `bson:"role_template_id,omitempty" json:"roleTemplateId,omitempty"`
	RoleName               string              `bson:"role_name,omitempty" json:"roleName,omitempty"` // name of the template the permissions were copied from
	IsActive               bool                `bson:"is_active" json:"isActive"`
	AvatarURL              string              `bson:"avatar_url,omitempty" json:"avatarUrl,omitempty"`
	TwoFactorEnabled       bool                `bson:"two_factor_enabled" json:"twoFactorEnabled"`
	TwoFactorSecret        string              `bson:"two_factor_secret,omitempty" json:"-"`
	PendingTwoFactorSecret string              `bson:"pending_two_factor_secret,omitempty" json:"-"`
	BackupCodes            []string            `bson:"backup_codes,omitempty" json:"-"` // bcrypt hashes
	CreatedBy              *primitive.ObjectID `bson:"created_by,omitempty" json:"createdBy,omitempty"`
	LastLoginAt            *time.Time          `bson:"last_login_at,omitempty" json:"lastLoginAt,omitempty"`
	PasswordChangedAt      *time.Time          `bson:"password_changed_at,omitempty" json:"passwordChangedAt,omitempty"`
	CreatedAt              time.Time           `bson:"created_at" json:"createdAt"`
	UpdatedAt              time.Time           `bson:"updated_at" json:"updatedAt"`
}

// IsAdministrator implements rbac.Subject
func (u *User) IsAdministrator() bool { return u.IsAdmin }

// GrantedPermissions implements rbac.Subject
func (u *User) GrantedPermissions() []rbac.Permission { return u.Permissions }

// IsNil lets the evaluator treat a typed nil *User as an absent user
func (u *User) IsNil() bool { return u == nil }

// FullName joins first and last name
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// LoginRequest is used for login requests
type LoginRequest struct {
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required"`
	TwoFactorCode string `json:"twoFactorCode,omitempty" validate:"omitempty,min=6,max=12"`
}

// LoginResponse is the response body for a login attempt
type LoginResponse struct {
	Message           string `json:"message"`
	Token             string `json:"token,omitempty"`
	User              *User  `json:"user,omitempty"`
	RequiresTwoFactor bool   `json:"requiresTwoFactor"`
	UsedBackupCode    bool   `json:"usedBackupCode,omitempty"`
}

// CreateUserRequest is sent by an admin to create a user
type CreateUserRequest struct {
	FirstName      string            `json:"firstName" validate:"required,min=2,max=50,personname"`
	LastName       string            `json:"lastName" validate:"required,min=2,max=50,personname"`
	Email          string            `json:"email" validate:"required,email,max=100"`
	Phone          string            `json:"phone,omitempty" validate:"omitempty,phone"`
	Password       string            `json:"password" validate:"required,password"`
	IsAdmin        bool              `json:"isAdmin"`
	RoleTemplateID string            `json:"roleTemplateId,omitempty" validate:"omitempty,len=24,hexadecimal"`
	Permissions    []rbac.Permission `json:"permissions,omitempty"`
	IsActive       *bool             `json:"isActive,omitempty"`
}

// UpdateUserRequest updates any subset of a user's fields
type UpdateUserRequest struct {
	FirstName   *string            `json:"firstName,omitempty" validate:"omitempty,min=2,max=50,personname"`
	LastName    *string            `json:"lastName,omitempty" validate:"omitempty,min=2,max=50,personname"`
	Email       *string            `json:"email,omitempty" validate:"omitempty,email,max=100"`
	Phone       *string            `json:"phone,omitempty" validate:"omitempty,phone"`
	IsAdmin     *bool              `json:"isAdmin,omitempty"`
	IsActive    *bool              `json:"isActive,omitempty"`
	Permissions *[]rbac.Permission `json:"permissions,omitempty"`
}

// UpdateProfileRequest is used by a user editing their own profile
type UpdateProfileRequest struct {
	FirstName *string `json:"firstName,omitempty" validate:"omitempty,min=2,max=50,personname"`
	LastName  *string `json:"lastName,omitempty" validate:"omitempty,min=2,max=50,personname"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,phone"`
	AvatarURL *string `json:"avatarUrl,omitempty" validate:"omitempty,url"`
}

// ChangePasswordRequest for a logged-in user changing their password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,password,nefield=CurrentPassword"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

// BulkDeleteRequest lists user IDs to delete
type BulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=100,dive,len=24,hexadecimal"`
}

// BulkDeleteResponse reports what a bulk delete did
type BulkDeleteResponse struct {
	Message      string   `json:"message"`
	DeletedCount int64    `json:"deletedCount"`
	Skipped      []string `json:"skipped,omitempty"`
}

// UserFilter holds list query parameters for users
type UserFilter struct {
	Search         string
	IsActive       *bool
	IsAdmin        *bool
	RoleTemplateID *primitive.ObjectID
	CreatedBy      *primitive.ObjectID // set when the caller only has view_own
	SortBy         string
	SortOrder      int
	Page           int64
	Limit          int64
}

// UserListResponse holds a list of users and pagination metadata
type UserListResponse struct {
	Users      []User     `json:"users"`
	Pagination Pagination `json:"pagination"`
}

// AuthContext holds authenticated user details to be stored in request context
type AuthContext struct {
	UserID           primitive.ObjectID
	Email            string
	FullName         string
	IsAdmin          bool
	IsActive         bool
	Permissions      []rbac.Permission
	TwoFactorEnabled bool

	// tokens issued before this instant are rejected
	PasswordChangedAt *time.Time
}

// IsAdministrator implements rbac.Subject
func (ac *AuthContext) IsAdministrator() bool { return ac.IsAdmin }

// GrantedPermissions implements rbac.Subject
func (ac *AuthContext) GrantedPermissions() []rbac.Permission { return ac.Permissions }

// IsNil lets the evaluator treat a typed nil *AuthContext as unauthenticated
func (ac *AuthContext) IsNil() bool { return ac == nil }

// HasPermission checks if the AuthContext grants action on page
func (ac *AuthContext) HasPermission(page rbac.Page, action rbac.Action) bool {
	return rbac.HasPermission(ac, page, action)
}

// NewAuthContext builds the request-scoped view of a user
func NewAuthContext(u *User) *AuthContext {
	return &AuthContext{
		UserID:            u.ID,
		Email:             u.Email,
		FullName:          u.FullName(),
		IsAdmin:           u.IsAdmin,
		IsActive:          u.IsActive,
		Permissions:       rbac.Clone(u.Permissions),
		TwoFactorEnabled:  u.TwoFactorEnabled,
		PasswordChangedAt: u.PasswordChangedAt,
	}
}
