package client

import "time"

// Permission grants actions on one page
type Permission struct {
	Page    string   `json:"page"`
	Actions []string `json:"actions"`
}

// Pagination accompanies every list
type Pagination struct {
	Page       int64 `json:"page"`
	Limit      int64 `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

// User as returned by the API
type User struct {
	ID                string       `json:"id"`
	FirstName         string       `json:"firstName"`
	LastName          string       `json:"lastName"`
	Email             string       `json:"email"`
	Phone             string       `json:"phone,omitempty"`
	IsAdmin           bool         `json:"isAdmin"`
	Permissions       []Permission `json:"permissions"`
	RoleTemplateID    string       `json:"roleTemplateId,omitempty"`
	RoleName          string       `json:"roleName,omitempty"`
	IsActive          bool         `json:"isActive"`
	AvatarURL         string       `json:"avatarUrl,omitempty"`
	TwoFactorEnabled  bool         `json:"twoFactorEnabled"`
	CreatedBy         string       `json:"createdBy,omitempty"`
	LastLoginAt       *time.Time   `json:"lastLoginAt,omitempty"`
	PasswordChangedAt *time.Time   `json:"passwordChangedAt,omitempty"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
}

// UserList is one page of users
type UserList struct {
	Users      []User     `json:"users"`
	Pagination Pagination `json:"pagination"`
}

// LoginRequest carries credentials and, on the second step, a TOTP or backup code
type LoginRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	TwoFactorCode string `json:"twoFactorCode,omitempty"`
}

// LoginResponse has RequiresTwoFactor set and no token when a code is needed
type LoginResponse struct {
	Message           string `json:"message"`
	Token             string `json:"token,omitempty"`
	User              *User  `json:"user,omitempty"`
	RequiresTwoFactor bool   `json:"requiresTwoFactor"`
	UsedBackupCode    bool   `json:"usedBackupCode,omitempty"`
}

// UpdateProfileRequest edits the caller's own profile; nil fields are left alone
type UpdateProfileRequest struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

// ChangePasswordRequest for the logged-in user
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// TwoFactorSetup is the pending secret to show as a QR code
type TwoFactorSetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
	Issuer     string `json:"issuer"`
}

// DisableTwoFactorRequest needs the password and a current code
type DisableTwoFactorRequest struct {
	Password string `json:"password"`
	Code     string `json:"code"`
}

// SecurityStatus summarises the caller's account security
type SecurityStatus struct {
	TwoFactorEnabled     bool       `json:"twoFactorEnabled"`
	BackupCodesRemaining int        `json:"backupCodesRemaining"`
	PasswordChangedAt    *time.Time `json:"passwordChangedAt,omitempty"`
	LastLoginAt          *time.Time `json:"lastLoginAt,omitempty"`
	FailedLoginsLast24h  int64      `json:"failedLoginsLast24h"`
	RecentLogins         []AuditLog `json:"recentLogins"`
}

// CreateUserRequest creates a user; RoleTemplateID takes precedence over Permissions
type CreateUserRequest struct {
	FirstName      string       `json:"firstName"`
	LastName       string       `json:"lastName"`
	Email          string       `json:"email"`
	Phone          string       `json:"phone,omitempty"`
	Password       string       `json:"password"`
	IsAdmin        bool         `json:"isAdmin"`
	RoleTemplateID string       `json:"roleTemplateId,omitempty"`
	Permissions    []Permission `json:"permissions,omitempty"`
	IsActive       *bool        `json:"isActive,omitempty"`
}

// UpdateUserRequest changes any subset of a user's fields
type UpdateUserRequest struct {
	FirstName   *string       `json:"firstName,omitempty"`
	LastName    *string       `json:"lastName,omitempty"`
	Email       *string       `json:"email,omitempty"`
	Phone       *string       `json:"phone,omitempty"`
	IsAdmin     *bool         `json:"isAdmin,omitempty"`
	IsActive    *bool         `json:"isActive,omitempty"`
	Permissions *[]Permission `json:"permissions,omitempty"`
}

// BulkDeleteResult reports deleted and skipped users
type BulkDeleteResult struct {
	Message      string   `json:"message"`
	DeletedCount int64    `json:"deletedCount"`
	Skipped      []string `json:"skipped,omitempty"`
}

// ListUsersOptions filters and pages GET /api/users
type ListUsersOptions struct {
	Search         string
	IsActive       *bool
	IsAdmin        *bool
	RoleTemplateID string
	SortBy         string
	SortOrder      string // "asc" or "desc"
	Page           int64
	Limit          int64
}

// RoleTemplate as returned by the API
type RoleTemplate struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	Color        string       `json:"color"`
	Icon         string       `json:"icon"`
	Permissions  []Permission `json:"permissions"`
	IsAdmin      bool         `json:"isAdmin"`
	IsDefault    bool         `json:"isDefault"`
	IsActive     bool         `json:"isActive"`
	UsageCount   int64        `json:"usageCount"`
	CanBeDeleted bool         `json:"canBeDeleted"`
	CreatedBy    string       `json:"createdBy,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// RoleTemplateList is one page of templates
type RoleTemplateList struct {
	Templates  []RoleTemplate `json:"templates"`
	Pagination Pagination     `json:"pagination"`
}

// CreateRoleTemplateRequest creates a custom template
type CreateRoleTemplateRequest struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Color       string       `json:"color,omitempty"`
	Icon        string       `json:"icon,omitempty"`
	Permissions []Permission `json:"permissions"`
	IsAdmin     bool         `json:"isAdmin"`
	IsActive    *bool        `json:"isActive,omitempty"`
}

// UpdateRoleTemplateRequest edits a custom template
type UpdateRoleTemplateRequest struct {
	Name        *string       `json:"name,omitempty"`
	Description *string       `json:"description,omitempty"`
	Color       *string       `json:"color,omitempty"`
	Icon        *string       `json:"icon,omitempty"`
	Permissions *[]Permission `json:"permissions,omitempty"`
	IsAdmin     *bool         `json:"isAdmin,omitempty"`
	IsActive    *bool         `json:"isActive,omitempty"`
}

// ListTemplatesOptions filters and pages GET /api/role-templates
type ListTemplatesOptions struct {
	Search    string
	IsActive  *bool
	IsDefault *bool
	Page      int64
	Limit     int64
}

// TemplateMatch is the template resembling a role name, with its badge style
type TemplateMatch struct {
	Matched  bool          `json:"matched"`
	Tier     string        `json:"tier"`
	Template *RoleTemplate `json:"template,omitempty"`
	Color    string        `json:"color"`
	Icon     string        `json:"icon"`
}

// AuditLog is one audit trail entry
type AuditLog struct {
	ID         string                 `json:"id"`
	Action     string                 `json:"action"`
	Status     string                 `json:"status"`
	UserID     string                 `json:"userId,omitempty"`
	UserEmail  string                 `json:"userEmail,omitempty"`
	TargetType string                 `json:"targetType,omitempty"`
	TargetID   string                 `json:"targetId,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	IPAddress  string                 `json:"ipAddress,omitempty"`
	UserAgent  string                 `json:"userAgent,omitempty"`
	RequestID  string                 `json:"requestId,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
}

// AuditLogList is one page of audit entries
type AuditLogList struct {
	Logs       []AuditLog `json:"logs"`
	Pagination Pagination `json:"pagination"`
}

// AuditActor is a user appearing in the trail
type AuditActor struct {
	UserID    string `json:"userId"`
	UserEmail string `json:"userEmail"`
	Count     int64  `json:"count"`
}

// ListAuditLogsOptions filters and pages the audit trail
type ListAuditLogsOptions struct {
	Action string
	Status string
	UserID string
	Search string
	From   *time.Time
	To     *time.Time
	Page   int64
	Limit  int64
}

// File is a downloaded export
type File struct {
	Filename    string
	ContentType string
	Data        []byte
}
