package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuditAction names an audited event
type AuditAction string

const (
	AuditLoginSuccess       AuditAction = "login_success"
	AuditLoginFailed        AuditAction = "login_failed"
	AuditPasswordChanged    AuditAction = "password_changed"
	AuditProfileUpdated     AuditAction = "profile_updated"
	AuditTwoFactorEnabled   AuditAction = "two_factor_enabled"
	AuditTwoFactorDisabled  AuditAction = "two_factor_disabled"
	AuditBackupCodeUsed     AuditAction = "backup_code_used"
	AuditUserCreated        AuditAction = "user_created"
	AuditUserUpdated        AuditAction = "user_updated"
	AuditUserDeleted        AuditAction = "user_deleted"
	AuditUsersBulkDeleted   AuditAction = "users_bulk_deleted"
	AuditUsersExported      AuditAction = "users_exported"
	AuditTemplateCreated    AuditAction = "role_template_created"
	AuditTemplateUpdated    AuditAction = "role_template_updated"
	AuditTemplateDeleted    AuditAction = "role_template_deleted"
	AuditTemplateToggled    AuditAction = "role_template_toggled"
	AuditAuditLogsExported  AuditAction = "audit_logs_exported"
	AuditPermissionRejected AuditAction = "permission_change_rejected"
)

// AuditStatus is the outcome of an audited event
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
)

// AuditLog is one entry of the audit trail
type AuditLog struct {
	ID         primitive.ObjectID     `bson:"_id,omitempty" json:"id,omitempty"`
	Action     AuditAction            `bson:"action" json:"action"`
	Status     AuditStatus            `bson:"status" json:"status"`
	UserID     *primitive.ObjectID    `bson:"user_id,omitempty" json:"userId,omitempty"`
	UserEmail  string                 `bson:"user_email,omitempty" json:"userEmail,omitempty"`
	TargetType string                 `bson:"target_type,omitempty" json:"targetType,omitempty"`
	TargetID   string                 `bson:"target_id,omitempty" json:"targetId,omitempty"`
	Details    map[string]interface{} `bson:"details,omitempty" json:"details,omitempty"`
	IPAddress  string                 `bson:"ip_address,omitempty" json:"ipAddress,omitempty"`
	UserAgent  string                 `bson:"user_agent,omitempty" json:"userAgent,omitempty"`
	RequestID  string                 `bson:"request_id,omitempty" json:"requestId,omitempty"`
	CreatedAt  time.Time              `bson:"created_at" json:"createdAt"`
}

// AuditLogFilter holds list query parameters for audit logs
type AuditLogFilter struct {
	Action AuditAction
	Status AuditStatus
	UserID *primitive.ObjectID
	Search string
	From   *time.Time
	To     *time.Time
	Page   int64
	Limit  int64
}

// AuditLogListResponse holds audit entries and pagination metadata
type AuditLogListResponse struct {
	Logs       []AuditLog `json:"logs"`
	Pagination Pagination `json:"pagination"`
}

// AuditActor is a user that appears in the audit trail
type AuditActor struct {
	UserID    primitive.ObjectID `bson:"_id" json:"userId"`
	UserEmail string             `bson:"user_email" json:"userEmail"`
	Count     int64              `bson:"count" json:"count"`
}

// AuditActionCount is used in the debug summary
type AuditActionCount struct {
	Action AuditAction `bson:"_id" json:"action"`
	Count  int64       `bson:"count" json:"count"`
}

// AuditDebugInfo summarises the audit collection for troubleshooting
type AuditDebugInfo struct {
	TotalLogs     int64              `json:"totalLogs"`
	ByAction      []AuditActionCount `json:"byAction"`
	OldestLogAt   *time.Time         `json:"oldestLogAt,omitempty"`
	NewestLogAt   *time.Time         `json:"newestLogAt,omitempty"`
	RetentionDays int                `json:"retentionDays"`
}
