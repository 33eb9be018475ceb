package models

import "time"

// TwoFactorSetupResponse is returned when enrollment starts
type TwoFactorSetupResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
	Issuer     string `json:"issuer"`
}

// TwoFactorCodeRequest carries a TOTP code
type TwoFactorCodeRequest struct {
	Code string `json:"code" validate:"required,numeric,len=6"`
}

// TwoFactorVerifyResponse returns the one-time backup codes
type TwoFactorVerifyResponse struct {
	Message     string   `json:"message"`
	BackupCodes []string `json:"backupCodes"`
}

// DisableTwoFactorRequest requires both the password and a current code
type DisableTwoFactorRequest struct {
	Password string `json:"password" validate:"required"`
	Code     string `json:"code" validate:"required,min=6,max=12"`
}

// SecurityStatus summarises account security for the profile page
type SecurityStatus struct {
	TwoFactorEnabled     bool       `json:"twoFactorEnabled"`
	BackupCodesRemaining int        `json:"backupCodesRemaining"`
	PasswordChangedAt    *time.Time `json:"passwordChangedAt,omitempty"`
	LastLoginAt          *time.Time `json:"lastLoginAt,omitempty"`
	FailedLoginsLast24h  int64      `json:"failedLoginsLast24h"`
	RecentLogins         []AuditLog `json:"recentLogins"`
}
