package services

import "errors"

// Errors returned by the services; handlers map them to status codes with errors.Is.
var (
	ErrInvalidID = errors.New("invalid ID format")

	ErrUserNotFound        = errors.New("user not found")
	ErrEmailTaken          = errors.New("email already registered")
	ErrAdminRequired       = errors.New("only administrators can manage administrator accounts")
	ErrCannotDeleteSelf    = errors.New("you cannot delete your own account")
	ErrCannotDemoteSelf    = errors.New("you cannot deactivate or demote your own account")
	ErrCannotEditOwnAccess = errors.New("you cannot change your own permissions")
	ErrPermissionExceeded  = errors.New("you cannot grant permissions you do not hold")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountInactive     = errors.New("account is deactivated")
	ErrIncorrectPassword   = errors.New("current password is incorrect")
	ErrInvalidTwoFactor    = errors.New("invalid two-factor code")
	ErrTwoFactorEnabled    = errors.New("two-factor authentication is already enabled")
	ErrTwoFactorNotEnabled = errors.New("two-factor authentication is not enabled")
	ErrTwoFactorNotPending = errors.New("two-factor setup has not been started")

	ErrTemplateNotFound         = errors.New("role template not found")
	ErrDuplicateTemplateName    = errors.New("a role template with this name already exists")
	ErrDefaultTemplateImmutable = errors.New("default role templates cannot be modified or deleted")
	ErrTemplateInactive         = errors.New("role template is inactive")

	ErrUploadDisabled = errors.New("file uploads are not configured")
)
