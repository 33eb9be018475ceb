package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/OsGift/safawinet-api/internal/cache"
	"github.com/OsGift/safawinet-api/internal/models"
	"github.com/OsGift/safawinet-api/internal/utils"
)

// AuthService provides login, password and two-factor operations
type AuthService struct {
	userService  *UserService
	twoFactor    *TwoFactorService
	auditService *AuditService
	authCache    *cache.AuthCache
	mailer       *utils.Mailer
	jwtSecret    []byte
	tokenTTL     time.Duration
	frontendURL  string
	logger       *zap.Logger
}

// AuthServiceConfig groups the AuthService dependencies
type AuthServiceConfig struct {
	Users       *UserService
	TwoFactor   *TwoFactorService
	Audit       *AuditService
	AuthCache   *cache.AuthCache
	Mailer      *utils.Mailer
	JWTSecret   []byte
	TokenTTL    time.Duration
	FrontendURL string
	Logger      *zap.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(cfg AuthServiceConfig) *AuthService {
	return &AuthService{
		userService:  cfg.Users,
		twoFactor:    cfg.TwoFactor,
		auditService: cfg.Audit,
		authCache:    cfg.AuthCache,
		mailer:       cfg.Mailer,
		jwtSecret:    cfg.JWTSecret,
		tokenTTL:     cfg.TokenTTL,
		frontendURL:  cfg.FrontendURL,
		logger:       cfg.Logger,
	}
}

// LoginUser checks credentials and, when enabled, the second factor. The
// returned user is set whenever the account was identified, even on failure,
// so the caller can attribute the audit entry.
func (s *AuthService) LoginUser(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, *models.User, error) {
	user, err := s.userService.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if err == ErrUserNotFound {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if !utils.CheckPasswordHash(req.Password, user.Password) {
		return nil, user, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, user, ErrAccountInactive
	}

	usedBackup := false
	if user.TwoFactorEnabled {
		if req.TwoFactorCode == "" {
			return &models.LoginResponse{
				Message:           "Two-factor authentication required",
				RequiresTwoFactor: true,
			}, user, nil
		}
		usedBackup, err = s.checkSecondFactor(ctx, user, req.TwoFactorCode)
		if err != nil {
			return nil, user, err
		}
	}

	now := time.Now()
	if err := s.userService.RecordLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to record last login", zap.String("user_id", user.ID.Hex()), zap.Error(err))
	}
	user.LastLoginAt = &now

	token, err := utils.GenerateToken(user.ID, user.Email, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return nil, user, fmt.Errorf("failed to generate token: %w", err)
	}

	return &models.LoginResponse{
		Message:        "Login successful",
		Token:          token,
		User:           user,
		UsedBackupCode: usedBackup,
	}, user, nil
}

// checkSecondFactor accepts a TOTP code or an unused backup code. A backup
// code is consumed on success.
func (s *AuthService) checkSecondFactor(ctx context.Context, user *models.User, code string) (bool, error) {
	if s.twoFactor.ValidateCode(user.TwoFactorSecret, code) {
		return false, nil
	}
	remaining, ok := s.twoFactor.ConsumeBackupCode(user.BackupCodes, code)
	if !ok {
		return false, ErrInvalidTwoFactor
	}
	if err := s.userService.UpdateTwoFactor(ctx, user.ID, bson.M{"backup_codes": remaining}); err != nil {
		return false, err
	}
	user.BackupCodes = remaining
	return true, nil
}

// ChangePassword verifies the current password, stores the new one and
// returns a fresh token. Tokens issued before the change stop working.
func (s *AuthService) ChangePassword(ctx context.Context, userID primitive.ObjectID, req models.ChangePasswordRequest) (string, error) {
	user, err := s.userService.GetUserByID(ctx, userID.Hex())
	if err != nil {
		return "", err
	}
	if !utils.CheckPasswordHash(req.CurrentPassword, user.Password) {
		return "", ErrIncorrectPassword
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return "", fmt.Errorf("failed to hash new password: %w", err)
	}
	changedAt := time.Now().Truncate(time.Second)
	if err := s.userService.SetPassword(ctx, user.ID, hash, changedAt); err != nil {
		return "", err
	}

	s.mailer.SendAsync("password_changed", "Your SafawiNet password was changed", user.Email, map[string]string{
		"FirstName": user.FirstName,
		"ChangedAt": changedAt.UTC().Format(time.RFC1123),
	})

	return utils.GenerateToken(user.ID, user.Email, s.jwtSecret, s.tokenTTL)
}

// SetupTwoFactor starts enrollment by storing a pending secret
func (s *AuthService) SetupTwoFactor(ctx context.Context, userID primitive.ObjectID) (*models.TwoFactorSetupResponse, error) {
	user, err := s.userService.GetUserByID(ctx, userID.Hex())
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, ErrTwoFactorEnabled
	}

	secret, url, err := s.twoFactor.GenerateSecret(user.Email)
	if err != nil {
		return nil, err
	}
	if err := s.userService.UpdateTwoFactor(ctx, user.ID, bson.M{"pending_two_factor_secret": secret}); err != nil {
		return nil, err
	}
	return &models.TwoFactorSetupResponse{Secret: secret, OTPAuthURL: url, Issuer: s.twoFactor.Issuer()}, nil
}

// VerifyTwoFactor confirms enrollment with a code from the pending secret and
// returns the backup codes. They are shown only this once.
func (s *AuthService) VerifyTwoFactor(ctx context.Context, userID primitive.ObjectID, code string) ([]string, error) {
	user, err := s.userService.GetUserByID(ctx, userID.Hex())
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, ErrTwoFactorEnabled
	}
	if user.PendingTwoFactorSecret == "" {
		return nil, ErrTwoFactorNotPending
	}
	if !s.twoFactor.ValidateCode(user.PendingTwoFactorSecret, code) {
		return nil, ErrInvalidTwoFactor
	}

	plain, hashed, err := s.twoFactor.GenerateBackupCodes()
	if err != nil {
		return nil, err
	}
	set := bson.M{
		"two_factor_enabled": true,
		"two_factor_secret":  user.PendingTwoFactorSecret,
		"backup_codes":       hashed,
	}
	if err := s.userService.UpdateTwoFactor(ctx, user.ID, set, "pending_two_factor_secret"); err != nil {
		return nil, err
	}

	s.mailer.SendAsync("two_factor_changed", "Two-factor authentication enabled", user.Email, map[string]interface{}{
		"FirstName": user.FirstName,
		"Enabled":   true,
	})
	return plain, nil
}

// DisableTwoFactor turns 2FA off after checking the password and a code
func (s *AuthService) DisableTwoFactor(ctx context.Context, userID primitive.ObjectID, req models.DisableTwoFactorRequest) error {
	user, err := s.userService.GetUserByID(ctx, userID.Hex())
	if err != nil {
		return err
	}
	if !user.TwoFactorEnabled {
		return ErrTwoFactorNotEnabled
	}
	if !utils.CheckPasswordHash(req.Password, user.Password) {
		return ErrIncorrectPassword
	}
	if !s.twoFactor.ValidateCode(user.TwoFactorSecret, req.Code) {
		if _, ok := s.twoFactor.ConsumeBackupCode(user.BackupCodes, req.Code); !ok {
			return ErrInvalidTwoFactor
		}
	}

	if err := s.userService.UpdateTwoFactor(ctx, user.ID, bson.M{"two_factor_enabled": false},
		"two_factor_secret", "pending_two_factor_secret", "backup_codes"); err != nil {
		return err
	}

	s.mailer.SendAsync("two_factor_changed", "Two-factor authentication disabled", user.Email, map[string]interface{}{
		"FirstName": user.FirstName,
		"Enabled":   false,
	})
	return nil
}

// RegenerateBackupCodes replaces all backup codes after checking a TOTP code
func (s *AuthService) RegenerateBackupCodes(ctx context.Context, userID primitive.ObjectID, code string) ([]string, error) {
	user, err := s.userService.GetUserByID(ctx, userID.Hex())
	if err != nil {
		return nil, err
	}
	if !user.TwoFactorEnabled {
		return nil, ErrTwoFactorNotEnabled
	}
	if !s.twoFactor.ValidateCode(user.TwoFactorSecret, code) {
		return nil, ErrInvalidTwoFactor
	}
	plain, hashed, err := s.twoFactor.GenerateBackupCodes()
	if err != nil {
		return nil, err
	}
	if err := s.userService.UpdateTwoFactor(ctx, user.ID, bson.M{"backup_codes": hashed}); err != nil {
		return nil, err
	}
	return plain, nil
}

// SecurityStatus summarises the account's security settings and recent logins
func (s *AuthService) SecurityStatus(ctx context.Context, userID primitive.ObjectID) (*models.SecurityStatus, error) {
	user, err := s.userService.GetUserByID(ctx, userID.Hex())
	if err != nil {
		return nil, err
	}

	failed, err := s.auditService.CountSince(ctx, user.ID, models.AuditLoginFailed, time.Now().Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	recent, err := s.auditService.Recent(ctx, user.ID, []models.AuditAction{models.AuditLoginSuccess, models.AuditLoginFailed}, 5)
	if err != nil {
		return nil, err
	}

	return &models.SecurityStatus{
		TwoFactorEnabled:     user.TwoFactorEnabled,
		BackupCodesRemaining: len(user.BackupCodes),
		PasswordChangedAt:    user.PasswordChangedAt,
		LastLoginAt:          user.LastLoginAt,
		FailedLoginsLast24h:  failed,
		RecentLogins:         recent,
	}, nil
}

// ValidateToken parses and verifies an access token
func (s *AuthService) ValidateToken(tokenString string) (*utils.Claims, error) {
	return utils.ParseToken(tokenString, s.jwtSecret)
}

// AuthenticatedUserContext loads the request-scoped view of a user, from the cache when possible
func (s *AuthService) AuthenticatedUserContext(ctx context.Context, userID string) (*models.AuthContext, error) {
	if ac, ok := s.authCache.Get(ctx, userID); ok {
		return ac, nil
	}
	user, err := s.userService.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	ac := models.NewAuthContext(user)
	s.authCache.Set(ctx, ac)
	return ac, nil
}

// WelcomeUser mails temporary credentials to a user created by an admin
func (s *AuthService) WelcomeUser(user *models.User, temporaryPassword string) {
	s.mailer.SendAsync("account_created", "Your SafawiNet account", user.Email, map[string]string{
		"FirstName": user.FirstName,
		"Email":     user.Email,
		"Password":  temporaryPassword,
		"LoginLink": s.frontendURL + "/login",
	})
}
