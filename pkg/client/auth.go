package client

import (
	"context"
	"net/http"
)

// AuthService covers login, the caller's profile and two-factor security
type AuthService struct {
	client *Client
}

// Login authenticates and keeps the returned token on the client.
// When the account has 2FA and no code was sent, RequiresTwoFactor is set and no token is stored.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var resp LoginResponse
	if err := s.client.do(ctx, http.MethodPost, "/api/auth/login", nil, req, &resp); err != nil {
		return nil, err
	}
	if resp.Token != "" {
		s.client.SetToken(resp.Token)
	}
	return &resp, nil
}

// Profile returns the logged-in user
func (s *AuthService) Profile(ctx context.Context) (*User, error) {
	var u User
	if err := s.client.do(ctx, http.MethodGet, "/api/auth/profile", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*User, error) {
	var u User
	if err := s.client.do(ctx, http.MethodPut, "/api/auth/profile", nil, req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ChangePassword invalidates every older token and switches the client to the new one
func (s *AuthService) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	var resp struct {
		Token string `json:"token"`
	}
	if err := s.client.do(ctx, http.MethodPut, "/api/auth/change-password", nil, req, &resp); err != nil {
		return err
	}
	if resp.Token != "" {
		s.client.SetToken(resp.Token)
	}
	return nil
}

func (s *AuthService) SetupTwoFactor(ctx context.Context) (*TwoFactorSetup, error) {
	var setup TwoFactorSetup
	if err := s.client.do(ctx, http.MethodPost, "/api/auth/2fa/setup", nil, nil, &setup); err != nil {
		return nil, err
	}
	return &setup, nil
}

// VerifyTwoFactor enables 2FA and returns the one-time backup codes
func (s *AuthService) VerifyTwoFactor(ctx context.Context, code string) ([]string, error) {
	var resp struct {
		BackupCodes []string `json:"backupCodes"`
	}
	body := map[string]string{"code": code}
	if err := s.client.do(ctx, http.MethodPost, "/api/auth/2fa/verify", nil, body, &resp); err != nil {
		return nil, err
	}
	return resp.BackupCodes, nil
}

func (s *AuthService) DisableTwoFactor(ctx context.Context, req DisableTwoFactorRequest) error {
	return s.client.do(ctx, http.MethodPost, "/api/auth/2fa/disable", nil, req, nil)
}

// RegenerateBackupCodes replaces all remaining backup codes; code is a current TOTP code
func (s *AuthService) RegenerateBackupCodes(ctx context.Context, code string) ([]string, error) {
	var resp struct {
		BackupCodes []string `json:"backupCodes"`
	}
	body := map[string]string{"code": code}
	if err := s.client.do(ctx, http.MethodPost, "/api/auth/2fa/backup-codes", nil, body, &resp); err != nil {
		return nil, err
	}
	return resp.BackupCodes, nil
}

func (s *AuthService) SecurityStatus(ctx context.Context) (*SecurityStatus, error) {
	var st SecurityStatus
	if err := s.client.do(ctx, http.MethodGet, "/api/auth/security-status", nil, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
