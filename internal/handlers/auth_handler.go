package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/OsGift/safawinet-api/internal/models"
	"github.com/OsGift/safawinet-api/internal/services"
	"github.com/OsGift/safawinet-api/internal/utils"
)

// AuthService is the login, password and two-factor surface used by AuthHandler
type AuthService interface {
	LoginUser(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, *models.User, error)
	ChangePassword(ctx context.Context, userID primitive.ObjectID, req models.ChangePasswordRequest) (string, error)
	SetupTwoFactor(ctx context.Context, userID primitive.ObjectID) (*models.TwoFactorSetupResponse, error)
	VerifyTwoFactor(ctx context.Context, userID primitive.ObjectID, code string) ([]string, error)
	DisableTwoFactor(ctx context.Context, userID primitive.ObjectID, req models.DisableTwoFactorRequest) error
	RegenerateBackupCodes(ctx context.Context, userID primitive.ObjectID, code string) ([]string, error)
	SecurityStatus(ctx context.Context, userID primitive.ObjectID) (*models.SecurityStatus, error)
}

// ProfileService reads and edits the caller's own user record
type ProfileService interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID primitive.ObjectID, req models.UpdateProfileRequest) (*models.User, error)
}

// AuthHandler handles authentication related HTTP requests
type AuthHandler struct {
	base
	authService AuthService
	users       ProfileService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(as AuthService, users ProfileService, deps Deps) *AuthHandler {
	return &AuthHandler{
		base:        newBase(deps),
		authService: as,
		users:       users,
	}
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, user, err := h.authService.LoginUser(r.Context(), req)
	if err != nil {
		h.metrics.ObserveLogin("failure")
		entry := models.AuditLog{
			Action:    models.AuditLoginFailed,
			Status:    models.AuditStatusFailure,
			UserEmail: utils.NormalizeEmail(req.Email),
			Details:   map[string]interface{}{"reason": err.Error()},
		}
		if user != nil {
			id := user.ID
			entry.UserID = &id
		}
		h.record(r, entry)
		h.fail(w, r, err, "Failed to log in")
		return
	}

	if resp.RequiresTwoFactor {
		h.metrics.ObserveLogin("two_factor_required")
		utils.RespondWithJSON(w, http.StatusOK, resp)
		return
	}

	h.metrics.ObserveLogin("success")
	id := user.ID
	h.record(r, models.AuditLog{Action: models.AuditLoginSuccess, UserID: &id, UserEmail: user.Email})
	if resp.UsedBackupCode {
		h.record(r, models.AuditLog{Action: models.AuditBackupCodeUsed, UserID: &id, UserEmail: user.Email})
	}

	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// GetProfile returns the authenticated user's profile
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}

	user, err := h.users.GetUserByID(r.Context(), ac.UserID.Hex())
	if err != nil {
		h.fail(w, r, err, "Failed to retrieve profile")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, user)
}

// UpdateProfile lets the authenticated user edit their own name, phone and avatar
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}

	var req models.UpdateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), ac.UserID, req)
	if err != nil {
		h.fail(w, r, err, "Failed to update profile")
		return
	}

	h.record(r, models.AuditLog{Action: models.AuditProfileUpdated, TargetType: "user", TargetID: user.ID.Hex()})
	utils.RespondWithJSON(w, http.StatusOK, user)
}

// ChangePassword handles a logged-in user changing their password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}

	var req models.ChangePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	token, err := h.authService.ChangePassword(r.Context(), ac.UserID, req)
	if err != nil {
		if errors.Is(err, services.ErrIncorrectPassword) {
			h.record(r, models.AuditLog{
				Action:  models.AuditPasswordChanged,
				Status:  models.AuditStatusFailure,
				Details: map[string]interface{}{"reason": err.Error()},
			})
		}
		h.fail(w, r, err, "Failed to change password")
		return
	}

	h.record(r, models.AuditLog{Action: models.AuditPasswordChanged, TargetType: "user", TargetID: ac.UserID.Hex()})
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Password changed successfully",
		"token":   token,
	})
}

// SetupTwoFactor starts 2FA enrollment
func (h *AuthHandler) SetupTwoFactor(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}

	resp, err := h.authService.SetupTwoFactor(r.Context(), ac.UserID)
	if err != nil {
		h.fail(w, r, err, "Failed to start two-factor setup")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// VerifyTwoFactor completes enrollment and returns the backup codes once
func (h *AuthHandler) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}

	var req models.TwoFactorCodeRequest
	if !h.decode(w, r, &req) {
		return
	}

	codes, err := h.authService.VerifyTwoFactor(r.Context(), ac.UserID, req.Code)
	if err != nil {
		h.fail(w, r, err, "Failed to verify two-factor code")
		return
	}

	h.record(r, models.AuditLog{Action: models.AuditTwoFactorEnabled, TargetType: "user", TargetID: ac.UserID.Hex()})
	utils.RespondWithJSON(w, http.StatusOK, models.TwoFactorVerifyResponse{
		Message:     "Two-factor authentication enabled. Store these backup codes somewhere safe.",
		BackupCodes: codes,
	})
}

// DisableTwoFactor turns 2FA off
func (h *AuthHandler) DisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}

	var req models.DisableTwoFactorRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.authService.DisableTwoFactor(r.Context(), ac.UserID, req); err != nil {
		h.fail(w, r, err, "Failed to disable two-factor authentication")
		return
	}

	h.record(r, models.AuditLog{Action: models.AuditTwoFactorDisabled, TargetType: "user", TargetID: ac.UserID.Hex()})
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Two-factor authentication disabled"})
}

// RegenerateBackupCodes replaces the caller's backup codes
func (h *AuthHandler) RegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}

	var req models.TwoFactorCodeRequest
	if !h.decode(w, r, &req) {
		return
	}

	codes, err := h.authService.RegenerateBackupCodes(r.Context(), ac.UserID, req.Code)
	if err != nil {
		h.fail(w, r, err, "Failed to regenerate backup codes")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, models.TwoFactorVerifyResponse{
		Message:     "Backup codes regenerated",
		BackupCodes: codes,
	})
}

// SecurityStatus returns the caller's security summary
func (h *AuthHandler) SecurityStatus(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}

	status, err := h.authService.SecurityStatus(r.Context(), ac.UserID)
	if err != nil {
		h.fail(w, r, err, "Failed to retrieve security status")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, status)
}
