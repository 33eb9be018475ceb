package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/OsGift/safawinet-api/internal/metrics"
	"github.com/OsGift/safawinet-api/internal/models"
	"github.com/OsGift/safawinet-api/internal/rbac"
	"github.com/OsGift/safawinet-api/internal/utils"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	ContextKeyAuthContext ContextKey = "authContext"
	ContextKeyRequestID   ContextKey = "requestID"
)

// Authenticator verifies tokens and loads the caller's authorization state
type Authenticator interface {
	ValidateToken(tokenString string) (*utils.Claims, error)
	AuthenticatedUserContext(ctx context.Context, userID string) (*models.AuthContext, error)
}

// AuthMiddleware handles JWT authentication and permission checks
type AuthMiddleware struct {
	auth    Authenticator
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(auth Authenticator, m *metrics.Metrics, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{auth: auth, metrics: m, logger: logger}
}

// JWTAuth verifies the bearer token and stores the AuthContext in the request context.
// Tokens issued before the user's last password change are rejected.
func (m *AuthMiddleware) JWTAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			utils.RespondWithError(w, http.StatusUnauthorized, "Missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		claims, err := m.auth.ValidateToken(parts[1])
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		authContext, err := m.auth.AuthenticatedUserContext(r.Context(), claims.UserID)
		if err != nil {
			m.logger.Debug("token subject could not be loaded", zap.String("user_id", claims.UserID), zap.Error(err))
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		if tokenPredatesPasswordChange(claims, authContext.PasswordChangedAt) {
			utils.RespondWithError(w, http.StatusUnauthorized, "Session expired after a password change, please log in again")
			return
		}

		if !authContext.IsActive {
			utils.RespondWithError(w, http.StatusForbidden, "Account is deactivated")
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyAuthContext, authContext)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// Require authenticates the request and then demands at least one of actions on page
func (m *AuthMiddleware) Require(next http.HandlerFunc, page rbac.Page, actions ...rbac.Action) http.HandlerFunc {
	return m.JWTAuth(func(w http.ResponseWriter, r *http.Request) {
		authContext, _ := GetAuthContext(r)
		if !rbac.HasAny(authContext, page, actions...) {
			m.metrics.ObserveDenial(string(page), joinActions(actions))
			utils.RespondWithError(w, http.StatusForbidden, "You do not have sufficient permissions to access this resource")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin authenticates the request and demands an administrator
func (m *AuthMiddleware) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return m.JWTAuth(func(w http.ResponseWriter, r *http.Request) {
		authContext, _ := GetAuthContext(r)
		if !authContext.IsAdministrator() {
			m.metrics.ObserveDenial("admin", "any")
			utils.RespondWithError(w, http.StatusForbidden, "Administrator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetAuthContext retrieves the AuthContext from the request's context
func GetAuthContext(r *http.Request) (*models.AuthContext, error) {
	val := r.Context().Value(ContextKeyAuthContext)
	authContext, ok := val.(*models.AuthContext)
	if !ok || authContext == nil {
		return nil, fmt.Errorf("authentication context not found or invalid in request")
	}
	return authContext, nil
}

// WithAuthContext returns a copy of ctx carrying ac
func WithAuthContext(ctx context.Context, ac *models.AuthContext) context.Context {
	return context.WithValue(ctx, ContextKeyAuthContext, ac)
}

// tokenPredatesPasswordChange compares at second precision, the resolution of the iat claim
func tokenPredatesPasswordChange(claims *utils.Claims, changedAt *time.Time) bool {
	if changedAt == nil {
		return false
	}
	if claims.IssuedAt == nil {
		return true
	}
	return claims.IssuedAt.Time.Before(changedAt.Truncate(time.Second))
}

func joinActions(actions []rbac.Action) string {
	s := make([]string, len(actions))
	for i, a := range actions {
		s[i] = string(a)
	}
	return strings.Join(s, "|")
}
