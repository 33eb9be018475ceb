package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/OsGift/safawinet-api/internal/handlers"
	"github.com/OsGift/safawinet-api/internal/middleware"
	"github.com/OsGift/safawinet-api/internal/rbac"
)

// Handlers groups every HTTP handler the router needs
type Handlers struct {
	Auth         *handlers.AuthHandler
	Users        *handlers.UserHandler
	RoleTemplate *handlers.RoleTemplateHandler
	Audit        *handlers.AuditHandler
	Permission   *handlers.PermissionHandler
	Dashboard    *handlers.DashboardHandler
	Upload       *handlers.UploadHandler
	Health       *handlers.HealthHandler
}

// SetupRoutes configures all API routes
func SetupRoutes(router *mux.Router, authMiddleware *middleware.AuthMiddleware, h Handlers, metricsHandler http.Handler) {
	router.HandleFunc("/health", h.Health.Health).Methods("GET")
	if metricsHandler != nil {
		router.Handle("/metrics", metricsHandler).Methods("GET")
	}

	v1 := router.PathPrefix("/api").Subrouter()
	auth := authMiddleware.JWTAuth
	require := authMiddleware.Require

	// Authentication routes
	v1.HandleFunc("/auth/login", h.Auth.Login).Methods("POST")
	v1.HandleFunc("/auth/profile", auth(h.Auth.GetProfile)).Methods("GET")
	v1.HandleFunc("/auth/profile", auth(h.Auth.UpdateProfile)).Methods("PUT")
	v1.HandleFunc("/auth/profile/avatar", auth(h.Upload.UploadAvatar)).Methods("POST")
	v1.HandleFunc("/auth/change-password", auth(h.Auth.ChangePassword)).Methods("PUT")
	v1.HandleFunc("/auth/2fa/setup", auth(h.Auth.SetupTwoFactor)).Methods("POST")
	v1.HandleFunc("/auth/2fa/verify", auth(h.Auth.VerifyTwoFactor)).Methods("POST")
	v1.HandleFunc("/auth/2fa/disable", auth(h.Auth.DisableTwoFactor)).Methods("POST")
	v1.HandleFunc("/auth/2fa/backup-codes", auth(h.Auth.RegenerateBackupCodes)).Methods("POST")
	v1.HandleFunc("/auth/security-status", auth(h.Auth.SecurityStatus)).Methods("GET")

	// Audit trail
	v1.HandleFunc("/auth/audit-logs", require(h.Audit.ListLogs, rbac.PageAuditLogs, rbac.ActionView, rbac.ActionViewOwn)).Methods("GET")
	v1.HandleFunc("/auth/audit-logs/users", require(h.Audit.Actors, rbac.PageAuditLogs, rbac.ActionView, rbac.ActionViewOwn)).Methods("GET")
	v1.HandleFunc("/auth/audit-logs/export", require(h.Audit.ExportLogs, rbac.PageAuditLogs, rbac.ActionExport)).Methods("GET")
	v1.HandleFunc("/auth/audit-logs/debug", authMiddleware.RequireAdmin(h.Audit.Debug)).Methods("GET")

	// User management; static paths before /users/{id}
	v1.HandleFunc("/users", require(h.Users.ListUsers, rbac.PageUsers, rbac.ActionView, rbac.ActionViewOwn)).Methods("GET")
	v1.HandleFunc("/users", require(h.Users.CreateUser, rbac.PageUsers, rbac.ActionAdd)).Methods("POST")
	v1.HandleFunc("/users/export", require(h.Users.ExportUsers, rbac.PageUsers, rbac.ActionExport)).Methods("GET")
	v1.HandleFunc("/users/bulk-delete", require(h.Users.BulkDeleteUsers, rbac.PageUsers, rbac.ActionDelete)).Methods("POST")
	v1.HandleFunc("/users/{id}", require(h.Users.GetUserByID, rbac.PageUsers, rbac.ActionView, rbac.ActionViewOwn)).Methods("GET")
	v1.HandleFunc("/users/{id}", require(h.Users.UpdateUser, rbac.PageUsers, rbac.ActionEdit)).Methods("PUT")
	v1.HandleFunc("/users/{id}", require(h.Users.DeleteUser, rbac.PageUsers, rbac.ActionDelete)).Methods("DELETE")

	// Role templates; static paths before /role-templates/{id}
	v1.HandleFunc("/role-templates", require(h.RoleTemplate.ListTemplates, rbac.PageRoleTemplates, rbac.ActionView, rbac.ActionViewOwn)).Methods("GET")
	v1.HandleFunc("/role-templates", require(h.RoleTemplate.CreateTemplate, rbac.PageRoleTemplates, rbac.ActionAdd)).Methods("POST")
	v1.HandleFunc("/role-templates/active/for-user-creation", require(h.RoleTemplate.ActiveForUserCreation, rbac.PageUsers, rbac.ActionAdd, rbac.ActionEdit)).Methods("GET")
	v1.HandleFunc("/role-templates/match", auth(h.RoleTemplate.MatchRoleName)).Methods("GET")
	v1.HandleFunc("/role-templates/{id}", require(h.RoleTemplate.GetTemplateByID, rbac.PageRoleTemplates, rbac.ActionView, rbac.ActionViewOwn)).Methods("GET")
	v1.HandleFunc("/role-templates/{id}", require(h.RoleTemplate.UpdateTemplate, rbac.PageRoleTemplates, rbac.ActionEdit)).Methods("PUT")
	v1.HandleFunc("/role-templates/{id}", require(h.RoleTemplate.DeleteTemplate, rbac.PageRoleTemplates, rbac.ActionDelete)).Methods("DELETE")
	v1.HandleFunc("/role-templates/{id}/toggle-status", require(h.RoleTemplate.ToggleStatus, rbac.PageRoleTemplates, rbac.ActionEdit)).Methods("PATCH")
	v1.HandleFunc("/role-templates/{id}/increment-usage", require(h.RoleTemplate.IncrementUsage, rbac.PageUsers, rbac.ActionAdd)).Methods("POST")

	// Permission rule table
	v1.HandleFunc("/permissions/catalog", auth(h.Permission.Catalog)).Methods("GET")
	v1.HandleFunc("/permissions/apply-change", auth(h.Permission.ApplyChange)).Methods("POST")

	// Dashboard
	v1.HandleFunc("/dashboard/metrics", require(h.Dashboard.GetDashboardMetrics, rbac.PageDashboard, rbac.ActionView)).Methods("GET")
}
