package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/OsGift/safawinet-api/internal/models"
	"github.com/OsGift/safawinet-api/internal/rbac"
	"github.com/OsGift/safawinet-api/internal/services"
	"github.com/OsGift/safawinet-api/internal/utils"
)

// UserService is the user management surface used by UserHandler
type UserService interface {
	CreateUser(ctx context.Context, actor *models.AuthContext, req models.CreateUserRequest) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, filter models.UserFilter) (*models.UserListResponse, error)
	ExportUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	UpdateUser(ctx context.Context, actor *models.AuthContext, id string, req models.UpdateUserRequest) (*models.User, error)
	DeleteUser(ctx context.Context, actor *models.AuthContext, id string) (*models.User, error)
	BulkDeleteUsers(ctx context.Context, actor *models.AuthContext, ids []string) (*models.BulkDeleteResponse, error)
}

// Welcomer mails credentials to newly created users
type Welcomer interface {
	WelcomeUser(user *models.User, temporaryPassword string)
}

// UserHandler handles user management HTTP requests
type UserHandler struct {
	base
	userService UserService
	welcomer    Welcomer
	exporter    Exporter
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(us UserService, welcomer Welcomer, exporter Exporter, deps Deps) *UserHandler {
	return &UserHandler{
		base:        newBase(deps),
		userService: us,
		welcomer:    welcomer,
		exporter:    exporter,
	}
}

// CreateUser handles creating a new user. The password in the request is
// mailed to the user as a temporary credential.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}

	var req models.CreateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.userService.CreateUser(r.Context(), ac, req)
	if err != nil {
		h.fail(w, r, err, "Failed to create user")
		return
	}

	h.welcomer.WelcomeUser(user, req.Password)
	h.record(r, models.AuditLog{
		Action:     models.AuditUserCreated,
		TargetType: "user",
		TargetID:   user.ID.Hex(),
		Details:    map[string]interface{}{"email": user.Email, "roleName": user.RoleName, "isAdmin": user.IsAdmin},
	})
	utils.RespondWithJSON(w, http.StatusCreated, user)
}

// GetUserByID handles fetching a user by ID
func (h *UserHandler) GetUserByID(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}

	user, err := h.visibleUser(r, ac, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err, "Failed to retrieve user")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, user)
}

// ListUsers handles listing users with filters, sorting and pagination
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}

	filter, err := userFilterFromRequest(r, ac)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.userService.ListUsers(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err, "Failed to list users")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// UpdateUser handles updating a user's details
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	var req models.UpdateUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	if _, err := h.visibleUser(r, ac, id); err != nil {
		h.fail(w, r, err, "Failed to update user")
		return
	}

	user, err := h.userService.UpdateUser(r.Context(), ac, id, req)
	if err != nil {
		h.fail(w, r, err, "Failed to update user")
		return
	}

	h.record(r, models.AuditLog{
		Action:     models.AuditUserUpdated,
		TargetType: "user",
		TargetID:   user.ID.Hex(),
		Details:    map[string]interface{}{"email": user.Email},
	})
	utils.RespondWithJSON(w, http.StatusOK, user)
}

// DeleteUser handles deleting a user
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	if _, err := h.visibleUser(r, ac, id); err != nil {
		h.fail(w, r, err, "Failed to delete user")
		return
	}

	user, err := h.userService.DeleteUser(r.Context(), ac, id)
	if err != nil {
		h.fail(w, r, err, "Failed to delete user")
		return
	}

	h.record(r, models.AuditLog{
		Action:     models.AuditUserDeleted,
		TargetType: "user",
		TargetID:   user.ID.Hex(),
		Details:    map[string]interface{}{"email": user.Email},
	})
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

// BulkDeleteUsers handles deleting several users at once
func (h *UserHandler) BulkDeleteUsers(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}

	var req models.BulkDeleteRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.userService.BulkDeleteUsers(r.Context(), ac, req.IDs)
	if err != nil {
		h.fail(w, r, err, "Failed to delete users")
		return
	}

	h.record(r, models.AuditLog{
		Action:     models.AuditUsersBulkDeleted,
		TargetType: "user",
		TargetID:   strings.Join(req.IDs, ","),
		Details:    map[string]interface{}{"deleted": resp.DeletedCount, "skipped": len(resp.Skipped)},
	})
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// ExportUsers streams the filtered user list as CSV or XLSX
func (h *UserHandler) ExportUsers(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}

	format, err := services.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.fail(w, r, err, "Failed to export users")
		return
	}
	filter, err := userFilterFromRequest(r, ac)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	users, err := h.userService.ExportUsers(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err, "Failed to export users")
		return
	}
	file, err := h.exporter.ExportUsers(format, users)
	if err != nil {
		h.fail(w, r, err, "Failed to export users")
		return
	}

	h.metrics.ObserveExport("users", string(format))
	h.record(r, models.AuditLog{
		Action:  models.AuditUsersExported,
		Details: map[string]interface{}{"format": string(format), "count": len(users)},
	})
	utils.RespondWithFile(w, file.Filename, file.ContentType, file.Data)
}

// visibleUser loads a user and hides it from callers limited to view_own
// unless they created it or it is their own record.
func (h *UserHandler) visibleUser(r *http.Request, ac *models.AuthContext, id string) (*models.User, error) {
	user, err := h.userService.GetUserByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if rbac.ResolveViewScope(ac, rbac.PageUsers) == rbac.ScopeAll || user.ID == ac.UserID {
		return user, nil
	}
	if user.CreatedBy != nil && *user.CreatedBy == ac.UserID {
		return user, nil
	}
	return nil, services.ErrUserNotFound
}

func userFilterFromRequest(r *http.Request, ac *models.AuthContext) (models.UserFilter, error) {
	q := r.URL.Query()
	page, limit := pageParams(r)
	filter := models.UserFilter{
		Search:    strings.TrimSpace(q.Get("search")),
		SortBy:    q.Get("sortBy"),
		SortOrder: sortOrder(q.Get("sortOrder")),
		Page:      page,
		Limit:     limit,
	}

	var err error
	if filter.IsActive, err = queryBool(r, "isActive"); err != nil {
		return filter, err
	}
	if filter.IsAdmin, err = queryBool(r, "isAdmin"); err != nil {
		return filter, err
	}
	if filter.RoleTemplateID, err = queryObjectID(r, "roleTemplateId"); err != nil {
		return filter, err
	}

	if rbac.ResolveViewScope(ac, rbac.PageUsers) == rbac.ScopeOwn {
		id := ac.UserID
		filter.CreatedBy = &id
	}
	return filter, nil
}
