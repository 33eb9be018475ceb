package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/OsGift/safawinet-api/internal/models"
	"github.com/OsGift/safawinet-api/internal/rbac"
	"github.com/OsGift/safawinet-api/internal/services"
	"github.com/OsGift/safawinet-api/internal/utils"
)

// RoleTemplateService is the template management surface used by RoleTemplateHandler
type RoleTemplateService interface {
	ListTemplates(ctx context.Context, filter models.RoleTemplateFilter) (*models.RoleTemplateListResponse, error)
	GetTemplateByID(ctx context.Context, id string) (*models.RoleTemplate, error)
	CreateTemplate(ctx context.Context, actor *models.AuthContext, req models.CreateRoleTemplateRequest) (*models.RoleTemplate, error)
	UpdateTemplate(ctx context.Context, actor *models.AuthContext, id string, req models.UpdateRoleTemplateRequest) (*models.RoleTemplate, error)
	DeleteTemplate(ctx context.Context, id string) (*models.RoleTemplate, error)
	ToggleStatus(ctx context.Context, id string) (*models.RoleTemplate, error)
	ActiveForUserCreation(ctx context.Context) ([]models.RoleTemplateResponse, error)
	IncrementUsage(ctx context.Context, id primitive.ObjectID) (int64, error)
	MatchRoleName(ctx context.Context, roleName string) (*models.TemplateMatchResponse, error)
}

// RoleTemplateHandler handles role template HTTP requests
type RoleTemplateHandler struct {
	base
	templateService RoleTemplateService
}

// NewRoleTemplateHandler creates a new RoleTemplateHandler
func NewRoleTemplateHandler(ts RoleTemplateService, deps Deps) *RoleTemplateHandler {
	return &RoleTemplateHandler{
		base:            newBase(deps),
		templateService: ts,
	}
}

// ListTemplates handles listing templates with filters and pagination
func (h *RoleTemplateHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}

	page, limit := pageParams(r)
	filter := models.RoleTemplateFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Page:   page,
		Limit:  limit,
	}
	var err error
	if filter.IsActive, err = queryBool(r, "isActive"); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.IsDefault, err = queryBool(r, "isDefault"); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if rbac.ResolveViewScope(ac, rbac.PageRoleTemplates) == rbac.ScopeOwn {
		id := ac.UserID
		filter.CreatedBy = &id
	}

	resp, err := h.templateService.ListTemplates(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err, "Failed to list role templates")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// GetTemplateByID handles fetching a single template
func (h *RoleTemplateHandler) GetTemplateByID(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}

	t, err := h.visibleTemplate(r, ac, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err, "Failed to retrieve role template")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, models.NewRoleTemplateResponse(*t))
}

// CreateTemplate handles creating a custom template
func (h *RoleTemplateHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}

	var req models.CreateRoleTemplateRequest
	if !h.decode(w, r, &req) {
		return
	}

	t, err := h.templateService.CreateTemplate(r.Context(), ac, req)
	if err != nil {
		h.fail(w, r, err, "Failed to create role template")
		return
	}

	h.record(r, models.AuditLog{
		Action:     models.AuditTemplateCreated,
		TargetType: "role_template",
		TargetID:   t.ID.Hex(),
		Details:    map[string]interface{}{"name": t.Name},
	})
	utils.RespondWithJSON(w, http.StatusCreated, models.NewRoleTemplateResponse(*t))
}

// UpdateTemplate handles editing a custom template
func (h *RoleTemplateHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}

	var req models.UpdateRoleTemplateRequest
	if !h.decode(w, r, &req) {
		return
	}
	id := mux.Vars(r)["id"]
	if _, err := h.visibleTemplate(r, ac, id); err != nil {
		h.fail(w, r, err, "Failed to update role template")
		return
	}

	t, err := h.templateService.UpdateTemplate(r.Context(), ac, id, req)
	if err != nil {
		h.fail(w, r, err, "Failed to update role template")
		return
	}

	h.record(r, models.AuditLog{
		Action:     models.AuditTemplateUpdated,
		TargetType: "role_template",
		TargetID:   t.ID.Hex(),
		Details:    map[string]interface{}{"name": t.Name},
	})
	utils.RespondWithJSON(w, http.StatusOK, models.NewRoleTemplateResponse(*t))
}

// DeleteTemplate handles deleting a custom template
func (h *RoleTemplateHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	if _, err := h.visibleTemplate(r, ac, id); err != nil {
		h.fail(w, r, err, "Failed to delete role template")
		return
	}

	t, err := h.templateService.DeleteTemplate(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Failed to delete role template")
		return
	}

	h.record(r, models.AuditLog{
		Action:     models.AuditTemplateDeleted,
		TargetType: "role_template",
		TargetID:   t.ID.Hex(),
		Details:    map[string]interface{}{"name": t.Name},
	})
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Role template deleted successfully"})
}

// ToggleStatus activates or deactivates a custom template
func (h *RoleTemplateHandler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	if _, err := h.visibleTemplate(r, ac, id); err != nil {
		h.fail(w, r, err, "Failed to toggle role template status")
		return
	}

	t, err := h.templateService.ToggleStatus(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Failed to toggle role template status")
		return
	}

	h.record(r, models.AuditLog{
		Action:     models.AuditTemplateToggled,
		TargetType: "role_template",
		TargetID:   t.ID.Hex(),
		Details:    map[string]interface{}{"name": t.Name, "isActive": t.IsActive},
	})
	utils.RespondWithJSON(w, http.StatusOK, models.NewRoleTemplateResponse(*t))
}

// ActiveForUserCreation lists templates offered on the create-user form
func (h *RoleTemplateHandler) ActiveForUserCreation(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templateService.ActiveForUserCreation(r.Context())
	if err != nil {
		h.fail(w, r, err, "Failed to list active role templates")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"templates": templates})
}

// IncrementUsage bumps a template's usage counter
func (h *RoleTemplateHandler) IncrementUsage(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, services.ErrInvalidID, "Failed to increment usage")
		return
	}

	count, err := h.templateService.IncrementUsage(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Failed to increment usage")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"id": id.Hex(), "usageCount": count})
}

// MatchRoleName resolves a free-form role name to the closest template.
// The reported tier is the first heuristic that matched: a name containing a
// template name plus digits, such as "Manager2", reports "substring" because
// containment is tried before digits and punctuation are stripped.
func (h *RoleTemplateHandler) MatchRoleName(w http.ResponseWriter, r *http.Request) {
	roleName := strings.TrimSpace(r.URL.Query().Get("roleName"))
	if roleName == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "roleName is required")
		return
	}

	match, err := h.templateService.MatchRoleName(r.Context(), roleName)
	if err != nil {
		h.fail(w, r, err, "Failed to match role name")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, match)
}

// visibleTemplate loads a template and hides it from callers limited to
// view_own unless they created it.
func (h *RoleTemplateHandler) visibleTemplate(r *http.Request, ac *models.AuthContext, id string) (*models.RoleTemplate, error) {
	t, err := h.templateService.GetTemplateByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if rbac.ResolveViewScope(ac, rbac.PageRoleTemplates) == rbac.ScopeAll {
		return t, nil
	}
	if t.CreatedBy != nil && *t.CreatedBy == ac.UserID {
		return t, nil
	}
	return nil, services.ErrTemplateNotFound
}
