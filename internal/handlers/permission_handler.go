package handlers

import (
	"net/http"

	"github.com/OsGift/safawinet-api/internal/models"
	"github.com/OsGift/safawinet-api/internal/rbac"
	"github.com/OsGift/safawinet-api/internal/utils"
)

// ApplyChangeRequest toggles one action on one page of a permission list
type ApplyChangeRequest struct {
	Permissions []rbac.Permission `json:"permissions"`
	Page        rbac.Page         `json:"page" validate:"required"`
	Action      rbac.Action       `json:"action" validate:"required"`
	Checked     bool              `json:"checked"`
}

// PermissionHandler exposes the page/action rule table and the constraint rules
type PermissionHandler struct {
	base
}

// NewPermissionHandler creates a new PermissionHandler
func NewPermissionHandler(deps Deps) *PermissionHandler {
	return &PermissionHandler{base: newBase(deps)}
}

// Catalog lists every page with the actions it supports
func (h *PermissionHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"pages": rbac.Catalog()})
}

// ApplyChange returns the permission list after toggling one checkbox, or a
// 422 naming the rule the change would break.
func (h *PermissionHandler) ApplyChange(w http.ResponseWriter, r *http.Request) {
	var req ApplyChangeRequest
	if !h.decode(w, r, &req) {
		return
	}

	perms, err := rbac.ApplyChange(req.Permissions, req.Page, req.Action, req.Checked)
	if err != nil {
		h.record(r, models.AuditLog{
			Action:  models.AuditPermissionRejected,
			Status:  models.AuditStatusFailure,
			Details: map[string]interface{}{"page": string(req.Page), "action": string(req.Action), "reason": err.Error()},
		})
		h.fail(w, r, err, "Failed to apply permission change")
		return
	}
	if perms == nil {
		perms = []rbac.Permission{}
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"permissions": perms})
}
