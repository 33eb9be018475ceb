package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/OsGift/safawinet-api/internal/models"
	"github.com/OsGift/safawinet-api/internal/rbac"
	"github.com/OsGift/safawinet-api/internal/services"
	"github.com/OsGift/safawinet-api/internal/utils"
)

// AuditService is the audit trail surface used by AuditHandler
type AuditService interface {
	ListLogs(ctx context.Context, filter models.AuditLogFilter) (*models.AuditLogListResponse, error)
	ExportLogs(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, error)
	Actors(ctx context.Context, onlyUser *primitive.ObjectID) ([]models.AuditActor, error)
	Debug(ctx context.Context) (*models.AuditDebugInfo, error)
}

// AuditHandler handles audit log HTTP requests
type AuditHandler struct {
	base
	auditService AuditService
	exporter     Exporter
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(as AuditService, exporter Exporter, deps Deps) *AuditHandler {
	return &AuditHandler{
		base:         newBase(deps),
		auditService: as,
		exporter:     exporter,
	}
}

// ListLogs lists audit entries; callers limited to view_own only see their own
func (h *AuditHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}

	filter, err := auditFilterFromRequest(r, ac)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.auditService.ListLogs(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err, "Failed to list audit logs")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// Actors lists users that appear in the trail
func (h *AuditHandler) Actors(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}

	var onlyUser *primitive.ObjectID
	if rbac.ResolveViewScope(ac, rbac.PageAuditLogs) != rbac.ScopeAll {
		id := ac.UserID
		onlyUser = &id
	}

	actors, err := h.auditService.Actors(r.Context(), onlyUser)
	if err != nil {
		h.fail(w, r, err, "Failed to list audit users")
		return
	}
	if actors == nil {
		actors = []models.AuditActor{}
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"users": actors})
}

// Debug summarises the audit collection. Admin only.
func (h *AuditHandler) Debug(w http.ResponseWriter, r *http.Request) {
	info, err := h.auditService.Debug(r.Context())
	if err != nil {
		h.fail(w, r, err, "Failed to summarise audit logs")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, info)
}

// ExportLogs streams the filtered trail as CSV or XLSX
func (h *AuditHandler) ExportLogs(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}

	format, err := services.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.fail(w, r, err, "Failed to export audit logs")
		return
	}
	filter, err := auditFilterFromRequest(r, ac)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	logs, err := h.auditService.ExportLogs(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err, "Failed to export audit logs")
		return
	}
	file, err := h.exporter.ExportAuditLogs(format, logs)
	if err != nil {
		h.fail(w, r, err, "Failed to export audit logs")
		return
	}

	h.metrics.ObserveExport("audit_logs", string(format))
	h.record(r, models.AuditLog{
		Action:  models.AuditAuditLogsExported,
		Details: map[string]interface{}{"format": string(format), "count": len(logs)},
	})
	utils.RespondWithFile(w, file.Filename, file.ContentType, file.Data)
}

func auditFilterFromRequest(r *http.Request, ac *models.AuthContext) (models.AuditLogFilter, error) {
	q := r.URL.Query()
	page, limit := pageParams(r)
	filter := models.AuditLogFilter{
		Action: models.AuditAction(q.Get("action")),
		Status: models.AuditStatus(q.Get("status")),
		Search: strings.TrimSpace(q.Get("search")),
		Page:   page,
		Limit:  limit,
	}

	var err error
	if filter.UserID, err = queryObjectID(r, "userId"); err != nil {
		return filter, err
	}
	if filter.From, err = queryTime(r, "from", false); err != nil {
		return filter, err
	}
	if filter.To, err = queryTime(r, "to", true); err != nil {
		return filter, err
	}

	if rbac.ResolveViewScope(ac, rbac.PageAuditLogs) != rbac.ScopeAll {
		id := ac.UserID
		filter.UserID = &id
	}
	return filter, nil
}
