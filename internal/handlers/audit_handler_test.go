package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/OsGift/safawinet-api/internal/models"
	"github.com/OsGift/safawinet-api/internal/rbac"
)

type fakeAuditService struct {
	lastFilter models.AuditLogFilter
	onlyUser   *primitive.ObjectID
}

func (f *fakeAuditService) ListLogs(_ context.Context, filter models.AuditLogFilter) (*models.AuditLogListResponse, error) {
	f.lastFilter = filter
	return &models.AuditLogListResponse{Logs: []models.AuditLog{}}, nil
}

func (f *fakeAuditService) ExportLogs(_ context.Context, filter models.AuditLogFilter) ([]models.AuditLog, error) {
	f.lastFilter = filter
	return []models.AuditLog{{Action: models.AuditLoginSuccess}}, nil
}

func (f *fakeAuditService) Actors(_ context.Context, onlyUser *primitive.ObjectID) ([]models.AuditActor, error) {
	f.onlyUser = onlyUser
	return nil, nil
}

func (f *fakeAuditService) Debug(_ context.Context) (*models.AuditDebugInfo, error) {
	return &models.AuditDebugInfo{TotalLogs: 42, RetentionDays: 90}, nil
}

func TestListLogs_Filters(t *testing.T) {
	deps, _, _ := newTestDeps()
	svc := &fakeAuditService{}
	h := NewAuditHandler(svc, fakeExporter{}, deps)
	who := primitive.NewObjectID()

	rec := httptest.NewRecorder()
	h.ListLogs(rec, newRequest(t, http.MethodGet,
		"/api/auth/audit-logs?action=login_failed&status=failure&userId="+who.Hex()+"&from=2026-01-01&to=2026-01-31", nil, adminActor(), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	f := svc.lastFilter
	assert.Equal(t, models.AuditLoginFailed, f.Action)
	assert.Equal(t, models.AuditStatusFailure, f.Status)
	assert.Equal(t, who, *f.UserID)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), *f.From)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond), *f.To)
}

func TestListLogs_ViewOwnIsForcedToCaller(t *testing.T) {
	deps, _, _ := newTestDeps()
	svc := &fakeAuditService{}
	h := NewAuditHandler(svc, fakeExporter{}, deps)
	own := actorWith(perm(rbac.PageAuditLogs, rbac.ActionViewOwn))

	rec := httptest.NewRecorder()
	h.ListLogs(rec, newRequest(t, http.MethodGet, "/api/auth/audit-logs?userId="+primitive.NewObjectID().Hex(), nil, own, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, own.UserID, *svc.lastFilter.UserID)
}

func TestListLogs_BadDate(t *testing.T) {
	deps, _, _ := newTestDeps()
	h := NewAuditHandler(&fakeAuditService{}, fakeExporter{}, deps)

	rec := httptest.NewRecorder()
	h.ListLogs(rec, newRequest(t, http.MethodGet, "/api/auth/audit-logs?from=01/02/2026", nil, adminActor(), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActors(t *testing.T) {
	deps, _, _ := newTestDeps()
	svc := &fakeAuditService{}
	h := NewAuditHandler(svc, fakeExporter{}, deps)

	rec := httptest.NewRecorder()
	h.Actors(rec, newRequest(t, http.MethodGet, "/api/auth/audit-logs/users", nil, adminActor(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, svc.onlyUser)
	assert.Equal(t, []interface{}{}, decodeJSON(t, rec)["users"])

	own := actorWith(perm(rbac.PageAuditLogs, rbac.ActionViewOwn))
	rec = httptest.NewRecorder()
	h.Actors(rec, newRequest(t, http.MethodGet, "/api/auth/audit-logs/users", nil, own, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, own.UserID, *svc.onlyUser)
}

func TestExportLogs(t *testing.T) {
	deps, audit, _ := newTestDeps()
	h := NewAuditHandler(&fakeAuditService{}, fakeExporter{}, deps)

	rec := httptest.NewRecorder()
	h.ExportLogs(rec, newRequest(t, http.MethodGet, "/api/auth/audit-logs/export", nil, adminActor(), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="audit.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, []models.AuditAction{models.AuditAuditLogsExported}, audit.actions())
}

func TestDebug(t *testing.T) {
	deps, _, _ := newTestDeps()
	h := NewAuditHandler(&fakeAuditService{}, fakeExporter{}, deps)

	rec := httptest.NewRecorder()
	h.Debug(rec, newRequest(t, http.MethodGet, "/api/auth/audit-logs/debug", nil, adminActor(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(42), decodeJSON(t, rec)["totalLogs"])
}
