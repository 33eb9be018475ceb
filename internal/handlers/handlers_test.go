package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/OsGift/safawinet-api/internal/metrics"
	"github.com/OsGift/safawinet-api/internal/middleware"
	"github.com/OsGift/safawinet-api/internal/models"
	"github.com/OsGift/safawinet-api/internal/rbac"
	"github.com/OsGift/safawinet-api/internal/services"
)

type fakeAudit struct {
	entries []models.AuditLog
}

func (f *fakeAudit) Record(_ context.Context, entry models.AuditLog) {
	f.entries = append(f.entries, entry)
}

func (f *fakeAudit) actions() []models.AuditAction {
	out := make([]models.AuditAction, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.Action
	}
	return out
}

type fakeExporter struct{}

func (fakeExporter) ExportUsers(format models.ExportFormat, users []models.User) (*services.ExportFile, error) {
	return &services.ExportFile{Filename: "users." + string(format), ContentType: "text/csv", Data: []byte("ID\n")}, nil
}

func (fakeExporter) ExportAuditLogs(format models.ExportFormat, logs []models.AuditLog) (*services.ExportFile, error) {
	return &services.ExportFile{Filename: "audit." + string(format), ContentType: "text/csv", Data: []byte("ID\n")}, nil
}

func newTestDeps() (Deps, *fakeAudit, *metrics.Metrics) {
	audit := &fakeAudit{}
	m := metrics.NewMetrics(prometheus.NewRegistry())
	return Deps{Audit: audit, Metrics: m, Logger: zap.NewNop()}, audit, m
}

func adminActor() *models.AuthContext {
	return &models.AuthContext{UserID: primitive.NewObjectID(), Email: "admin@safawinet.test", IsAdmin: true, IsActive: true}
}

func actorWith(perms ...rbac.Permission) *models.AuthContext {
	return &models.AuthContext{UserID: primitive.NewObjectID(), Email: "staff@safawinet.test", IsActive: true, Permissions: perms}
}

func perm(page rbac.Page, actions ...rbac.Action) rbac.Permission {
	return rbac.Permission{Page: page, Actions: actions}
}

// newRequest builds a request carrying actor (when non-nil) and mux vars
func newRequest(t *testing.T, method, target string, body interface{}, actor *models.AuthContext, vars map[string]string) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req = req.WithContext(middleware.WithAuthContext(req.Context(), actor))
	}
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	return req
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// fieldNames collects the "field" of every entry in a validation error body
func fieldNames(body map[string]interface{}) []string {
	raw, _ := body["errors"].([]interface{})
	var out []string
	for _, e := range raw {
		if m, ok := e.(map[string]interface{}); ok {
			out = append(out, m["field"].(string))
		}
	}
	return out
}

func timePtr(t time.Time) *time.Time { return &t }
