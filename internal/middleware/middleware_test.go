package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/OsGift/safawinet-api/internal/metrics"
	"github.com/OsGift/safawinet-api/internal/models"
	"github.com/OsGift/safawinet-api/internal/rbac"
	"github.com/OsGift/safawinet-api/internal/services"
	"github.com/OsGift/safawinet-api/internal/utils"
)

var testSecret = []byte("middleware-test-secret")

type fakeAuthenticator struct {
	users map[string]*models.AuthContext
}

func (f *fakeAuthenticator) ValidateToken(token string) (*utils.Claims, error) {
	return utils.ParseToken(token, testSecret)
}

func (f *fakeAuthenticator) AuthenticatedUserContext(_ context.Context, userID string) (*models.AuthContext, error) {
	ac, ok := f.users[userID]
	if !ok {
		return nil, services.ErrUserNotFound
	}
	return ac, nil
}

func newTestMiddleware(users ...*models.AuthContext) (*AuthMiddleware, *metrics.Metrics) {
	f := &fakeAuthenticator{users: map[string]*models.AuthContext{}}
	for _, u := range users {
		f.users[u.UserID.Hex()] = u
	}
	m := metrics.NewMetrics(prometheus.NewRegistry())
	return NewAuthMiddleware(f, m, zap.NewNop()), m
}

func tokenFor(t *testing.T, ac *models.AuthContext) string {
	t.Helper()
	tok, err := utils.GenerateToken(ac.UserID, ac.Email, testSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	ac, err := GetAuthContext(r)
	if err != nil {
		w.WriteHeader(http.StatusTeapot)
		return
	}
	w.Header().Set("X-User", ac.UserID.Hex())
	w.WriteHeader(http.StatusOK)
}

func serve(h http.HandlerFunc, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	active := &models.AuthContext{UserID: primitive.NewObjectID(), Email: "a@safawinet.test", IsActive: true}
	inactive := &models.AuthContext{UserID: primitive.NewObjectID(), Email: "i@safawinet.test"}
	unknown := &models.AuthContext{UserID: primitive.NewObjectID(), Email: "u@safawinet.test"}
	mw, _ := newTestMiddleware(active, inactive)
	h := mw.JWTAuth(okHandler)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.token", http.StatusUnauthorized},
		{"unknown user", "Bearer " + tokenFor(t, unknown), http.StatusUnauthorized},
		{"inactive user", "Bearer " + tokenFor(t, inactive), http.StatusForbidden},
		{"active user", "Bearer " + tokenFor(t, active), http.StatusOK},
		{"lower-case scheme", "bearer " + tokenFor(t, active), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, tt.header)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestJWTAuth_TokenOlderThanPasswordChange(t *testing.T) {
	changed := time.Now().Add(time.Minute)
	ac := &models.AuthContext{UserID: primitive.NewObjectID(), IsActive: true, PasswordChangedAt: &changed}
	mw, _ := newTestMiddleware(ac)

	rec := serve(mw.JWTAuth(okHandler), "Bearer "+tokenFor(t, ac))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	past := time.Now().Add(-time.Minute)
	ac.PasswordChangedAt = &past
	rec = serve(mw.JWTAuth(okHandler), "Bearer "+tokenFor(t, ac))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTokenPredatesPasswordChange(t *testing.T) {
	issued := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	claims := &utils.Claims{RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(issued)}}

	assert.False(t, tokenPredatesPasswordChange(claims, nil))

	sameSecond := issued.Add(400 * time.Millisecond)
	assert.False(t, tokenPredatesPasswordChange(claims, &sameSecond))

	later := issued.Add(time.Second)
	assert.True(t, tokenPredatesPasswordChange(claims, &later))

	assert.True(t, tokenPredatesPasswordChange(&utils.Claims{}, &later))
}

func TestRequire(t *testing.T) {
	viewer := &models.AuthContext{
		UserID:      primitive.NewObjectID(),
		IsActive:    true,
		Permissions: []rbac.Permission{{Page: rbac.PageUsers, Actions: []rbac.Action{rbac.ActionViewOwn}}},
	}
	admin := &models.AuthContext{UserID: primitive.NewObjectID(), IsActive: true, IsAdmin: true}
	mw, m := newTestMiddleware(viewer, admin)

	list := mw.Require(okHandler, rbac.PageUsers, rbac.ActionView, rbac.ActionViewOwn)
	rec := serve(list, "Bearer "+tokenFor(t, viewer))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, viewer.UserID.Hex(), rec.Header().Get("X-User"))

	del := mw.Require(okHandler, rbac.PageUsers, rbac.ActionDelete)
	rec = serve(del, "Bearer "+tokenFor(t, viewer))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PermissionDenialsTotal.WithLabelValues("users", "delete")))

	rec = serve(del, "Bearer "+tokenFor(t, admin))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(del, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	staff := &models.AuthContext{UserID: primitive.NewObjectID(), IsActive: true}
	admin := &models.AuthContext{UserID: primitive.NewObjectID(), IsActive: true, IsAdmin: true}
	mw, _ := newTestMiddleware(staff, admin)
	h := mw.RequireAdmin(okHandler)

	assert.Equal(t, http.StatusForbidden, serve(h, "Bearer "+tokenFor(t, staff)).Code)
	assert.Equal(t, http.StatusOK, serve(h, "Bearer "+tokenFor(t, admin)).Code)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	const incoming = "6f1c3a52-3c1b-4b9e-9a47-3f0f8f1d2c11"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", incoming)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, incoming, seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "<script>")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEqual(t, "<script>", seen)

	assert.Empty(t, GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:5123"
	assert.Equal(t, "10.0.0.9", ClientIP(req))

	req.Header.Set("X-Real-IP", "192.0.2.7")
	assert.Equal(t, "192.0.2.7", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", ClientIP(req))
}

func TestObserve_LabelsByRouteTemplate(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	r := mux.NewRouter()
	r.Use(Observe(zap.NewNop(), m))
	r.HandleFunc("/api/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodGet)

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/users/{id}", "404")))
}
