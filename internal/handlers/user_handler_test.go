package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/OsGift/safawinet-api/internal/models"
	"github.com/OsGift/safawinet-api/internal/rbac"
	"github.com/OsGift/safawinet-api/internal/services"
)

type fakeUserService struct {
	users      map[string]*models.User
	lastFilter models.UserFilter
	createErr  error
	updateErr  error
	deleteErr  error
}

func newFakeUserService(users ...*models.User) *fakeUserService {
	f := &fakeUserService{users: map[string]*models.User{}}
	for _, u := range users {
		f.users[u.ID.Hex()] = u
	}
	return f
}

func (f *fakeUserService) CreateUser(_ context.Context, actor *models.AuthContext, req models.CreateUserRequest) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	creator := actor.UserID
	u := &models.User{ID: primitive.NewObjectID(), FirstName: req.FirstName, Email: req.Email, CreatedBy: &creator}
	f.users[u.ID.Hex()] = u
	return u, nil
}

func (f *fakeUserService) GetUserByID(_ context.Context, id string) (*models.User, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, services.ErrInvalidID
	}
	u, ok := f.users[id]
	if !ok {
		return nil, services.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUserService) ListUsers(_ context.Context, filter models.UserFilter) (*models.UserListResponse, error) {
	f.lastFilter = filter
	return &models.UserListResponse{Users: []models.User{}, Pagination: models.NewPagination(1, 10, 0)}, nil
}

func (f *fakeUserService) ExportUsers(_ context.Context, filter models.UserFilter) ([]models.User, error) {
	f.lastFilter = filter
	out := []models.User{}
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeUserService) UpdateUser(_ context.Context, _ *models.AuthContext, id string, req models.UpdateUserRequest) (*models.User, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	u := f.users[id]
	if req.FirstName != nil {
		u.FirstName = *req.FirstName
	}
	return u, nil
}

func (f *fakeUserService) DeleteUser(_ context.Context, actor *models.AuthContext, id string) (*models.User, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	if id == actor.UserID.Hex() {
		return nil, services.ErrCannotDeleteSelf
	}
	u := f.users[id]
	delete(f.users, id)
	return u, nil
}

func (f *fakeUserService) BulkDeleteUsers(_ context.Context, actor *models.AuthContext, ids []string) (*models.BulkDeleteResponse, error) {
	resp := &models.BulkDeleteResponse{}
	for _, id := range ids {
		if id == actor.UserID.Hex() {
			resp.Skipped = append(resp.Skipped, id)
			continue
		}
		resp.DeletedCount++
	}
	return resp, nil
}

type fakeWelcomer struct {
	sent map[string]string
}

func (f *fakeWelcomer) WelcomeUser(user *models.User, password string) {
	if f.sent == nil {
		f.sent = map[string]string{}
	}
	f.sent[user.Email] = password
}

func TestListUsers_ScopeFollowsViewPermission(t *testing.T) {
	deps, _, _ := newTestDeps()
	svc := newFakeUserService()
	h := NewUserHandler(svc, &fakeWelcomer{}, fakeExporter{}, deps)

	own := actorWith(perm(rbac.PageUsers, rbac.ActionViewOwn))
	rec := httptest.NewRecorder()
	h.ListUsers(rec, newRequest(t, http.MethodGet, "/api/users?search=ali&isActive=true&sortBy=email&sortOrder=asc&page=2&limit=5", nil, own, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.lastFilter.CreatedBy)
	assert.Equal(t, own.UserID, *svc.lastFilter.CreatedBy)
	assert.Equal(t, "ali", svc.lastFilter.Search)
	assert.True(t, *svc.lastFilter.IsActive)
	assert.Equal(t, 1, svc.lastFilter.SortOrder)
	assert.Equal(t, int64(2), svc.lastFilter.Page)
	assert.Equal(t, int64(5), svc.lastFilter.Limit)

	all := actorWith(perm(rbac.PageUsers, rbac.ActionView))
	rec = httptest.NewRecorder()
	h.ListUsers(rec, newRequest(t, http.MethodGet, "/api/users", nil, all, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, svc.lastFilter.CreatedBy)
	assert.Equal(t, -1, svc.lastFilter.SortOrder)
}

func TestListUsers_InvalidQuery(t *testing.T) {
	deps, _, _ := newTestDeps()
	h := NewUserHandler(newFakeUserService(), &fakeWelcomer{}, fakeExporter{}, deps)

	for _, target := range []string{"/api/users?isActive=maybe", "/api/users?roleTemplateId=xyz"} {
		rec := httptest.NewRecorder()
		h.ListUsers(rec, newRequest(t, http.MethodGet, target, nil, adminActor(), nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestGetUserByID_ViewOwnHidesOthers(t *testing.T) {
	deps, _, _ := newTestDeps()
	own := actorWith(perm(rbac.PageUsers, rbac.ActionViewOwn))
	creator := own.UserID
	mine := &models.User{ID: primitive.NewObjectID(), Email: "mine@safawinet.test", CreatedBy: &creator}
	other := &models.User{ID: primitive.NewObjectID(), Email: "other@safawinet.test"}
	h := NewUserHandler(newFakeUserService(mine, other), &fakeWelcomer{}, fakeExporter{}, deps)

	rec := httptest.NewRecorder()
	h.GetUserByID(rec, newRequest(t, http.MethodGet, "/api/users/x", nil, own, map[string]string{"id": mine.ID.Hex()}))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.GetUserByID(rec, newRequest(t, http.MethodGet, "/api/users/x", nil, own, map[string]string{"id": other.ID.Hex()}))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.GetUserByID(rec, newRequest(t, http.MethodGet, "/api/users/x", nil, adminActor(), map[string]string{"id": other.ID.Hex()}))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.GetUserByID(rec, newRequest(t, http.MethodGet, "/api/users/x", nil, adminActor(), map[string]string{"id": "bad"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateUser(t *testing.T) {
	req := models.CreateUserRequest{
		FirstName: "Amina",
		LastName:  "Yusuf",
		Email:     "amina@safawinet.test",
		Password:  "Welcome123",
	}

	t.Run("welcomes and audits", func(t *testing.T) {
		deps, audit, _ := newTestDeps()
		welcomer := &fakeWelcomer{}
		h := NewUserHandler(newFakeUserService(), welcomer, fakeExporter{}, deps)

		rec := httptest.NewRecorder()
		h.CreateUser(rec, newRequest(t, http.MethodPost, "/api/users", req, adminActor(), nil))

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "Welcome123", welcomer.sent["amina@safawinet.test"])
		assert.Equal(t, []models.AuditAction{models.AuditUserCreated}, audit.actions())
		assert.NotContains(t, rec.Body.String(), "Welcome123")
	})

	t.Run("duplicate email", func(t *testing.T) {
		deps, audit, _ := newTestDeps()
		svc := newFakeUserService()
		svc.createErr = services.ErrEmailTaken
		welcomer := &fakeWelcomer{}
		h := NewUserHandler(svc, welcomer, fakeExporter{}, deps)

		rec := httptest.NewRecorder()
		h.CreateUser(rec, newRequest(t, http.MethodPost, "/api/users", req, adminActor(), nil))

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, []string{"email"}, fieldNames(decodeJSON(t, rec)))
		assert.Empty(t, welcomer.sent)
		assert.Empty(t, audit.entries)
	})

	t.Run("invalid custom permissions", func(t *testing.T) {
		deps, _, m := newTestDeps()
		svc := newFakeUserService()
		svc.createErr = &rbac.ConstraintError{Code: rbac.CodeViewRequired, Page: rbac.PageUsers, Action: rbac.ActionEdit, Message: "edit requires view"}
		h := NewUserHandler(svc, &fakeWelcomer{}, fakeExporter{}, deps)

		rec := httptest.NewRecorder()
		h.CreateUser(rec, newRequest(t, http.MethodPost, "/api/users", req, adminActor(), nil))

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, rbac.CodeViewRequired, decodeJSON(t, rec)["code"])
		assert.Equal(t, 1.0, testutil.ToFloat64(m.ConstraintRejectionsTotal.WithLabelValues(rbac.CodeViewRequired)))
	})

	t.Run("weak password", func(t *testing.T) {
		deps, _, _ := newTestDeps()
		h := NewUserHandler(newFakeUserService(), &fakeWelcomer{}, fakeExporter{}, deps)
		weak := req
		weak.Password = "password"

		rec := httptest.NewRecorder()
		h.CreateUser(rec, newRequest(t, http.MethodPost, "/api/users", weak, adminActor(), nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, []string{"password"}, fieldNames(decodeJSON(t, rec)))
	})
}

func TestUpdateUser(t *testing.T) {
	deps, audit, _ := newTestDeps()
	target := &models.User{ID: primitive.NewObjectID(), FirstName: "Old"}
	h := NewUserHandler(newFakeUserService(target), &fakeWelcomer{}, fakeExporter{}, deps)

	rec := httptest.NewRecorder()
	h.UpdateUser(rec, newRequest(t, http.MethodPut, "/api/users/x", map[string]string{"firstName": "New"}, adminActor(),
		map[string]string{"id": target.ID.Hex()}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "New", decodeJSON(t, rec)["firstName"])
	assert.Equal(t, []models.AuditAction{models.AuditUserUpdated}, audit.actions())
}

func TestUpdateUser_PermissionChangesRejected(t *testing.T) {
	editor := actorWith(perm(rbac.PageUsers, rbac.ActionViewOwn, rbac.ActionEdit))
	self := &models.User{ID: editor.UserID, FirstName: "Self"}
	wider := []rbac.Permission{perm(rbac.PageUsers, rbac.ActionView, rbac.ActionEdit), perm(rbac.PageAuditLogs, rbac.ActionView)}

	for _, svcErr := range []error{services.ErrCannotEditOwnAccess, services.ErrPermissionExceeded} {
		t.Run(svcErr.Error(), func(t *testing.T) {
			deps, audit, _ := newTestDeps()
			svc := newFakeUserService(self)
			svc.updateErr = svcErr
			h := NewUserHandler(svc, &fakeWelcomer{}, fakeExporter{}, deps)

			rec := httptest.NewRecorder()
			h.UpdateUser(rec, newRequest(t, http.MethodPut, "/api/users/x", map[string]interface{}{"permissions": wider}, editor,
				map[string]string{"id": self.ID.Hex()}))

			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Equal(t, svcErr.Error(), decodeJSON(t, rec)["message"])
			assert.Empty(t, audit.entries)
		})
	}
}

func TestDeleteUser(t *testing.T) {
	admin := adminActor()
	self := &models.User{ID: admin.UserID}
	other := &models.User{ID: primitive.NewObjectID(), Email: "bye@safawinet.test"}

	deps, audit, _ := newTestDeps()
	h := NewUserHandler(newFakeUserService(self, other), &fakeWelcomer{}, fakeExporter{}, deps)

	rec := httptest.NewRecorder()
	h.DeleteUser(rec, newRequest(t, http.MethodDelete, "/api/users/x", nil, admin, map[string]string{"id": self.ID.Hex()}))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.DeleteUser(rec, newRequest(t, http.MethodDelete, "/api/users/x", nil, admin, map[string]string{"id": other.ID.Hex()}))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, other.ID.Hex(), audit.entries[0].TargetID)
}

func TestBulkDeleteUsers(t *testing.T) {
	deps, audit, _ := newTestDeps()
	admin := adminActor()
	h := NewUserHandler(newFakeUserService(), &fakeWelcomer{}, fakeExporter{}, deps)

	ids := []string{admin.UserID.Hex(), primitive.NewObjectID().Hex(), primitive.NewObjectID().Hex()}
	rec := httptest.NewRecorder()
	h.BulkDeleteUsers(rec, newRequest(t, http.MethodPost, "/api/users/bulk-delete", models.BulkDeleteRequest{IDs: ids}, admin, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, float64(2), body["deletedCount"])
	assert.Equal(t, []interface{}{admin.UserID.Hex()}, body["skipped"])
	assert.Equal(t, []models.AuditAction{models.AuditUsersBulkDeleted}, audit.actions())

	rec = httptest.NewRecorder()
	h.BulkDeleteUsers(rec, newRequest(t, http.MethodPost, "/api/users/bulk-delete", models.BulkDeleteRequest{IDs: []string{}}, admin, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportUsers(t *testing.T) {
	deps, audit, m := newTestDeps()
	h := NewUserHandler(newFakeUserService(&models.User{ID: primitive.NewObjectID()}), &fakeWelcomer{}, fakeExporter{}, deps)

	rec := httptest.NewRecorder()
	h.ExportUsers(rec, newRequest(t, http.MethodGet, "/api/users/export?format=xlsx", nil, adminActor(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="users.xlsx"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExportsTotal.WithLabelValues("users", "xlsx")))
	require.Len(t, audit.entries, 1)
	assert.Equal(t, 1, audit.entries[0].Details["count"])

	rec = httptest.NewRecorder()
	h.ExportUsers(rec, newRequest(t, http.MethodGet, "/api/users/export?format=pdf", nil, adminActor(), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
