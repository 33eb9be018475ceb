package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/OsGift/safawinet-api/internal/middleware"
	"github.com/OsGift/safawinet-api/internal/models"
)

type fakeUploader struct {
	enabled bool
	err     error
	got     []byte
}

func (f *fakeUploader) Enabled() bool { return f.enabled }

func (f *fakeUploader) UploadAvatar(_ context.Context, userID primitive.ObjectID, file io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.got, _ = io.ReadAll(file)
	return "https://cdn.example/avatars/" + userID.Hex() + ".png", nil
}

type fakeAvatarStore struct {
	url string
}

func (f *fakeAvatarStore) SetAvatar(_ context.Context, userID primitive.ObjectID, url string) (*models.User, error) {
	f.url = url
	return &models.User{ID: userID, AvatarURL: url}, nil
}

func avatarRequest(t *testing.T, actor *models.AuthContext, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="me.png"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/auth/profile/avatar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req.WithContext(middleware.WithAuthContext(req.Context(), actor))
}

func TestUploadAvatar(t *testing.T) {
	actor := actorWith()

	t.Run("stores url on the user", func(t *testing.T) {
		deps, audit, _ := newTestDeps()
		uploader := &fakeUploader{enabled: true}
		store := &fakeAvatarStore{}
		h := NewUploadHandler(uploader, store, deps)

		rec := httptest.NewRecorder()
		h.UploadAvatar(rec, avatarRequest(t, actor, "image/png", []byte("png-bytes")))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []byte("png-bytes"), uploader.got)
		assert.Contains(t, store.url, actor.UserID.Hex())
		assert.Equal(t, []models.AuditAction{models.AuditProfileUpdated}, audit.actions())
	})

	t.Run("rejects non-images", func(t *testing.T) {
		deps, _, _ := newTestDeps()
		h := NewUploadHandler(&fakeUploader{enabled: true}, &fakeAvatarStore{}, deps)

		rec := httptest.NewRecorder()
		h.UploadAvatar(rec, avatarRequest(t, actor, "application/pdf", []byte("%PDF")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("disabled", func(t *testing.T) {
		deps, _, _ := newTestDeps()
		h := NewUploadHandler(&fakeUploader{}, &fakeAvatarStore{}, deps)

		rec := httptest.NewRecorder()
		h.UploadAvatar(rec, avatarRequest(t, actor, "image/png", []byte("png")))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("upstream failure", func(t *testing.T) {
		deps, _, _ := newTestDeps()
		h := NewUploadHandler(&fakeUploader{enabled: true, err: errors.New("cloudinary down")}, &fakeAvatarStore{}, deps)

		rec := httptest.NewRecorder()
		h.UploadAvatar(rec, avatarRequest(t, actor, "image/png", []byte("png")))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "cloudinary down")
	})
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(func(context.Context) error { return nil }).Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	NewHealthHandler(func(context.Context) error { return errors.New("no reachable servers") }).
		Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
