package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/OsGift/safawinet-api/internal/models"
	"github.com/OsGift/safawinet-api/internal/services"
	"github.com/OsGift/safawinet-api/internal/utils"
)

const maxAvatarSize = 5 << 20

// AvatarUploader stores avatar images and returns their public URL
type AvatarUploader interface {
	Enabled() bool
	UploadAvatar(ctx context.Context, userID primitive.ObjectID, file io.Reader) (string, error)
}

// AvatarStore persists the uploaded URL on the user
type AvatarStore interface {
	SetAvatar(ctx context.Context, userID primitive.ObjectID, url string) (*models.User, error)
}

// UploadHandler handles file upload related HTTP requests
type UploadHandler struct {
	base
	uploadService AvatarUploader
	users         AvatarStore
}

// NewUploadHandler creates a new UploadHandler
func NewUploadHandler(us AvatarUploader, users AvatarStore, deps Deps) *UploadHandler {
	return &UploadHandler{
		base:          newBase(deps),
		uploadService: us,
		users:         users,
	}
}

// UploadAvatar accepts a multipart "file" image and sets it as the caller's avatar
func (h *UploadHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}
	if !h.uploadService.Enabled() {
		h.fail(w, r, services.ErrUploadDisabled, "Failed to upload avatar")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarSize+1024)
	if err := r.ParseMultipartForm(maxAvatarSize); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "File is too large or the form is invalid (max 5MB)")
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Error retrieving file from form: "+err.Error())
		return
	}
	defer file.Close()

	if fileHeader.Size == 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "Uploaded file is empty.")
		return
	}
	if !strings.HasPrefix(fileHeader.Header.Get("Content-Type"), "image/") {
		utils.RespondWithError(w, http.StatusBadRequest, "Only image files are allowed.")
		return
	}

	url, err := h.uploadService.UploadAvatar(r.Context(), ac.UserID, file)
	if err != nil {
		h.fail(w, r, err, "Failed to upload avatar")
		return
	}

	user, err := h.users.SetAvatar(r.Context(), ac.UserID, url)
	if err != nil {
		h.fail(w, r, err, "Failed to save avatar")
		return
	}

	h.record(r, models.AuditLog{
		Action:     models.AuditProfileUpdated,
		TargetType: "user",
		TargetID:   ac.UserID.Hex(),
		Details:    map[string]interface{}{"field": "avatar"},
	})
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Avatar uploaded successfully",
		"url":     url,
		"user":    user,
	})
}
