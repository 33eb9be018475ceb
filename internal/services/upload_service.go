package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UploadService handles avatar uploads to Cloudinary
type UploadService struct {
	cld *cloudinary.Cloudinary
}

// NewUploadService creates a new UploadService. Without credentials uploads
// are disabled and UploadAvatar returns ErrUploadDisabled.
func NewUploadService(cloudName, apiKey, apiSecret string) (*UploadService, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return &UploadService{}, nil
	}
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return &UploadService{cld: cld}, nil
}

// Enabled reports whether Cloudinary is configured
func (s *UploadService) Enabled() bool {
	return s != nil && s.cld != nil
}

// UploadAvatar uploads an image and returns its secure URL
func (s *UploadService) UploadAvatar(ctx context.Context, userID primitive.ObjectID, file io.Reader) (string, error) {
	if !s.Enabled() {
		return "", ErrUploadDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	uploadResult, err := s.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:       "safawinet/avatars",
		PublicID:     fmt.Sprintf("%s_%d", userID.Hex(), time.Now().UnixNano()),
		ResourceType: "image",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file to Cloudinary: %w", err)
	}
	if uploadResult.Error.Message != "" {
		return "", fmt.Errorf("cloudinary rejected upload: %s", uploadResult.Error.Message)
	}
	return uploadResult.SecureURL, nil
}
