package services

import (
	"context"
	"path"
	"strings"
	"time"

	"workchat/internal/domain/user"
	apperrors "workchat/pkg/errors"

	"github.com/google/uuid"
)

// MaxUploadSize caps a single file message attachment.
const MaxUploadSize = 50 << 20

type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string, sizeBytes int64) (string, map[string]string, error)
	PresignTTL() time.Duration
	FileURL(key string) string
}

type PresignedUpload struct {
	URL       string
	Headers   map[string]string
	Key       string
	PublicURL string
	ExpiresAt time.Time
}

// UploadPrefix is the object key prefix every upload of a company lives under.
func UploadPrefix(companyID uuid.UUID) string {
	return "uploads/" + companyID.String() + "/"
}

type UploadService struct {
	presigner Presigner
	now       func() time.Time
}

func NewUploadService(presigner Presigner) *UploadService {
	return &UploadService{presigner: presigner, now: clock}
}

func sanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}

// PresignUpload reserves an object key under the caller's company prefix and
// returns a URL the client can PUT the file to.
func (s *UploadService) PresignUpload(ctx context.Context, p user.Principal, fileName, contentType string, size int64) (PresignedUpload, error) {
	if err := requirePrincipal(p); err != nil {
		return PresignedUpload{}, err
	}
	if s.presigner == nil {
		return PresignedUpload{}, apperrors.Validation("upload", "file uploads are not configured")
	}
	name := sanitizeFileName(fileName)
	if name == "" {
		return PresignedUpload{}, apperrors.Validation("file_name", "file name is required")
	}
	if size <= 0 || size > MaxUploadSize {
		return PresignedUpload{}, apperrors.Validation("size", "file size must be between 1 byte and 50MB")
	}

	key := UploadPrefix(p.CompanyID) + p.UserID.String() + "/" + uuid.NewString() + "/" + name
	url, headers, err := s.presigner.PresignPut(ctx, key, contentType, size)
	if err != nil {
		return PresignedUpload{}, err
	}
	return PresignedUpload{
		URL:       url,
		Headers:   headers,
		Key:       key,
		PublicURL: s.presigner.FileURL(key),
		ExpiresAt: s.now().Add(s.presigner.PresignTTL()),
	}, nil
}
