package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"workchat/internal/domain/user"
	apperrors "workchat/pkg/errors"

	"github.com/google/uuid"
)

type fakePresigner struct {
	key string
	err error
}

func (p *fakePresigner) PresignPut(_ context.Context, key, contentType string, _ int64) (string, map[string]string, error) {
	p.key = key
	if p.err != nil {
		return "", nil, p.err
	}
	return "https://bucket.example/" + key + "?sig=1", map[string]string{"Content-Type": contentType}, nil
}

func (p *fakePresigner) PresignTTL() time.Duration { return 10 * time.Minute }

func (p *fakePresigner) FileURL(key string) string { return "https://cdn.example/" + key }

func TestPresignUpload(t *testing.T) {
	ctx := context.Background()
	p := user.Principal{UserID: uuid.New(), CompanyID: uuid.New()}
	presigner := &fakePresigner{}
	svc := NewUploadService(presigner)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	up, err := svc.PresignUpload(ctx, p, "../../etc/report.pdf", "application/pdf", 1024)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.HasPrefix(up.Key, UploadPrefix(p.CompanyID)+p.UserID.String()+"/") {
		t.Fatalf("key %q outside caller prefix", up.Key)
	}
	if !strings.HasSuffix(up.Key, "/report.pdf") || strings.Contains(up.Key, "..") {
		t.Fatalf("key %q not sanitized", up.Key)
	}
	if up.PublicURL != "https://cdn.example/"+up.Key {
		t.Fatalf("public url = %q", up.PublicURL)
	}
	if !up.ExpiresAt.Equal(fixed.Add(10 * time.Minute)) {
		t.Fatalf("expires = %v", up.ExpiresAt)
	}
	if up.Headers["Content-Type"] != "application/pdf" {
		t.Fatalf("headers = %v", up.Headers)
	}

	cases := []struct {
		name string
		p    user.Principal
		file string
		size int64
		want error
	}{
		{"anonymous", user.Anonymous, "a.txt", 1, apperrors.ErrUnauthorized},
		{"empty name", p, "  ", 1, apperrors.ErrValidation},
		{"empty file", p, "a.txt", 0, apperrors.ErrValidation},
		{"too large", p, "a.txt", MaxUploadSize + 1, apperrors.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.PresignUpload(ctx, tc.p, tc.file, "text/plain", tc.size); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}

	if _, err := NewUploadService(nil).PresignUpload(ctx, p, "a.txt", "text/plain", 1); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("unconfigured err = %v", err)
	}
}
