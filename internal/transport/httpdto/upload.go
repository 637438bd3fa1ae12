package httpdto

import "time"

type PresignUploadRequest struct {
	FileName    string `json:"file_name" binding:"required,max=255"`
	ContentType string `json:"content_type" binding:"required,max=127"`
	Size        int64  `json:"size" binding:"required,gt=0"`
}

type PresignUploadResponse struct {
	UploadURL string            `json:"upload_url"`
	Headers   map[string]string `json:"headers,omitempty"`
	Key       string            `json:"key"`
	PublicURL string            `json:"public_url,omitempty"`
	ExpiresAt time.Time         `json:"expires_at"`
}
