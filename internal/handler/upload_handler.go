package handler

import (
	"net/http"

	"workchat/internal/services"
	"workchat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type UploadHandler struct {
	service *services.UploadService
}

func NewUploadHandler(service *services.UploadService) *UploadHandler {
	return &UploadHandler{service: service}
}

// Presign returns a short-lived PUT URL for a file message attachment.
func (h *UploadHandler) Presign(c *gin.Context) {
	var req httpdto.PresignUploadRequest
	if !bind(c, &req) {
		return
	}
	p, ok := principal(c)
	if !ok {
		return
	}
	up, err := h.service.PresignUpload(c.Request.Context(), p, req.FileName, req.ContentType, req.Size)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.PresignUploadResponse{
		UploadURL: up.URL,
		Headers:   up.Headers,
		Key:       up.Key,
		PublicURL: up.PublicURL,
		ExpiresAt: up.ExpiresAt,
	}))
}
