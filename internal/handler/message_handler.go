package handler

import (
	"net/http"

	"workchat/internal/domain/message"
	"workchat/internal/services"
	"workchat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	service *services.MessageService
}

func NewMessageHandler(service *services.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

func (h *MessageHandler) Create(c *gin.Context) {
	conversationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req httpdto.CreateMessageRequest
	if !bind(c, &req) {
		return
	}
	p, ok := principal(c)
	if !ok {
		return
	}

	view, err := h.service.Create(c.Request.Context(), p, conversationID, services.CreateMessageInput{
		Kind:    message.Kind(req.Kind),
		Body:    req.Body.ToDomain(),
		ReplyTo: req.ReplyTo,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(messageResponse(view)))
}

func (h *MessageHandler) List(c *gin.Context) {
	conversationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	p, ok := principal(c)
	if !ok {
		return
	}
	views, err := h.service.List(c.Request.Context(), p, conversationID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(messageResponses(views)))
}

func (h *MessageHandler) Edit(c *gin.Context) {
	conversationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req httpdto.EditMessageRequest
	if !bind(c, &req) {
		return
	}
	p, ok := principal(c)
	if !ok {
		return
	}
	view, err := h.service.Edit(c.Request.Context(), p, conversationID, c.Param("messageId"), req.Body.ToDomain())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(messageResponse(view)))
}

func (h *MessageHandler) Delete(c *gin.Context) {
	conversationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	p, ok := principal(c)
	if !ok {
		return
	}
	view, err := h.service.Delete(c.Request.Context(), p, conversationID, c.Param("messageId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(messageResponse(view)))
}

func (h *MessageHandler) UnreadCount(c *gin.Context) {
	conversationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	p, ok := principal(c)
	if !ok {
		return
	}
	count, err := h.service.UnreadCount(c.Request.Context(), p, conversationID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.UnreadCountResponse{
		ConversationID: conversationID.String(),
		Count:          count,
	}))
}
