package handler

import (
	"net/http"

	"workchat/internal/domain/conversation"
	"workchat/internal/domain/message"
	"workchat/internal/services"
	"workchat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ConversationHandler struct {
	service *services.ConversationService
}

func NewConversationHandler(service *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

func conversationItem(s services.ConversationSummary) (httpdto.ConversationListItem, error) {
	conv, err := httpdto.NewConversationResponse(s.Conversation)
	if err != nil {
		return httpdto.ConversationListItem{}, err
	}
	if s.Partner != nil {
		partner, err := httpdto.NewUserResponse(*s.Partner)
		if err != nil {
			return httpdto.ConversationListItem{}, err
		}
		conv.PartnerUser = &partner
	}
	if s.LastMessage != nil {
		content := ""
		if !s.LastMessage.IsDeleted() {
			content = message.DecodeBody(s.LastMessage.Body).Text
		}
		conv.LastMessage = &httpdto.LastMessageResponse{
			Content:   content,
			CreatedAt: s.LastMessage.CreatedAt,
		}
	}
	conv.UnreadCount = s.UnreadCount

	item := httpdto.ConversationListItem{Conversation: conv, IsInvited: s.IsInvited}
	if s.InvitedBy != nil {
		by := s.InvitedBy.String()
		item.InvitedBy = &by
	}
	return item, nil
}

func (h *ConversationHandler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	summaries, err := h.service.List(c.Request.Context(), p)
	if err != nil {
		fail(c, err)
		return
	}

	items := make([]httpdto.ConversationListItem, 0, len(summaries))
	for _, s := range summaries {
		item, err := conversationItem(s)
		if err != nil {
			fail(c, err)
			return
		}
		items = append(items, item)
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(items))
}

// Create opens a group when is_group is set, otherwise finds or creates
// the DM with partner.
func (h *ConversationHandler) Create(c *gin.Context) {
	var req httpdto.CreateConversationRequest
	if !bind(c, &req) {
		return
	}
	p, ok := principal(c)
	if !ok {
		return
	}

	var (
		conv conversation.Conversation
		err  error
	)
	if req.IsGroup {
		conv, err = h.service.CreateGroup(c.Request.Context(), p, req.Title, req.IconKey)
	} else {
		partner, perr := uuid.Parse(req.Partner)
		if perr != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("partner is required for direct conversations", "INVALID_REQUEST"))
			return
		}
		conv, err = h.service.FindOrCreateDirect(c.Request.Context(), p, partner)
	}
	if err != nil {
		fail(c, err)
		return
	}
	h.respond(c, http.StatusCreated, conv)
}

func (h *ConversationHandler) respond(c *gin.Context, status int, conv conversation.Conversation) {
	resp, err := httpdto.NewConversationResponse(conv)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(status, httpdto.NewSuccessResponse(resp))
}

func (h *ConversationHandler) Get(c *gin.Context) {
	conversationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	p, ok := principal(c)
	if !ok {
		return
	}
	conv, err := h.service.Get(c.Request.Context(), p, conversationID)
	if err != nil {
		fail(c, err)
		return
	}
	h.respond(c, http.StatusOK, conv)
}

func (h *ConversationHandler) Update(c *gin.Context) {
	conversationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req httpdto.UpdateConversationRequest
	if !bind(c, &req) {
		return
	}
	p, ok := principal(c)
	if !ok {
		return
	}

	conv, err := h.service.Update(c.Request.Context(), p, conversationID, services.UpdateConversationInput{
		Title:   req.Title,
		IconKey: req.IconKey,
		IsGroup: req.IsGroup,
	})
	if err != nil {
		fail(c, err)
		return
	}
	h.respond(c, http.StatusOK, conv)
}

func (h *ConversationHandler) Leave(c *gin.Context) {
	conversationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	p, ok := principal(c)
	if !ok {
		return
	}
	if err := h.service.Leave(c.Request.Context(), p, conversationID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"left": true}))
}

func (h *ConversationHandler) AddParticipant(c *gin.Context) {
	conversationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req httpdto.AddParticipantRequest
	if !bind(c, &req) {
		return
	}
	p, ok := principal(c)
	if !ok {
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid user_id", "INVALID_REQUEST"))
		return
	}

	conv, err := h.service.AddParticipant(c.Request.Context(), p, conversationID, userID, conversation.Role(req.Role))
	if err != nil {
		fail(c, err)
		return
	}
	h.respond(c, http.StatusOK, conv)
}

func (h *ConversationHandler) RemoveParticipant(c *gin.Context) {
	conversationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}
	p, ok := principal(c)
	if !ok {
		return
	}
	if err := h.service.Kick(c.Request.Context(), p, conversationID, userID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
