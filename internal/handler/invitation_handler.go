package handler

import (
	"net/http"

	"workchat/internal/services"
	"workchat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type InvitationHandler struct {
	service *services.InvitationService
}

func NewInvitationHandler(service *services.InvitationService) *InvitationHandler {
	return &InvitationHandler{service: service}
}

func (h *InvitationHandler) Invite(c *gin.Context) {
	conversationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req httpdto.InviteRequest
	if !bind(c, &req) {
		return
	}
	p, ok := principal(c)
	if !ok {
		return
	}

	invitees := make([]uuid.UUID, 0, len(req.Partners))
	for _, raw := range req.Partners {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid partner id", "INVALID_REQUEST"))
			return
		}
		invitees = append(invitees, id)
	}

	invs, err := h.service.Invite(c.Request.Context(), p, conversationID, invitees)
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]httpdto.InvitationResponse, 0, len(invs))
	for _, inv := range invs {
		resp, err := httpdto.NewInvitationResponse(inv)
		if err != nil {
			fail(c, err)
			return
		}
		out = append(out, resp)
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(out))
}

func (h *InvitationHandler) Respond(c *gin.Context) {
	conversationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req httpdto.RespondInvitationRequest
	if !bind(c, &req) {
		return
	}
	p, ok := principal(c)
	if !ok {
		return
	}
	if err := h.service.Respond(c.Request.Context(), p, conversationID, *req.IsParticipated); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"is_participated": *req.IsParticipated}))
}
