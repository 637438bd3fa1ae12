package handler

import (
	"net/http"

	"workchat/internal/domain/user"
	"workchat/internal/services"
	"workchat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// principal returns the authenticated caller or writes a 401.
func principal(c *gin.Context) (user.Principal, bool) {
	p, ok := services.PrincipalFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return user.Anonymous, false
	}
	return p, true
}

// uuidParam parses a path parameter or writes a 400.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid "+name, "INVALID_REQUEST"))
		return uuid.Nil, false
	}
	return id, true
}

func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request: "+err.Error(), "INVALID_REQUEST"))
		return false
	}
	return true
}

// fail hands err to ErrorHandler, which picks the status.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func messageResponse(v services.MessageView) httpdto.MessageResponse {
	return httpdto.NewMessageResponse(v.Message, v.Readers)
}

func messageResponses(views []services.MessageView) []httpdto.MessageResponse {
	out := make([]httpdto.MessageResponse, 0, len(views))
	for _, v := range views {
		out = append(out, messageResponse(v))
	}
	return out
}
