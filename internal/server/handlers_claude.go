package server

import (
	"github.com/gin-gonic/gin"

	"github.com/relaymesh/geminigate/internal/adapter"
	"github.com/relaymesh/geminigate/internal/gatewayerr"
	"github.com/relaymesh/geminigate/internal/server/middleware"
	"github.com/relaymesh/geminigate/internal/validate"
)

type claudeHandlers struct {
	adapter *adapter.Claude
}

func newClaudeHandlers(deps adapter.Deps) *claudeHandlers {
	return &claudeHandlers{adapter: adapter.NewClaude(deps)}
}

func (h *claudeHandlers) CreateMessage(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		writeError(c, gatewayerr.NewValidation("body", err.Error()), gatewayerr.RenderClaude)
		return
	}

	req, err := validate.Claude(body)
	if err != nil {
		writeGatewayErr(c, err, gatewayerr.RenderClaude)
		return
	}

	unary, stream, err := h.adapter.Handle(c.Request.Context(), middleware.RawKeys(c), req)
	if err != nil {
		writeGatewayErr(c, err, gatewayerr.RenderClaude)
		return
	}

	if stream != nil {
		writeSSEStream(c, stream.Stream)
		return
	}

	c.JSON(200, unary.Response)
}
