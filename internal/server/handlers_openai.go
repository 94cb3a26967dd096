package server

import (
	"github.com/gin-gonic/gin"

	"github.com/relaymesh/geminigate/internal/adapter"
	"github.com/relaymesh/geminigate/internal/gatewayerr"
	"github.com/relaymesh/geminigate/internal/server/middleware"
	"github.com/relaymesh/geminigate/internal/validate"
)

type openAIHandlers struct {
	adapter *adapter.OpenAI
}

func newOpenAIHandlers(deps adapter.Deps) *openAIHandlers {
	return &openAIHandlers{adapter: adapter.NewOpenAI(deps)}
}

func (h *openAIHandlers) ChatCompletion(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		writeError(c, gatewayerr.NewValidation("body", err.Error()), gatewayerr.RenderOpenAI)
		return
	}

	req, err := validate.OpenAI(body)
	if err != nil {
		writeGatewayErr(c, err, gatewayerr.RenderOpenAI)
		return
	}

	unary, stream, err := h.adapter.Handle(c.Request.Context(), middleware.RawKeys(c), req)
	if err != nil {
		writeGatewayErr(c, err, gatewayerr.RenderOpenAI)
		return
	}

	if stream != nil {
		writeSSEStream(c, stream.Stream)
		return
	}

	c.JSON(200, unary.Response)
}
