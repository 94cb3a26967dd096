package server

import (
	"github.com/gin-gonic/gin"

	"github.com/relaymesh/geminigate/internal/adapter"
	"github.com/relaymesh/geminigate/internal/gatewayerr"
	"github.com/relaymesh/geminigate/internal/server/middleware"
	"github.com/relaymesh/geminigate/internal/validate"
)

type embeddingsHandlers struct {
	adapter *adapter.Embeddings
}

func newEmbeddingsHandlers(deps adapter.Deps) *embeddingsHandlers {
	return &embeddingsHandlers{adapter: adapter.NewEmbeddings(deps)}
}

func (h *embeddingsHandlers) CreateEmbedding(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		writeError(c, gatewayerr.NewValidation("body", err.Error()), gatewayerr.RenderOpenAI)
		return
	}

	req, err := validate.OpenAIEmbeddings(body)
	if err != nil {
		writeGatewayErr(c, err, gatewayerr.RenderOpenAI)
		return
	}

	result, err := h.adapter.Handle(c.Request.Context(), middleware.RawKeys(c), req)
	if err != nil {
		writeGatewayErr(c, err, gatewayerr.RenderOpenAI)
		return
	}

	c.JSON(200, result.Response)
}
