package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/relaymesh/geminigate/internal/adapter"
	"github.com/relaymesh/geminigate/internal/gatewayerr"
	"github.com/relaymesh/geminigate/internal/server/middleware"
	"github.com/relaymesh/geminigate/internal/validate"
)

var errUnsupportedAction = errors.New("path must end with :generateContent or :streamGenerateContent")

type nativeHandlers struct {
	adapter *adapter.Native
}

func newNativeHandlers(deps adapter.Deps) *nativeHandlers {
	return &nativeHandlers{adapter: adapter.NewNative(deps)}
}

// GenerateContent serves both the unary and streaming native routes. Gin
// can't route on a literal ":generateContent"/":streamGenerateContent"
// suffix glued onto the model segment the way the real Gemini API does, so
// both routes are registered against a wildcard and split here.
func (h *nativeHandlers) GenerateContent(c *gin.Context) {
	model, streaming, err := splitModelAction(c.Param("modelAction"))
	if err != nil {
		writeError(c, gatewayerr.NewValidation("model", err.Error()), gatewayerr.RenderGemini)
		return
	}

	body, err := readBody(c)
	if err != nil {
		writeError(c, gatewayerr.NewValidation("body", err.Error()), gatewayerr.RenderGemini)
		return
	}

	if _, err := validate.Gemini(body); err != nil {
		writeGatewayErr(c, err, gatewayerr.RenderGemini)
		return
	}

	unary, stream, err := h.adapter.Handle(c.Request.Context(), middleware.RawKeys(c), body, model, streaming)
	if err != nil {
		writeGatewayErr(c, err, gatewayerr.RenderGemini)
		return
	}

	if stream != nil {
		writeSSEStream(c, stream.Stream)
		return
	}

	c.Data(http.StatusOK, "application/json", unary.Body)
}

// splitModelAction parses "/gemini-2.5-flash:generateContent" (the gin
// wildcard param, which retains its leading slash) into the model name and
// whether it names the streaming action.
func splitModelAction(raw string) (model string, streaming bool, err error) {
	raw = strings.TrimPrefix(raw, "/")

	switch {
	case strings.HasSuffix(raw, ":streamGenerateContent"):
		return strings.TrimSuffix(raw, ":streamGenerateContent"), true, nil
	case strings.HasSuffix(raw, ":generateContent"):
		return strings.TrimSuffix(raw, ":generateContent"), false, nil
	default:
		return "", false, errUnsupportedAction
	}
}
