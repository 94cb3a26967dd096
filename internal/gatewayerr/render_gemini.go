package gatewayerr

import (
	"net/http"

	"github.com/relaymesh/geminigate/internal/gemini"
)

// geminiStatus maps a Kind to the Gemini passthrough `status` enum value
// (spec §4.8's last column).
var geminiStatus = map[Kind]string{
	Validation:     "INVALID_ARGUMENT",
	Authentication: "UNAUTHENTICATED",
	Permission:     "PERMISSION_DENIED",
	NotFound:       "NOT_FOUND",
	RateLimit:      "RESOURCE_EXHAUSTED",
	Timeout:        "DEADLINE_EXCEEDED",
	Transform:      "INTERNAL",
	Internal:       "INTERNAL",
}

// RenderGemini renders e into Gemini's native error envelope plus HTTP
// status. upstream_api renders UNAVAILABLE when the gateway's own status is
// 503, INTERNAL otherwise.
func RenderGemini(e *Error) (int, *gemini.ErrorResponse) {
	status := e.HTTPStatus()
	if status == 0 {
		status = http.StatusInternalServerError
	}

	geminiStat, ok := geminiStatus[e.Kind]
	if !ok {
		geminiStat = "INTERNAL"
	}

	if e.Kind == UpstreamAPI {
		if status == http.StatusServiceUnavailable {
			geminiStat = "UNAVAILABLE"
		} else {
			geminiStat = "INTERNAL"
		}
	}

	return status, &gemini.ErrorResponse{
		Error: gemini.ErrorDetail{
			Code:    status,
			Message: e.Message,
			Status:  geminiStat,
		},
	}
}
