package gatewayerr

import "net/http"

// claudeType maps a Kind to the `type` Claude's messages API puts in its
// error envelope. upstream_api renders as overloaded_error when the
// gateway's own status is 503 (upstream temporarily unavailable), api_error
// otherwise.
var claudeType = map[Kind]string{
	Validation:     "invalid_request_error",
	Authentication: "authentication_error",
	Permission:     "permission_error",
	NotFound:       "not_found_error",
	RateLimit:      "rate_limit_error",
	Timeout:        "timeout_error",
	Transform:      "api_error",
	Internal:       "api_error",
}

// ClaudeErrorBody is Claude's `{"type":"error","error":{...}}` envelope.
type ClaudeErrorBody struct {
	Type  string           `json:"type"`
	Error ClaudeErrorDetail `json:"error"`
}

type ClaudeErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// RenderClaude renders e into Claude's error envelope plus HTTP status.
func RenderClaude(e *Error) (int, *ClaudeErrorBody) {
	status := e.HTTPStatus()
	if status == 0 {
		status = http.StatusInternalServerError
	}

	typ, ok := claudeType[e.Kind]
	if !ok {
		typ = "api_error"
	}

	if e.Kind == UpstreamAPI {
		if status == http.StatusServiceUnavailable {
			typ = "overloaded_error"
		} else {
			typ = "api_error"
		}
	}

	return status, &ClaudeErrorBody{
		Type: "error",
		Error: ClaudeErrorDetail{
			Type:    typ,
			Message: e.Message,
		},
	}
}
