package gatewayerr

import "net/http"

// openaiTypeCode maps a Kind to the (type, code) pair OpenAI's error body
// carries under error.type / error.code.
var openaiTypeCode = map[Kind][2]string{
	Validation:     {"invalid_request_error", ""},
	Authentication: {"authentication_error", "invalid_api_key"},
	Permission:     {"permission_error", ""},
	NotFound:       {"invalid_request_error", ""},
	RateLimit:      {"rate_limit_error", "rate_limit_exceeded"},
	Timeout:        {"timeout_error", ""},
	UpstreamAPI:    {"api_error", ""},
	Transform:      {"api_error", ""},
	Internal:       {"api_error", ""},
}

// OpenAIErrorBody is the `{"error": {...}}` envelope OpenAI's chat and
// embeddings endpoints use for every non-2xx response.
type OpenAIErrorBody struct {
	Error OpenAIErrorDetail `json:"error"`
}

type OpenAIErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

// RenderOpenAI renders e into the OpenAI error envelope plus the HTTP status
// to send it with.
func RenderOpenAI(e *Error) (int, *OpenAIErrorBody) {
	pair, ok := openaiTypeCode[e.Kind]
	if !ok {
		pair = openaiTypeCode[Internal]
	}

	status := e.HTTPStatus()
	if status == 0 {
		status = http.StatusInternalServerError
	}

	return status, &OpenAIErrorBody{
		Error: OpenAIErrorDetail{
			Message: e.Message,
			Type:    pair[0],
			Param:   e.Field,
			Code:    pair[1],
		},
	}
}
