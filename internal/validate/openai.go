package validate

import (
	"encoding/json"

	"github.com/relaymesh/geminigate/internal/gatewayerr"
	"github.com/relaymesh/geminigate/internal/transform/openai"
)

var validOpenAIRoles = map[string]bool{"system": true, "user": true, "assistant": true, "tool": true}

// OpenAI parses and validates a /v1/chat/completions body (spec §4.1).
func OpenAI(body []byte) (*openai.ChatCompletionRequest, error) {
	if err := CheckBodySize(body); err != nil {
		return nil, err
	}

	var req openai.ChatCompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, gatewayerr.NewValidation("body", "malformed JSON: "+err.Error())
	}

	if req.Model == "" {
		return nil, gatewayerr.NewValidation("model", "model is required")
	}

	if len(req.Messages) == 0 {
		return nil, gatewayerr.NewValidation("messages", "at least one message is required")
	}

	for i, msg := range req.Messages {
		if !validOpenAIRoles[msg.Role] {
			return nil, gatewayerr.NewValidation(fieldPath("messages", i, "role"), "role must be one of system, user, assistant, tool")
		}

		for j, tc := range msg.ToolCalls {
			if tc.ID == "" {
				return nil, gatewayerr.NewValidation(fieldPath("messages", i, "tool_calls", j, "id"), "tool call id is required")
			}

			if tc.Type == "" {
				return nil, gatewayerr.NewValidation(fieldPath("messages", i, "tool_calls", j, "type"), "tool call type is required")
			}

			if tc.Function.Name == "" {
				return nil, gatewayerr.NewValidation(fieldPath("messages", i, "tool_calls", j, "function", "name"), "tool call function name is required")
			}
		}
	}

	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		return nil, gatewayerr.NewValidation("temperature", "must be between 0 and 2")
	}

	if req.TopP != nil && (*req.TopP < 0 || *req.TopP > 1) {
		return nil, gatewayerr.NewValidation("top_p", "must be between 0 and 1")
	}

	if err := validateOpenAIToolChoice(req.ToolChoice, req.Tools); err != nil {
		return nil, err
	}

	return &req, nil
}

// OpenAIEmbeddings parses and validates a /v1/embeddings body.
func OpenAIEmbeddings(body []byte) (*openai.EmbeddingRequest, error) {
	if err := CheckBodySize(body); err != nil {
		return nil, err
	}

	var req openai.EmbeddingRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, gatewayerr.NewValidation("body", "malformed JSON: "+err.Error())
	}

	if req.Model == "" {
		return nil, gatewayerr.NewValidation("model", "model is required")
	}

	if len(req.Input.Values) == 0 {
		return nil, gatewayerr.NewValidation("input", "at least one input is required")
	}

	for i, v := range req.Input.Values {
		if v == "" {
			return nil, gatewayerr.NewValidation(fieldPath("input", i), "input must not be empty")
		}
	}

	if req.Dimensions != nil && *req.Dimensions <= 0 {
		return nil, gatewayerr.NewValidation("dimensions", "must be a positive integer")
	}

	return &req, nil
}

func validateOpenAIToolChoice(raw json.RawMessage, tools []openai.Tool) error {
	if len(raw) == 0 {
		return nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		switch asString {
		case "none", "auto", "required":
			return nil
		default:
			return gatewayerr.NewValidation("tool_choice", "must be none, auto, required, or a function object")
		}
	}

	var asObject struct {
		Type     string `json:"type"`
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	}

	if err := json.Unmarshal(raw, &asObject); err != nil {
		return gatewayerr.NewValidation("tool_choice", "malformed tool_choice")
	}

	if asObject.Type != "function" {
		return gatewayerr.NewValidation("tool_choice.type", `must be "function"`)
	}

	for _, tool := range tools {
		if tool.Function.Name == asObject.Function.Name {
			return nil
		}
	}

	return gatewayerr.NewValidation("tool_choice.function.name", "named function is not present in tools")
}
