package validate

import (
	"encoding/json"

	"github.com/relaymesh/geminigate/internal/gatewayerr"
	"github.com/relaymesh/geminigate/internal/transform/claude"
)

// Claude parses and validates a /v1/messages body (spec §4.1).
func Claude(body []byte) (*claude.MessageRequest, error) {
	if err := CheckBodySize(body); err != nil {
		return nil, err
	}

	var req claude.MessageRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, gatewayerr.NewValidation("body", "malformed JSON: "+err.Error())
	}

	if req.Model == "" {
		return nil, gatewayerr.NewValidation("model", "model is required")
	}

	if len(req.Messages) == 0 {
		return nil, gatewayerr.NewValidation("messages", "at least one message is required")
	}

	// max_tokens <= 0 is treated as unset (spec §4.1/§8), not an error.
	if req.MaxTokens < 0 {
		req.MaxTokens = 0
	}

	if err := validateRoleAlternation(req.Messages); err != nil {
		return nil, err
	}

	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 1) {
		return nil, gatewayerr.NewValidation("temperature", "must be between 0 and 1")
	}

	if req.TopP != nil && (*req.TopP < 0 || *req.TopP > 1) {
		return nil, gatewayerr.NewValidation("top_p", "must be between 0 and 1")
	}

	if req.TopK != nil && *req.TopK < 1 {
		return nil, gatewayerr.NewValidation("top_k", "must be at least 1")
	}

	for i, tool := range req.Tools {
		if tool.Name == "" {
			return nil, gatewayerr.NewValidation(fieldPath("tools", i, "name"), "tool name is required")
		}
	}

	if err := validateClaudeToolChoice(req.ToolChoice, req.Tools); err != nil {
		return nil, err
	}

	return &req, nil
}

// validateRoleAlternation enforces Claude's strict user/assistant
// alternation invariant (spec §3/§8).
func validateRoleAlternation(messages []claude.Message) error {
	var lastRole string

	for i, msg := range messages {
		if msg.Role != "user" && msg.Role != "assistant" {
			return gatewayerr.NewValidation(fieldPath("messages", i, "role"), "role must be user or assistant")
		}

		if i == 0 && msg.Role != "user" {
			return gatewayerr.NewValidation(fieldPath("messages", i, "role"), "the first message must have role user")
		}

		if i > 0 && msg.Role == lastRole {
			return gatewayerr.NewValidation(fieldPath("messages", i, "role"), "messages must strictly alternate between user and assistant")
		}

		lastRole = msg.Role
	}

	return nil
}

func validateClaudeToolChoice(raw json.RawMessage, tools []claude.Tool) error {
	if len(raw) == 0 {
		return nil
	}

	var asObject struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}

	if err := json.Unmarshal(raw, &asObject); err != nil {
		return gatewayerr.NewValidation("tool_choice", "malformed tool_choice")
	}

	if asObject.Type != "tool" {
		return nil
	}

	for _, tool := range tools {
		if tool.Name == asObject.Name {
			return nil
		}
	}

	return gatewayerr.NewValidation("tool_choice.name", "named tool is not present in tools")
}
