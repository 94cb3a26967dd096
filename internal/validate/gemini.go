package validate

import (
	"encoding/json"

	"github.com/relaymesh/geminigate/internal/gatewayerr"
	"github.com/relaymesh/geminigate/internal/gemini"
)

// Gemini parses and validates a native generateContent body (spec §4.1:
// "contents non-empty; pass-through otherwise").
func Gemini(body []byte) (*gemini.GenerateContentRequest, error) {
	if err := CheckBodySize(body); err != nil {
		return nil, err
	}

	var req gemini.GenerateContentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, gatewayerr.NewValidation("body", "malformed JSON: "+err.Error())
	}

	if len(req.Contents) == 0 {
		return nil, gatewayerr.NewValidation("contents", "at least one content is required")
	}

	return &req, nil
}
