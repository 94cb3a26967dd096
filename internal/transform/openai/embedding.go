package openai

import "encoding/json"

// EmbeddingInput accepts either a single string or an array of strings,
// mirroring what real OpenAI clients send to /v1/embeddings.
type EmbeddingInput struct {
	Values []string
}

func (i EmbeddingInput) MarshalJSON() ([]byte, error) {
	if len(i.Values) == 1 {
		return json.Marshal(i.Values[0])
	}

	return json.Marshal(i.Values)
}

func (i *EmbeddingInput) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		i.Values = []string{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}

	i.Values = many

	return nil
}

// EmbeddingRequest is the inbound /v1/embeddings body.
type EmbeddingRequest struct {
	Input          EmbeddingInput `json:"input"`
	Model          string         `json:"model"`
	EncodingFormat string         `json:"encoding_format,omitempty"`
	Dimensions     *int           `json:"dimensions,omitempty"`
	User           string         `json:"user,omitempty"`
}

// EmbeddingResponse is the unary /v1/embeddings response.
type EmbeddingResponse struct {
	Object string          `json:"object"`
	Data   []EmbeddingData `json:"data"`
	Model  string          `json:"model"`
	Usage  EmbeddingUsage  `json:"usage"`
}

type EmbeddingData struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

type EmbeddingUsage struct {
	PromptTokens int64 `json:"prompt_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}
