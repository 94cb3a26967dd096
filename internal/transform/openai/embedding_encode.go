package openai

import (
	"encoding/json"

	"github.com/relaymesh/geminigate/internal/gemini"
)

// EncodeEmbedding translates a validated EmbeddingRequest into a Gemini
// embedContent (single input) or batchEmbedContents (multiple inputs) body.
func EncodeEmbedding(req *EmbeddingRequest, upstreamModel string) (body []byte, batch bool, err error) {
	if len(req.Input.Values) == 1 {
		greq := &gemini.EmbedContentRequest{
			Content:              textContent(req.Input.Values[0]),
			OutputDimensionality: dimensionsOf(req.Dimensions),
		}

		body, err = json.Marshal(greq)

		return body, false, err
	}

	requests := make([]*gemini.EmbedContentRequest, len(req.Input.Values))
	for i, input := range req.Input.Values {
		requests[i] = &gemini.EmbedContentRequest{
			Model:                "models/" + upstreamModel,
			Content:              textContent(input),
			OutputDimensionality: dimensionsOf(req.Dimensions),
		}
	}

	body, err = json.Marshal(&gemini.BatchEmbedContentsRequest{Requests: requests})

	return body, true, err
}

func textContent(text string) *gemini.Content {
	return &gemini.Content{Parts: []*gemini.Part{{Text: text}}}
}

func dimensionsOf(dimensions *int) int {
	if dimensions == nil {
		return 0
	}

	return *dimensions
}
