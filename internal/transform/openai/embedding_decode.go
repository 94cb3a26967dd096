package openai

import (
	"encoding/json"

	"github.com/relaymesh/geminigate/internal/gatewayerr"
	"github.com/relaymesh/geminigate/internal/gemini"
)

// DecodeEmbedding parses a buffered embedContent/batchEmbedContents response
// into the OpenAI /v1/embeddings shape. Gemini's embedding endpoints report
// no usage, so promptTokens is a character-count estimate rather than a
// value read off the wire.
func DecodeEmbedding(body []byte, model string, batch bool, inputs []string) (*EmbeddingResponse, error) {
	data := make([]EmbeddingData, len(inputs))

	if batch {
		var resp gemini.BatchEmbedContentsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, gatewayerr.Wrap(gatewayerr.Transform, err)
		}

		if len(resp.Embeddings) != len(inputs) {
			return nil, gatewayerr.Newf(gatewayerr.Transform, "upstream returned %d embeddings for %d inputs", len(resp.Embeddings), len(inputs))
		}

		for i, emb := range resp.Embeddings {
			data[i] = EmbeddingData{Object: "embedding", Index: i, Embedding: valuesOf(emb)}
		}
	} else {
		var resp gemini.EmbedContentResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, gatewayerr.Wrap(gatewayerr.Transform, err)
		}

		data[0] = EmbeddingData{Object: "embedding", Index: 0, Embedding: valuesOf(resp.Embedding)}
	}

	promptTokens := estimateTokens(inputs)

	return &EmbeddingResponse{
		Object: "list",
		Data:   data,
		Model:  model,
		Usage:  EmbeddingUsage{PromptTokens: promptTokens, TotalTokens: promptTokens},
	}, nil
}

func valuesOf(emb *gemini.ContentEmbedding) []float64 {
	if emb == nil {
		return nil
	}

	return emb.Values
}

func estimateTokens(inputs []string) int64 {
	var chars int64

	for _, in := range inputs {
		chars += int64(len(in))
	}

	return chars / 4
}
