package adapter

import (
	"context"
	"fmt"
	"net/http"

	"github.com/relaymesh/geminigate/internal/gatewayerr"
	"github.com/relaymesh/geminigate/internal/httpx"
	"github.com/relaymesh/geminigate/internal/transform/openai"
)

// Embeddings is the /v1/embeddings adapter (spec §12 supplemented feature).
// It never streams: Gemini's embedContent/batchEmbedContents endpoints are
// unary only.
type Embeddings struct {
	Deps Deps
}

func NewEmbeddings(deps Deps) *Embeddings { return &Embeddings{Deps: deps} }

// EmbeddingResult carries a decoded /v1/embeddings response.
type EmbeddingResult struct {
	Response *openai.EmbeddingResponse
}

func embeddingURL(baseURL, model string, batch bool) string {
	if batch {
		return fmt.Sprintf("%s/v1beta/models/%s:batchEmbedContents", baseURL, model)
	}

	return fmt.Sprintf("%s/v1beta/models/%s:embedContent", baseURL, model)
}

// Handle implements the embeddings template: encode, select a key, call
// Gemini's embedContent/batchEmbedContents, decode, and record the outcome.
func (a *Embeddings) Handle(ctx context.Context, rawKeys []string, req *openai.EmbeddingRequest) (*EmbeddingResult, error) {
	upstreamModel := a.Deps.Config.ResolveUpstreamModel("openai", req.Model)
	requestID := requestIDFrom(ctx)

	body, batch, err := openai.EncodeEmbedding(req, upstreamModel)
	if err != nil {
		return nil, err
	}

	sel, err := selectKey(ctx, a.Deps, rawKeys, upstreamModel, estimatedTokensOrDefault(0, a.Deps.Config))
	if err != nil {
		return nil, err
	}

	resp, callErr := a.call(ctx, requestID, upstreamModel, body, batch, sel.Candidate.Key)
	if callErr != nil {
		a.recordFailure(ctx, sel.Candidate.Hash, upstreamModel, callErr)
		return nil, callErr
	}

	out, err := openai.DecodeEmbedding(resp, req.Model, batch, req.Input.Values)
	if err != nil {
		a.recordFailure(ctx, sel.Candidate.Hash, upstreamModel, err)
		return nil, err
	}

	go recordOutcome(context.WithoutCancel(ctx), a.Deps, outcomeFor(sel.Candidate.Hash, upstreamModel, "openai", http.StatusOK, out.Usage.PromptTokens, 0, false, ""))

	return &EmbeddingResult{Response: out}, nil
}

func (a *Embeddings) call(ctx context.Context, requestID, model string, body []byte, batch bool, apiKey string) ([]byte, error) {
	headers := make(http.Header)
	headers.Set("Content-Type", "application/json")

	req := httpx.FinalizeAuthHeaders(&httpx.Request{
		Method:    "POST",
		URL:       embeddingURL(a.Deps.Config.Upstream.BaseURL, model, batch),
		Headers:   headers,
		Body:      body,
		RequestID: requestID,
		Auth: &httpx.AuthConfig{
			Type:      httpx.AuthTypeAPIKeyHeader,
			APIKey:    apiKey,
			HeaderKey: "x-goog-api-key",
		},
	})

	resp, err := a.Deps.Client.Do(ctx, req)
	if err != nil {
		return nil, classifyUpstreamErr(err)
	}

	return resp.Body, nil
}

func (a *Embeddings) recordFailure(ctx context.Context, keyHash, model string, err error) {
	status := 500
	if gwErr, ok := gatewayerr.As(err); ok {
		status = gwErr.HTTPStatus()
	}

	go recordOutcome(context.WithoutCancel(ctx), a.Deps, outcomeFor(keyHash, model, "openai", status, 0, 0, false, err.Error()))
}
