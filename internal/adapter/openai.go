package adapter

import (
	"context"
	"encoding/json"

	"github.com/relaymesh/geminigate/internal/gatewayerr"
	"github.com/relaymesh/geminigate/internal/httpx"
	"github.com/relaymesh/geminigate/internal/streams"
	"github.com/relaymesh/geminigate/internal/transform/openai"
)

// OpenAI is the /v1/chat/completions adapter (spec §4.7).
type OpenAI struct {
	Deps Deps
}

func NewOpenAI(deps Deps) *OpenAI { return &OpenAI{Deps: deps} }

// UnaryResult carries a decoded unary response.
type UnaryResult struct {
	Response *openai.ChatCompletionResponse
}

// StreamResult carries a client-ready SSE stream; the server handler must
// Close it exactly once after writing every frame.
type StreamResult struct {
	Stream streams.Stream[*httpx.StreamEvent]
}

// Handle implements the full template (spec §4.7 steps 2-8) for one
// /v1/chat/completions request.
func (a *OpenAI) Handle(ctx context.Context, rawKeys []string, req *openai.ChatCompletionRequest) (*UnaryResult, *StreamResult, error) {
	upstreamModel := a.Deps.Config.ResolveUpstreamModel("openai", req.Model)
	requestID := requestIDFrom(ctx)

	body, streaming, err := openai.Encode(req, upstreamModel)
	if err != nil {
		return nil, nil, err
	}

	sel, err := selectKey(ctx, a.Deps, rawKeys, upstreamModel, estimatedTokensOrDefault(0, a.Deps.Config))
	if err != nil {
		return nil, nil, err
	}

	resp, callErr := callUpstream(ctx, a.Deps, requestID, upstreamModel, body, streaming, sel.Candidate.Key)
	if callErr != nil {
		a.recordFailure(ctx, sel.Candidate.Hash, upstreamModel, streaming, callErr)

		if streaming {
			return nil, &StreamResult{Stream: synthesizeErrorStream(callErr, renderOpenAIErrorFrame)}, nil
		}

		return nil, nil, callErr
	}

	if streaming {
		observed := observeUsage(httpx.DecodeSSE(ctx, resp.Stream), func(promptTokens, outTokens int64, streamErr error) {
			status := resp.StatusCode

			message := ""
			if streamErr != nil {
				message = streamErr.Error()
			}

			go recordOutcome(context.WithoutCancel(ctx), a.Deps, outcomeFor(sel.Candidate.Hash, upstreamModel, "openai", status, promptTokens, outTokens, true, message))
		})

		clientStream := openai.DecodeStream(observed, req.Model, requestID)

		return nil, &StreamResult{Stream: clientStream}, nil
	}

	greq, err := decodeUnaryBody(resp.Body)
	if err != nil {
		a.recordFailure(ctx, sel.Candidate.Hash, upstreamModel, streaming, err)
		return nil, nil, err
	}

	out, err := openai.Decode(greq, req.Model, requestID)
	if err != nil {
		a.recordFailure(ctx, sel.Candidate.Hash, upstreamModel, streaming, err)
		return nil, nil, err
	}

	var promptTokens, outputTokens int64
	if out.Usage != nil {
		promptTokens, outputTokens = out.Usage.PromptTokens, out.Usage.CompletionTokens
	}

	go recordOutcome(context.WithoutCancel(ctx), a.Deps, outcomeFor(sel.Candidate.Hash, upstreamModel, "openai", resp.StatusCode, promptTokens, outputTokens, streaming, ""))

	return &UnaryResult{Response: out}, nil, nil
}

func (a *OpenAI) recordFailure(ctx context.Context, keyHash, model string, streaming bool, err error) {
	status := 500
	if gwErr, ok := gatewayerr.As(err); ok {
		status = gwErr.HTTPStatus()
	}

	go recordOutcome(context.WithoutCancel(ctx), a.Deps, outcomeFor(keyHash, model, "openai", status, 0, 0, streaming, err.Error()))
}

func renderOpenAIErrorFrame(e *gatewayerr.Error) (string, []byte) {
	_, body := gatewayerr.RenderOpenAI(e)
	data, _ := json.Marshal(body)

	return "message", data
}
