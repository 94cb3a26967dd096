package adapter

import (
	"context"
	"encoding/json"

	"github.com/relaymesh/geminigate/internal/gatewayerr"
	"github.com/relaymesh/geminigate/internal/httpx"
	"github.com/relaymesh/geminigate/internal/processors"
	"github.com/relaymesh/geminigate/internal/transform/claude"
)

// Claude is the /v1/messages adapter (spec §4.7).
type Claude struct {
	Deps Deps
}

func NewClaude(deps Deps) *Claude { return &Claude{Deps: deps} }

// ClaudeUnaryResult carries a decoded unary Claude response.
type ClaudeUnaryResult struct {
	Response *claude.MessageResponse
}

// Handle implements the full template (spec §4.7 steps 2-8) for one
// /v1/messages request.
func (a *Claude) Handle(ctx context.Context, rawKeys []string, req *claude.MessageRequest) (*ClaudeUnaryResult, *StreamResult, error) {
	upstreamModel := a.Deps.Config.ResolveUpstreamModel("claude", req.Model)
	requestID := requestIDFrom(ctx)
	thinkingEnabled := req.Thinking != nil && req.Thinking.Type == "enabled" && processors.ModelSupportsThinking(upstreamModel)

	body, streaming, err := claude.Encode(req, upstreamModel)
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
			return nil, &StreamResult{Stream: synthesizeErrorStream(callErr, renderClaudeErrorFrame)}, nil
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

			go recordOutcome(context.WithoutCancel(ctx), a.Deps, outcomeFor(sel.Candidate.Hash, upstreamModel, "claude", status, promptTokens, outTokens, true, message))
		})

		clientStream := claude.DecodeStream(ctx, observed, req.Model, requestID, thinkingEnabled)

		return nil, &StreamResult{Stream: clientStream}, nil
	}

	greq, err := decodeUnaryBody(resp.Body)
	if err != nil {
		a.recordFailure(ctx, sel.Candidate.Hash, upstreamModel, streaming, err)
		return nil, nil, err
	}

	out, err := claude.Decode(greq, req.Model, requestID, thinkingEnabled)
	if err != nil {
		a.recordFailure(ctx, sel.Candidate.Hash, upstreamModel, streaming, err)
		return nil, nil, err
	}

	go recordOutcome(context.WithoutCancel(ctx), a.Deps, outcomeFor(sel.Candidate.Hash, upstreamModel, "claude", resp.StatusCode, out.Usage.InputTokens, out.Usage.OutputTokens, streaming, ""))

	return &ClaudeUnaryResult{Response: out}, nil, nil
}

func (a *Claude) recordFailure(ctx context.Context, keyHash, model string, streaming bool, err error) {
	status := 500
	if gwErr, ok := gatewayerr.As(err); ok {
		status = gwErr.HTTPStatus()
	}

	go recordOutcome(context.WithoutCancel(ctx), a.Deps, outcomeFor(keyHash, model, "claude", status, 0, 0, streaming, err.Error()))
}

func renderClaudeErrorFrame(e *gatewayerr.Error) (string, []byte) {
	_, body := gatewayerr.RenderClaude(e)
	data, _ := json.Marshal(body)

	return "error", data
}
