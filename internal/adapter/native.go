package adapter

import (
	"context"
	"encoding/json"

	"github.com/relaymesh/geminigate/internal/gatewayerr"
	"github.com/relaymesh/geminigate/internal/httpx"
	"github.com/relaymesh/geminigate/internal/transform/native"
)

// Native is the Gemini passthrough adapter (spec §4.7): the client already
// speaks the upstream wire format, so model routing comes from the URL path
// rather than the body.
type Native struct {
	Deps Deps
}

func NewNative(deps Deps) *Native { return &Native{Deps: deps} }

// NativeUnaryResult carries the verbatim upstream response body.
type NativeUnaryResult struct {
	Body []byte
}

// Handle implements the full template (spec §4.7 steps 2-8) for one
// native generateContent/streamGenerateContent request. clientModel is the
// `{model}` path segment; streaming is true for the streamGenerateContent
// route.
func (a *Native) Handle(ctx context.Context, rawKeys []string, rawBody []byte, clientModel string, streaming bool) (*NativeUnaryResult, *StreamResult, error) {
	upstreamModel := a.Deps.Config.ResolveUpstreamModel("gemini", clientModel)
	requestID := requestIDFrom(ctx)

	body, err := native.Encode(rawBody)
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
			return nil, &StreamResult{Stream: synthesizeErrorStream(callErr, renderGeminiErrorFrame)}, nil
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

			go recordOutcome(context.WithoutCancel(ctx), a.Deps, outcomeFor(sel.Candidate.Hash, upstreamModel, "gemini", status, promptTokens, outTokens, true, message))
		})

		return nil, &StreamResult{Stream: native.DecodeStream(observed)}, nil
	}

	greq, err := decodeUnaryBody(resp.Body)
	if err != nil {
		a.recordFailure(ctx, sel.Candidate.Hash, upstreamModel, streaming, err)
		return nil, nil, err
	}

	var promptTokens, outputTokens int64
	if greq.UsageMetadata != nil {
		promptTokens, outputTokens = greq.UsageMetadata.PromptTokenCount, greq.UsageMetadata.CandidatesTokenCount
	}

	go recordOutcome(context.WithoutCancel(ctx), a.Deps, outcomeFor(sel.Candidate.Hash, upstreamModel, "gemini", resp.StatusCode, promptTokens, outputTokens, streaming, ""))

	return &NativeUnaryResult{Body: native.Decode(resp.Body)}, nil, nil
}

func (a *Native) recordFailure(ctx context.Context, keyHash, model string, streaming bool, err error) {
	status := 500
	if gwErr, ok := gatewayerr.As(err); ok {
		status = gwErr.HTTPStatus()
	}

	go recordOutcome(context.WithoutCancel(ctx), a.Deps, outcomeFor(keyHash, model, "gemini", status, 0, 0, streaming, err.Error()))
}

func renderGeminiErrorFrame(e *gatewayerr.Error) (string, []byte) {
	_, body := gatewayerr.RenderGemini(e)
	data, _ := json.Marshal(body)

	return "message", data
}
