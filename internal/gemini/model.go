// Package gemini defines the canonical wire-format types for the upstream
// Gemini generateContent API. Every dialect transformer (OpenAI, Claude,
// native) encodes into and decodes out of these types; nothing downstream
// of a transformer ever touches a dialect-specific shape again.
package gemini

import "encoding/json"

// GenerateContentRequest is the body sent to
// /v1beta/models/{model}:generateContent (or :streamGenerateContent).
type GenerateContentRequest struct {
	Contents          []*Content        `json:"contents"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	Tools             []*Tool           `json:"tools,omitempty"`
	ToolConfig        *ToolConfig       `json:"toolConfig,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
	SafetySettings    []*SafetySetting  `json:"safetySettings,omitempty"`
}

// Content is one turn of a conversation: a role plus an ordered list of parts.
type Content struct {
	Parts []*Part `json:"parts,omitempty"`
	Role  string  `json:"role,omitempty"`
}

// Part is one unit of a Content: text, inline media, a function call, or a
// function result. Exactly one field is expected to be populated per part.
type Part struct {
	Text             string            `json:"text,omitempty"`
	InlineData       *Blob             `json:"inlineData,omitempty"`
	FileData         *FileData         `json:"fileData,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
	Thought          bool              `json:"thought,omitempty"`
	ThoughtSignature []byte            `json:"thoughtSignature,omitempty"`
}

// Blob is raw inline media (base64-decoded by the JSON layer into Data).
type Blob struct {
	MIMEType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

// FileData points at an externally hosted media file.
type FileData struct {
	MIMEType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri,omitempty"`
}

// FunctionCall is a model-predicted invocation of a client tool.
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name,omitempty"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse carries the client-side result of a FunctionCall back to
// the model on the next turn.
type FunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name,omitempty"`
	Response map[string]any `json:"response,omitempty"`
}

// Tool declares a set of functions (or built-ins) the model may call.
type Tool struct {
	FunctionDeclarations []*FunctionDeclaration `json:"functionDeclarations,omitempty"`
	CodeExecution        *CodeExecution         `json:"codeExecution,omitempty"`
	GoogleSearch         *GoogleSearch          `json:"googleSearch,omitempty"`
}

type FunctionDeclaration struct {
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type CodeExecution struct{}

type GoogleSearch struct{}

type ToolConfig struct {
	FunctionCallingConfig *FunctionCallingConfig `json:"functionCallingConfig,omitempty"`
}

type FunctionCallingConfig struct {
	Mode                 string   `json:"mode,omitempty"`
	AllowedFunctionNames []string `json:"allowedFunctionNames,omitempty"`
}

// GenerationConfig controls sampling and output shape.
type GenerationConfig struct {
	StopSequences      []string          `json:"stopSequences,omitempty"`
	ResponseModalities []string          `json:"responseModalities,omitempty"`
	ResponseMIMEType   string            `json:"responseMimeType,omitempty"`
	ResponseSchema     json.RawMessage   `json:"responseSchema,omitempty"`
	CandidateCount     int64             `json:"candidateCount,omitempty"`
	MaxOutputTokens    int64             `json:"maxOutputTokens,omitempty"`
	Temperature        *float64          `json:"temperature,omitempty"`
	TopP               *float64          `json:"topP,omitempty"`
	TopK               *int64            `json:"topK,omitempty"`
	PresencePenalty    *float64          `json:"presencePenalty,omitempty"`
	FrequencyPenalty   *float64          `json:"frequencyPenalty,omitempty"`
	Seed               *int64            `json:"seed,omitempty"`
	ResponseLogprobs   bool              `json:"responseLogprobs,omitempty"`
	Logprobs           *int64            `json:"logprobs,omitempty"`
	ThinkingConfig     *ThinkingConfig   `json:"thinkingConfig,omitempty"`
}

// ThinkingConfig controls the model's internal reasoning trace. A nil
// pointer means "let the model decide"; an explicit ThinkingBudget of 0
// means "strict disable" (see processors.Thinking's disable handling).
type ThinkingConfig struct {
	IncludeThoughts bool   `json:"includeThoughts,omitempty"`
	ThinkingBudget  *int64 `json:"thinkingBudget,omitempty"`
	ThinkingLevel   string `json:"thinkingLevel,omitempty"`
}

type SafetySetting struct {
	Category  string `json:"category,omitempty"`
	Threshold string `json:"threshold,omitempty"`
}

// GenerateContentResponse is the body returned by a non-streaming call, and
// the decoded payload of each `data:` frame on a streaming call.
type GenerateContentResponse struct {
	Candidates     []*Candidate    `json:"candidates,omitempty"`
	PromptFeedback *PromptFeedback `json:"promptFeedback,omitempty"`
	UsageMetadata  *UsageMetadata  `json:"usageMetadata,omitempty"`
	ModelVersion   string          `json:"modelVersion,omitempty"`
	ResponseID     string          `json:"responseId,omitempty"`
}

type Candidate struct {
	Content       *Content         `json:"content,omitempty"`
	FinishReason  string           `json:"finishReason,omitempty"`
	Index         int64            `json:"index"`
	SafetyRatings []*SafetyRating  `json:"safetyRatings,omitempty"`
}

type SafetyRating struct {
	Category    string `json:"category,omitempty"`
	Probability string `json:"probability,omitempty"`
	Blocked     bool   `json:"blocked,omitempty"`
}

type PromptFeedback struct {
	BlockReason   string          `json:"blockReason,omitempty"`
	SafetyRatings []*SafetyRating `json:"safetyRatings,omitempty"`
}

// UsageMetadata is the per-call token accounting the balancer and quota
// manager record after every successful upstream response.
type UsageMetadata struct {
	PromptTokenCount        int64                 `json:"promptTokenCount,omitempty"`
	CandidatesTokenCount    int64                 `json:"candidatesTokenCount,omitempty"`
	TotalTokenCount         int64                 `json:"totalTokenCount,omitempty"`
	CachedContentTokenCount int64                 `json:"cachedContentTokenCount,omitempty"`
	ThoughtsTokenCount      int64                 `json:"thoughtsTokenCount,omitempty"`
	CandidatesTokensDetails []*ModalityTokenCount `json:"candidatesTokensDetails,omitempty"`
	PromptTokensDetails     []*ModalityTokenCount `json:"promptTokensDetails,omitempty"`
}

type ModalityTokenCount struct {
	Modality   string `json:"modality,omitempty"`
	TokenCount int64  `json:"tokenCount,omitempty"`
}

// ErrorResponse is the shape Gemini returns for non-2xx responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// EmbedContentRequest is the body for /v1beta/models/{model}:embedContent.
// Model is only populated when this request is nested inside a
// BatchEmbedContentsRequest, which requires each entry to repeat it as
// "models/{model}".
type EmbedContentRequest struct {
	Model                string   `json:"model,omitempty"`
	Content              *Content `json:"content"`
	TaskType             string   `json:"taskType,omitempty"`
	Title                string   `json:"title,omitempty"`
	OutputDimensionality int      `json:"outputDimensionality,omitempty"`
}

type EmbedContentResponse struct {
	Embedding *ContentEmbedding `json:"embedding,omitempty"`
}

// BatchEmbedContentsRequest is the body for
// /v1beta/models/{model}:batchEmbedContents, used when an OpenAI embeddings
// call carries more than one input string.
type BatchEmbedContentsRequest struct {
	Requests []*EmbedContentRequest `json:"requests"`
}

type BatchEmbedContentsResponse struct {
	Embeddings []*ContentEmbedding `json:"embeddings,omitempty"`
}

type ContentEmbedding struct {
	Values []float64 `json:"values,omitempty"`
}
