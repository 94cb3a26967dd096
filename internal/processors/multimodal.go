package processors

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/relaymesh/geminigate/internal/gemini"
)

const maxImageBytes = 20 * 1024 * 1024

// ContentItem is a dialect-agnostic piece of multimodal input: text, or an
// image given either as a data URL or an http(s) URL.
type ContentItem struct {
	Text     string
	ImageURL string
}

// ToGeminiParts converts a list of content items into Gemini parts (spec
// §4.2). Per-item failures degrade to a text placeholder rather than
// failing the whole request.
func ToGeminiParts(items []ContentItem) []*gemini.Part {
	parts := make([]*gemini.Part, 0, len(items))

	for _, item := range items {
		if item.ImageURL == "" {
			parts = append(parts, &gemini.Part{Text: item.Text})
			continue
		}

		part, err := imagePart(item.ImageURL)
		if err != nil {
			parts = append(parts, &gemini.Part{Text: fmt.Sprintf("[Image processing failed: %s]", err.Error())})
			continue
		}

		parts = append(parts, part)
	}

	return parts
}

// ImagePartFromBase64 builds a Gemini inline-data part from an
// already-decoded-format media type and base64 payload, as Claude's
// `image.source` block supplies them directly (spec §4.2).
func ImagePartFromBase64(mediaType, data string) (*gemini.Part, error) {
	mediaType = normalizeMIMEType(mediaType)

	decodedLen := int(float64(len(data)) * 0.75)
	if decodedLen > maxImageBytes {
		return nil, fmt.Errorf("image exceeds 20MB limit (estimated %d bytes)", decodedLen)
	}

	if _, err := base64.StdEncoding.DecodeString(data); err != nil {
		return nil, fmt.Errorf("invalid base64 image data: %w", err)
	}

	return &gemini.Part{InlineData: &gemini.Blob{MIMEType: mediaType, Data: data}}, nil
}

func imagePart(url string) (*gemini.Part, error) {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("http(s) image URLs are not supported, inline the data instead")
	}

	mimeType, data, err := parseDataURL(url)
	if err != nil {
		return nil, err
	}

	mimeType = normalizeMIMEType(mimeType)

	decodedLen := int(float64(len(data)) * 0.75)
	if decodedLen > maxImageBytes {
		return nil, fmt.Errorf("image exceeds 20MB limit (estimated %d bytes)", decodedLen)
	}

	if _, err := base64.StdEncoding.DecodeString(data); err != nil {
		return nil, fmt.Errorf("invalid base64 image data: %w", err)
	}

	return &gemini.Part{InlineData: &gemini.Blob{MIMEType: mimeType, Data: data}}, nil
}

func parseDataURL(url string) (mimeType, data string, err error) {
	const prefix = "data:"
	if !strings.HasPrefix(url, prefix) {
		return "", "", fmt.Errorf("expected a data: URL")
	}

	rest := url[len(prefix):]

	idx := strings.Index(rest, ";base64,")
	if idx < 0 {
		return "", "", fmt.Errorf("expected a base64-encoded data URL")
	}

	mimeType = rest[:idx]
	data = strings.TrimSpace(rest[idx+len(";base64,"):])

	return mimeType, data, nil
}

// normalizeMIMEType lowercases and rewrites a handful of known aliases
// (spec §4.2), falling back to image/jpeg for anything unrecognized.
func normalizeMIMEType(mimeType string) string {
	lower := strings.ToLower(strings.TrimSpace(mimeType))

	switch lower {
	case "image/jpg":
		return "image/jpeg"
	case "image/x-png":
		return "image/png"
	case "image/jpeg", "image/png", "image/webp", "image/heic", "image/heif", "image/gif":
		return lower
	default:
		return "image/jpeg"
	}
}
