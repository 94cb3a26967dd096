package processors

import "github.com/relaymesh/geminigate/internal/gemini"

const defaultMaxOutputTokens = 1024

const (
	maxStopSequences    = 8
	maxStopSequenceLen  = 120
	maxTopK             = 1000
)

// GenerationKnobs is the dialect-agnostic set of sampling parameters every
// client dialect exposes in some form.
type GenerationKnobs struct {
	Temperature   *float64
	TopP          *float64
	TopK          *int64
	MaxTokens     *int64
	StopSequences []string
}

// GenerationConfig clamps the client's generation knobs into a Gemini
// generationConfig (spec §4.2).
func GenerationConfig(knobs GenerationKnobs, maxTemperature float64) *gemini.GenerationConfig {
	cfg := &gemini.GenerationConfig{}

	if knobs.Temperature != nil {
		t := clampFloat(*knobs.Temperature, 0, maxTemperature)
		cfg.Temperature = &t
	}

	if knobs.TopP != nil {
		p := clampFloat(*knobs.TopP, 0, 1)
		cfg.TopP = &p
	}

	if knobs.TopK != nil {
		k := clampInt64(*knobs.TopK, 1, maxTopK)
		cfg.TopK = &k
	}

	cfg.MaxOutputTokens = defaultMaxOutputTokens
	if knobs.MaxTokens != nil && *knobs.MaxTokens > 0 {
		cfg.MaxOutputTokens = *knobs.MaxTokens
	}

	if len(knobs.StopSequences) > 0 {
		seqs := knobs.StopSequences
		if len(seqs) > maxStopSequences {
			seqs = seqs[:maxStopSequences]
		}

		truncated := make([]string, len(seqs))
		for i, s := range seqs {
			if len(s) > maxStopSequenceLen {
				s = s[:maxStopSequenceLen]
			}

			truncated[i] = s
		}

		cfg.StopSequences = truncated
	}

	return cfg
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
