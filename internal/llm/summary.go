package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is returned when a model response cannot be parsed into
// a valid Summary. Callers may retry the completion once with a repair
// prompt before giving up.
var ErrMalformed = errors.New("malformed model response")

// Summary is the validated result of one summarization call.
type Summary struct {
	// Noneed is true when the model judged the video not worth
	// summarizing. The remaining fields are empty in that case.
	Noneed bool `json:"noneed,omitempty"`

	// Summary is the one-paragraph summary text.
	Summary string `json:"summary,omitempty"`

	// Score is the 0-100 watchability rating. Kept as json.Number so
	// that model variations like "85" vs 85.0 survive round trips.
	Score json.Number `json:"score,omitempty"`

	// Thinking is the model's one-line rationale.
	Thinking string `json:"thinking,omitempty"`
}

// stripFences removes a wrapping markdown code fence from a model
// response, tolerating a language tag after the opening fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		firstLine := strings.TrimSpace(s[:idx])
		// Drop a language tag like "json" on the fence line.
		if len(firstLine) <= 10 && !strings.Contains(firstLine, "{") {
			s = s[idx+1:]
		}
	}

	s = strings.TrimSuffix(strings.TrimSpace(s), "```")

	return strings.TrimSpace(s)
}

// salvageObject cuts the response down to its outermost JSON object,
// discarding any prose the model wrapped around it.
func salvageObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}

	return s[start : end+1], true
}

// ParseSummary validates a raw model response into a Summary. A
// response with noneed set is valid on its own; otherwise all of
// summary, score and thinking must be present. Anything else yields
// ErrMalformed.
func ParseSummary(raw string) (*Summary, error) {
	text := stripFences(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		salvaged, ok := salvageObject(text)
		if !ok {
			return nil, fmt.Errorf("%w: no JSON object found",
				ErrMalformed)
		}
		if err := json.Unmarshal([]byte(salvaged), &fields); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		text = salvaged
	}

	var summary Summary
	if err := json.Unmarshal([]byte(text), &summary); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if summary.Noneed {
		return &Summary{Noneed: true}, nil
	}

	// All three content keys must be present, not merely any one of
	// them.
	for _, key := range []string{"summary", "score", "thinking"} {
		if _, ok := fields[key]; !ok {
			return nil, fmt.Errorf("%w: missing key %q",
				ErrMalformed, key)
		}
	}

	if summary.Summary == "" {
		return nil, fmt.Errorf("%w: empty summary", ErrMalformed)
	}

	return &summary, nil
}
