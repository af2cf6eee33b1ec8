package event

import "encoding/json"

// MentionType is the item type tag carried by a mention notification.
// Only reply-style mentions are processed by the summarize pipeline.
const MentionType = "reply"

// AIResponse is the structured summary attached to an outbound reply
// payload. Score rides as a json.Number so both integer and fractional
// model outputs survive a cache round trip unchanged.
type AIResponse struct {
	// Noneed is true when the model judged the video not worth
	// summarizing. Such responses are never forwarded.
	Noneed bool `json:"noneed"`

	// Summary is the model's summary of the video content.
	Summary string `json:"summary,omitempty"`

	// Score is the model's self-assessed quality score.
	Score json.Number `json:"score,omitempty"`

	// Thinking is the model's reasoning trace.
	Thinking string `json:"thinking,omitempty"`

	// Reply is the rendered plain-text reply body derived from Summary,
	// ready for the delivery collaborator to post.
	Reply string `json:"reply,omitempty"`
}

// Item is the payload of a mention notification: what was mentioned and
// where in the comment thread the mention sits.
type Item struct {
	// Type is the mention kind tag, e.g. "reply".
	Type string `json:"type"`

	// BusinessID is the platform's business category for the mention.
	BusinessID int `json:"business_id"`

	// URL points at the resource the mention references.
	URL string `json:"url"`

	// RootID is the id of the thread root comment, 0 for top-level
	// mentions.
	RootID int64 `json:"root_id"`

	// TargetID is the id of the comment being replied to, 0 for
	// top-level mentions.
	TargetID int64 `json:"target_id"`

	// SourceContent is the text of the mentioning comment.
	SourceContent string `json:"source_content,omitempty"`

	// AIResponse is populated on outbound payloads only.
	AIResponse *AIResponse `json:"ai_response,omitempty"`
}

// Mention is one inbound unit of work produced by the ingestion
// collaborator. The pipeline consumes each mention exactly once and never
// persists it; only outbound payloads (mention + AIResponse) reach the
// cache.
type Mention struct {
	// ID is the platform's notification id.
	ID int64 `json:"id"`

	// Item carries the mention payload.
	Item Item `json:"item"`

	// AtTime is the unix timestamp the mention was created.
	AtTime int64 `json:"at_time,omitempty"`
}

// Eligible reports whether the mention is one the pipeline handles: a
// top-level reply mention of the supported business category. Nested
// replies (nonzero root or target id) and other categories are skipped
// without side effects.
func (m Mention) Eligible(supportedBusinessID int) bool {
	if m.Item.Type != MentionType {
		return false
	}
	if m.Item.BusinessID != supportedBusinessID {
		return false
	}
	if m.Item.RootID != 0 || m.Item.TargetID != 0 {
		return false
	}

	return true
}

// WithResponse returns a copy of the mention with the given response
// attached. The receiver is treated as an immutable value: the original
// mention is never mutated, so queued copies cannot alias the response.
func (m Mention) WithResponse(resp *AIResponse) Mention {
	out := m

	if resp != nil {
		r := *resp
		out.Item.AIResponse = &r
	}

	return out
}
