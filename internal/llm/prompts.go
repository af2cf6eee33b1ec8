package llm

import (
	"fmt"
	"strings"
)

// summarizerSystemPrompt instructs the model to answer with a strict
// JSON object so downstream validation can stay mechanical.
const summarizerSystemPrompt = `You are a video summarizer. Given a ` +
	`video's title, tags, description, a viewer comment, and its ` +
	`transcript, produce a summary for someone deciding whether to ` +
	`watch.

Respond with EXACTLY one JSON object and nothing else:
{"summary": "<one-paragraph summary of the video content>", ` +
	`"score": <integer 0-100 rating how worth watching it is>, ` +
	`"thinking": "<one sentence on how you judged it>"}

If the transcript is empty, nonsensical, or too thin to summarize, ` +
	`respond instead with:
{"noneed": true}

Rules:
- Base the summary on the transcript, not the title
- Answer in the language the transcript is written in
- Do NOT use markdown, code fences, or any text outside the JSON`

// repairPrompt asks the model to fix a malformed response. It is used
// for at most one retry per video.
const repairPrompt = `Your previous response could not be parsed. ` +
	`Reply again with EXACTLY one JSON object containing the keys ` +
	`"summary", "score" and "thinking" (or {"noneed": true}), with ` +
	`no other text, no markdown and no code fences.`

// transcriptRefinePrompt cleans up raw speech-recognition output.
const transcriptRefinePrompt = `Fix the punctuation, casing and ` +
	`obvious recognition mistakes in the following transcript. Do ` +
	`not summarize, translate or drop content. Reply with the ` +
	`corrected transcript only.`

// BuildSummaryMessages constructs the conversation for the initial
// summarization call.
func BuildSummaryMessages(title, tags, comment, transcript,
	desc string) []Message {

	var b strings.Builder

	fmt.Fprintf(&b, "Title: %s\n", title)
	if tags != "" {
		fmt.Fprintf(&b, "Tags: %s\n", tags)
	}
	if desc != "" {
		fmt.Fprintf(&b, "Description: %s\n", desc)
	}
	if comment != "" {
		fmt.Fprintf(&b, "A viewer comment: %s\n", comment)
	}

	b.WriteString("--- TRANSCRIPT ---\n")
	b.WriteString(transcript)
	b.WriteString("\n--- END ---")

	return []Message{
		SystemMessage(summarizerSystemPrompt),
		UserMessage(b.String()),
	}
}

// BuildRepairMessages extends the original conversation with the
// model's malformed reply and a correction request.
func BuildRepairMessages(original []Message, badReply string) []Message {
	msgs := make([]Message, 0, len(original)+2)
	msgs = append(msgs, original...)
	msgs = append(msgs,
		Message{Role: "assistant", Content: badReply},
		UserMessage(repairPrompt),
	)

	return msgs
}

// BuildRefineMessages constructs the conversation for transcript
// post-processing.
func BuildRefineMessages(transcript string) []Message {
	return []Message{
		SystemMessage(transcriptRefinePrompt),
		UserMessage(transcript),
	}
}

// FormatTags joins tag names in the hashtag form used in prompts and
// replies.
func FormatTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}

	var b strings.Builder
	for _, tag := range tags {
		fmt.Fprintf(&b, "#%s ", tag)
	}

	return strings.TrimSpace(b.String())
}
