package asr

import "context"

// RefineFunc post-processes a raw transcript, typically fixing
// punctuation and recognition glitches with a language model.
type RefineFunc func(ctx context.Context, text string) (string, error)

// RefinedEngine decorates an Engine with a post-processing step.
type RefinedEngine struct {
	inner  Engine
	refine RefineFunc
}

// NewRefinedEngine wraps inner so that every transcript passes through
// refine before being returned.
func NewRefinedEngine(inner Engine, refine RefineFunc) *RefinedEngine {
	return &RefinedEngine{
		inner:  inner,
		refine: refine,
	}
}

// Transcribe implements Engine.
func (e *RefinedEngine) Transcribe(ctx context.Context,
	audioPath string) (string, error) {

	text, err := e.inner.Transcribe(ctx, audioPath)
	if err != nil {
		return "", err
	}

	return e.refine(ctx, text)
}
