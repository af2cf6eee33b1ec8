package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vidsum/vidsumd/internal/cache"
	"github.com/vidsum/vidsumd/internal/event"
)

// SummarizeVideoArgs are the arguments for the summarize_video tool.
type SummarizeVideoArgs struct {
	// URL is the video URL to summarize.
	URL string `json:"url" jsonschema:"URL of the video to summarize"`
}

// SummarizeVideoResult is the result of the summarize_video tool.
type SummarizeVideoResult struct {
	Noneed   bool   `json:"noneed,omitempty"`
	Summary  string `json:"summary,omitempty"`
	Score    string `json:"score,omitempty"`
	Thinking string `json:"thinking,omitempty"`
	Reply    string `json:"reply,omitempty"`
}

func (s *Server) handleSummarizeVideo(ctx context.Context,
	req *mcp.CallToolRequest,
	args SummarizeVideoArgs) (*mcp.CallToolResult,
	SummarizeVideoResult, error) {

	resp, err := s.summarizer.SummarizeURL(ctx, args.URL)
	if err != nil {
		return nil, SummarizeVideoResult{}, err
	}

	return nil, SummarizeVideoResult{
		Noneed:   resp.Noneed,
		Summary:  resp.Summary,
		Score:    resp.Score.String(),
		Thinking: resp.Thinking,
		Reply:    resp.Reply,
	}, nil
}

// LookupCachedArgs are the arguments for the lookup_cached tool.
type LookupCachedArgs struct {
	// VideoID is the display id of the video, e.g. "BV1xx411c7mD".
	VideoID string `json:"video_id" jsonschema:"Display id of the video"`
}

// LookupCachedResult is the result of the lookup_cached tool.
type LookupCachedResult struct {
	Found    bool   `json:"found"`
	Summary  string `json:"summary,omitempty"`
	Score    string `json:"score,omitempty"`
	Thinking string `json:"thinking,omitempty"`
	Reply    string `json:"reply,omitempty"`
}

func (s *Server) handleLookupCached(ctx context.Context,
	req *mcp.CallToolRequest,
	args LookupCachedArgs) (*mcp.CallToolResult, LookupCachedResult,
	error) {

	payload, err := s.store.Get(ctx, args.VideoID)
	switch {
	case errors.Is(err, cache.ErrNotFound):
		return nil, LookupCachedResult{Found: false}, nil

	case err != nil:
		return nil, LookupCachedResult{}, err
	}

	// Entries hold the full outbound payload, mention included.
	var cached event.Mention
	err = json.Unmarshal(payload, &cached)
	if err == nil && cached.Item.AIResponse == nil {
		err = errors.New("missing ai_response")
	}
	if err != nil {
		return nil, LookupCachedResult{}, fmt.Errorf(
			"corrupt cache entry for %s: %w", args.VideoID, err)
	}

	resp := cached.Item.AIResponse
	return nil, LookupCachedResult{
		Found:    true,
		Summary:  resp.Summary,
		Score:    resp.Score.String(),
		Thinking: resp.Thinking,
		Reply:    resp.Reply,
	}, nil
}

// PruneCacheArgs are the arguments for the prune_cache tool.
type PruneCacheArgs struct {
	// MaxAgeHours removes entries older than this many hours.
	MaxAgeHours int `json:"max_age_hours" jsonschema:"Remove entries older than this many hours"`
}

// PruneCacheResult is the result of the prune_cache tool.
type PruneCacheResult struct {
	Pruned int64 `json:"pruned"`
}

func (s *Server) handlePruneCache(ctx context.Context,
	req *mcp.CallToolRequest,
	args PruneCacheArgs) (*mcp.CallToolResult, PruneCacheResult, error) {

	if args.MaxAgeHours <= 0 {
		return nil, PruneCacheResult{}, fmt.Errorf(
			"max_age_hours must be positive, got %d",
			args.MaxAgeHours)
	}

	cutoff := time.Now().Add(
		-time.Duration(args.MaxAgeHours) * time.Hour,
	)

	pruned, err := s.store.PruneBefore(ctx, cutoff)
	if err != nil {
		return nil, PruneCacheResult{}, err
	}

	return nil, PruneCacheResult{Pruned: pruned}, nil
}
