package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/vidsum/vidsumd/internal/bili"
	"github.com/vidsum/vidsumd/internal/cache"
	"github.com/vidsum/vidsumd/internal/event"
	"github.com/vidsum/vidsumd/internal/llm"
	"github.com/vidsum/vidsumd/internal/queue"
	"github.com/vidsum/vidsumd/internal/reply"
	"github.com/vidsum/vidsumd/internal/transcript"
)

// ErrMultiPage is returned when a video is split into multiple segments,
// which the summarizer does not handle.
var ErrMultiPage = errors.New("multi-page videos are unsupported")

// restartDelay is the pause before the consume loop is restarted after
// a non-cancellation failure.
const restartDelay = time.Second

// VideoResolver is the slice of the platform client the chain needs.
type VideoResolver interface {
	Resolve(ctx context.Context, rawURL string) (*bili.VideoInfo, error)

	Tags(ctx context.Context, bvid string) ([]string, error)

	RandomComment(ctx context.Context,
		aid int64) (fn.Option[string], error)
}

// TranscriptAcquirer produces the text a video will be summarized from.
type TranscriptAcquirer interface {
	Transcript(ctx context.Context, info *bili.VideoInfo) (string, error)
}

// ChainConfig packages the knobs of the summarization chain.
type ChainConfig struct {
	// Model is the completion model used for summarization.
	Model string

	// SupportedBusinessID selects which mention business type is
	// processed. Everything else is dropped.
	SupportedBusinessID int
}

// Chain consumes mention events, turns the referenced videos into
// summaries, and forwards answered events to the outbound queue. One
// Run call processes events sequentially; failures on a single event
// are logged and dropped without stopping the loop.
type Chain struct {
	cfg ChainConfig

	resolver    VideoResolver
	transcripts TranscriptAcquirer
	completions llm.Client
	replies     cache.Cache

	in  *queue.Queue[event.Mention]
	out *queue.Queue[event.Mention]

	log *slog.Logger
}

// NewChain wires up a summarization chain.
func NewChain(cfg ChainConfig, resolver VideoResolver,
	transcripts TranscriptAcquirer, completions llm.Client,
	replies cache.Cache, in, out *queue.Queue[event.Mention],
	log *slog.Logger) *Chain {

	if log == nil {
		log = slog.Default()
	}

	return &Chain{
		cfg:         cfg,
		resolver:    resolver,
		transcripts: transcripts,
		completions: completions,
		replies:     replies,
		in:          in,
		out:         out,
		log:         log,
	}
}

// Run consumes the inbound queue until the context is cancelled or the
// queue is closed and drained. The consume loop is restarted after
// unexpected failures so a single bad event cannot take the daemon
// down.
func (c *Chain) Run(ctx context.Context) error {
	for {
		err := c.consume(ctx)
		switch {
		case err == nil, errors.Is(err, queue.ErrQueueClosed):
			return nil

		case errors.Is(err, context.Canceled),
			errors.Is(err, context.DeadlineExceeded):

			return err
		}

		c.log.ErrorContext(ctx, "consume loop failed, restarting",
			"error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(restartDelay):
		}
	}
}

// consume pulls mentions off the inbound queue one at a time.
func (c *Chain) consume(ctx context.Context) error {
	for {
		mention, err := c.in.Get(ctx)
		if err != nil {
			return err
		}

		c.process(ctx, mention)
	}
}

// process handles a single mention end to end. Panics from any stage
// are contained here.
func (c *Chain) process(ctx context.Context, mention event.Mention) {
	log := c.log.With(
		"event_id", uuid.New().String(),
		"mention_id", mention.ID,
	)

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "panic while processing mention",
				"panic", r, "stack", string(debug.Stack()))
		}
	}()

	if !mention.Eligible(c.cfg.SupportedBusinessID) {
		log.DebugContext(ctx, "dropping ineligible mention",
			"type", mention.Item.Type,
			"business_id", mention.Item.BusinessID)
		return
	}

	out, err := c.replyTo(ctx, mention)
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):

		return

	case errors.Is(err, bili.ErrNotVideo),
		errors.Is(err, ErrMultiPage),
		errors.Is(err, transcript.ErrSubtitleUnavailable):

		log.InfoContext(ctx, "skipping mention",
			"url", mention.Item.URL, "reason", err)
		return

	case err != nil:
		log.ErrorContext(ctx, "unable to summarize video",
			"url", mention.Item.URL, "error", err)
		return
	}

	if out.IsNone() {
		log.InfoContext(ctx, "model declined to summarize, "+
			"discarding mention", "url", mention.Item.URL)
		return
	}

	if !c.out.Put(ctx, out.UnwrapOr(event.Mention{})) {
		log.WarnContext(ctx, "outbound queue unavailable, "+
			"dropping reply", "url", mention.Item.URL)
	}
}

// replyTo produces the outbound payload for a mention. A cached payload
// for the same video is replayed verbatim; otherwise the video is
// summarized and the finished payload is stored for future mentions.
// None means the model declined and the mention should be discarded.
func (c *Chain) replyTo(ctx context.Context,
	mention event.Mention) (fn.Option[event.Mention], error) {

	none := fn.None[event.Mention]()

	info, err := c.resolver.Resolve(ctx, mention.Item.URL)
	if err != nil {
		return none, err
	}

	if cached, ok := c.cachedReply(ctx, info.Bvid); ok {
		c.log.InfoContext(ctx, "reply cache hit", "bvid", info.Bvid)
		return fn.Some(cached), nil
	}

	resp, err := c.summarize(ctx, info)
	if err != nil {
		return none, err
	}

	if resp.Noneed {
		return none, nil
	}

	out := mention.WithResponse(resp)
	c.storeReply(ctx, info.Bvid, out)

	return fn.Some(out), nil
}

// SummarizeURL resolves a video URL and produces its structured
// summary, consulting the reply cache first. It is the entry point for
// the control-surface tools, which bypass the queues; having no mention
// to build a payload from, it reads the cache but never writes it.
func (c *Chain) SummarizeURL(ctx context.Context,
	rawURL string) (*event.AIResponse, error) {

	info, err := c.resolver.Resolve(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if cached, ok := c.cachedReply(ctx, info.Bvid); ok {
		c.log.InfoContext(ctx, "reply cache hit", "bvid", info.Bvid)
		return cached.Item.AIResponse, nil
	}

	return c.summarize(ctx, info)
}

// summarize runs the full enrich-transcribe-complete sequence for a
// resolved video.
func (c *Chain) summarize(ctx context.Context,
	info *bili.VideoInfo) (*event.AIResponse, error) {

	start := time.Now()

	if info.Pages > 1 {
		return nil, fmt.Errorf("%w: %s has %d pages", ErrMultiPage,
			info.Bvid, info.Pages)
	}

	tags, err := c.resolver.Tags(ctx, info.Bvid)
	if err != nil {
		c.log.WarnContext(ctx, "unable to fetch tags",
			"bvid", info.Bvid, "error", err)
		tags = nil
	}

	comment := fn.None[string]()
	if sampled, err := c.resolver.RandomComment(ctx, info.Aid); err != nil {
		c.log.WarnContext(ctx, "unable to sample comment",
			"bvid", info.Bvid, "error", err)
	} else {
		comment = sampled
	}

	transcriptText, err := c.transcripts.Transcript(ctx, info)
	if err != nil {
		return nil, fmt.Errorf("unable to acquire transcript: %w",
			err)
	}

	tagLine := llm.FormatTags(tags)
	msgs := llm.BuildSummaryMessages(
		info.Title, tagLine, comment.UnwrapOr(""), transcriptText,
		info.Desc,
	)

	summary, tokens, err := c.complete(ctx, msgs)
	if err != nil {
		return nil, err
	}

	if summary.Noneed {
		return &event.AIResponse{Noneed: true}, nil
	}

	resp := &event.AIResponse{
		Summary:  summary.Summary,
		Score:    summary.Score,
		Thinking: summary.Thinking,
		Reply:    reply.BuildReplyText(summary, tagLine),
	}

	c.log.InfoContext(ctx, "summarized video",
		"bvid", info.Bvid,
		"tokens", tokens,
		"elapsed", time.Since(start))

	return resp, nil
}

// complete runs the summarization call, retrying exactly once with a
// repair prompt when the model's response cannot be parsed.
func (c *Chain) complete(ctx context.Context,
	msgs []llm.Message) (*llm.Summary, int, error) {

	raw, tokens, err := c.completions.Completion(ctx, msgs, c.cfg.Model)
	if err != nil {
		return nil, tokens, err
	}

	summary, err := llm.ParseSummary(raw)
	if err == nil {
		return summary, tokens, nil
	}
	if !errors.Is(err, llm.ErrMalformed) {
		return nil, tokens, err
	}

	c.log.WarnContext(ctx, "malformed model response, retrying once",
		"error", err)

	repairMsgs := llm.BuildRepairMessages(msgs, raw)
	raw, repairTokens, err := c.completions.Completion(
		ctx, repairMsgs, c.cfg.Model,
	)
	tokens += repairTokens
	if err != nil {
		return nil, tokens, err
	}

	summary, err = llm.ParseSummary(raw)
	if err != nil {
		return nil, tokens, fmt.Errorf("repair attempt failed: %w",
			err)
	}

	return summary, tokens, nil
}

// cachedReply looks up and decodes a cached outbound payload. Cache
// failures are treated as misses.
func (c *Chain) cachedReply(ctx context.Context,
	bvid string) (event.Mention, bool) {

	payload, err := c.replies.Get(ctx, bvid)
	switch {
	case errors.Is(err, cache.ErrNotFound):
		return event.Mention{}, false

	case err != nil:
		c.log.WarnContext(ctx, "reply cache lookup failed",
			"bvid", bvid, "error", err)
		return event.Mention{}, false
	}

	var cached event.Mention
	if err := json.Unmarshal(payload, &cached); err != nil ||
		cached.Item.AIResponse == nil {

		c.log.WarnContext(ctx, "discarding corrupt cache entry",
			"bvid", bvid, "error", err)
		return event.Mention{}, false
	}

	return cached, true
}

// storeReply persists a finished outbound payload. A write failure only
// costs a future cache hit, so it is logged and swallowed.
func (c *Chain) storeReply(ctx context.Context, bvid string,
	out event.Mention) {

	payload, err := json.Marshal(out)
	if err != nil {
		c.log.WarnContext(ctx, "unable to encode reply payload",
			"bvid", bvid, "error", err)
		return
	}

	if err := c.replies.Set(ctx, bvid, payload); err != nil {
		c.log.WarnContext(ctx, "unable to store reply payload",
			"bvid", bvid, "error", err)
	}
}
