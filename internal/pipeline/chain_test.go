package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"

	"github.com/vidsum/vidsumd/internal/bili"
	"github.com/vidsum/vidsumd/internal/cache"
	"github.com/vidsum/vidsumd/internal/event"
	"github.com/vidsum/vidsumd/internal/llm"
	"github.com/vidsum/vidsumd/internal/queue"
)

const testModel = "gpt-4o-mini"

// fakeResolver scripts the platform client and counts calls.
type fakeResolver struct {
	mu         sync.Mutex
	info       *bili.VideoInfo
	resolveErr error

	tags    []string
	comment string

	resolves atomic.Int64
}

func (r *fakeResolver) setInfo(info *bili.VideoInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.info = info
}

func (r *fakeResolver) Resolve(_ context.Context,
	rawURL string) (*bili.VideoInfo, error) {

	r.resolves.Add(1)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolveErr != nil {
		return nil, r.resolveErr
	}
	if _, ok := bili.ParseBvid(rawURL); !ok {
		return nil, fmt.Errorf("%w: %s", bili.ErrNotVideo, rawURL)
	}

	info := *r.info
	return &info, nil
}

func (r *fakeResolver) Tags(_ context.Context, _ string) ([]string, error) {
	return r.tags, nil
}

func (r *fakeResolver) RandomComment(_ context.Context,
	_ int64) (fn.Option[string], error) {

	if r.comment == "" {
		return fn.None[string](), nil
	}

	return fn.Some(r.comment), nil
}

// fakeTranscripts returns a fixed transcript and counts calls.
type fakeTranscripts struct {
	mu   sync.Mutex
	text string
	err  error

	calls atomic.Int64
}

func (t *fakeTranscripts) setErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.err = err
}

func (t *fakeTranscripts) Transcript(_ context.Context,
	_ *bili.VideoInfo) (string, error) {

	t.calls.Add(1)

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.text, t.err
}

// fakeLLM replays scripted completions in order, repeating the last one
// when the script runs out.
type fakeLLM struct {
	replies []string
	err     error

	calls atomic.Int64
}

func (l *fakeLLM) Completion(_ context.Context, _ []llm.Message,
	_ string) (string, int, error) {

	n := l.calls.Add(1)

	if l.err != nil {
		return "", 0, l.err
	}

	idx := int(n) - 1
	if idx >= len(l.replies) {
		idx = len(l.replies) - 1
	}

	return l.replies[idx], 100, nil
}

func goodReply() string {
	return `{"summary": "a video about rockets", "score": 85, ` +
		`"thinking": "dense"}`
}

func testVideo() *bili.VideoInfo {
	return &bili.VideoInfo{
		Bvid:  "BV1xx411c7mD",
		Aid:   170001,
		Title: "rocket tour",
		Pages: 1,
	}
}

func testMention(id int64) event.Mention {
	return event.Mention{
		ID: id,
		Item: event.Item{
			Type:       event.MentionType,
			BusinessID: 1,
			URL:        "https://www.bilibili.com/video/BV1xx411c7mD",
		},
	}
}

// harness bundles a chain with its fakes and queues.
type harness struct {
	chain *Chain

	resolver    *fakeResolver
	transcripts *fakeTranscripts
	model       *fakeLLM
	replies     cache.Cache

	in  *queue.Queue[event.Mention]
	out *queue.Queue[event.Mention]
}

func newHarness(t *testing.T, model *fakeLLM) *harness {
	t.Helper()

	h := &harness{
		resolver:    &fakeResolver{info: testVideo()},
		transcripts: &fakeTranscripts{text: "the transcript"},
		model:       model,
		replies:     cache.NewMemory(0),
		in:          queue.New[event.Mention](8),
		out:         queue.New[event.Mention](8),
	}

	h.chain = NewChain(
		ChainConfig{Model: testModel, SupportedBusinessID: 1},
		h.resolver, h.transcripts, h.model, h.replies, h.in, h.out,
		nil,
	)

	return h
}

// runChain starts Run in the background and returns a stop function
// that shuts the chain down and waits for it.
func (h *harness) runChain(t *testing.T) func() {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- h.chain.Run(ctx)
	}()

	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("chain did not stop")
		}
	}
}

// expectOut reads one forwarded mention off the outbound queue.
func (h *harness) expectOut(t *testing.T) event.Mention {
	t.Helper()

	ctx, cancel := context.WithTimeout(
		context.Background(), 5*time.Second,
	)
	defer cancel()

	mention, err := h.out.Get(ctx)
	require.NoError(t, err)

	return mention
}

// TestChainHappyPath checks an eligible mention is summarized, answered
// and cached.
func TestChainHappyPath(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeLLM{replies: []string{goodReply()}})
	stop := h.runChain(t)
	defer stop()

	require.True(t, h.in.Put(context.Background(), testMention(1)))

	got := h.expectOut(t)
	require.EqualValues(t, 1, got.ID)
	require.NotNil(t, got.Item.AIResponse)
	require.Equal(t, "a video about rockets",
		got.Item.AIResponse.Summary)
	require.Equal(t, json.Number("85"), got.Item.AIResponse.Score)
	require.Contains(t, got.Item.AIResponse.Reply, "85/100")

	// The cache must hold the complete outbound payload, not just the
	// structured summary.
	payload, err := h.replies.Get(
		context.Background(), "BV1xx411c7mD",
	)
	require.NoError(t, err)

	var cached event.Mention
	require.NoError(t, json.Unmarshal(payload, &cached))
	require.Equal(t, got, cached)
}

// TestChainCacheShortCircuits checks a second mention of the same video
// replays the cached payload verbatim, without another transcript or
// completion.
func TestChainCacheShortCircuits(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeLLM{replies: []string{goodReply()}})
	stop := h.runChain(t)
	defer stop()

	require.True(t, h.in.Put(context.Background(), testMention(1)))
	first := h.expectOut(t)

	require.True(t, h.in.Put(context.Background(), testMention(2)))
	second := h.expectOut(t)

	// The hit forwards the payload that was stored, original mention
	// included.
	require.Equal(t, first, second)
	require.EqualValues(t, 1, second.ID)
	require.Equal(t, "a video about rockets",
		second.Item.AIResponse.Summary)

	require.EqualValues(t, 1, h.model.calls.Load())
	require.EqualValues(t, 1, h.transcripts.calls.Load())
}

// TestChainRepairRound checks one malformed response triggers exactly
// one retry, and a second failure gives up.
func TestChainRepairRound(t *testing.T) {
	t.Parallel()

	t.Run("repair succeeds", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, &fakeLLM{replies: []string{
			"sorry, I cannot do JSON",
			goodReply(),
		}})
		stop := h.runChain(t)
		defer stop()

		require.True(t, h.in.Put(
			context.Background(), testMention(1),
		))

		got := h.expectOut(t)
		require.NotNil(t, got.Item.AIResponse)
		require.EqualValues(t, 2, h.model.calls.Load())
	})

	t.Run("repair fails", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, &fakeLLM{replies: []string{
			"nope", "still nope", goodReply(),
		}})
		stop := h.runChain(t)
		defer stop()

		require.True(t, h.in.Put(
			context.Background(), testMention(1),
		))
		// A good mention after it proves the loop survived.
		require.True(t, h.in.Put(
			context.Background(), testMention(2),
		))

		got := h.expectOut(t)
		require.EqualValues(t, 2, got.ID)

		// Two calls for the failed event, one for the next.
		require.EqualValues(t, 3, h.model.calls.Load())
	})
}

// TestChainNoneedDiscards checks a noneed verdict drops the mention
// without forwarding or caching.
func TestChainNoneedDiscards(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeLLM{replies: []string{
		`{"noneed": true}`,
		goodReply(),
	}})
	stop := h.runChain(t)
	defer stop()

	require.True(t, h.in.Put(context.Background(), testMention(1)))
	require.True(t, h.in.Put(context.Background(), testMention(2)))

	got := h.expectOut(t)
	require.EqualValues(t, 2, got.ID)

	// The declined video must not be cached: the second mention
	// caused a fresh completion.
	require.EqualValues(t, 2, h.model.calls.Load())
}

// TestChainSkipsIneligible checks filter and resolve rejections drop
// mentions silently.
func TestChainSkipsIneligible(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeLLM{replies: []string{goodReply()}})
	stop := h.runChain(t)
	defer stop()

	ctx := context.Background()

	wrongType := testMention(1)
	wrongType.Item.Type = "like"
	require.True(t, h.in.Put(ctx, wrongType))

	wrongBusiness := testMention(2)
	wrongBusiness.Item.BusinessID = 5
	require.True(t, h.in.Put(ctx, wrongBusiness))

	nested := testMention(3)
	nested.Item.RootID = 99
	require.True(t, h.in.Put(ctx, nested))

	notVideo := testMention(4)
	notVideo.Item.URL = "https://live.bilibili.com/12345"
	require.True(t, h.in.Put(ctx, notVideo))

	require.True(t, h.in.Put(ctx, testMention(5)))

	got := h.expectOut(t)
	require.EqualValues(t, 5, got.ID)

	// Only the not-video mention and the good one reached the
	// resolver.
	require.EqualValues(t, 2, h.resolver.resolves.Load())
}

// TestChainSkipsMultiPage checks segmented videos are dropped before
// any transcript work.
func TestChainSkipsMultiPage(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeLLM{replies: []string{goodReply()}})
	h.resolver.info.Pages = 3
	stop := h.runChain(t)
	defer stop()

	require.True(t, h.in.Put(context.Background(), testMention(1)))

	// Give the chain a moment, then confirm nothing came out.
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 0, h.out.Len())
	require.EqualValues(t, 0, h.transcripts.calls.Load())
}

// TestChainSurvivesPanic checks a panicking stage only loses the one
// event.
func TestChainSurvivesPanic(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeLLM{replies: []string{goodReply()}})
	h.resolver.setInfo(nil) // Resolve will copy a nil pointer.
	stop := h.runChain(t)
	defer stop()

	require.True(t, h.in.Put(context.Background(), testMention(1)))

	time.Sleep(50 * time.Millisecond)

	h.resolver.setInfo(testVideo())
	require.True(t, h.in.Put(context.Background(), testMention(2)))

	got := h.expectOut(t)
	require.EqualValues(t, 2, got.ID)
}

// TestChainTranscriptFailureDropsEvent checks transcript errors do not
// stop the loop.
func TestChainTranscriptFailureDropsEvent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeLLM{replies: []string{goodReply()}})
	h.transcripts.setErr(errors.New("audio gone"))
	stop := h.runChain(t)
	defer stop()

	require.True(t, h.in.Put(context.Background(), testMention(1)))

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 0, h.out.Len())

	h.transcripts.setErr(nil)
	require.True(t, h.in.Put(context.Background(), testMention(2)))

	got := h.expectOut(t)
	require.EqualValues(t, 2, got.ID)
}

// TestChainStopsOnQueueClose checks Run returns cleanly once the
// inbound queue closes.
func TestChainStopsOnQueueClose(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeLLM{replies: []string{goodReply()}})

	done := make(chan error, 1)
	go func() {
		done <- h.chain.Run(context.Background())
	}()

	require.True(t, h.in.Put(context.Background(), testMention(1)))
	h.expectOut(t)

	h.in.Close()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("chain did not stop on queue close")
	}
}

// TestSummarizeURLDirect checks the control-surface entry point works
// without queues.
func TestSummarizeURLDirect(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeLLM{replies: []string{goodReply()}})

	resp, err := h.chain.SummarizeURL(
		context.Background(),
		"https://www.bilibili.com/video/BV1xx411c7mD",
	)
	require.NoError(t, err)
	require.Equal(t, "a video about rockets", resp.Summary)

	// The direct path has no mention to build a payload from, so it
	// must not populate the reply cache.
	_, err = h.replies.Get(context.Background(), "BV1xx411c7mD")
	require.ErrorIs(t, err, cache.ErrNotFound)

	_, err = h.chain.SummarizeURL(
		context.Background(), "https://live.bilibili.com/12345",
	)
	require.ErrorIs(t, err, bili.ErrNotVideo)
}
