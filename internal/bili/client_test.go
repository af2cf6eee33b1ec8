package bili

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParseBvid checks the URL forms the resolver must accept or reject.
func TestParseBvid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
		bvid string
		ok   bool
	}{
		{
			name: "plain video url",
			url:  "https://www.bilibili.com/video/BV1xx411c7mD",
			bvid: "BV1xx411c7mD",
			ok:   true,
		},
		{
			name: "url with query",
			url: "https://www.bilibili.com/video/BV1xx411c7mD" +
				"?p=1&t=30",
			bvid: "BV1xx411c7mD",
			ok:   true,
		},
		{
			name: "bare id",
			url:  "BV1xx411c7mD",
			bvid: "BV1xx411c7mD",
			ok:   true,
		},
		{
			name: "live room url",
			url:  "https://live.bilibili.com/12345",
			ok:   false,
		},
		{
			name: "column article url",
			url:  "https://www.bilibili.com/read/cv123456",
			ok:   false,
		},
		{
			name: "empty",
			url:  "",
			ok:   false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			bvid, ok := ParseBvid(test.url)
			require.Equal(t, test.ok, ok)
			require.Equal(t, test.bvid, bvid)
		})
	}
}

// newTestClient spins up a stub API server and returns a client pointed
// at it.
func newTestClient(t *testing.T,
	handler http.HandlerFunc) (*Client, *httptest.Server) {

	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{
		BaseURL: server.URL,
	})

	return client, server
}

// TestResolve checks that view metadata is mapped into VideoInfo,
// including the first-page cid fallback.
func TestResolve(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter,
		r *http.Request) {

		require.Equal(t, "/x/web-interface/view", r.URL.Path)
		require.Equal(t, "BV1xx411c7mD", r.URL.Query().Get("bvid"))

		json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{
				"bvid":  "BV1xx411c7mD",
				"aid":   170001,
				"title": "test video",
				"desc":  "a description",
				"pages": []map[string]any{
					{"cid": 279786},
				},
				"subtitle": map[string]any{
					"list": []map[string]any{
						{
							"lan":     "zh-CN",
							"lan_doc": "中文",
							"subtitle_url": "//host" +
								"/sub.json",
						},
					},
				},
			},
		})
	})

	info, err := client.Resolve(
		context.Background(),
		"https://www.bilibili.com/video/BV1xx411c7mD",
	)
	require.NoError(t, err)

	require.Equal(t, "BV1xx411c7mD", info.Bvid)
	require.Equal(t, int64(170001), info.Aid)
	require.Equal(t, int64(279786), info.Cid)
	require.Equal(t, "test video", info.Title)
	require.Equal(t, 1, info.Pages)
	require.Len(t, info.Subtitles, 1)
	require.Equal(t, "zh-CN", info.Subtitles[0].Lan)
}

// TestResolveNotVideo checks that non-video URLs fail fast without a
// network round trip.
func TestResolveNotVideo(t *testing.T) {
	t.Parallel()

	called := false
	client, _ := newTestClient(t, func(w http.ResponseWriter,
		r *http.Request) {

		called = true
	})

	_, err := client.Resolve(
		context.Background(), "https://live.bilibili.com/12345",
	)
	require.ErrorIs(t, err, ErrNotVideo)
	require.False(t, called)
}

// TestResolveAPIError checks that a non-zero envelope code surfaces as
// ErrAPIFailure.
func TestResolveAPIError(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter,
		r *http.Request) {

		json.NewEncoder(w).Encode(map[string]any{
			"code":    -404,
			"message": "not found",
		})
	})

	_, err := client.Resolve(
		context.Background(),
		"https://www.bilibili.com/video/BV1xx411c7mD",
	)
	require.ErrorIs(t, err, ErrAPIFailure)
}

// TestTags checks tag name extraction.
func TestTags(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter,
		r *http.Request) {

		require.Equal(t, "/x/tag/archive/tags", r.URL.Path)

		json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": []map[string]any{
				{"tag_name": "science"},
				{"tag_name": "space"},
			},
		})
	})

	tags, err := client.Tags(context.Background(), "BV1xx411c7mD")
	require.NoError(t, err)
	require.Equal(t, []string{"science", "space"}, tags)
}

// TestRandomCommentEmpty checks the None path when no comments exist.
func TestRandomCommentEmpty(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter,
		r *http.Request) {

		json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{"replies": nil},
		})
	})

	comment, err := client.RandomComment(context.Background(), 170001)
	require.NoError(t, err)
	require.True(t, comment.IsNone())
}

// TestRandomComment checks that a sampled comment carries the author
// name and message.
func TestRandomComment(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter,
		r *http.Request) {

		require.Equal(t, "/x/v2/reply", r.URL.Path)

		json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{
				"replies": []map[string]any{
					{
						"member": map[string]any{
							"uname": "alice",
						},
						"content": map[string]any{
							"message": "great video",
						},
					},
				},
			},
		})
	})

	comment, err := client.RandomComment(context.Background(), 170001)
	require.NoError(t, err)
	require.Equal(t, "alice: great video", comment.UnwrapOr(""))
}

// TestFetchSubtitle checks protocol-relative URL handling and line
// flattening.
func TestFetchSubtitle(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"body": []map[string]any{
					{"content": "first line"},
					{"content": "second line"},
				},
			})
		},
	))
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{BaseURL: server.URL})

	text, err := client.FetchSubtitle(context.Background(), SubtitleTrack{
		URL: server.URL + "/sub.json",
	})
	require.NoError(t, err)
	require.Equal(t, "first line\nsecond line", text)
}

// TestAudioURL checks DASH audio stream selection.
func TestAudioURL(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter,
		r *http.Request) {

		require.Equal(t, "/x/player/playurl", r.URL.Path)
		require.Equal(t, "16", r.URL.Query().Get("fnval"))

		json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{
				"dash": map[string]any{
					"audio": []map[string]any{
						{"base_url": "https://cdn/audio.m4s"},
					},
				},
			},
		})
	})

	audioURL, err := client.AudioURL(context.Background(), &VideoInfo{
		Bvid: "BV1xx411c7mD",
		Cid:  279786,
	})
	require.NoError(t, err)
	require.Equal(t, "https://cdn/audio.m4s", audioURL)
}
