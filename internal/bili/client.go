package bili

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// DefaultBaseURL is the root of the platform's public REST API.
	DefaultBaseURL = "https://api.bilibili.com"

	// refererURL is sent with every request. The CDN rejects audio
	// fetches without it.
	refererURL = "https://www.bilibili.com"

	// userAgent mimics a desktop browser, which the API expects.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/124.0.0.0 Safari/537.36"

	// defaultRetryMax bounds the automatic retries on transient HTTP
	// failures.
	defaultRetryMax = 3
)

// ClientConfig packages the knobs for the platform client.
type ClientConfig struct {
	// BaseURL overrides the API root, mainly for tests.
	BaseURL string

	// Cookie is an optional session cookie. Some endpoints return
	// degraded data for anonymous callers.
	Cookie string

	// Logger is where request failures are recorded.
	Logger *slog.Logger
}

// Client talks to the video platform's REST API. All methods are safe
// for concurrent use.
type Client struct {
	cfg ClientConfig

	http *http.Client

	log *slog.Logger
}

// NewClient creates a platform client with retrying transport.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = defaultRetryMax
	retryClient.Logger = nil

	return &Client{
		cfg:  cfg,
		http: retryClient.StandardClient(),
		log:  cfg.Logger,
	}
}

// apiEnvelope is the outer JSON shape every platform endpoint shares.
type apiEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// get performs a GET against path (relative to the base URL) and decodes
// the envelope's data field into out.
func (c *Client) get(ctx context.Context, path string,
	query url.Values, out any) error {

	reqURL := c.cfg.BaseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("unable to build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s: unexpected status %d",
			path, resp.StatusCode)
	}

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("unable to decode %s response: %w",
			path, err)
	}

	if env.Code != 0 {
		return fmt.Errorf("%w: %s: code=%d msg=%s", ErrAPIFailure,
			path, env.Code, env.Message)
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("unable to decode %s data: %w",
				path, err)
		}
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", refererURL)
	if c.cfg.Cookie != "" {
		req.Header.Set("Cookie", c.cfg.Cookie)
	}
}

// viewData mirrors the fields we need from the view endpoint.
type viewData struct {
	Bvid  string `json:"bvid"`
	Aid   int64  `json:"aid"`
	Cid   int64  `json:"cid"`
	Title string `json:"title"`
	Desc  string `json:"desc"`

	Pages []struct {
		Cid int64 `json:"cid"`
	} `json:"pages"`

	Subtitle struct {
		List []SubtitleTrack `json:"list"`
	} `json:"subtitle"`
}

// Resolve maps a raw URL to the video's metadata. It returns ErrNotVideo
// when the URL carries no video id.
func (c *Client) Resolve(ctx context.Context, rawURL string) (*VideoInfo,
	error) {

	bvid, ok := ParseBvid(rawURL)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotVideo, rawURL)
	}

	var data viewData
	query := url.Values{"bvid": {bvid}}
	if err := c.get(ctx, "/x/web-interface/view", query, &data); err != nil {
		return nil, err
	}

	info := &VideoInfo{
		Bvid:      data.Bvid,
		Aid:       data.Aid,
		Cid:       data.Cid,
		Title:     data.Title,
		Desc:      data.Desc,
		Pages:     len(data.Pages),
		Subtitles: data.Subtitle.List,
	}
	if info.Cid == 0 && len(data.Pages) > 0 {
		info.Cid = data.Pages[0].Cid
	}

	c.log.DebugContext(ctx, "resolved video",
		"bvid", info.Bvid, "aid", info.Aid,
		"pages", info.Pages, "subtitles", len(info.Subtitles))

	return info, nil
}

// Tags fetches the tag names attached to a video. A failure here is not
// fatal to summarization, so callers may treat an error as no tags.
func (c *Client) Tags(ctx context.Context, bvid string) ([]string, error) {
	var data []struct {
		TagName string `json:"tag_name"`
	}

	query := url.Values{"bvid": {bvid}}
	if err := c.get(ctx, "/x/tag/archive/tags", query, &data); err != nil {
		return nil, err
	}

	tags := make([]string, 0, len(data))
	for _, tag := range data {
		tags = append(tags, tag.TagName)
	}

	return tags, nil
}

// RandomComment samples one top-level comment for a video, returning
// None when the comment section is empty or unavailable.
func (c *Client) RandomComment(ctx context.Context,
	aid int64) (fn.Option[string], error) {

	var data struct {
		Replies []struct {
			Member struct {
				Uname string `json:"uname"`
			} `json:"member"`
			Content struct {
				Message string `json:"message"`
			} `json:"content"`
		} `json:"replies"`
	}

	query := url.Values{
		"type": {"1"},
		"oid":  {fmt.Sprintf("%d", aid)},
		"sort": {"1"},
	}
	err := c.get(ctx, "/x/v2/reply", query, &data)
	if err != nil {
		return fn.None[string](), err
	}

	if len(data.Replies) == 0 {
		return fn.None[string](), nil
	}

	pick := data.Replies[rand.IntN(len(data.Replies))]
	comment := fmt.Sprintf("%s: %s", pick.Member.Uname,
		pick.Content.Message)

	return fn.Some(comment), nil
}

// AudioURL finds the URL of the video's audio-only DASH stream.
func (c *Client) AudioURL(ctx context.Context, info *VideoInfo) (string,
	error) {

	var data struct {
		Dash struct {
			Audio []struct {
				BaseURL string `json:"base_url"`
			} `json:"audio"`
		} `json:"dash"`
	}

	query := url.Values{
		"bvid":  {info.Bvid},
		"cid":   {fmt.Sprintf("%d", info.Cid)},
		"fnval": {"16"},
	}
	if err := c.get(ctx, "/x/player/playurl", query, &data); err != nil {
		return "", err
	}

	if len(data.Dash.Audio) == 0 {
		return "", fmt.Errorf("video %s has no audio stream",
			info.Bvid)
	}

	return data.Dash.Audio[0].BaseURL, nil
}

// DownloadAudio streams the audio at audioURL into destPath, creating or
// truncating the file.
func (c *Client) DownloadAudio(ctx context.Context, audioURL,
	destPath string) error {

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		audioURL, nil)
	if err != nil {
		return fmt.Errorf("unable to build download request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("audio download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("audio download: unexpected status %d",
			resp.StatusCode)
	}

	file, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("unable to create %s: %w", destPath, err)
	}

	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		return fmt.Errorf("unable to write %s: %w", destPath, err)
	}

	return file.Close()
}

// FetchSubtitle downloads one subtitle track and flattens it into a
// newline-joined transcript.
func (c *Client) FetchSubtitle(ctx context.Context,
	track SubtitleTrack) (string, error) {

	subURL := track.URL
	if strings.HasPrefix(subURL, "//") {
		subURL = "https:" + subURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		subURL, nil)
	if err != nil {
		return "", fmt.Errorf("unable to build subtitle request: %w",
			err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("subtitle fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("subtitle fetch: unexpected status %d",
			resp.StatusCode)
	}

	var doc struct {
		Body []struct {
			Content string `json:"content"`
		} `json:"body"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("unable to decode subtitle: %w", err)
	}

	lines := make([]string, 0, len(doc.Body))
	for _, line := range doc.Body {
		lines = append(lines, line.Content)
	}

	return strings.Join(lines, "\n"), nil
}
