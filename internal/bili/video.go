package bili

import (
	"errors"
	"regexp"
)

var (
	// ErrNotVideo is returned by Resolve when the URL does not reference
	// a video resource.
	ErrNotVideo = errors.New("resource is not a video")

	// ErrAPIFailure is returned when the platform API answers with a
	// non-zero status code.
	ErrAPIFailure = errors.New("platform api failure")
)

// bvidPattern matches the display id embedded in a video URL.
var bvidPattern = regexp.MustCompile(`(BV[0-9A-Za-z]{10})`)

// SubtitleTrack describes one closed-caption track attached to a video.
type SubtitleTrack struct {
	// Lan is the language code of the track.
	Lan string `json:"lan"`

	// LanDoc is the human-readable language name.
	LanDoc string `json:"lan_doc"`

	// URL is where the track content can be fetched. The platform may
	// return it protocol-relative.
	URL string `json:"subtitle_url"`
}

// VideoInfo is the resolved metadata for a single video. It is immutable
// once fetched within one pipeline run.
type VideoInfo struct {
	// Bvid is the human-facing display id, used as the cache key.
	Bvid string `json:"bvid"`

	// Aid is the platform's internal numeric id, used for temp-file
	// namespacing and comment lookup.
	Aid int64 `json:"aid"`

	// Cid is the content id of the first page, required by the play-url
	// endpoint.
	Cid int64 `json:"cid"`

	// Title is the video title.
	Title string `json:"title"`

	// Desc is the uploader's description.
	Desc string `json:"desc"`

	// Pages is the number of segments the video is split into. Anything
	// above 1 is unsupported by the pipeline.
	Pages int `json:"pages"`

	// Subtitles lists the available closed-caption tracks, possibly
	// empty.
	Subtitles []SubtitleTrack `json:"subtitles"`
}

// ParseBvid extracts the display id from a video URL. It returns false
// when the URL does not reference a video.
func ParseBvid(url string) (string, bool) {
	match := bvidPattern.FindString(url)
	if match == "" {
		return "", false
	}

	return match, true
}
