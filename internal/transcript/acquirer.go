package transcript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vidsum/vidsumd/internal/asr"
	"github.com/vidsum/vidsumd/internal/bili"
)

var (
	// ErrNoTranscript is returned when the audio path yields no usable
	// text.
	ErrNoTranscript = errors.New("no transcript available")

	// ErrSubtitleUnavailable is returned when a video advertises
	// subtitle tracks but none can be fetched. The event is skipped
	// rather than degraded to speech recognition: an advertised track
	// that fails usually means a transient platform problem, and the
	// mention can be retried later.
	ErrSubtitleUnavailable = errors.New("subtitle track unavailable")
)

// VideoSource is the slice of the platform client the acquirer needs.
type VideoSource interface {
	FetchSubtitle(ctx context.Context,
		track bili.SubtitleTrack) (string, error)

	AudioURL(ctx context.Context, info *bili.VideoInfo) (string, error)

	DownloadAudio(ctx context.Context, audioURL, destPath string) error
}

// Transcoder converts downloaded audio into speech-recognition input.
type Transcoder interface {
	ToWAV(ctx context.Context, srcPath, destPath string) error
}

// Acquirer produces a transcript for a video, preferring the platform's
// own subtitles and falling back to downloading the audio and running
// speech recognition over it.
type Acquirer struct {
	src     VideoSource
	conv    Transcoder
	engine  asr.Engine
	tempDir string

	log *slog.Logger
}

// NewAcquirer creates an Acquirer. tempDir holds the intermediate audio
// files, which are always removed before Transcript returns.
func NewAcquirer(src VideoSource, conv Transcoder, engine asr.Engine,
	tempDir string, log *slog.Logger) *Acquirer {

	if log == nil {
		log = slog.Default()
	}

	return &Acquirer{
		src:     src,
		conv:    conv,
		engine:  engine,
		tempDir: tempDir,
		log:     log,
	}
}

// Transcript implements the subtitle-or-speech-recognition strategy.
func (a *Acquirer) Transcript(ctx context.Context,
	info *bili.VideoInfo) (string, error) {

	if len(info.Subtitles) > 0 {
		text, err := a.src.FetchSubtitle(ctx, info.Subtitles[0])
		if err != nil {
			a.log.WarnContext(ctx, "subtitle fetch failed",
				"bvid", info.Bvid, "error", err)

			return "", fmt.Errorf("%w: %s: %v",
				ErrSubtitleUnavailable, info.Bvid, err)
		}
		if strings.TrimSpace(text) == "" {
			return "", fmt.Errorf("%w: %s: empty track",
				ErrSubtitleUnavailable, info.Bvid)
		}

		return text, nil
	}

	return a.fromAudio(ctx, info)
}

// fromAudio downloads the audio stream, transcodes it to WAV and runs
// the speech engine. Both intermediate files are removed whether or not
// the attempt succeeds.
func (a *Acquirer) fromAudio(ctx context.Context,
	info *bili.VideoInfo) (string, error) {

	if err := os.MkdirAll(a.tempDir, 0o755); err != nil {
		return "", fmt.Errorf("unable to create temp dir: %w", err)
	}

	rawPath := filepath.Join(
		a.tempDir, fmt.Sprintf("%d-raw.m4s", info.Aid),
	)
	wavPath := filepath.Join(a.tempDir, fmt.Sprintf("%d.wav", info.Aid))

	defer func() {
		os.Remove(rawPath)
		os.Remove(wavPath)
	}()

	audioURL, err := a.src.AudioURL(ctx, info)
	if err != nil {
		return "", fmt.Errorf("unable to locate audio stream: %w",
			err)
	}

	if err := a.src.DownloadAudio(ctx, audioURL, rawPath); err != nil {
		return "", fmt.Errorf("unable to download audio: %w", err)
	}

	if err := a.conv.ToWAV(ctx, rawPath, wavPath); err != nil {
		return "", err
	}

	text, err := a.engine.Transcribe(ctx, wavPath)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s", ErrNoTranscript, info.Bvid)
	}

	return text, nil
}
