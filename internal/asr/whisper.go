package asr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vidsum/vidsumd/internal/media"
)

// Engine converts an audio file into text.
type Engine interface {
	// Transcribe runs speech recognition over the WAV file at
	// audioPath and returns the recognized text.
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// whisperBin is the transcriber binary looked up on PATH.
const whisperBin = "whisper"

// WhisperConfig packages the knobs of the local whisper engine.
type WhisperConfig struct {
	// Model selects the whisper model size, e.g. "medium".
	Model string

	// Device is the compute device, "cpu" or "cuda".
	Device string
}

// Whisper transcribes audio by shelling out to a local whisper
// installation.
type Whisper struct {
	cfg WhisperConfig

	runner media.Runner
}

// NewWhisper creates a Whisper engine backed by the given Runner.
func NewWhisper(cfg WhisperConfig, runner media.Runner) *Whisper {
	return &Whisper{
		cfg:    cfg,
		runner: runner,
	}
}

// Transcribe implements Engine. The transcript file whisper leaves next
// to the audio is consumed and removed.
func (w *Whisper) Transcribe(ctx context.Context,
	audioPath string) (string, error) {

	outDir := filepath.Dir(audioPath)

	base := strings.TrimSuffix(
		filepath.Base(audioPath), filepath.Ext(audioPath),
	)
	textPath := filepath.Join(outDir, base+".txt")

	// A failed run can still leave a partial transcript behind, so the
	// removal covers every exit from here on.
	defer os.Remove(textPath)

	_, err := w.runner.Run(ctx, whisperBin,
		audioPath,
		"--model", w.cfg.Model,
		"--device", w.cfg.Device,
		"--output_format", "txt",
		"--output_dir", outDir,
	)
	if err != nil {
		return "", fmt.Errorf("transcription of %s failed: %w",
			audioPath, err)
	}

	text, err := os.ReadFile(textPath)
	if err != nil {
		return "", fmt.Errorf("unable to read transcript %s: %w",
			textPath, err)
	}

	return strings.TrimSpace(string(text)), nil
}
