package media

import (
	"context"
	"fmt"
)

const (
	// whisperSampleRate is the sample rate speech models expect.
	whisperSampleRate = "16000"

	// ffmpegBin is the converter binary looked up on PATH.
	ffmpegBin = "ffmpeg"
)

// Converter turns downloaded audio segments into mono 16 kHz WAV files
// suitable for speech recognition.
type Converter struct {
	runner Runner
}

// NewConverter creates a Converter backed by the given Runner.
func NewConverter(runner Runner) *Converter {
	return &Converter{runner: runner}
}

// ToWAV transcodes srcPath into a WAV file at destPath, overwriting any
// existing file there.
func (c *Converter) ToWAV(ctx context.Context, srcPath,
	destPath string) error {

	_, err := c.runner.Run(ctx, ffmpegBin,
		"-y",
		"-i", srcPath,
		"-ar", whisperSampleRate,
		"-ac", "1",
		"-f", "wav",
		destPath,
	)
	if err != nil {
		return fmt.Errorf("unable to transcode %s: %w", srcPath, err)
	}

	return nil
}
