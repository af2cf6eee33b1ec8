package config

import (
	"os"
	"path/filepath"
)

const (
	// DefaultModel is the generative-text model used for both the
	// summarization call and the repair call.
	DefaultModel = "gpt-4o-mini"

	// DefaultWhisperModel is the speech-to-text model size used when no
	// subtitle track exists.
	DefaultWhisperModel = "medium"

	// DefaultWhisperDevice is the compute device for transcription.
	DefaultWhisperDevice = "cpu"

	// DefaultQueueCapacity is the buffer capacity of the inbound and
	// outbound queues.
	DefaultQueueCapacity = 64

	// DefaultSupportedBusinessID is the mention business category the
	// pipeline handles. Mentions of any other category are skipped.
	DefaultSupportedBusinessID = 1
)

// Config holds all daemon configuration. It is built once at startup from
// CLI flags and passed into constructors; nothing reads configuration ad
// hoc at use sites.
type Config struct {
	// DBPath is the path to the SQLite database backing the reply cache.
	DBPath string

	// TempDir is the scratch directory for downloaded and transcoded
	// audio. Created on first use if absent.
	TempDir string

	// Model is the generative-text model identifier.
	Model string

	// APIKey authenticates against the generative-text backend.
	APIKey string

	// APIBase is the OpenAI-compatible endpoint base URL.
	APIBase string

	// Cookie is an optional platform session cookie. Anonymous access
	// works but some endpoints return degraded data.
	Cookie string

	// WhisperModel is the speech-to-text model size.
	WhisperModel string

	// WhisperDevice is the compute device for transcription.
	WhisperDevice string

	// WhisperAfterProcess enables an LLM cleanup pass over raw
	// transcription output.
	WhisperAfterProcess bool

	// SupportedBusinessID is the mention business category this pipeline
	// handles.
	SupportedBusinessID int

	// QueueCapacity is the buffer capacity of both queues.
	QueueCapacity int

	// LogDir is the directory for the rotating log file. Empty disables
	// file logging.
	LogDir string

	// DebugLevel is the log level for all subsystems (trace, debug,
	// info, warn, error).
	DebugLevel string
}

// DefaultConfig returns a Config with sensible defaults. The temp
// directory defaults to a "temp" subdirectory of the working directory,
// and the database lives under ~/.vidsum.
func DefaultConfig() Config {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}

	return Config{
		DBPath:              DefaultDBPath(),
		TempDir:             filepath.Join(wd, "temp"),
		Model:               DefaultModel,
		APIBase:             "https://api.openai.com/v1",
		WhisperModel:        DefaultWhisperModel,
		WhisperDevice:       DefaultWhisperDevice,
		WhisperAfterProcess: false,
		SupportedBusinessID: DefaultSupportedBusinessID,
		QueueCapacity:       DefaultQueueCapacity,
		DebugLevel:          "info",
	}
}

// DefaultDBPath returns the default path for the vidsum database.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "vidsum.db"
	}

	return filepath.Join(home, ".vidsum", "vidsum.db")
}
