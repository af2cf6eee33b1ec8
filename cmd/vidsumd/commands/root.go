package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/vidsum/vidsumd/internal/config"
)

var (
	// dbPath is the path to the SQLite database.
	dbPath string

	// tempDir is the scratch directory for audio files.
	tempDir string

	// model is the completion model identifier.
	model string

	// apiKey authenticates against the completion backend. Falls back
	// to $OPENAI_API_KEY.
	apiKey string

	// apiBase is the OpenAI-compatible endpoint base URL.
	apiBase string

	// cookie is an optional platform session cookie. Falls back to
	// $BILI_COOKIE.
	cookie string

	// whisperModel is the speech-to-text model size.
	whisperModel string

	// whisperDevice is the compute device for transcription.
	whisperDevice string

	// whisperRefine enables the LLM cleanup pass over raw
	// transcription output.
	whisperRefine bool

	// businessID is the mention business category to process.
	businessID int

	// queueCapacity is the buffer size of both event queues.
	queueCapacity int

	// logDir is the directory for the rotating log file.
	logDir string

	// debugLevel is the log level for all subsystems.
	debugLevel string
)

// rootCmd is the base command for the daemon.
var rootCmd = &cobra.Command{
	Use:   "vidsumd",
	Short: "Video mention summarizer daemon",
	Long: `vidsumd consumes mention events that reference videos, builds a
transcript from subtitles or speech recognition, asks a language model
for a summary, and emits answered events with a ready-to-post reply.

Finished replies are cached in SQLite so repeat mentions of the same
video are answered without re-summarizing.`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// buildConfig folds the global flags into a Config.
func buildConfig() config.Config {
	cfg := config.DefaultConfig()

	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if tempDir != "" {
		cfg.TempDir = tempDir
	}
	cfg.Model = model
	cfg.APIBase = apiBase
	cfg.WhisperModel = whisperModel
	cfg.WhisperDevice = whisperDevice
	cfg.WhisperAfterProcess = whisperRefine
	cfg.SupportedBusinessID = businessID
	cfg.QueueCapacity = queueCapacity
	cfg.LogDir = logDir
	cfg.DebugLevel = debugLevel

	cfg.APIKey = apiKey
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	cfg.Cookie = cookie
	if cfg.Cookie == "" {
		cfg.Cookie = os.Getenv("BILI_COOKIE")
	}

	return cfg
}

func init() {
	// Global flags.
	rootCmd.PersistentFlags().StringVar(
		&dbPath, "db", "",
		"Path to SQLite database (default: ~/.vidsum/vidsum.db)",
	)
	rootCmd.PersistentFlags().StringVar(
		&tempDir, "temp-dir", "",
		"Scratch directory for audio files (default: ./temp)",
	)
	rootCmd.PersistentFlags().StringVar(
		&model, "model", config.DefaultModel,
		"Completion model for summarization",
	)
	rootCmd.PersistentFlags().StringVar(
		&apiKey, "api-key", "",
		"Completion API key (default: $OPENAI_API_KEY)",
	)
	rootCmd.PersistentFlags().StringVar(
		&apiBase, "api-base", "https://api.openai.com/v1",
		"OpenAI-compatible API base URL",
	)
	rootCmd.PersistentFlags().StringVar(
		&cookie, "cookie", "",
		"Platform session cookie (default: $BILI_COOKIE)",
	)
	rootCmd.PersistentFlags().StringVar(
		&whisperModel, "whisper-model", config.DefaultWhisperModel,
		"Whisper model size for speech recognition",
	)
	rootCmd.PersistentFlags().StringVar(
		&whisperDevice, "whisper-device", config.DefaultWhisperDevice,
		"Whisper compute device (cpu, cuda)",
	)
	rootCmd.PersistentFlags().BoolVar(
		&whisperRefine, "whisper-refine", false,
		"Clean up raw transcripts with the completion model",
	)
	rootCmd.PersistentFlags().IntVar(
		&businessID, "business-id", config.DefaultSupportedBusinessID,
		"Mention business category to process",
	)
	rootCmd.PersistentFlags().IntVar(
		&queueCapacity, "queue-capacity", config.DefaultQueueCapacity,
		"Buffer capacity of the event queues",
	)
	rootCmd.PersistentFlags().StringVar(
		&logDir, "logdir", "",
		"Directory for the rotating log file (empty: console only)",
	)
	rootCmd.PersistentFlags().StringVar(
		&debugLevel, "debuglevel", "info",
		"Log level: trace, debug, info, warn, error, critical",
	)

	// Add subcommands.
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(versionCmd)
}
