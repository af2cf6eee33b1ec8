package build

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
)

// LogConfig describes where the daemon logs and at what verbosity.
type LogConfig struct {
	// LogDir is the directory for the rotating log file. Empty disables
	// the file stream; records then go to the console only.
	LogDir string

	// DebugLevel is the level applied to all subsystems (trace, debug,
	// info, warn, error, critical).
	DebugLevel string

	// Rotator overrides rotation settings. Nil uses defaults.
	Rotator *LogRotatorConfig
}

// LogManager owns the root handler set and hands out subsystem loggers.
// All subsystem loggers share the same console/file fan-out.
type LogManager struct {
	root    *HandlerSet
	rotator *RotatingLogWriter
}

// NewLogManager sets up logging per the given config: a console handler,
// plus a rotating file handler when a log directory is configured.
func NewLogManager(cfg *LogConfig) (*LogManager, error) {
	// Stdout carries the outbound event feed (or the MCP protocol), so
	// console logging goes to stderr.
	consoleHandler := btclogv2.NewDefaultHandler(os.Stderr)

	handlers := []btclogv2.Handler{consoleHandler}

	var logRotator *RotatingLogWriter
	if cfg.LogDir != "" {
		rotatorCfg := cfg.Rotator
		if rotatorCfg == nil {
			rotatorCfg = DefaultLogRotatorConfig()
		}
		rotatorCfg.LogDir = cfg.LogDir

		logRotator = NewRotatingLogWriter()
		if err := logRotator.InitLogRotator(rotatorCfg); err != nil {
			return nil, fmt.Errorf("init log rotator: %w", err)
		}

		fileHandler := btclogv2.NewDefaultHandler(logRotator)
		handlers = append(handlers, fileHandler)
	}

	root := NewHandlerSet(handlers...)

	level, ok := btclog.LevelFromString(cfg.DebugLevel)
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", cfg.DebugLevel)
	}
	root.SetLevel(level)

	return &LogManager{
		root:    root,
		rotator: logRotator,
	}, nil
}

// Subsystem returns a logger tagged with the given subsystem name, backed
// by the manager's handler set.
func (m *LogManager) Subsystem(tag string) btclogv2.Logger {
	return btclogv2.NewSLogger(m.root.SubSystem(tag))
}

// SubsystemSlog returns a tagged *slog.Logger for services that speak
// log/slog directly. It shares the same fan-out as Subsystem.
func (m *LogManager) SubsystemSlog(tag string) *slog.Logger {
	return slog.New(m.root.SubSystem(tag))
}

// Close flushes and stops the file rotator, if any.
func (m *LogManager) Close() error {
	if m.rotator != nil {
		return m.rotator.Close()
	}

	return nil
}
