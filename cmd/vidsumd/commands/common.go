package commands

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vidsum/vidsumd/internal/asr"
	"github.com/vidsum/vidsumd/internal/bili"
	"github.com/vidsum/vidsumd/internal/build"
	"github.com/vidsum/vidsumd/internal/cache"
	"github.com/vidsum/vidsumd/internal/config"
	"github.com/vidsum/vidsumd/internal/db"
	"github.com/vidsum/vidsumd/internal/event"
	"github.com/vidsum/vidsumd/internal/llm"
	"github.com/vidsum/vidsumd/internal/media"
	"github.com/vidsum/vidsumd/internal/pipeline"
	"github.com/vidsum/vidsumd/internal/queue"
	"github.com/vidsum/vidsumd/internal/transcript"
)

// memoryCacheTTL is how long finished replies stay in the in-memory
// front cache. The SQLite store behind it keeps them indefinitely.
const memoryCacheTTL = time.Hour

// daemon bundles the wired components shared by the run, mcp and
// summarize commands.
type daemon struct {
	cfg config.Config

	logs  *build.LogManager
	sqlDB *sql.DB
	store *db.Store
	chain *pipeline.Chain

	inbound  *queue.Queue[event.Mention]
	outbound *queue.Queue[event.Mention]
}

// newDaemon builds every component from the config. Callers must invoke
// close when done.
func newDaemon(cfg config.Config) (*daemon, error) {
	logs, err := build.NewLogManager(&build.LogConfig{
		LogDir:     cfg.LogDir,
		DebugLevel: cfg.DebugLevel,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.OpenSQLite(cfg.DBPath, logs.SubsystemSlog("SQLT"))
	if err != nil {
		logs.Close()
		return nil, err
	}

	store := db.NewStore(sqlDB)
	replies := cache.NewLayered(cache.NewMemory(memoryCacheTTL), store)

	biliClient := bili.NewClient(bili.ClientConfig{
		Cookie: cfg.Cookie,
		Logger: logs.SubsystemSlog("BILI"),
	})

	runner := media.ExecRunner{}
	converter := media.NewConverter(runner)

	completions := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.APIBase,
	})

	var engine asr.Engine = asr.NewWhisper(asr.WhisperConfig{
		Model:  cfg.WhisperModel,
		Device: cfg.WhisperDevice,
	}, runner)

	if cfg.WhisperAfterProcess {
		engine = asr.NewRefinedEngine(engine,
			func(ctx context.Context, text string) (string,
				error) {

				refined, _, err := completions.Completion(
					ctx, llm.BuildRefineMessages(text),
					cfg.Model,
				)
				return refined, err
			},
		)
	}

	acquirer := transcript.NewAcquirer(
		biliClient, converter, engine, cfg.TempDir,
		logs.SubsystemSlog("TSCR"),
	)

	inbound := queue.New[event.Mention](cfg.QueueCapacity)
	outbound := queue.New[event.Mention](cfg.QueueCapacity)

	chain := pipeline.NewChain(
		pipeline.ChainConfig{
			Model:               cfg.Model,
			SupportedBusinessID: cfg.SupportedBusinessID,
		},
		biliClient, acquirer, completions, replies,
		inbound, outbound, logs.SubsystemSlog("PIPE"),
	)

	return &daemon{
		cfg:      cfg,
		logs:     logs,
		sqlDB:    sqlDB,
		store:    store,
		chain:    chain,
		inbound:  inbound,
		outbound: outbound,
	}, nil
}

// close releases the daemon's resources.
func (d *daemon) close() error {
	return errors.Join(d.sqlDB.Close(), d.logs.Close())
}
