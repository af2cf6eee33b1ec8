package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vidsum/vidsumd/internal/feed"
)

// runCmd consumes mention events from stdin and emits answered events
// on stdout.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the summarization daemon",
	Long: `Run consumes newline-delimited mention events on stdin, processes
them through the summarization pipeline, and writes answered events as
newline-delimited JSON on stdout. The daemon stops when stdin reaches
EOF and all pending events have been answered, or on SIGINT/SIGTERM.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runDaemon()
	},
}

func runDaemon() error {
	cfg := buildConfig()

	d, err := newDaemon(cfg)
	if err != nil {
		return err
	}
	defer d.close()

	ctx, stop := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	log := d.logs.SubsystemSlog("MAIN")
	log.InfoContext(ctx, "vidsumd starting",
		"db", cfg.DBPath, "model", cfg.Model,
		"business_id", cfg.SupportedBusinessID)

	reader := feed.NewReader(
		os.Stdin, d.inbound, d.logs.SubsystemSlog("FEED"),
	)
	writer := feed.NewWriter(
		os.Stdout, d.outbound, d.logs.SubsystemSlog("FEED"),
	)

	// The reader is not waited on: a signal cannot unblock a stdin
	// read, so shutdown must not depend on it finishing. Its EOF path
	// closes the inbound queue, which drains the rest of the chain.
	readerErr := make(chan error, 1)
	go func() {
		readerErr <- reader.Run(ctx)
	}()

	var (
		wg   sync.WaitGroup
		errs [3]error
	)

	wg.Add(2)

	go func() {
		defer wg.Done()

		// Once the chain drains the closed inbound queue, nothing
		// will produce again, so release the writer too.
		errs[0] = d.chain.Run(ctx)
		d.outbound.Close()
	}()

	go func() {
		defer wg.Done()
		errs[1] = writer.Run(ctx)
	}()

	wg.Wait()

	// A signal can stop the writer with answered events still queued;
	// the outbound queue is closed by now, so flush what remains.
	errs[2] = writer.Flush()

	log.InfoContext(ctx, "vidsumd stopped")

	var failures []error
	select {
	case err := <-readerErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			failures = append(failures, err)
		}
	default:
	}

	for _, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			failures = append(failures, err)
		}
	}

	return errors.Join(failures...)
}
