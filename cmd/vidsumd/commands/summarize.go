package commands

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// summarizeCmd runs one video through the pipeline and prints the
// result.
var summarizeCmd = &cobra.Command{
	Use:   "summarize <url>",
	Short: "Summarize a single video and print the reply as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSummarize(args[0])
	},
}

func runSummarize(rawURL string) error {
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

	resp, err := d.chain.SummarizeURL(ctx, rawURL)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(resp)
}
