package commands

import (
	"context"
	"os/signal"
	"syscall"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/vidsum/vidsumd/internal/mcp"
)

// mcpCmd exposes the summarizer and reply cache as MCP tools over
// stdio.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the summarizer as MCP tools on stdio",
	Long: `Mcp runs an MCP server on stdio exposing summarize_video,
lookup_cached and prune_cache tools. Stdin/stdout carry the MCP
protocol, so the event queues are idle in this mode.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMCP()
	},
}

func runMCP() error {
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
	log.InfoContext(ctx, "vidsumd MCP server starting",
		"db", cfg.DBPath, "model", cfg.Model)

	server := mcp.NewServer(d.chain, d.store)

	return server.Run(ctx, &sdkmcp.StdioTransport{})
}
