package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vidsum/vidsumd/internal/db"
	"github.com/vidsum/vidsumd/internal/event"
)

// Summarizer is the slice of the pipeline the control surface needs.
type Summarizer interface {
	SummarizeURL(ctx context.Context,
		rawURL string) (*event.AIResponse, error)
}

// Server exposes the daemon's operations as MCP tools so an operator
// can drive summarization and inspect the reply cache interactively.
type Server struct {
	server *mcp.Server

	summarizer Summarizer
	store      *db.Store
}

// NewServer creates an MCP server with all tools registered.
func NewServer(summarizer Summarizer, store *db.Store) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "vidsumd",
		Version: "0.1.0",
	}, nil)

	s := &Server{
		server:     mcpServer,
		summarizer: summarizer,
		store:      store,
	}

	s.registerTools()

	return s
}

// Run starts the MCP server on the given transport.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

// registerTools registers the summarization and cache tools.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "summarize_video",
		Description: "Summarize a video by URL, using the reply " +
			"cache when possible",
	}, s.handleSummarizeVideo)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "lookup_cached",
		Description: "Look up the cached reply payload for a " +
			"video id",
	}, s.handleLookupCached)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "prune_cache",
		Description: "Remove reply cache entries older than the " +
			"given number of hours",
	}, s.handlePruneCache)
}
