package mcp

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/pagemind/pagemind/internal/embedcache"
	"github.com/pagemind/pagemind/internal/embedder"
	"github.com/pagemind/pagemind/internal/indexer"
	"github.com/pagemind/pagemind/internal/searcher"
	"github.com/pagemind/pagemind/internal/storage"
	"github.com/pagemind/pagemind/internal/vectorindex"
)

const (
	// ServerName is the MCP server name
	ServerName = "pagemind"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// DefaultDataPath is the default location for the database and caches
	DefaultDataPath = "~/.pagemind"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	storage  storage.Storage
	embedder embedder.Embedder
	queries  *embedcache.Cache
	index    *vectorindex.Index
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
}

// NewServer creates a new MCP server instance rooted at dataPath. The
// directory holds the SQLite database and the embedding-cache snapshot.
func NewServer(dataPath string) (*Server, error) {
	// Expand home directory if needed
	if dataPath == "" || dataPath == DefaultDataPath {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dataPath = filepath.Join(home, ".pagemind")
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// Initialize storage
	store, err := storage.NewSQLiteStorage(filepath.Join(dataPath, "pagemind.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Create embedder (shared between indexer and searcher)
	emb, err := embedder.NewFromEnv()
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	// Query-embedding cache, persisted alongside the database
	queries := embedcache.New(filepath.Join(dataPath, "query_cache.json"), 0, 0)

	// In-memory vector index sized to the active provider
	index := vectorindex.New(emb.Dimension())

	idx := indexer.New(store, emb, index, nil)
	srch := searcher.NewSearcher(store, emb, queries, index)

	// Create MCP server
	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:      mcpServer,
		storage:  store,
		embedder: emb,
		queries:  queries,
		index:    index,
		indexer:  idx,
		searcher: srch,
	}

	s.registerTools()

	return s, nil
}

// Warm restores persisted state: the embedding-cache snapshot and the
// stored page vectors. Failures are logged and non-fatal so a corrupt
// cache file never prevents startup.
func (s *Server) Warm(ctx context.Context) {
	if n, err := s.queries.Load(); err != nil {
		log.Printf("mcp: embedding cache load failed: %v", err)
	} else if n > 0 {
		log.Printf("mcp: restored %d cached query embeddings", n)
	}

	if n, err := s.indexer.LoadVectors(ctx); err != nil {
		log.Printf("mcp: vector reload failed: %v", err)
	} else {
		log.Printf("mcp: loaded %d page vectors", n)
	}
}

// Serve starts the MCP server on stdio and blocks until the client
// disconnects.
func (s *Server) Serve(ctx context.Context) error {
	return server.ServeStdio(s.mcp)
}

// Shutdown drains in-flight enrichment work, persists the embedding cache
// and closes storage.
func (s *Server) Shutdown() error {
	s.indexer.Wait()

	if err := s.queries.ForceSave(); err != nil {
		log.Printf("mcp: embedding cache save failed: %v", err)
	}

	if err := s.embedder.Close(); err != nil {
		log.Printf("mcp: embedder close failed: %v", err)
	}

	return s.storage.Close()
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchPagesTool(), s.handleSearchPages)
	s.mcp.AddTool(indexPageTool(), s.handleIndexPage)
	s.mcp.AddTool(trackVisitTool(), s.handleTrackVisit)
	s.mcp.AddTool(evictionPreviewTool(), s.handleEvictionPreview)
	s.mcp.AddTool(runEvictionTool(), s.handleRunEviction)
	s.mcp.AddTool(cacheStatsTool(), s.handleCacheStats)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
