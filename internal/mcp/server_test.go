package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagemind/pagemind/internal/embedder"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	t.Setenv(embedder.EnvProvider, embedder.ProviderLocal)

	server, err := NewServer(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Shutdown() })
	return server
}

func callArgs(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func TestServerInitialization(t *testing.T) {
	t.Run("custom path creates components", func(t *testing.T) {
		server := newTestServer(t)

		assert.NotNil(t, server.mcp, "MCP server should be initialized")
		assert.NotNil(t, server.storage, "storage should be initialized")
		assert.NotNil(t, server.indexer, "indexer should be initialized")
		assert.NotNil(t, server.searcher, "searcher should be initialized")
		assert.NotNil(t, server.queries, "embedding cache should be initialized")
		assert.NotNil(t, server.index, "vector index should be initialized")
	})

	t.Run("warm on empty database is a no-op", func(t *testing.T) {
		server := newTestServer(t)

		server.Warm(context.Background())
		assert.Equal(t, 0, server.index.Len())
	})

	t.Run("index dimension matches embedder", func(t *testing.T) {
		server := newTestServer(t)

		assert.Equal(t, server.embedder.Dimension(), server.index.Dimension())
	})
}

func TestIndexPageTool(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	result, err := server.handleIndexPage(ctx, callArgs(map[string]interface{}{
		"url":     "https://example.com/go",
		"title":   "The Go Programming Language",
		"content": "Go is an open source programming language.",
	}))
	require.NoError(t, err)
	require.NotNil(t, result)

	text := resultText(t, result)
	assert.Contains(t, text, `"page_id"`)
	assert.Contains(t, text, "https://example.com/go")

	// Enrichment runs in the background; after draining it the vector
	// index holds the page.
	server.indexer.Wait()
	assert.Equal(t, 1, server.index.Len())
}

func TestIndexPageToolRejectsBadInput(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	t.Run("missing url", func(t *testing.T) {
		_, err := server.handleIndexPage(ctx, callArgs(map[string]interface{}{
			"title": "No URL",
		}))
		assertMCPCode(t, err, ErrorCodeInvalidURL)
	})

	t.Run("non-http scheme", func(t *testing.T) {
		_, err := server.handleIndexPage(ctx, callArgs(map[string]interface{}{
			"url":   "ftp://example.com",
			"title": "Bad Scheme",
		}))
		assertMCPCode(t, err, ErrorCodeInvalidURL)
	})

	t.Run("missing title", func(t *testing.T) {
		_, err := server.handleIndexPage(ctx, callArgs(map[string]interface{}{
			"url": "https://example.com",
		}))
		assertMCPCode(t, err, ErrorCodeInvalidParams)
	})
}

func TestSearchPagesTool(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	_, err := server.handleIndexPage(ctx, callArgs(map[string]interface{}{
		"url":     "https://example.com/concurrency",
		"title":   "Concurrency Patterns",
		"content": "Goroutines and channels for concurrent pipelines.",
	}))
	require.NoError(t, err)
	server.indexer.Wait()

	result, err := server.handleSearchPages(ctx, callArgs(map[string]interface{}{
		"query": "concurrency",
	}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "https://example.com/concurrency")
	assert.Contains(t, text, `"total"`)
}

func TestSearchPagesToolRejectsEmptyQuery(t *testing.T) {
	server := newTestServer(t)

	_, err := server.handleSearchPages(context.Background(), callArgs(map[string]interface{}{
		"query": "",
	}))
	assertMCPCode(t, err, ErrorCodeEmptyQuery)
}

func TestSearchPagesToolRejectsBadLimit(t *testing.T) {
	server := newTestServer(t)

	_, err := server.handleSearchPages(context.Background(), callArgs(map[string]interface{}{
		"query": "anything",
		"limit": float64(50),
	}))
	assertMCPCode(t, err, ErrorCodeInvalidParams)
}

func TestTrackVisitTool(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	result, err := server.handleTrackVisit(ctx, callArgs(map[string]interface{}{
		"url": "https://example.com/daily",
	}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, `"visit_count": 1`)

	result, err = server.handleTrackVisit(ctx, callArgs(map[string]interface{}{
		"url": "https://example.com/daily",
	}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), `"visit_count": 2`)
}

func TestEvictionTools(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	t.Run("preview on empty store", func(t *testing.T) {
		result, err := server.handleEvictionPreview(ctx, callArgs(nil))
		require.NoError(t, err)
		assert.Contains(t, resultText(t, result), `"requested": 50`)
	})

	t.Run("run on empty store deletes nothing", func(t *testing.T) {
		result, err := server.handleRunEviction(ctx, callArgs(map[string]interface{}{
			"count": float64(10),
		}))
		require.NoError(t, err)
		assert.Contains(t, resultText(t, result), `"deleted": 0`)
	})

	t.Run("count out of range", func(t *testing.T) {
		_, err := server.handleRunEviction(ctx, callArgs(map[string]interface{}{
			"count": float64(1000),
		}))
		assertMCPCode(t, err, ErrorCodeInvalidParams)
	})
}

func TestCacheStatsTool(t *testing.T) {
	server := newTestServer(t)

	result, err := server.handleCacheStats(context.Background(), callArgs(nil))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, `"embedding_cache"`)
	assert.Contains(t, text, `"admission_cache"`)
	assert.Contains(t, text, `"vector_index"`)
	assert.Contains(t, text, `"response_cache"`)
}

func TestGetStatusTool(t *testing.T) {
	server := newTestServer(t)

	result, err := server.handleGetStatus(context.Background(), callArgs(nil))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, `"name": "pagemind"`)
	assert.Contains(t, text, `"driver"`)
	assert.Contains(t, text, `"provider"`)
}

// resultText extracts the text payload from a tool result.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)

	var parts []string
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	require.NotEmpty(t, parts, "expected text content in tool result")
	return strings.Join(parts, "\n")
}

// assertMCPCode requires err to be an MCPError with the given code.
func assertMCPCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, code, mcpErr.Code)
}
