package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/pagemind/pagemind/internal/searcher"
	"github.com/pagemind/pagemind/internal/storage"
	"github.com/pagemind/pagemind/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeInvalidURL    = -32001 // URL missing or not http(s)
	ErrorCodeEmptyQuery    = -32004 // Query parameter is empty
)

// handleSearchPages handles the search_pages tool invocation
func (s *Server) handleSearchPages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", searcher.MaxResults)
	if limit < 1 || limit > searcher.MaxResults {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("limit must be between 1 and %d", searcher.MaxResults), map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	useCache := getBoolDefault(args, "use_cache", true)

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		Query:    query,
		Limit:    limit,
		UseCache: useCache,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, map[string]interface{}{
			"rank":            r.Rank,
			"page_id":         r.PageID,
			"url":             r.URL,
			"title":           r.Title,
			"description":     r.Description,
			"favicon_url":     r.FaviconURL,
			"relevance_score": r.RelevanceScore,
			"scores":          r.Scores,
		})
	}

	response := map[string]interface{}{
		"query":       query,
		"results":     results,
		"total":       resp.Total,
		"fallback":    resp.Fallback,
		"cache_hit":   resp.CacheHit,
		"duration_ms": resp.Duration.Milliseconds(),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIndexPage handles the index_page tool invocation
func (s *Server) handleIndexPage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	url, ok := args["url"].(string)
	if !ok || url == "" {
		return nil, newMCPError(ErrorCodeInvalidURL, "url parameter is required", map[string]interface{}{
			"param":  "url",
			"reason": "missing or empty",
		})
	}

	title, ok := args["title"].(string)
	if !ok || title == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "title parameter is required", map[string]interface{}{
			"param":  "title",
			"reason": "missing or empty",
		})
	}

	create := types.PageCreate{
		URL:        url,
		Title:      title,
		Content:    getStringDefault(args, "content", ""),
		FaviconURL: getStringDefault(args, "favicon_url", ""),
	}

	page, err := s.indexer.IndexPage(ctx, create)
	if err != nil {
		if errors.Is(err, types.ErrEmptyURL) || errors.Is(err, types.ErrInvalidURL) {
			return nil, newMCPError(ErrorCodeInvalidURL, "invalid url", map[string]interface{}{
				"param":  "url",
				"reason": err.Error(),
			})
		}
		if errors.Is(err, types.ErrEmptyTitle) {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid title", map[string]interface{}{
				"param":  "title",
				"reason": err.Error(),
			})
		}
		return nil, newMCPError(ErrorCodeInternalError, "failed to index page", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Stored pages change search results; cached responses are stale.
	s.searcher.InvalidateCache()

	response := map[string]interface{}{
		"page_id":            page.ID,
		"url":                page.URL,
		"title":              page.Title,
		"enrichment_pending": !page.Indexed(),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleTrackVisit handles the track_visit tool invocation
func (s *Server) handleTrackVisit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	url, ok := args["url"].(string)
	if !ok || url == "" {
		return nil, newMCPError(ErrorCodeInvalidURL, "url parameter is required", map[string]interface{}{
			"param":  "url",
			"reason": "missing or empty",
		})
	}

	page, err := s.indexer.TrackVisit(ctx, url)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to track visit", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"page_id":         page.ID,
		"url":             page.URL,
		"visit_count":     page.VisitCount,
		"last_visited":    page.LastVisited.Format("2006-01-02T15:04:05Z07:00"),
		"admission_score": page.AdmissionScore,
		"recency_score":   page.RecencyScore,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleEvictionPreview handles the eviction_preview tool invocation
func (s *Server) handleEvictionPreview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	count, err := evictionCount(request)
	if err != nil {
		return nil, err
	}

	candidates, err := s.indexer.PreviewEviction(ctx, count)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to build eviction preview", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"requested":  count,
		"candidates": candidates,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRunEviction handles the run_eviction tool invocation
func (s *Server) handleRunEviction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	count, err := evictionCount(request)
	if err != nil {
		return nil, err
	}

	result, err := s.indexer.RunEviction(ctx, count)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "eviction failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if result.Deleted > 0 {
		s.searcher.InvalidateCache()
	}

	response := map[string]interface{}{
		"requested": result.Requested,
		"deleted":   result.Deleted,
		"page_ids":  result.PageIDs,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// evictionCount extracts and validates the count parameter shared by the
// eviction tools.
func evictionCount(request mcp.CallToolRequest) (int, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	count := getIntDefault(args, "count", 50)
	if count < 1 || count > 500 {
		return 0, newMCPError(ErrorCodeInvalidParams, "count must be between 1 and 500", map[string]interface{}{
			"param": "count",
			"value": count,
		})
	}
	return count, nil
}

// handleCacheStats handles the cache_stats tool invocation
func (s *Server) handleCacheStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	topQueries := getIntDefault(args, "top_queries", 10)
	if topQueries < 0 || topQueries > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "top_queries must be between 0 and 100", map[string]interface{}{
			"param": "top_queries",
			"value": topQueries,
		})
	}

	response := map[string]interface{}{
		"embedding_cache": s.queries.Stats(),
		"admission_cache": s.indexer.AdmissionStats(),
		"vector_index":    s.index.Stats(),
		"response_cache": map[string]interface{}{
			"size": s.searcher.CachedResponses(),
		},
	}
	if topQueries > 0 {
		response["top_queries"] = s.queries.TopQueries(topQueries)
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.storage.Stats(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read storage statistics", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"server": map[string]interface{}{
			"name":    ServerName,
			"version": ServerVersion,
		},
		"pages": map[string]interface{}{
			"total":          stats.TotalPages,
			"indexed":        stats.IndexedPages,
			"total_visits":   stats.TotalVisits,
			"halving_events": stats.HalvingEvents,
			"db_size_mb":     fmt.Sprintf("%.2f", stats.DBSizeMB),
		},
		"vector_index": s.index.Stats(),
		"embedder": map[string]interface{}{
			"provider":  s.embedder.Provider(),
			"model":     s.embedder.Model(),
			"dimension": s.embedder.Dimension(),
		},
		"storage": map[string]interface{}{
			"driver":     storage.DriverName,
			"build_mode": storage.BuildMode,
		},
	}

	if !stats.OldestVisit.IsZero() {
		response["pages"].(map[string]interface{})["oldest_visit"] = stats.OldestVisit.Format("2006-01-02T15:04:05Z07:00")
	}
	if !stats.NewestVisit.IsZero() {
		response["pages"].(map[string]interface{})["newest_visit"] = stats.NewestVisit.Format("2006-01-02T15:04:05Z07:00")
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
