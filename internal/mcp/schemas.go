package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchPagesTool returns the tool definition for search_pages
func searchPagesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_pages",
		Description: "Search remembered pages with natural language or keyword queries",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-10)",
					"default":     10,
					"minimum":     1,
					"maximum":     10,
				},
				"use_cache": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, identical recent queries are served from the response cache",
					"default":     true,
				},
			},
			Required: []string{"query"},
		},
	}
}

// indexPageTool returns the tool definition for index_page
func indexPageTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_page",
		Description: "Store a web page and make it searchable (embedding is generated asynchronously)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"url": map[string]interface{}{
					"type":        "string",
					"description": "Page URL (http or https)",
				},
				"title": map[string]interface{}{
					"type":        "string",
					"description": "Page title",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Extracted page text used for keyword and semantic search",
				},
				"favicon_url": map[string]interface{}{
					"type":        "string",
					"description": "Optional favicon URL for display",
				},
			},
			Required: []string{"url", "title"},
		},
	}
}

// trackVisitTool returns the tool definition for track_visit
func trackVisitTool() mcp.Tool {
	return mcp.Tool{
		Name:        "track_visit",
		Description: "Record a visit to a URL, updating its usage metrics (creates the page if unknown)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"url": map[string]interface{}{
					"type":        "string",
					"description": "Visited page URL",
				},
			},
			Required: []string{"url"},
		},
	}
}

// evictionPreviewTool returns the tool definition for eviction_preview
func evictionPreviewTool() mcp.Tool {
	return mcp.Tool{
		Name:        "eviction_preview",
		Description: "Show which pages an eviction run would remove, with per-page score explanations",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"count": map[string]interface{}{
					"type":        "integer",
					"description": "Number of candidates to preview (1-500)",
					"default":     50,
					"minimum":     1,
					"maximum":     500,
				},
			},
		},
	}
}

// runEvictionTool returns the tool definition for run_eviction
func runEvictionTool() mcp.Tool {
	return mcp.Tool{
		Name:        "run_eviction",
		Description: "Evict the lowest-value pages from storage and the vector index",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"count": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of pages to evict (1-500)",
					"default":     50,
					"minimum":     1,
					"maximum":     500,
				},
			},
		},
	}
}

// cacheStatsTool returns the tool definition for cache_stats
func cacheStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "cache_stats",
		Description: "Report embedding-cache, admission-cache, vector-index and response-cache statistics",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"top_queries": map[string]interface{}{
					"type":        "integer",
					"description": "Number of most-accessed cached queries to include (0 to omit)",
					"default":     10,
					"minimum":     0,
					"maximum":     100,
				},
			},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query storage statistics and service health",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
