// Package mcp implements the Model Context Protocol (MCP) server for PageMind.
//
// The MCP server exposes seven tools to AI assistants:
//   - search_pages: Search remembered pages with natural language queries
//   - index_page: Store a page and schedule background embedding generation
//   - track_visit: Record a visit and update usage metrics
//   - eviction_preview: Show which pages an eviction run would remove
//   - run_eviction: Evict the lowest-value pages
//   - cache_stats: Report cache and index statistics
//   - get_status: Check storage statistics and service health
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server communicates with MCP clients via standard input/output,
// making it simple to integrate with any MCP-compatible client.
//
// # Tool: search_pages
//
// Search remembered pages semantically or by keywords:
//
//	Request:
//	{
//	  "name": "search_pages",
//	  "arguments": {
//	    "query": "that article about sqlite performance",
//	    "limit": 10,
//	    "use_cache": true
//	  }
//	}
//
//	Response:
//	{
//	  "query": "that article about sqlite performance",
//	  "total": 3,
//	  "fallback": false,
//	  "results": [
//	    {
//	      "rank": 1,
//	      "url": "https://example.com/sqlite-tuning",
//	      "title": "SQLite Performance Tuning",
//	      "relevance_score": 0.92,
//	      "scores": {
//	        "vector_score": 0.95,
//	        "keyword_score": 0.85,
//	        "access_count": 12,
//	        "final_score": 0.92
//	      }
//	    }
//	  ]
//	}
//
// # Tool: index_page
//
// Store a page for later retrieval. The call returns as soon as the page
// is persisted; embedding generation runs in the background:
//
//	Request:
//	{
//	  "name": "index_page",
//	  "arguments": {
//	    "url": "https://example.com/sqlite-tuning",
//	    "title": "SQLite Performance Tuning",
//	    "content": "Full extracted page text..."
//	  }
//	}
//
//	Response:
//	{
//	  "page_id": 42,
//	  "url": "https://example.com/sqlite-tuning",
//	  "enrichment_pending": true
//	}
//
// # Tool: track_visit
//
// Record a visit; unknown URLs are created on the fly. Roughly one call
// in a hundred triggers a background eviction sweep:
//
//	Request:
//	{
//	  "name": "track_visit",
//	  "arguments": {"url": "https://example.com/sqlite-tuning"}
//	}
//
//	Response:
//	{
//	  "page_id": 42,
//	  "visit_count": 13,
//	  "admission_score": 0.71,
//	  "recency_score": 1.0
//	}
//
// # Eviction Tools
//
// eviction_preview ranks removal candidates without deleting anything;
// run_eviction deletes them. Both take an optional count (default 50).
// Preview responses include a human-readable reason per candidate.
//
// # MCP Client Configuration
//
// Configure in an MCP client's settings:
//
//	{
//	  "mcpServers": {
//	    "pagemind": {
//	      "command": "/usr/local/bin/pagemind",
//	      "env": {
//	        "JINA_API_KEY": "your-api-key"
//	      }
//	    }
//	  }
//	}
//
// # Error Handling
//
// The MCP server returns standard JSON-RPC error responses:
//
//	{
//	  "error": {
//	    "code": -32602,
//	    "message": "Invalid params",
//	    "data": {
//	      "param": "limit",
//	      "reason": "out of range"
//	    }
//	  }
//	}
//
// Error codes:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (database, embedding provider, etc.)
//   - -32001: URL missing or not http(s)
//   - -32004: Query parameter is empty
//
// Degraded search modes (embedding provider down, empty index) are not
// errors: search_pages falls back to keyword-only results or returns an
// empty result set.
//
// # Logging
//
// The MCP server logs to stderr (stdout is reserved for MCP protocol):
//
//	log.SetOutput(os.Stderr)
//	log.Printf("MCP server started")
package mcp
