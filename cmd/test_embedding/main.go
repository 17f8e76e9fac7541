package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/pagemind/pagemind/internal/embedcache"
	"github.com/pagemind/pagemind/internal/embedder"
	"github.com/pagemind/pagemind/internal/indexer"
	"github.com/pagemind/pagemind/internal/searcher"
	"github.com/pagemind/pagemind/internal/storage"
	"github.com/pagemind/pagemind/internal/vectorindex"
	"github.com/pagemind/pagemind/pkg/types"
)

// Smoke test for the embedding pipeline: index a page, wait for
// enrichment, verify the stored embedding and run a search against it.
// Uses the local provider so no API key is needed.

func main() {
	fmt.Println("Testing embedding integration...")

	// Create in-memory storage
	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		log.Fatalf("Failed to create storage: %v", err)
	}
	defer store.Close()

	emb, err := embedder.New(embedder.Config{Provider: embedder.ProviderLocal})
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}

	index := vectorindex.New(emb.Dimension())
	idx := indexer.New(store, emb, index, &indexer.Config{Workers: 2})

	ctx := context.Background()
	page, err := idx.IndexPage(ctx, types.PageCreate{
		URL:     "https://example.com/go-concurrency",
		Title:   "Go Concurrency Patterns",
		Content: "Goroutines, channels and pipelines for concurrent programs.",
	})
	if err != nil {
		log.Fatalf("Failed to index page: %v", err)
	}
	idx.Wait()

	// Verify the embedding was stored
	vector, err := store.GetEmbedding(ctx, page.ID)
	if err != nil {
		log.Fatalf("Failed to read embedding: %v", err)
	}

	fmt.Printf("\nVerification:\n")
	fmt.Printf("  Page ID: %d\n", page.ID)
	fmt.Printf("  Embedding dimension: %d\n", len(vector))
	fmt.Printf("  Vectors in index: %d\n", index.Len())

	// Run a search through the full fusion path
	cacheFile := os.TempDir() + "/pagemind-smoke-cache.json"
	defer os.Remove(cacheFile)

	srch := searcher.NewSearcher(store, emb, embedcache.New(cacheFile, 0, 0), index)
	resp, err := srch.Search(ctx, searcher.SearchRequest{Query: "concurrency"})
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}

	fmt.Printf("\nSearch Results (%d):\n", resp.Total)
	for _, r := range resp.Results {
		fmt.Printf("  %d. %s (%.3f)\n", r.Rank, r.URL, r.RelevanceScore)
	}

	if len(vector) > 0 && resp.Total > 0 {
		fmt.Println("\n✓ SUCCESS: Embeddings were generated, stored and searchable!")
	} else {
		fmt.Println("\n✗ FAILURE: Pipeline incomplete!")
		os.Exit(1)
	}
}
