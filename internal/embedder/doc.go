// Package embedder generates vector embeddings for page text using various providers.
//
// The embedder supports multiple embedding providers (Jina AI, OpenAI, local models)
// and provides batching, caching, rate limiting, and error handling for production use.
//
// # Basic Usage
//
//	// Create embedder (auto-detects provider from environment)
//	emb, err := embedder.NewFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	// Generate single embedding
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: page.Title + "\n" + page.Content,
//	})
//	fmt.Printf("Vector dimension: %d\n", len(result.Vector))
//
// # Batch Processing
//
// For efficiency, use batch processing when re-indexing many pages:
//
//	texts := make([]string, len(pages))
//	for i, p := range pages {
//	    texts[i] = p.Title + "\n" + p.Content
//	}
//
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
//	    Texts: texts,
//	})
//
//	for i, embedding := range resp.Embeddings {
//	    // Store embedding for page i
//	}
//
// Batching reduces API calls and improves throughput significantly.
//
// # Provider Selection
//
// The embedder selects a provider based on environment variables:
//
//  1. If PAGEMIND_EMBEDDING_PROVIDER is set → use specified provider
//  2. Else if JINA_API_KEY is set → use Jina AI
//  3. Else if OPENAI_API_KEY is set → use OpenAI
//  4. Else → fallback to local provider (offline mode)
//
// Provider configuration:
//
//	// Explicit provider selection
//	os.Setenv("PAGEMIND_EMBEDDING_PROVIDER", "jina")
//	os.Setenv("JINA_API_KEY", "your-api-key")
//
//	// Or use explicit configuration
//	emb, err := embedder.New(embedder.Config{
//	    Provider:  "jina",
//	    APIKey:    "your-api-key",
//	    CacheSize: 10000,
//	})
//
// # Rate Limiting
//
// HTTP providers throttle outbound requests with a token bucket so bulk
// re-indexing does not trip provider quotas. Waits respect the caller's
// context and abort on cancellation.
//
// # Caching
//
// The embedder includes an in-memory cache keyed by content hash:
//
//	cache := embedder.NewCache(10000) // cache 10k embeddings
//
//	hash := embedder.ComputeHash(text)
//	if emb, ok := cache.Get(hash); ok {
//	    return emb // cache hit
//	}
//
// # Error Handling
//
// The embedder handles transient failures with retry logic:
//
//	resp, err := emb.GenerateBatch(ctx, req)
//	if errors.Is(err, embedder.ErrProviderFailed) {
//	    // API temporarily unavailable, retry later
//	}
//
// For offline scenarios the local provider produces deterministic vectors,
// which keeps indexing and search functional without an API key.
package embedder
