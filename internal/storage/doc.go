// Package storage provides persistent storage for tracked pages using
// SQLite.
//
// The package defines the Storage interface and its SQLite implementation.
// Pages are stored in a single table carrying content, the serialized
// embedding vector, and the visit metrics that drive ranking and eviction.
// An FTS5 virtual table mirrors the text columns for BM25 keyword search
// and is kept in sync by triggers.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage("pagemind.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	page := &types.Page{URL: "https://go.dev", Title: "The Go Programming Language"}
//	if err := store.UpsertPage(ctx, page); err != nil {
//	    log.Fatal(err)
//	}
//
// # Visit Tracking
//
// RecordVisit updates a page's usage metrics atomically: visit count,
// access frequency (visits per day), recency score, and the admission
// score used for ranking boosts. Each visit is also appended to a visit
// log for analytics:
//
//	page, err := store.RecordVisit(ctx, pageID)
//
// When any page's visit count crosses the halving threshold (one million
// by default), every counter in the store is halved and admission scores
// are recomputed, so relative ordering is preserved while absolute counts
// stay bounded.
//
// # Keyword Search
//
// SearchKeyword runs a sanitized FTS5 MATCH query ranked by BM25:
//
//	pages, err := store.SearchKeyword(ctx, "rust tutorial", 20)
//
// Queries are escaped before reaching FTS5 so user input cannot inject
// operators.
//
// # Build Modes
//
// Two SQLite drivers are supported via build tags. The default build uses
// modernc.org/sqlite (pure Go, no C compiler needed). Building with
// -tags cgo_sqlite switches to github.com/mattn/go-sqlite3 for better
// performance where CGO is available. BuildMode reports which driver is
// compiled in.
//
// # Migrations
//
// Schema changes are expressed as semver-ordered migrations applied at
// startup. ApplyMigrations is idempotent; RollbackMigration reverts the
// most recent version.
package storage
