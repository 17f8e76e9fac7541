package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pagemind/pagemind/internal/embedder"
	"github.com/pagemind/pagemind/internal/mcp"
	"github.com/pagemind/pagemind/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Handle version flag
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("PageMind MCP Server\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", storage.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
		fmt.Printf("Embedding Provider: %s\n", embedder.DetectProvider())
		os.Exit(0)
	}

	// Log startup info to stderr (stdout reserved for MCP protocol)
	log.SetOutput(os.Stderr)
	log.Printf("PageMind MCP Server v%s starting...", version)
	log.Printf("Build Mode: %s, Driver: %s, Provider: %s",
		storage.BuildMode, storage.DriverName, embedder.DetectProvider())

	// Get data path from environment or use default
	dataPath := os.Getenv("PAGEMIND_DATA_PATH")
	if dataPath == "" {
		dataPath = mcp.DefaultDataPath
	}

	// Create MCP server
	server, err := mcp.NewServer(dataPath)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Restore the embedding-cache snapshot and reload stored vectors
	server.Warm(ctx)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in a goroutine
	errChan := make(chan error, 1)
	go func() {
		log.Println("MCP server ready, listening on stdio...")
		errChan <- server.Serve(ctx)
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigChan:
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	case err := <-errChan:
		if err != nil {
			log.Printf("Server error: %v", err)
		}
	}

	if err := server.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
