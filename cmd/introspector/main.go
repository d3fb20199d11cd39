package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/liasis/introspector/internal/logging"
	"github.com/liasis/introspector/internal/mcp"
	"github.com/liasis/introspector/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Handle version flag
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("Introspector MCP Server\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", storage.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
		os.Exit(0)
	}

	// Log to stderr, stdout is reserved for the MCP protocol
	log := logging.Default("introspector")
	log.Info("starting", "version", version, "build_mode", storage.BuildMode, "driver", storage.DriverName)

	// Get database path from environment or use default
	dbPath := os.Getenv("INTROSPECTOR_DB_PATH")
	if dbPath == "" {
		dbPath = mcp.DefaultDBPath
	}

	// Create MCP server
	server, err := mcp.NewServer(dbPath, log)
	if err != nil {
		log.Error("failed to create MCP server", "error", err)
		os.Exit(1)
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optionally keep workspace indexes fresh while the server runs.
	// INTROSPECTOR_WATCH holds a path-list of workspace roots.
	if watch := os.Getenv("INTROSPECTOR_WATCH"); watch != "" {
		roots := filepath.SplitList(watch)
		if err := server.WatchWorkspaces(ctx, roots); err != nil {
			log.Error("failed to start workspace watcher", "error", err)
			os.Exit(1)
		}
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in a goroutine
	errChan := make(chan error, 1)
	go func() {
		log.Info("MCP server ready, listening on stdio")
		errChan <- server.Serve(ctx)
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigChan:
		log.Info("shutting down", "signal", sig.String())
		cancel()
	case err := <-errChan:
		if err != nil {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	log.Info("server stopped")
}
