// Package main prints a summary of the library database, the custom info
// store and the search index.
//
// Usage:
//
//	go run ./cmd/dbinspect --data-dir ~/Shelfsy
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/shelfsy/shelfsy-server/internal/config"
	"github.com/shelfsy/shelfsy-server/internal/custominfo"
	"github.com/shelfsy/shelfsy-server/internal/search"
	"github.com/shelfsy/shelfsy-server/internal/store/sqlite"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	quiet := slog.New(slog.DiscardHandler)
	ctx := context.Background()

	db, err := sqlite.Open(cfg.Storage.DatabasePath, quiet)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fmt.Println("=== Library Inspection ===")
	fmt.Println()

	stats, err := db.GetLibraryStats(ctx)
	if err != nil {
		log.Fatalf("Failed to read library stats: %v", err)
	}
	fmt.Printf("Database:       %s\n", cfg.Storage.DatabasePath)
	fmt.Printf("Manga:          %d (%d favorites)\n", stats.Manga, stats.Favorites)
	fmt.Printf("Chapters:       %d (%d read)\n", stats.Chapters, stats.ReadChapters)
	fmt.Printf("Categories:     %d\n", stats.Categories)
	fmt.Printf("Tracks:         %d\n", stats.Tracks)
	if !stats.Checkpoint.IsZero() {
		fmt.Printf("Checkpoint:     %s\n", stats.Checkpoint.Format("2006-01-02 15:04:05"))
	}

	info, err := custominfo.Open(cfg.Storage.CustomInfoDir, quiet)
	if err != nil {
		log.Fatalf("Failed to open custom info store: %v", err)
	}
	defer info.Close()

	all, err := info.All(ctx)
	if err != nil {
		log.Fatalf("Failed to read custom info: %v", err)
	}
	fmt.Printf("Custom info:    %d entries\n", len(all))

	index, err := search.NewSearchIndex(search.Options{DataPath: cfg.Storage.SearchIndexDir, Logger: quiet})
	if err != nil {
		log.Fatalf("Failed to open search index: %v", err)
	}
	defer index.Close()

	count, err := index.DocumentCount()
	if err != nil {
		log.Fatalf("Failed to count search documents: %v", err)
	}
	fmt.Printf("Search index:   %d documents\n", count)

	if uint64(stats.Manga) != count {
		fmt.Println()
		fmt.Println("Search index is out of date; POST /api/v1/admin/search/reindex to rebuild it.")
	}
}
