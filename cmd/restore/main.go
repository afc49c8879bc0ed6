// Package main restores a backup file into the library without starting
// the server.
//
// Usage:
//
//	go run ./cmd/restore [server flags] path/to/backup.tachibk
//	go run ./cmd/restore --data-dir ~/Shelfsy --log-level debug library.shelfsy.zip
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shelfsy/shelfsy-server/internal/backup"
	backupimport "github.com/shelfsy/shelfsy-server/internal/backup/import"
	"github.com/shelfsy/shelfsy-server/internal/config"
	"github.com/shelfsy/shelfsy-server/internal/custominfo"
	"github.com/shelfsy/shelfsy-server/internal/logger"
	"github.com/shelfsy/shelfsy-server/internal/search"
	"github.com/shelfsy/shelfsy-server/internal/store/sqlite"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: restore [flags] <backup file>")
		os.Exit(2)
	}
	path := args[len(args)-1]

	cfg, err := config.Load(args[:len(args)-1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	level, err := logger.ParseLevel(cfg.Logger.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Level: level, Environment: cfg.App.Environment, Writer: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, path); err != nil {
		log.Fatal("Restore failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger, path string) error {
	db, err := sqlite.Open(cfg.Storage.DatabasePath, log.Component("store"))
	if err != nil {
		return err
	}
	defer db.Close()

	info, err := custominfo.Open(cfg.Storage.CustomInfoDir, log.Component("custominfo"))
	if err != nil {
		return err
	}
	defer info.Close()

	index, err := search.NewSearchIndex(search.Options{DataPath: cfg.Storage.SearchIndexDir, Logger: log.Component("search")})
	if err != nil {
		return err
	}
	defer index.Close()

	restoreLog := log.Component("restore")
	restorer := backupimport.New(db, info, index, backupimport.LogNotifier{Logger: restoreLog}, backupimport.Config{
		LogDir:        cfg.Storage.RestoreLogDir,
		FollowingDays: cfg.Restore.FollowingDays,
		LeadingDays:   cfg.Restore.LeadingDays,
		SourceRemap:   cfg.Restore.SourceRemap,
	}, restoreLog)
	svc := backup.NewRestoreService(restorer, nil, restoreLog)

	res, err := svc.Run(ctx, path, backup.RestoreOptions{})
	if err != nil {
		return err
	}

	fmt.Printf("State:    %s\n", res.State)
	fmt.Printf("Restored: %d manga\n", res.Restored)
	fmt.Printf("Errors:   %d\n", len(res.Errors))
	fmt.Printf("Elapsed:  %s\n", res.Elapsed)
	if res.LogFile != "" {
		fmt.Printf("Error log: %s\n", res.LogFile)
	}
	return nil
}
