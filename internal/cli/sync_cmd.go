package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"marginalia/internal/config"
	"marginalia/internal/database"
	"marginalia/internal/entrypoint"
)

// SyncCommand runs one unattended fetch-and-persist pass against an
// attached source. Only unambiguous matches are written.
type SyncCommand struct {
	Source       string
	DatabasePath string
	Timeout      time.Duration
}

func NewSyncCommand() *SyncCommand {
	return &SyncCommand{}
}

func (cmd *SyncCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)

	fs.StringVar(&cmd.Source, "source", "kobo", "Backend id of the attached source to read")
	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the local database file")
	fs.DurationVar(&cmd.Timeout, "timeout", 10*time.Minute, "Abort the fetch after this long")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s sync [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Read annotations from an attached device and persist every book that\n")
		fmt.Fprintf(os.Stderr, "matches the catalog exactly. Books needing confirmation are skipped;\n")
		fmt.Fprintf(os.Stderr, "review those over the HTTP API instead.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	return fs.Parse(args)
}

func (cmd *SyncCommand) Run() error {
	cfg := config.NewConfig()
	cfg.Database.Path = cmd.DatabasePath

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	registry, failures := entrypoint.BuildRegistry(cfg)
	for _, f := range failures {
		if f.Name == cmd.Source {
			return fmt.Errorf("source '%s' unavailable: %w", f.Name, f.Err)
		}
	}
	p, _ := entrypoint.BuildPipeline(db, registry, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), cmd.Timeout)
	defer cancel()

	result, err := p.SyncSource(ctx, cmd.Source)
	if err != nil {
		return fmt.Errorf("sync from '%s' failed: %w", cmd.Source, err)
	}

	fmt.Printf("Persisted %d new annotations (%d already present).\n", result.Added, result.Skipped)
	return nil
}
