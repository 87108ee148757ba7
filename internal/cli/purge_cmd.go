package cli

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"marginalia/internal/config"
	"marginalia/internal/database"
	"marginalia/internal/store"
)

// PurgeCommand deletes every stored annotation. It refuses to run
// unless developer mode is enabled and the user confirms.
type PurgeCommand struct {
	DatabasePath string
	Yes          bool
}

func NewPurgeCommand() *PurgeCommand {
	return &PurgeCommand{}
}

func (cmd *PurgeCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("purge", flag.ExitOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the local database file")
	fs.BoolVar(&cmd.Yes, "yes", false, "Skip the confirmation prompt")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s purge [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Delete ALL stored annotations. The catalog is left untouched.\n")
		fmt.Fprintf(os.Stderr, "Requires DEVELOPER_MODE=true.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	return fs.Parse(args)
}

func (cmd *PurgeCommand) Run() error {
	cfg := config.NewConfig()
	cfg.Database.Path = cmd.DatabasePath

	if !cfg.Developer.Mode {
		return store.ErrDeveloperModeDisabled
	}

	if !cmd.Yes {
		fmt.Printf("This deletes every stored annotation in %s. Continue? [y/N] ", cfg.Database.Path)
		reader := bufio.NewReader(os.Stdin)
		answer, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.New(db.DB, cfg.Developer.Mode).PurgeAll(); err != nil {
		return err
	}

	fmt.Println("All stored annotations deleted.")
	return nil
}
