package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"marginalia/internal/config"
	"marginalia/internal/database"
	"marginalia/internal/entrypoint"
	"marginalia/internal/importer"
	"marginalia/internal/matching"
)

// ImportCommand parses an exported annotation file, matches it against
// the catalog and either previews or persists the result.
type ImportCommand struct {
	FilePath     string
	DatabasePath string
	Commit       bool
	Verbose      bool
}

func NewImportCommand() *ImportCommand {
	return &ImportCommand{}
}

func (cmd *ImportCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)

	fs.StringVar(&cmd.FilePath, "file", "", "Path to the exported annotation file (required)")
	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the local database file")
	fs.BoolVar(&cmd.Commit, "commit", false, "Persist the matched annotations instead of previewing them")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Print every annotation, not just the summary")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s import -file <path> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Parse an exported annotation file (Kindle 'My Clippings.txt', Tolino\n")
		fmt.Fprintf(os.Stderr, "notes.txt, Moon+ Reader backup) and match it against the catalog.\n\n")
		fmt.Fprintf(os.Stderr, "Without -commit nothing is written; the match result is printed so it\n")
		fmt.Fprintf(os.Stderr, "can be reviewed first.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s import -file \"/media/kindle/documents/My Clippings.txt\"\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s import -file notes.txt -commit\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.FilePath == "" {
		return fmt.Errorf("required flag -file not provided")
	}
	return nil
}

func (cmd *ImportCommand) Run() error {
	blob, err := os.ReadFile(cmd.FilePath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", cmd.FilePath, err)
	}

	cfg := config.NewConfig()
	cfg.Database.Path = cmd.DatabasePath

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	registry, failures := entrypoint.BuildRegistry(cfg)
	for _, f := range failures {
		if cmd.Verbose {
			fmt.Printf("backend '%s' unavailable: %v\n", f.Name, f.Err)
		}
	}
	p, _ := entrypoint.BuildPipeline(db, registry, cfg)

	hint := strings.TrimPrefix(filepath.Ext(cmd.FilePath), ".")
	s, err := p.ImportBlob(blob, hint)
	if err != nil {
		var unrecognized *importer.UnrecognizedFormatError
		if errors.As(err, &unrecognized) {
			return fmt.Errorf("no backend recognized the file:\n%s", unrecognized.Error())
		}
		return err
	}

	items := s.Items()
	for _, item := range items {
		result := item.Result
		fmt.Printf("%q by %s: %s (score %.2f, via %s)\n",
			result.Set.Book.Title,
			strings.Join(result.Set.Book.Authors, ", "),
			result.Tier, result.Score, result.Set.BackendID)
		if result.Tier != matching.TierExact {
			for _, c := range result.Candidates {
				fmt.Printf("  candidate #%d: %q by %s (score %.2f)\n",
					c.Entry.ID, c.Entry.Title, c.Entry.Authors, c.Score)
			}
		}
		if cmd.Verbose {
			for _, a := range result.Set.Annotations {
				fmt.Printf("  [%s] %s: %s\n", a.Kind, a.Location, a.Text)
			}
		}
	}

	if !cmd.Commit {
		_ = p.DiscardSession(s.ID)
		fmt.Println("\nPreview only; re-run with -commit to persist.")
		return nil
	}

	outcome, err := p.CommitSession(s.ID)
	if err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	fmt.Printf("\nPersisted %d new annotations (%d already present) across %d books.\n",
		outcome.Added, outcome.Skipped, outcome.Sets)
	return nil
}
