package cli

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"marginalia/internal/catalog"
	"marginalia/internal/config"
	"marginalia/internal/database"
	"marginalia/internal/entities"
)

// CatalogAddCommand registers a book in the catalog so imported
// annotations have something to attach to.
type CatalogAddCommand struct {
	Title        string
	Authors      string
	ISBN         string
	ASIN         string
	UUID         string
	DatabasePath string
}

func NewCatalogAddCommand() *CatalogAddCommand {
	return &CatalogAddCommand{}
}

func (cmd *CatalogAddCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("catalog-add", flag.ExitOnError)

	fs.StringVar(&cmd.Title, "title", "", "Book title (required)")
	fs.StringVar(&cmd.Authors, "authors", "", "Comma-separated author list")
	fs.StringVar(&cmd.ISBN, "isbn", "", "ISBN, if known")
	fs.StringVar(&cmd.ASIN, "asin", "", "Amazon ASIN, if known")
	fs.StringVar(&cmd.UUID, "uuid", "", "Reader-assigned book UUID, if known")
	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the local database file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s catalog-add -title <title> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Add a book to the catalog. Strong identifiers (-isbn, -asin, -uuid)\n")
		fmt.Fprintf(os.Stderr, "make later imports match without confirmation.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExample:\n")
		fmt.Fprintf(os.Stderr, "  %s catalog-add -title \"Dune\" -authors \"Frank Herbert\" -isbn 9780441013593\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.Title == "" {
		return fmt.Errorf("required flag -title not provided")
	}
	return nil
}

func (cmd *CatalogAddCommand) Run() error {
	db, err := database.NewDatabase(cmd.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	var authors []string
	for _, a := range strings.Split(cmd.Authors, ",") {
		if a = strings.TrimSpace(a); a != "" {
			authors = append(authors, a)
		}
	}

	entry := entities.CatalogEntry{
		Title:   cmd.Title,
		Authors: entities.JoinAuthors(authors),
		ISBN:    cmd.ISBN,
		ASIN:    cmd.ASIN,
		UUID:    cmd.UUID,
	}

	library := catalog.NewLibrary(db.DB)
	if err := library.Add(&entry); err != nil {
		return fmt.Errorf("failed to add catalog entry: %w", err)
	}

	fmt.Printf("Added catalog entry #%d: %q\n", entry.ID, entry.Title)
	return nil
}
