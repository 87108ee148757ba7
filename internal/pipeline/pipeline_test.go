package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marginalia/internal/backends"
	"marginalia/internal/catalog"
	"marginalia/internal/database"
	"marginalia/internal/entities"
	"marginalia/internal/matching"
	"marginalia/internal/store"
)

// stubExport parses any blob into a fixed annotation set.
type stubExport struct {
	id  string
	set *entities.AnnotationSet
	err error
}

func (s *stubExport) Descriptor() entities.BackendDescriptor {
	return entities.BackendDescriptor{
		ID:           s.id,
		Name:         s.id,
		Capabilities: []entities.Capability{entities.CapabilityExport},
	}
}

func (s *stubExport) Parse(blob []byte) (*entities.AnnotationSet, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.set, nil
}

// stubDevice serves fixed annotation sets for fixed books.
type stubDevice struct {
	id     string
	sets   []*entities.AnnotationSet
	failOn map[string]error
}

func (s *stubDevice) Descriptor() entities.BackendDescriptor {
	return entities.BackendDescriptor{
		ID:           s.id,
		Name:         s.id,
		Capabilities: []entities.Capability{entities.CapabilityFetch},
	}
}

func (s *stubDevice) ListInstalled(ctx context.Context) ([]entities.BookIdentity, error) {
	var books []entities.BookIdentity
	for _, set := range s.sets {
		books = append(books, set.Book)
	}
	return books, nil
}

func (s *stubDevice) ListActiveAnnotations(ctx context.Context, book entities.BookIdentity) (*entities.AnnotationSet, error) {
	if err, ok := s.failOn[book.Title]; ok {
		return nil, err
	}
	for _, set := range s.sets {
		if set.Book.Title == book.Title {
			return set, nil
		}
	}
	return nil, nil
}

func setFor(id, title, isbn string) *entities.AnnotationSet {
	return &entities.AnnotationSet{
		Book:      entities.BookIdentity{Title: title, ISBN: isbn},
		BackendID: id,
		Annotations: []entities.Annotation{
			{Location: "location 000001", Kind: entities.AnnotationKindHighlight, Text: "from " + title, BackendID: id},
		},
	}
}

func setupPipeline(t *testing.T, bs ...backends.Backend) (*Pipeline, *catalog.Library) {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	library := catalog.NewLibrary(db.DB)
	for _, entry := range []entities.CatalogEntry{
		{Title: "Dune", Authors: "Frank Herbert", ISBN: "9780441013593"},
		{Title: "Foundation", Authors: "Isaac Asimov"},
	} {
		e := entry
		require.NoError(t, library.Add(&e))
	}

	registry := backends.NewRegistry()
	for _, b := range bs {
		require.NoError(t, registry.Register(b))
	}

	engine := matching.NewEngine(library, matching.DefaultThresholds)
	st := store.New(db.DB, false)
	return New(registry, engine, st), library
}

func TestPipeline_ImportBlob(t *testing.T) {
	exporter := &stubExport{id: "kindle_clippings", set: setFor("kindle_clippings", "Dune", "9780441013593")}
	p, _ := setupPipeline(t, exporter)

	s, err := p.ImportBlob([]byte("payload"), "txt")
	require.NoError(t, err)

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, matching.TierExact, items[0].Result.Tier)
	assert.True(t, items[0].Enabled)

	// The session is live until committed or discarded.
	got, ok := p.Sessions().Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)

	outcome, err := p.CommitSession(s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Added)

	_, ok = p.Sessions().Get(s.ID)
	assert.False(t, ok, "commit releases the session")

	count, err := p.Store().Count(1, "kindle_clippings")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestPipeline_ImportBlob_ParserRefusal(t *testing.T) {
	exporter := &stubExport{id: "kindle_clippings", err: errors.New("not my format")}
	p, _ := setupPipeline(t, exporter)

	_, err := p.ImportBlob([]byte("payload"), "txt")
	assert.Error(t, err)
	assert.Empty(t, p.Registry().Query(entities.CapabilityFetch))
}

func TestPipeline_FetchFromSource(t *testing.T) {
	device := &stubDevice{
		id: "kobo",
		sets: []*entities.AnnotationSet{
			setFor("kobo", "Dune", "9780441013593"),
			setFor("kobo", "Broken", ""),
		},
		failOn: map[string]error{"Broken": errors.New("disk I/O error")},
	}
	p, _ := setupPipeline(t, device)

	s, err := p.FetchFromSource(context.Background(), "kobo")
	require.NoError(t, err)

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Dune", items[0].Result.Set.Book.Title)

	require.Len(t, s.Diagnostics, 1)
	assert.Contains(t, s.Diagnostics[0], "Broken")
}

func TestPipeline_FetchFromSource_Errors(t *testing.T) {
	exporter := &stubExport{id: "kindle_clippings", set: setFor("kindle_clippings", "Dune", "")}
	p, _ := setupPipeline(t, exporter)

	t.Run("unknown backend", func(t *testing.T) {
		_, err := p.FetchFromSource(context.Background(), "nope")
		assert.Error(t, err)
	})

	t.Run("export-only backend cannot fetch", func(t *testing.T) {
		_, err := p.FetchFromSource(context.Background(), "kindle_clippings")
		assert.ErrorIs(t, err, ErrNotFetchCapable)
	})
}

func TestPipeline_SyncSource(t *testing.T) {
	device := &stubDevice{
		id: "kobo",
		sets: []*entities.AnnotationSet{
			setFor("kobo", "Dune", "9780441013593"), // exact via isbn
			setFor("kobo", "Fundation", ""),         // typo: partial at best
		},
	}
	p, _ := setupPipeline(t, device)

	result, err := p.SyncSource(context.Background(), "kobo")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Added, "only the exact match is persisted unattended")

	count, err := p.Store().Count(1, "kobo")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	count, err = p.Store().Count(2, "kobo")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPipeline_DiscardSession(t *testing.T) {
	exporter := &stubExport{id: "kindle_clippings", set: setFor("kindle_clippings", "Dune", "9780441013593")}
	p, _ := setupPipeline(t, exporter)

	s, err := p.ImportBlob([]byte("payload"), "")
	require.NoError(t, err)

	require.NoError(t, p.DiscardSession(s.ID))

	_, ok := p.Sessions().Get(s.ID)
	assert.False(t, ok)

	count, err := p.Store().Count(1, "kindle_clippings")
	require.NoError(t, err)
	assert.Zero(t, count)

	assert.Error(t, p.DiscardSession(s.ID), "discard is not repeatable")
}
