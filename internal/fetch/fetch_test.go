package fetch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marginalia/internal/entities"
)

// deviceFetcher simulates an attached reader with scripted per-book
// behavior.
type deviceFetcher struct {
	books    []entities.BookIdentity
	failOn   map[string]error
	emptyOn  map[string]bool
	listErr  error
	perBook  func(title string) // invoked before each book is read
	released chan struct{}      // closed when a book read starts, for busy tests
}

func (d *deviceFetcher) Descriptor() entities.BackendDescriptor {
	return entities.BackendDescriptor{
		ID:           "kobo",
		Name:         "Kobo",
		Capabilities: []entities.Capability{entities.CapabilityFetch},
	}
}

func (d *deviceFetcher) ListInstalled(ctx context.Context) ([]entities.BookIdentity, error) {
	if d.listErr != nil {
		return nil, d.listErr
	}
	return d.books, nil
}

func (d *deviceFetcher) ListActiveAnnotations(ctx context.Context, book entities.BookIdentity) (*entities.AnnotationSet, error) {
	if d.released != nil {
		close(d.released)
		d.released = nil
	}
	if d.perBook != nil {
		d.perBook(book.Title)
	}
	if err, ok := d.failOn[book.Title]; ok {
		return nil, err
	}
	if d.emptyOn[book.Title] {
		return &entities.AnnotationSet{Book: book}, nil
	}
	return &entities.AnnotationSet{
		Book: book,
		Annotations: []entities.Annotation{
			{Location: "progress 0.1000", Kind: entities.AnnotationKindHighlight, Text: "from " + book.Title},
		},
	}, nil
}

func books(titles ...string) []entities.BookIdentity {
	out := make([]entities.BookIdentity, 0, len(titles))
	for _, title := range titles {
		out = append(out, entities.BookIdentity{Title: title})
	}
	return out
}

func TestFetch_CollectsAllBooks(t *testing.T) {
	fetcher := &deviceFetcher{books: books("Dune", "Foundation", "Solaris")}
	o := New()

	result, err := o.Fetch(context.Background(), "kobo", fetcher)
	require.NoError(t, err)
	require.Len(t, result.Sets, 3)
	assert.Empty(t, result.Failures)
	assert.False(t, result.Interrupted)
	assert.Equal(t, "kobo", result.Sets[0].BackendID, "orchestrator stamps the backend id")
}

func TestFetch_PerBookFailureIsIsolated(t *testing.T) {
	readErr := errors.New("sqlite disk I/O error")
	fetcher := &deviceFetcher{
		books:  books("Dune", "Corrupted", "Solaris"),
		failOn: map[string]error{"Corrupted": readErr},
	}
	o := New()

	result, err := o.Fetch(context.Background(), "kobo", fetcher)
	require.NoError(t, err)
	require.Len(t, result.Sets, 2)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "Corrupted", result.Failures[0].Book.Title)
	assert.ErrorIs(t, result.Failures[0], readErr)
}

func TestFetch_SkipsBooksWithoutAnnotations(t *testing.T) {
	fetcher := &deviceFetcher{
		books:   books("Dune", "Untouched"),
		emptyOn: map[string]bool{"Untouched": true},
	}
	o := New()

	result, err := o.Fetch(context.Background(), "kobo", fetcher)
	require.NoError(t, err)
	require.Len(t, result.Sets, 1)
	assert.Equal(t, "Dune", result.Sets[0].Book.Title)
}

func TestFetch_InterruptKeepsPartialResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetcher := &deviceFetcher{books: books("A", "B", "C", "D", "E")}
	fetcher.perBook = func(title string) {
		if title == "C" {
			// Simulates the device detaching mid-run.
			cancel()
		}
	}
	o := New()

	result, err := o.Fetch(ctx, "kobo", fetcher)
	require.NoError(t, err)
	assert.True(t, result.Interrupted)
	require.Len(t, result.Sets, 3, "already-collected books survive the interruption")
	require.Len(t, result.Failures, 2)
	assert.Equal(t, "D", result.Failures[0].Book.Title)
	assert.Equal(t, "E", result.Failures[1].Book.Title)
	assert.ErrorIs(t, result.Failures[0], context.Canceled)
}

func TestFetch_ListFailureAborts(t *testing.T) {
	listErr := errors.New("device not mounted")
	fetcher := &deviceFetcher{listErr: listErr}
	o := New()

	_, err := o.Fetch(context.Background(), "kobo", fetcher)
	assert.ErrorIs(t, err, listErr)
}

func TestFetch_BusyGuard(t *testing.T) {
	started := make(chan struct{})
	proceed := make(chan struct{})
	fetcher := &deviceFetcher{books: books("Dune"), released: started}
	fetcher.perBook = func(string) { <-proceed }
	o := New()

	done := make(chan error, 1)
	go func() {
		_, err := o.Fetch(context.Background(), "kobo", fetcher)
		done <- err
	}()

	<-started
	assert.True(t, o.Busy("kobo"))
	assert.False(t, o.Busy("tolino"), "guard is per source")

	_, err := o.Fetch(context.Background(), "kobo", &deviceFetcher{})
	assert.ErrorIs(t, err, ErrSourceBusy)

	// A different source is not blocked.
	_, err = o.Fetch(context.Background(), "other", &deviceFetcher{})
	assert.NoError(t, err)

	close(proceed)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("first fetch never finished")
	}

	assert.False(t, o.Busy("kobo"), "guard is released after completion")
}

func TestBookError_Message(t *testing.T) {
	err := &BookError{Book: entities.BookIdentity{Title: "Dune"}, Err: fmt.Errorf("timeout")}
	assert.Equal(t, `fetch failed for "Dune": timeout`, err.Error())
}
