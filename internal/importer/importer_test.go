package importer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marginalia/internal/backends"
	"marginalia/internal/entities"
)

// scriptedParser is a Parser with a scripted response and call counter.
type scriptedParser struct {
	id         string
	extensions []string
	set        *entities.AnnotationSet
	err        error
	calls      int
}

func (p *scriptedParser) Descriptor() entities.BackendDescriptor {
	return entities.BackendDescriptor{
		ID:           p.id,
		Name:         p.id,
		Capabilities: []entities.Capability{entities.CapabilityExport},
	}
}

func (p *scriptedParser) Parse(blob []byte) (*entities.AnnotationSet, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.set, nil
}

func (p *scriptedParser) Extensions() []string {
	return p.extensions
}

func registryOf(t *testing.T, parsers ...*scriptedParser) *backends.Registry {
	t.Helper()
	r := backends.NewRegistry()
	for _, p := range parsers {
		require.NoError(t, r.Register(p))
	}
	return r
}

func TestImportBlob_TrialOrder(t *testing.T) {
	refusal := errors.New("not my format")
	b1 := &scriptedParser{id: "b1", err: refusal}
	b2 := &scriptedParser{id: "b2", set: &entities.AnnotationSet{Book: entities.BookIdentity{Title: "Dune"}}}
	b3 := &scriptedParser{id: "b3", set: &entities.AnnotationSet{}}

	o := New(registryOf(t, b1, b2, b3))

	set, err := o.ImportBlob([]byte("payload"), "")
	require.NoError(t, err)
	assert.Equal(t, "Dune", set.Book.Title)
	assert.Equal(t, "b2", set.BackendID, "orchestrator stamps the accepting backend")

	assert.Equal(t, 1, b1.calls)
	assert.Equal(t, 1, b2.calls)
	assert.Equal(t, 0, b3.calls, "trial stops at the first acceptance")
}

func TestImportBlob_ExtensionHint(t *testing.T) {
	t.Run("mismatched extension skips the parser", func(t *testing.T) {
		dbOnly := &scriptedParser{id: "db_only", extensions: []string{"db", "sqlite"}, set: &entities.AnnotationSet{}}
		txtOnly := &scriptedParser{id: "txt_only", extensions: []string{"txt"}, set: &entities.AnnotationSet{}}

		o := New(registryOf(t, dbOnly, txtOnly))

		set, err := o.ImportBlob([]byte("payload"), ".txt")
		require.NoError(t, err)
		assert.Equal(t, "txt_only", set.BackendID)
		assert.Equal(t, 0, dbOnly.calls, "hint-skipped parser is never invoked")
	})

	t.Run("empty hint tries everything", func(t *testing.T) {
		dbOnly := &scriptedParser{id: "db_only", extensions: []string{"db"}, set: &entities.AnnotationSet{}}

		o := New(registryOf(t, dbOnly))

		set, err := o.ImportBlob([]byte("payload"), "")
		require.NoError(t, err)
		assert.Equal(t, "db_only", set.BackendID)
	})

	t.Run("parser declaring no extensions is always tried", func(t *testing.T) {
		anyFormat := &scriptedParser{id: "any_format", set: &entities.AnnotationSet{}}

		o := New(registryOf(t, anyFormat))

		set, err := o.ImportBlob([]byte("payload"), "txt")
		require.NoError(t, err)
		assert.Equal(t, "any_format", set.BackendID)
		assert.Equal(t, 1, anyFormat.calls, "empty declared list rules nothing out")
	})

	t.Run("hint never reorders the trial", func(t *testing.T) {
		first := &scriptedParser{id: "first", extensions: []string{"txt"}, err: errors.New("nope")}
		second := &scriptedParser{id: "second", extensions: []string{"txt"}, set: &entities.AnnotationSet{}}

		o := New(registryOf(t, first, second))

		set, err := o.ImportBlob([]byte("payload"), "txt")
		require.NoError(t, err)
		assert.Equal(t, "second", set.BackendID)
		assert.Equal(t, 1, first.calls, "earlier-registered parser is still tried first")
	})
}

func TestImportBlob_Unrecognized(t *testing.T) {
	refusal := errors.New("garbled header")
	b1 := &scriptedParser{id: "b1", err: refusal}
	b2 := &scriptedParser{id: "b2", extensions: []string{"db"}}

	o := New(registryOf(t, b1, b2))

	_, err := o.ImportBlob([]byte("payload"), "txt")
	require.Error(t, err)

	var unrecognized *UnrecognizedFormatError
	require.ErrorAs(t, err, &unrecognized)
	assert.Equal(t, "txt", unrecognized.Hint)
	require.Len(t, unrecognized.Attempts, 2)
	assert.Equal(t, "b1", unrecognized.Attempts[0].BackendID)
	assert.ErrorIs(t, unrecognized.Attempts[0].Err, refusal)
	assert.True(t, unrecognized.Attempts[1].Skipped)
	assert.Contains(t, unrecognized.Error(), "b1: garbled header")
	assert.Contains(t, unrecognized.Error(), "b2: skipped by extension")
}

func TestImportBlob_NoExportBackends(t *testing.T) {
	o := New(backends.NewRegistry())

	_, err := o.ImportBlob([]byte("payload"), "")
	var unrecognized *UnrecognizedFormatError
	require.ErrorAs(t, err, &unrecognized)
	assert.Empty(t, unrecognized.Attempts)
}
