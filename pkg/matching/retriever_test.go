package matching

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// fakeStore is an in-memory Store that records call counts so tests can
// assert which lookups ran.
type fakeStore struct {
	mu          sync.Mutex
	namesRows   []models.ReferenceEntity
	aliasRows   []models.ReferenceEntity
	windowRows  []models.ReferenceEntity
	namesErr    error
	aliasErr    error
	windowErr   error
	namesCalls  int
	aliasCalls  int
	windowCalls int
	variants    []string
}

func (f *fakeStore) FindByNames(ctx context.Context, variants []string) ([]models.ReferenceEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.namesCalls++
	f.variants = variants
	return f.namesRows, f.namesErr
}

func (f *fakeStore) FindByAliases(ctx context.Context, variants []string) ([]models.ReferenceEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aliasCalls++
	return f.aliasRows, f.aliasErr
}

func (f *fakeStore) CandidateWindow(ctx context.Context, variant string, limit int) ([]models.ReferenceEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windowCalls++
	return f.windowRows, f.windowErr
}

func (f *fakeStore) counts() (names, aliases, window int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.namesCalls, f.aliasCalls, f.windowCalls
}

func row(datasetID uuid.UUID, name string, aliases ...string) models.ReferenceEntity {
	return models.ReferenceEntity{
		ID:               uuid.New(),
		DatasetID:        datasetID,
		DatasetName:      "sanctions",
		OrganizationName: name,
		Aliases:          aliases,
	}
}

func newTestRetriever(store Store) *Retriever {
	return NewRetriever(store, noopLogger(), RetrieverConfig{Timeout: time.Second, WindowSize: 5})
}

func TestRetrieveNoWideningWhenPreciseLookupsHit(t *testing.T) {
	store := &fakeStore{
		namesRows: []models.ReferenceEntity{row(uuid.New(), "Acme Corporation")},
	}
	r := newTestRetriever(store)

	candidates, degraded := r.Retrieve(context.Background(), []string{"acme corporation"})
	require.Len(t, candidates, 1)
	assert.False(t, degraded)

	_, _, window := store.counts()
	assert.Equal(t, 0, window, "window lookup must not run when precise lookups found candidates")
}

func TestRetrieveWidensWhenEmpty(t *testing.T) {
	store := &fakeStore{
		windowRows: []models.ReferenceEntity{row(uuid.New(), "Acme Global Corporation")},
	}
	r := newTestRetriever(store)

	candidates, degraded := r.Retrieve(context.Background(), []string{"acme"})
	require.Len(t, candidates, 1)
	assert.False(t, degraded)

	names, aliases, window := store.counts()
	assert.Equal(t, 1, names)
	assert.Equal(t, 1, aliases)
	assert.Equal(t, 1, window)
}

func TestRetrieveDeduplicates(t *testing.T) {
	datasetID := uuid.New()
	store := &fakeStore{
		namesRows: []models.ReferenceEntity{row(datasetID, "Acme Corporation")},
		aliasRows: []models.ReferenceEntity{
			row(datasetID, "Acme Corporation"),
			row(datasetID, "Acme Global"),
		},
	}
	r := newTestRetriever(store)

	candidates, _ := r.Retrieve(context.Background(), []string{"acme corporation"})
	require.Len(t, candidates, 2)
	assert.Equal(t, "Acme Corporation", candidates[0].Entity.OrganizationName)
	assert.Equal(t, "Acme Global", candidates[1].Entity.OrganizationName)

	t.Run("same name in different datasets is kept", func(t *testing.T) {
		store := &fakeStore{
			namesRows: []models.ReferenceEntity{
				row(uuid.New(), "Acme Corporation"),
				row(uuid.New(), "Acme Corporation"),
			},
		}
		candidates, _ := newTestRetriever(store).Retrieve(context.Background(), []string{"acme corporation"})
		assert.Len(t, candidates, 2)
	})
}

func TestRetrieveDegradesOnStoreFailure(t *testing.T) {
	t.Run("exact lookup failure yields zero candidates", func(t *testing.T) {
		store := &fakeStore{namesErr: errors.New("connection refused")}
		candidates, degraded := newTestRetriever(store).Retrieve(context.Background(), []string{"acme"})
		assert.Empty(t, candidates)
		assert.True(t, degraded)
	})

	t.Run("alias lookup failure keeps exact results", func(t *testing.T) {
		store := &fakeStore{
			namesRows: []models.ReferenceEntity{row(uuid.New(), "Acme Corporation")},
			aliasErr:  errors.New("connection refused"),
		}
		candidates, degraded := newTestRetriever(store).Retrieve(context.Background(), []string{"acme corporation"})
		assert.Len(t, candidates, 1)
		assert.True(t, degraded)
	})

	t.Run("window failure degrades", func(t *testing.T) {
		store := &fakeStore{windowErr: errors.New("connection refused")}
		candidates, degraded := newTestRetriever(store).Retrieve(context.Background(), []string{"acme"})
		assert.Empty(t, candidates)
		assert.True(t, degraded)
	})
}

func TestRetrieveSkipsMalformedRows(t *testing.T) {
	store := &fakeStore{
		namesRows: []models.ReferenceEntity{
			row(uuid.New(), ""),
			row(uuid.New(), "Acme Corporation"),
		},
	}

	candidates, degraded := newTestRetriever(store).Retrieve(context.Background(), []string{"acme corporation"})
	require.Len(t, candidates, 1)
	assert.Equal(t, "Acme Corporation", candidates[0].Entity.OrganizationName)
	assert.False(t, degraded, "a malformed row is skipped, not a degradation")
}

func TestRetrieveEmptyVariants(t *testing.T) {
	store := &fakeStore{}
	candidates, degraded := newTestRetriever(store).Retrieve(context.Background(), nil)
	assert.Empty(t, candidates)
	assert.False(t, degraded)

	names, aliases, window := store.counts()
	assert.Zero(t, names+aliases+window)
}

func TestBuildCandidateNormalizesWhenColumnsMissing(t *testing.T) {
	cand, err := buildCandidate(row(uuid.New(), "Acmé Holdings Ltd.", "AH"))
	require.NoError(t, err)
	assert.Equal(t, "acme holdings ltd", cand.NameNorm)
	assert.Equal(t, "acme", cand.CoreNorm)
	require.Len(t, cand.AliasesNorm, 1)
	assert.Equal(t, "ah", cand.AliasesNorm[0])

	t.Run("precomputed columns win", func(t *testing.T) {
		r := row(uuid.New(), "Acme Holdings Ltd.")
		r.NameNormalized = "acme holdings ltd"
		r.CoreNormalized = "acme"
		cand, err := buildCandidate(r)
		require.NoError(t, err)
		assert.Equal(t, "acme holdings ltd", cand.NameNorm)
		assert.Equal(t, "acme", cand.CoreNorm)
	})

	t.Run("unparseable row errors", func(t *testing.T) {
		_, err := buildCandidate(models.ReferenceEntity{})
		var perr *ParseError
		assert.ErrorAs(t, err, &perr)
	})
}
