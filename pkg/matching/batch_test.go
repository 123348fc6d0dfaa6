package matching

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/cache"
	"github.com/Ramsey-B/fern/pkg/models"
)

func newTestCoordinator(store Store, concurrency int) *BatchCoordinator {
	retriever := NewRetriever(store, noopLogger(), RetrieverConfig{Timeout: time.Second, WindowSize: 5})
	svc := NewService(noopLogger(), retriever, cache.New(10, time.Minute, nil))
	return NewBatchCoordinator(svc, noopLogger(), concurrency)
}

func TestBatchMixedOutcomes(t *testing.T) {
	store := &fakeStore{
		namesRows: []models.ReferenceEntity{row(uuid.New(), "Acme Corporation")},
	}
	coordinator := newTestCoordinator(store, 2)

	result, err := coordinator.Execute(context.Background(), []models.MatchQuery{
		{Entity: "Acme Corporation"},
		{Entity: ""},
		{Entity: "Unrelated Org"},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Stats.TotalProcessed)
	assert.Equal(t, 2, result.Stats.SuccessCount)
	assert.Equal(t, 1, result.Stats.FailureCount)
	assert.Equal(t, 1, result.Stats.TotalMatches)

	// Results come back in submission order regardless of worker scheduling.
	require.Len(t, result.Items, 3)
	assert.Equal(t, 0, result.Items[0].Index)
	require.NotNil(t, result.Items[0].Response)
	assert.True(t, result.Items[0].Response.Success)

	require.NotNil(t, result.Items[1].Response)
	assert.False(t, result.Items[1].Response.Success)
	assert.NotEmpty(t, result.Items[1].Err)

	require.NotNil(t, result.Items[2].Response)
	assert.True(t, result.Items[2].Response.Success)
	assert.Empty(t, result.Items[2].Response.DirectMatches)
}

func TestBatchEmpty(t *testing.T) {
	coordinator := newTestCoordinator(&fakeStore{}, 2)

	result, err := coordinator.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.Equal(t, 0, result.Stats.TotalProcessed)
}

func TestBatchSizeLimit(t *testing.T) {
	coordinator := newTestCoordinator(&fakeStore{}, 2)

	queries := make([]models.MatchQuery, MaxBatchSize+1)
	for i := range queries {
		queries[i] = models.MatchQuery{Entity: "Acme Corporation"}
	}

	_, err := coordinator.Execute(context.Background(), queries)
	var verr *InputValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "queries", verr.Field)
}

func TestBatchCacheHitAccounting(t *testing.T) {
	store := &fakeStore{
		namesRows: []models.ReferenceEntity{row(uuid.New(), "Acme Corporation")},
	}
	// Single worker so the duplicate query is guaranteed to run after the
	// first one populated the cache.
	coordinator := newTestCoordinator(store, 1)

	result, err := coordinator.Execute(context.Background(), []models.MatchQuery{
		{Entity: "Acme Corporation"},
		{Entity: "Acme Corporation"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Stats.SuccessCount)
	assert.Equal(t, 1, result.Stats.CacheHits)

	names, _, _ := store.counts()
	assert.Equal(t, 1, names)
}

func TestBatchEarlyCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	coordinator := newTestCoordinator(&fakeStore{}, 2)

	result, err := coordinator.Execute(ctx, []models.MatchQuery{
		{Entity: "Acme Corporation"},
		{Entity: "Zenith Group"},
		{Entity: "Orbit Ltd"},
	})
	require.NoError(t, err)

	// Every submitted item is accounted for even though none ran.
	assert.Equal(t, 3, result.Stats.TotalProcessed)
	assert.Equal(t, 0, result.Stats.SuccessCount)
	assert.Equal(t, 3, result.Stats.FailureCount)
	for _, item := range result.Items {
		assert.Nil(t, item.Response)
		assert.Equal(t, "canceled before processing", item.Err)
	}
}

func TestBatchConcurrencyDefaults(t *testing.T) {
	c := NewBatchCoordinator(nil, noopLogger(), 0)
	assert.Equal(t, DefaultBatchConcurrency, c.concurrency)
}
