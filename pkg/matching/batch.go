package matching

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/stem/pkg/tracing"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
)

const (
	// MaxBatchSize is the most queries a single batch may carry.
	MaxBatchSize = 100

	// DefaultBatchConcurrency is the default number of concurrent item executions
	DefaultBatchConcurrency = 8
)

// Screener is the per-item capability the coordinator fans out over.
type Screener interface {
	Screen(ctx context.Context, query models.MatchQuery) *models.MatchResponse
}

// BatchCoordinator processes independent match queries with a bounded worker
// pool. Items are isolated: one item's failure never aborts the batch, and
// every submitted item is counted in the aggregate stats exactly once, even
// when the caller cancels early.
type BatchCoordinator struct {
	screener    Screener
	logger      ectologger.Logger
	concurrency int
}

// NewBatchCoordinator creates a new BatchCoordinator.
func NewBatchCoordinator(screener Screener, logger ectologger.Logger, concurrency int) *BatchCoordinator {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}
	return &BatchCoordinator{
		screener:    screener,
		logger:      logger,
		concurrency: concurrency,
	}
}

type indexedItem struct {
	index int
	query models.MatchQuery
}

type indexedResult struct {
	index      int
	response   *models.MatchResponse
	durationMS int64
}

// Execute runs all queries and returns per-item results in submission order.
// Cancelling ctx stops workers from picking up further items; items never
// started are recorded as failures so the aggregates stay consistent.
func (c *BatchCoordinator) Execute(ctx context.Context, queries []models.MatchQuery) (*models.BatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.BatchCoordinator.Execute")
	defer span.End()

	log := c.logger.WithContext(ctx).WithFields(map[string]any{
		"method":     "Execute",
		"item_count": len(queries),
	})

	if len(queries) == 0 {
		return &models.BatchResult{Items: []models.BatchItemResult{}}, nil
	}
	if len(queries) > MaxBatchSize {
		return nil, &InputValidationError{Field: "queries", Reason: fmt.Sprintf("exceeds batch limit of %d", MaxBatchSize)}
	}

	start := time.Now()

	concurrency := c.concurrency
	if concurrency > len(queries) {
		concurrency = len(queries)
	}

	log.Infof("Executing batch: %d items with concurrency %d", len(queries), concurrency)

	itemChan := make(chan indexedItem, len(queries))
	resultChan := make(chan indexedResult, len(queries))

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go c.worker(ctx, &wg, itemChan, resultChan)
	}

	for i, q := range queries {
		itemChan <- indexedItem{index: i, query: q}
	}
	close(itemChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	responses := make([]*models.MatchResponse, len(queries))
	durations := make([]int64, len(queries))
	for res := range resultChan {
		responses[res.index] = res.response
		durations[res.index] = res.durationMS
	}

	result := &models.BatchResult{
		Items: make([]models.BatchItemResult, len(queries)),
	}
	result.Stats.TotalProcessed = len(queries)

	for i, resp := range responses {
		item := models.BatchItemResult{Index: i, DurationMS: durations[i]}

		if resp == nil {
			// Worker never picked this item up before cancellation.
			item.Err = "canceled before processing"
			result.Stats.FailureCount++
			metrics.RecordBatchItem("canceled")
		} else {
			item.Response = resp
			if resp.Success {
				result.Stats.SuccessCount++
				metrics.RecordBatchItem("success")
			} else {
				item.Err = resp.Error
				result.Stats.FailureCount++
				metrics.RecordBatchItem("failure")
			}
			if resp.Metadata.CacheHit {
				result.Stats.CacheHits++
			}
			result.Stats.TotalMatches += len(resp.DirectMatches)
		}

		result.Items[i] = item
	}

	result.Stats.DurationMS = time.Since(start).Milliseconds()

	log.WithFields(map[string]any{
		"success_count": result.Stats.SuccessCount,
		"failure_count": result.Stats.FailureCount,
		"cache_hits":    result.Stats.CacheHits,
	}).Info("Batch completed")

	return result, nil
}

func (c *BatchCoordinator) worker(ctx context.Context, wg *sync.WaitGroup, items <-chan indexedItem, results chan<- indexedResult) {
	defer wg.Done()

	for item := range items {
		select {
		case <-ctx.Done():
			return
		default:
		}

		metrics.BatchItemsInFlight.Inc()
		itemStart := time.Now()
		resp := c.screener.Screen(ctx, item.query)
		metrics.BatchItemsInFlight.Dec()

		results <- indexedResult{
			index:      item.index,
			response:   resp,
			durationMS: time.Since(itemStart).Milliseconds(),
		}
	}
}
