package artifact

import (
	"context"
	"sync"

	"github.com/evalgo/gridstore/types"
)

// defaultBatchParallelism matches spec.md §4.3.1's store_batch concurrency
// default.
const defaultBatchParallelism = 8

// BatchItem is one entry in a StoreBatch call.
type BatchItem struct {
	Data     []byte
	Mime     string
	Summary  string
	Meta     map[string]interface{}
	Filename string
}

// BatchResult pairs a batch item's outcome with its original index, so
// callers can reconcile results against the input slice regardless of
// completion order.
type BatchResult struct {
	Index      int
	ArtifactID string
	Err        error
}

// StoreBatch stores every item under sessionID with bounded parallelism,
// isolating each item's failure from the others per spec.md §4.3.1 ("a
// single bad item must not fail the whole batch"). onError, when non-nil,
// is invoked once per failed item as results arrive; it must not block.
func (s *Store) StoreBatch(ctx context.Context, sessionID string, items []BatchItem, onError func(index int, err error)) []BatchResult {
	return s.storeBatchParallel(ctx, sessionID, items, defaultBatchParallelism, onError)
}

func (s *Store) storeBatchParallel(ctx context.Context, sessionID string, items []BatchItem, parallelism int, onError func(index int, err error)) []BatchResult {
	if parallelism <= 0 {
		parallelism = defaultBatchParallelism
	}
	results := make([]BatchResult, len(items))

	sem := make(chan struct{}, parallelism)
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item BatchItem) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			id, err := s.Store(ctx, StoreInput{
				Data:      item.Data,
				Mime:      item.Mime,
				Summary:   item.Summary,
				Meta:      item.Meta,
				Filename:  item.Filename,
				SessionID: sessionID,
				Scope:     types.ScopeSession,
			})
			results[i] = BatchResult{Index: i, ArtifactID: id, Err: err}
			if err != nil && onError != nil {
				onError(i, err)
			}
		}(i, item)
	}
	wg.Wait()
	return results
}
