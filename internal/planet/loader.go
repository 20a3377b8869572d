package planet

import (
	"context"
	"log/slog"
	"sync"

	"planets-service/internal/shared/errors"
)

// DetailsThunk resolves one planet's details. The first thunk of a batch
// to run dispatches the whole batch; every sibling then reads from the
// shared result.
type DetailsThunk func() (Details, error)

// detailsBatchGateway is the slice of the persistence contract the loader
// needs.
type detailsBatchGateway interface {
	GetDetailsBatch(ctx context.Context, planetIDs []int) (map[int]DetailsRow, error)
}

// DetailsLoader coalesces the detail lookups issued while resolving one
// query into a single batched gateway call, eliminating the N+1 pattern
// when rendering nested details for many planets.
//
// A loader is strictly request-scoped: construct one per inbound operation
// and drop it when the operation ends. This is deliberately not a cache;
// nothing survives the request, so mutations between requests are never
// masked by stale reads.
type DetailsLoader struct {
	gateway detailsBatchGateway
	logger  *slog.Logger

	mu      sync.Mutex
	pending *detailsBatch
}

// detailsBatch is one collect-then-dispatch cycle. Ids are collected with
// set semantics; dispatch happens exactly once.
type detailsBatch struct {
	ids  []int
	seen map[int]struct{}

	dispatch sync.Once
	results  map[int]Details
	failures map[int]error
	err      error
}

func NewDetailsLoader(gateway detailsBatchGateway, logger *slog.Logger) *DetailsLoader {
	return &DetailsLoader{
		gateway: gateway,
		logger:  logger,
	}
}

// Load registers planetID in the current batch and returns a thunk for its
// details. All Load calls made before any thunk runs share one batch and
// therefore one gateway call; duplicates collapse to a single key.
func (l *DetailsLoader) Load(ctx context.Context, planetID int) DetailsThunk {
	l.mu.Lock()
	if l.pending == nil {
		l.pending = &detailsBatch{seen: make(map[int]struct{})}
	}
	batch := l.pending
	if _, dup := batch.seen[planetID]; !dup {
		batch.seen[planetID] = struct{}{}
		batch.ids = append(batch.ids, planetID)
	}
	l.mu.Unlock()

	return func() (Details, error) {
		batch.dispatch.Do(func() {
			l.dispatchBatch(ctx, batch)
		})
		return batch.result(planetID)
	}
}

func (l *DetailsLoader) dispatchBatch(ctx context.Context, batch *detailsBatch) {
	// Seal the batch: Load calls from here on start a new collection phase.
	l.mu.Lock()
	if l.pending == batch {
		l.pending = nil
	}
	l.mu.Unlock()

	logger := l.logger.With("component", "details_loader", "operation", "dispatch", "batch_size", len(batch.ids))
	logger.Debug("Dispatching details batch")

	rows, err := l.gateway.GetDetailsBatch(ctx, batch.ids)
	if err != nil {
		logger.Error("Details batch failed", "error", err)
		batch.err = errors.WrapExternal("failed to load planet details", err)
		return
	}

	batch.results = make(map[int]Details, len(rows))
	batch.failures = make(map[int]error)
	for id, row := range rows {
		details, err := detailsFromRow(row)
		if err != nil {
			// A corrupt row fails only its own planet.
			batch.failures[id] = err
			continue
		}
		batch.results[id] = details
	}

	logger.Debug("Details batch resolved", "found", len(batch.results), "failed", len(batch.failures))
}

// result reports the outcome for one id after dispatch. A gateway-level
// failure fails every id in the batch; a missing or corrupt row fails only
// its own id.
func (b *detailsBatch) result(planetID int) (Details, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err, ok := b.failures[planetID]; ok {
		return nil, err
	}
	details, ok := b.results[planetID]
	if !ok {
		return nil, &DetailsNotFoundError{PlanetID: planetID}
	}
	return details, nil
}
