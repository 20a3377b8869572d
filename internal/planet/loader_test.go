package planet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"testing"

	sharederrors "planets-service/internal/shared/errors"
)

type fakeBatchGateway struct {
	rows    map[int]DetailsRow
	err     error
	calls   int
	batches [][]int
}

func (g *fakeBatchGateway) GetDetailsBatch(ctx context.Context, planetIDs []int) (map[int]DetailsRow, error) {
	g.calls++
	batch := append([]int(nil), planetIDs...)
	g.batches = append(g.batches, batch)

	if g.err != nil {
		return nil, g.err
	}

	results := make(map[int]DetailsRow)
	for _, id := range planetIDs {
		if row, ok := g.rows[id]; ok {
			results[id] = row
		}
	}
	return results, nil
}

func detailsRow(planetID int, meanRadius, mass string) DetailsRow {
	return DetailsRow{PlanetID: planetID, MeanRadius: meanRadius, Mass: mass}
}

func TestLoaderCoalescesIntoOneBatch(t *testing.T) {
	gateway := &fakeBatchGateway{rows: map[int]DetailsRow{
		1: detailsRow(1, "2439.7", "330110000000000000000000"),
		2: detailsRow(2, "6051.8", "4867500000000000000000000"),
		3: detailsRow(3, "6371.0", "5972000000000000000000000"),
	}}
	loader := NewDetailsLoader(gateway, slog.Default())

	ctx := context.Background()
	var thunks []DetailsThunk
	// Duplicate ids on purpose: the batch key set must collapse them.
	for _, id := range []int{1, 2, 3, 2, 1, 1} {
		thunks = append(thunks, loader.Load(ctx, id))
	}

	for i, thunk := range thunks {
		if _, err := thunk(); err != nil {
			t.Fatalf("thunk %d returned error: %v", i, err)
		}
	}

	if gateway.calls != 1 {
		t.Fatalf("gateway called %d times, want exactly 1", gateway.calls)
	}

	got := append([]int(nil), gateway.batches[0]...)
	sort.Ints(got)
	if fmt.Sprint(got) != fmt.Sprint([]int{1, 2, 3}) {
		t.Errorf("batch key set = %v, want [1 2 3]", got)
	}
}

func TestLoaderMissingIDFailsOnlyItsFuture(t *testing.T) {
	gateway := &fakeBatchGateway{rows: map[int]DetailsRow{
		1: detailsRow(1, "2439.7", "330110000000000000000000"),
	}}
	loader := NewDetailsLoader(gateway, slog.Default())

	ctx := context.Background()
	okThunk := loader.Load(ctx, 1)
	missingThunk := loader.Load(ctx, 99)

	if _, err := okThunk(); err != nil {
		t.Errorf("present id returned error: %v", err)
	}

	_, err := missingThunk()
	var notFound *DetailsNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("missing id error = %v, want DetailsNotFoundError", err)
	}
	if notFound.PlanetID != 99 {
		t.Errorf("DetailsNotFoundError.PlanetID = %d, want 99", notFound.PlanetID)
	}

	if gateway.calls != 1 {
		t.Errorf("gateway called %d times, want exactly 1", gateway.calls)
	}
}

func TestLoaderGatewayFailureFailsWholeBatch(t *testing.T) {
	gateway := &fakeBatchGateway{err: errors.New("connection refused")}
	loader := NewDetailsLoader(gateway, slog.Default())

	ctx := context.Background()
	first := loader.Load(ctx, 1)
	second := loader.Load(ctx, 2)

	for _, thunk := range []DetailsThunk{first, second} {
		_, err := thunk()
		if err == nil {
			t.Fatal("thunk succeeded, want error")
		}
		if sharederrors.GetType(err) != sharederrors.ErrorTypeExternal {
			t.Errorf("error type = %v, want external", sharederrors.GetType(err))
		}
	}

	if gateway.calls != 1 {
		t.Errorf("gateway called %d times, want exactly 1", gateway.calls)
	}
}

func TestLoaderStartsNewBatchAfterDispatch(t *testing.T) {
	gateway := &fakeBatchGateway{rows: map[int]DetailsRow{
		1: detailsRow(1, "2439.7", "330110000000000000000000"),
		2: detailsRow(2, "6051.8", "4867500000000000000000000"),
	}}
	loader := NewDetailsLoader(gateway, slog.Default())

	ctx := context.Background()
	first := loader.Load(ctx, 1)
	if _, err := first(); err != nil {
		t.Fatalf("first thunk returned error: %v", err)
	}

	// The first batch is sealed; a later Load opens a second one.
	second := loader.Load(ctx, 2)
	if _, err := second(); err != nil {
		t.Fatalf("second thunk returned error: %v", err)
	}

	if gateway.calls != 2 {
		t.Errorf("gateway called %d times, want 2 (one per collection phase)", gateway.calls)
	}
}

func TestLoaderVariantSelection(t *testing.T) {
	inhabited := detailsRow(3, "6371.0", "5972000000000000000000000")
	inhabited.Population.Valid = true
	inhabited.Population.String = "7.53"

	gateway := &fakeBatchGateway{rows: map[int]DetailsRow{
		3: inhabited,
		4: detailsRow(4, "3389.5", "639000000000000000000000"),
	}}
	loader := NewDetailsLoader(gateway, slog.Default())

	ctx := context.Background()
	earthThunk := loader.Load(ctx, 3)
	marsThunk := loader.Load(ctx, 4)

	earth, err := earthThunk()
	if err != nil {
		t.Fatalf("earth thunk returned error: %v", err)
	}
	switch details := earth.(type) {
	case InhabitedDetails:
		if details.Population.Text('f') != "7.53" {
			t.Errorf("population = %s, want 7.53", details.Population.Text('f'))
		}
	case UninhabitedDetails:
		t.Error("planet with population resolved to uninhabited details")
	default:
		t.Errorf("unexpected details variant %T", earth)
	}

	mars, err := marsThunk()
	if err != nil {
		t.Fatalf("mars thunk returned error: %v", err)
	}
	switch mars.(type) {
	case UninhabitedDetails:
	case InhabitedDetails:
		t.Error("planet without population resolved to inhabited details")
	default:
		t.Errorf("unexpected details variant %T", mars)
	}
}
