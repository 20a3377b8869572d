package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"planets-service/internal/events"
	"planets-service/internal/planet"
)

// catalogGateway is an in-memory planet.Gateway seeded like the solar
// system fixtures.
type catalogGateway struct {
	planets []planet.PlanetRow
	details map[int]planet.DetailsRow

	nextID     int
	batchCalls int
}

func (g *catalogGateway) AllPlanets(ctx context.Context) ([]planet.PlanetRow, error) {
	return append([]planet.PlanetRow(nil), g.planets...), nil
}

func (g *catalogGateway) GetPlanet(ctx context.Context, id int) (*planet.PlanetRow, error) {
	for _, row := range g.planets {
		if row.ID == id {
			r := row
			return &r, nil
		}
	}
	return nil, nil
}

func (g *catalogGateway) GetDetails(ctx context.Context, planetID int) (*planet.DetailsRow, error) {
	if row, ok := g.details[planetID]; ok {
		return &row, nil
	}
	return nil, nil
}

func (g *catalogGateway) GetDetailsBatch(ctx context.Context, planetIDs []int) (map[int]planet.DetailsRow, error) {
	g.batchCalls++
	results := make(map[int]planet.DetailsRow)
	for _, id := range planetIDs {
		if row, ok := g.details[id]; ok {
			results[id] = row
		}
	}
	return results, nil
}

func (g *catalogGateway) CreatePlanet(ctx context.Context, newPlanet planet.NewPlanetRow, newDetails planet.NewDetailsRow) (*planet.PlanetRow, error) {
	g.nextID++
	row := planet.PlanetRow{ID: g.nextID, Name: newPlanet.Name, Type: newPlanet.Type}
	g.planets = append(g.planets, row)
	g.details[row.ID] = planet.DetailsRow{
		PlanetID:   row.ID,
		MeanRadius: newDetails.MeanRadius,
		Mass:       newDetails.Mass,
		Population: populationOf(newDetails.Population),
	}
	return &row, nil
}

func populationOf(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func seededCatalog() *catalogGateway {
	return &catalogGateway{
		planets: []planet.PlanetRow{
			{ID: 1, Name: "Mercury", Type: "TERRESTRIAL_PLANET"},
			{ID: 3, Name: "Earth", Type: "TERRESTRIAL_PLANET"},
			{ID: 5, Name: "Jupiter", Type: "GAS_GIANT"},
			{ID: 8, Name: "Neptune", Type: "ICE_GIANT"},
		},
		details: map[int]planet.DetailsRow{
			1: {PlanetID: 1, MeanRadius: "2439.7", Mass: "330110000000000000000000"},
			3: {PlanetID: 3, MeanRadius: "6371.0", Mass: "5972000000000000000000000", Population: sql.NullString{String: "7.53", Valid: true}},
			5: {PlanetID: 5, MeanRadius: "69911.0", Mass: "1898000000000000000000000000"},
			8: {PlanetID: 8, MeanRadius: "24622.0", Mass: "102400000000000000000000000"},
		},
		nextID: 8,
	}
}

func newTestMux(t *testing.T, gateway *catalogGateway) (*http.ServeMux, *events.Broker[planet.Planet]) {
	t.Helper()

	broker := events.NewBroker[planet.Planet](4, slog.Default())
	t.Cleanup(broker.Close)

	service := planet.NewService(gateway, broker, slog.Default())

	mux := http.NewServeMux()
	mux.Handle("/api/planets", NewPlanetsHandler(service))
	mux.HandleFunc("/api/planets/{id}", NewPlanetHandler(service).GetByID)
	mux.HandleFunc("/api/federation/planets/{id}", NewPlanetHandler(service).GetByID)
	mux.Handle("/api/planets/latest", NewSubscribeHandler(broker))
	return mux, broker
}

func TestListPlanetsSeededCatalog(t *testing.T) {
	gateway := seededCatalog()
	mux, _ := newTestMux(t, gateway)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/planets", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp ListPlanetsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Errors) != 0 {
		t.Fatalf("unexpected field errors: %+v", resp.Errors)
	}

	want := []struct {
		id, name, planetType, meanRadius string
	}{
		{"1", "Mercury", "TERRESTRIAL_PLANET", "2439.7"},
		{"3", "Earth", "TERRESTRIAL_PLANET", "6371.0"},
		{"5", "Jupiter", "GAS_GIANT", "69911.0"},
		{"8", "Neptune", "ICE_GIANT", "24622.0"},
	}

	if len(resp.Planets) != len(want) {
		t.Fatalf("got %d planets, want %d", len(resp.Planets), len(want))
	}

	for i, w := range want {
		got := resp.Planets[i]
		if got.ID != w.id || got.Name != w.name || got.Type != w.planetType {
			t.Errorf("planet[%d] = %+v, want %s %s %s", i, got, w.id, w.name, w.planetType)
		}
		if got.Details == nil || got.Details.MeanRadius != w.meanRadius {
			t.Errorf("planet[%d] mean radius = %+v, want %s", i, got.Details, w.meanRadius)
		}
	}

	// Earth is the only inhabited planet in the fixture.
	if resp.Planets[1].Details.Population == nil || *resp.Planets[1].Details.Population != "7.53" {
		t.Errorf("Earth population = %v, want 7.53", resp.Planets[1].Details.Population)
	}
	if resp.Planets[0].Details.Population != nil {
		t.Error("Mercury has a population, want none")
	}

	// Rendering four planets' details must cost exactly one gateway call.
	if gateway.batchCalls != 1 {
		t.Errorf("details batch calls = %d, want 1", gateway.batchCalls)
	}
}

func TestGetPlanetByID(t *testing.T) {
	mux, _ := newTestMux(t, seededCatalog())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/planets/3", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got PlanetPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if got.ID != "3" || got.Name != "Earth" || got.Type != "TERRESTRIAL_PLANET" {
		t.Errorf("planet = %+v, want Earth", got)
	}
	if got.Details == nil || got.Details.MeanRadius != "6371.0" {
		t.Errorf("details = %+v, want mean radius 6371.0", got.Details)
	}
	if got.Details.Mass != "5.972e24" {
		t.Errorf("mass = %q, want 5.972e24", got.Details.Mass)
	}
}

func TestGetPlanetFederationRoute(t *testing.T) {
	mux, _ := newTestMux(t, seededCatalog())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/federation/planets/5", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got PlanetPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Name != "Jupiter" {
		t.Errorf("planet = %+v, want Jupiter", got)
	}
}

func TestGetPlanetInvalidID(t *testing.T) {
	mux, _ := newTestMux(t, seededCatalog())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/planets/pluto", nil))

	// Malformed identifiers fail the request; they are never coerced to a
	// null result.
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetPlanetMissing(t *testing.T) {
	mux, _ := newTestMux(t, seededCatalog())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/planets/42", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestCreatePlanet(t *testing.T) {
	gateway := seededCatalog()
	mux, broker := newTestMux(t, gateway)

	// Subscribed before the mutation: must observe the created planet.
	sub := broker.Subscribe()
	defer sub.Close()

	body := `{
		"name": "Pluto",
		"type": "DWARF_PLANET",
		"details": {
			"meanRadius": "1188.3",
			"mass": {"mantissa": 1.303, "exponent": 22},
			"population": "0.0"
		}
	}`

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/planets", strings.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp CreatePlanetResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "9" {
		t.Errorf("created id = %q, want 9", resp.ID)
	}

	if got := gateway.details[9].Mass; got != "13030000000000000000000" {
		t.Errorf("persisted mass = %s, want 1.303e22 materialized", got)
	}

	select {
	case created := <-sub.Events():
		if created.Name != "Pluto" {
			t.Errorf("subscriber received %+v, want Pluto", created)
		}
	default:
		t.Error("subscriber connected before create did not receive the event")
	}

	// A subscriber connected after broadcast sees nothing: no replay.
	late := broker.Subscribe()
	defer late.Close()
	select {
	case ev := <-late.Events():
		t.Errorf("late subscriber received %+v, want nothing", ev)
	default:
	}
}

func TestCreatePlanetRejectsBadInput(t *testing.T) {
	mux, _ := newTestMux(t, seededCatalog())

	cases := []struct {
		name string
		body string
	}{
		{"bad type", `{"name": "X", "type": "MOON", "details": {"meanRadius": "1.0", "mass": {"mantissa": 1, "exponent": 1}}}`},
		{"bad radius", `{"name": "X", "type": "GAS_GIANT", "details": {"meanRadius": "1e3", "mass": {"mantissa": 1, "exponent": 1}}}`},
		{"bad population", `{"name": "X", "type": "GAS_GIANT", "details": {"meanRadius": "1.0", "mass": {"mantissa": 1, "exponent": 1}, "population": "lots"}}`},
		{"not json", `planet please`},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/planets", strings.NewReader(tc.body)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, rec.Code)
		}
	}
}

func TestListPlanetsMissingDetailsIsFieldError(t *testing.T) {
	gateway := seededCatalog()
	delete(gateway.details, 5)
	mux, _ := newTestMux(t, gateway)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/planets", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp ListPlanetsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	// Jupiter's broken details show up as a field error; its siblings
	// still carry theirs.
	if len(resp.Planets) != 4 {
		t.Fatalf("got %d planets, want 4", len(resp.Planets))
	}
	if len(resp.Errors) != 1 || resp.Errors[0].PlanetID != "5" {
		t.Fatalf("errors = %+v, want one for planet 5", resp.Errors)
	}
	for _, p := range resp.Planets {
		if p.ID == "5" {
			if p.Details != nil {
				t.Error("failed planet still has details")
			}
			continue
		}
		if p.Details == nil {
			t.Errorf("sibling planet %s lost its details", p.ID)
		}
	}
}
