package planet

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"planets-service/internal/shared/database"

	"github.com/lib/pq"
)

// Repository is the row-level storage access layer for the planet catalog.
type Repository struct {
	db     *database.DB
	logger *slog.Logger
}

func NewRepository(db *database.DB, logger *slog.Logger) *Repository {
	logger.Debug("Initializing planet repository")

	return &Repository{
		db:     db,
		logger: logger,
	}
}

// AllPlanets returns every catalog row in stable id order.
func (r *Repository) AllPlanets(ctx context.Context) ([]PlanetRow, error) {
	logger := r.logger.With("component", "planet_repository", "operation", "all_planets")
	logger.Debug("Listing planets")

	query := `
		SELECT id, name, type
		FROM planets
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		logger.Error("Failed to query planets", "error", err)
		return nil, fmt.Errorf("failed to query planets: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var planets []PlanetRow
	for rows.Next() {
		var planet PlanetRow
		if err := rows.Scan(&planet.ID, &planet.Name, &planet.Type); err != nil {
			logger.Error("Failed to scan planet row", "error", err)
			return nil, fmt.Errorf("failed to scan planet: %w", err)
		}
		planets = append(planets, planet)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating planets: %w", err)
	}

	logger.Debug("Planets retrieved", "count", len(planets))
	return planets, nil
}

// GetPlanet returns one catalog row, or nil when the id is unknown. A
// missing planet is a normal outcome, not an error.
func (r *Repository) GetPlanet(ctx context.Context, id int) (*PlanetRow, error) {
	return r.getPlanet(ctx, r.db, id)
}

// getPlanet runs the single-row lookup on any executor, so plain reads and
// transactional reads share one path.
func (r *Repository) getPlanet(ctx context.Context, ex database.Executor, id int) (*PlanetRow, error) {
	logger := r.logger.With("component", "planet_repository", "operation", "get_planet", "planet_id", id)
	logger.Debug("Getting planet")

	query := `
		SELECT id, name, type
		FROM planets
		WHERE id = $1
	`

	var planet PlanetRow
	err := ex.QueryRowContext(ctx, query, id).Scan(&planet.ID, &planet.Name, &planet.Type)
	if err == sql.ErrNoRows {
		logger.Debug("Planet not found")
		return nil, nil
	}
	if err != nil {
		logger.Error("Failed to query planet", "error", err)
		return nil, fmt.Errorf("failed to query planet %d: %w", id, err)
	}

	return &planet, nil
}

// GetDetails returns the detail row of one planet, or nil when no row
// exists.
func (r *Repository) GetDetails(ctx context.Context, planetID int) (*DetailsRow, error) {
	logger := r.logger.With("component", "planet_repository", "operation", "get_details", "planet_id", planetID)
	logger.Debug("Getting planet details")

	query := `
		SELECT planet_id, mean_radius, mass, population
		FROM details
		WHERE planet_id = $1
	`

	var details DetailsRow
	err := r.db.QueryRowContext(ctx, query, planetID).Scan(
		&details.PlanetID,
		&details.MeanRadius,
		&details.Mass,
		&details.Population,
	)
	if err == sql.ErrNoRows {
		logger.Debug("Details not found")
		return nil, nil
	}
	if err != nil {
		logger.Error("Failed to query details", "error", err)
		return nil, fmt.Errorf("failed to query details for planet %d: %w", planetID, err)
	}

	return &details, nil
}

// GetDetailsBatch fetches the detail rows of all given planets in one
// query. Ids absent from the result simply have no detail row; the caller
// decides what that means.
func (r *Repository) GetDetailsBatch(ctx context.Context, planetIDs []int) (map[int]DetailsRow, error) {
	logger := r.logger.With("component", "planet_repository", "operation", "get_details_batch", "count", len(planetIDs))
	logger.Debug("Getting planet details in batch")

	if len(planetIDs) == 0 {
		return map[int]DetailsRow{}, nil
	}

	query := `
		SELECT planet_id, mean_radius, mass, population
		FROM details
		WHERE planet_id = ANY($1)
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(planetIDs))
	if err != nil {
		logger.Error("Failed to batch query details", "error", err)
		return nil, fmt.Errorf("failed to batch query details: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	results := make(map[int]DetailsRow, len(planetIDs))
	for rows.Next() {
		var details DetailsRow
		err := rows.Scan(
			&details.PlanetID,
			&details.MeanRadius,
			&details.Mass,
			&details.Population,
		)
		if err != nil {
			logger.Error("Failed to scan details row", "error", err)
			return nil, fmt.Errorf("failed to scan details: %w", err)
		}
		results[details.PlanetID] = details
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating details: %w", err)
	}

	logger.Debug("Details retrieved", "found", len(results))
	return results, nil
}

// CreatePlanet inserts a planet and its detail row in one transaction and
// returns the planet row with its assigned id.
func (r *Repository) CreatePlanet(ctx context.Context, newPlanet NewPlanetRow, newDetails NewDetailsRow) (*PlanetRow, error) {
	logger := r.logger.With(
		"component", "planet_repository",
		"operation", "create_planet",
		"name", newPlanet.Name,
		"type", newPlanet.Type,
	)
	logger.Debug("Creating planet")

	tx, err := r.db.BeginTxContext(ctx)
	if err != nil {
		logger.Error("Failed to begin transaction", "error", err)
		return nil, err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			logger.Error("Failed to rollback transaction", "error", err)
		}
	}()

	planetQuery := `
		INSERT INTO planets (name, type)
		VALUES ($1, $2)
		RETURNING id
	`

	var planetID int
	if err := tx.QueryRowContext(ctx, planetQuery, newPlanet.Name, newPlanet.Type).Scan(&planetID); err != nil {
		logger.Error("Failed to insert planet", "error", err)
		return nil, fmt.Errorf("failed to insert planet: %w", err)
	}

	detailsQuery := `
		INSERT INTO details (planet_id, mean_radius, mass, population)
		VALUES ($1, $2::numeric, $3::numeric, $4::numeric)
	`

	_, err = tx.ExecContext(ctx, detailsQuery, planetID, newDetails.MeanRadius, newDetails.Mass, newDetails.Population)
	if err != nil {
		logger.Error("Failed to insert planet details", "error", err)
		return nil, fmt.Errorf("failed to insert details: %w", err)
	}

	// Read the row back inside the transaction through the shared lookup.
	planet, err := r.getPlanet(ctx, tx, planetID)
	if err != nil {
		return nil, err
	}
	if planet == nil {
		logger.Error("Inserted planet row not visible in transaction", "planet_id", planetID)
		return nil, fmt.Errorf("inserted planet %d not found", planetID)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("Failed to commit transaction", "error", err)
		return nil, fmt.Errorf("failed to commit planet creation: %w", err)
	}

	logger.Info("Planet created successfully", "planet_id", planet.ID)
	return planet, nil
}
