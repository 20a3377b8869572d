package planet

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"

	"planets-service/internal/shared/errors"

	"github.com/cockroachdb/apd/v3"
)

// Gateway is the persistence contract the resolver consumes. Repository is
// the production implementation.
type Gateway interface {
	AllPlanets(ctx context.Context) ([]PlanetRow, error)
	GetPlanet(ctx context.Context, id int) (*PlanetRow, error)
	GetDetails(ctx context.Context, planetID int) (*DetailsRow, error)
	GetDetailsBatch(ctx context.Context, planetIDs []int) (map[int]DetailsRow, error)
	CreatePlanet(ctx context.Context, newPlanet NewPlanetRow, newDetails NewDetailsRow) (*PlanetRow, error)
}

// Publisher delivers newly created planets to subscription streams. The
// in-process broker and the Redis bridge both satisfy it.
type Publisher interface {
	Publish(ctx context.Context, p Planet) error
}

// Service resolves wire identifiers to catalog records and assembles
// public planet values.
type Service struct {
	gateway   Gateway
	publisher Publisher
	logger    *slog.Logger
}

func NewService(gateway Gateway, publisher Publisher, logger *slog.Logger) *Service {
	logger.Debug("Initializing planet service")

	return &Service{
		gateway:   gateway,
		publisher: publisher,
		logger:    logger,
	}
}

// ListAll returns every planet in the catalog, preserving gateway order.
func (s *Service) ListAll(ctx context.Context) ([]Planet, error) {
	logger := s.logger.With("component", "planet_service", "operation", "list_all")
	logger.Debug("Listing planets")

	rows, err := s.gateway.AllPlanets(ctx)
	if err != nil {
		return nil, errors.WrapExternal("failed to list planets", err)
	}

	planets := make([]Planet, 0, len(rows))
	for _, row := range rows {
		planet, err := planetFromRow(row)
		if err != nil {
			return nil, err
		}
		planets = append(planets, planet)
	}

	logger.Debug("Planets listed", "count", len(planets))
	return planets, nil
}

// FindByID resolves an opaque wire identifier. A malformed identifier is a
// validation error; an unknown one is a normal nil result.
func (s *Service) FindByID(ctx context.Context, wireID string) (*Planet, error) {
	logger := s.logger.With("component", "planet_service", "operation", "find_by_id", "wire_id", wireID)
	logger.Debug("Finding planet")

	id, err := ParseID(wireID)
	if err != nil {
		return nil, err
	}

	row, err := s.gateway.GetPlanet(ctx, id)
	if err != nil {
		return nil, errors.WrapExternal(fmt.Sprintf("failed to get planet %d", id), err)
	}
	if row == nil {
		return nil, nil
	}

	planet, err := planetFromRow(*row)
	if err != nil {
		return nil, err
	}
	return &planet, nil
}

// GetDetails fetches one planet's details directly, for the singleton
// query path where batching buys nothing.
func (s *Service) GetDetails(ctx context.Context, planetID int) (Details, error) {
	row, err := s.gateway.GetDetails(ctx, planetID)
	if err != nil {
		return nil, errors.WrapExternal(fmt.Sprintf("failed to get details for planet %d", planetID), err)
	}
	if row == nil {
		return nil, &DetailsNotFoundError{PlanetID: planetID}
	}
	return detailsFromRow(*row)
}

// DetailsLoader returns a fresh request-scoped loader. One loader per
// inbound operation; it must never be shared across requests.
func (s *Service) DetailsLoader() *DetailsLoader {
	return NewDetailsLoader(s.gateway, s.logger)
}

// Create materializes the mass, persists the planet with its details,
// publishes the created record to live subscribers, and returns it with
// its assigned identifier. Publish failures are logged, not returned: the
// record is already durable and delivery is best-effort.
func (s *Service) Create(ctx context.Context, input NewPlanetInput) (Planet, error) {
	logger := s.logger.With("component", "planet_service", "operation", "create", "name", input.Name, "type", input.Type)
	logger.Debug("Creating planet")

	if input.Name == "" {
		return Planet{}, errors.Validation("planet name is required")
	}
	if input.MeanRadius == nil {
		return Planet{}, errors.Validation("mean radius is required")
	}

	mass := materializeMass(input.Mass)

	newDetails := NewDetailsRow{
		MeanRadius: input.MeanRadius.Text('f'),
		Mass:       mass.String(),
	}
	if input.Population != nil {
		population := input.Population.Text('f')
		newDetails.Population = &population
	}

	row, err := s.gateway.CreatePlanet(ctx, NewPlanetRow{Name: input.Name, Type: string(input.Type)}, newDetails)
	if err != nil {
		return Planet{}, errors.WrapExternal("failed to create planet", err)
	}

	created, err := planetFromRow(*row)
	if err != nil {
		return Planet{}, err
	}

	if err := s.publisher.Publish(ctx, created); err != nil {
		logger.Warn("Failed to publish created planet", "planet_id", created.ID, "error", err)
	}

	logger.Info("Planet created", "planet_id", created.ID)
	return created, nil
}

// materializeMass turns a {mantissa, exponent} pair into the exact integer
// mantissa × 10^exponent. The value never passes through a float wider
// than the client already sent, so precision survives astronomically large
// exponents.
func materializeMass(input MassInput) *big.Int {
	mantissa, _, err := apd.NewFromString(strconv.FormatFloat(float64(input.Mantissa), 'g', -1, 32))
	if err != nil {
		// FormatFloat output always parses.
		panic(fmt.Sprintf("unparseable mantissa: %v", err))
	}

	mantissa.Exponent += int32(input.Exponent)
	return decimalToBigInt(mantissa)
}

// decimalToBigInt truncates d toward zero into an arbitrary-precision
// integer.
func decimalToBigInt(d *apd.Decimal) *big.Int {
	value := new(big.Int).Set(d.Coeff.MathBigInt())

	switch {
	case d.Exponent > 0:
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(d.Exponent)), nil)
		value.Mul(value, scale)
	case d.Exponent < 0:
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-d.Exponent)), nil)
		value.Quo(value, scale)
	}

	if d.Negative {
		value.Neg(value)
	}
	return value
}
