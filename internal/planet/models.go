package planet

import (
	"database/sql"
	"fmt"
	"math/big"
	"strconv"

	"planets-service/internal/scalar"
	"planets-service/internal/shared/errors"

	"github.com/cockroachdb/apd/v3"
)

// PlanetType classifies a body from an astronomical point of view. The
// constants carry the wire spelling, which is also what the planets table
// stores.
type PlanetType string

const (
	TypeTerrestrialPlanet PlanetType = "TERRESTRIAL_PLANET"
	TypeGasGiant          PlanetType = "GAS_GIANT"
	TypeIceGiant          PlanetType = "ICE_GIANT"
	TypeDwarfPlanet       PlanetType = "DWARF_PLANET"
)

// ParsePlanetType validates a planet type string.
func ParsePlanetType(s string) (PlanetType, error) {
	switch t := PlanetType(s); t {
	case TypeTerrestrialPlanet, TypeGasGiant, TypeIceGiant, TypeDwarfPlanet:
		return t, nil
	default:
		return "", fmt.Errorf("unknown planet type %q", s)
	}
}

// Planet is a catalog record. It is immutable once assembled from a
// persisted row.
type Planet struct {
	ID   int        `json:"id"`
	Name string     `json:"name"`
	Type PlanetType `json:"type"`
}

// Details is the physical-attribute record attached to a planet. It is a
// closed sum: exactly UninhabitedDetails or InhabitedDetails, discriminated
// solely by whether the detail row carries a population value. Consumers
// type-switch over both variants.
type Details interface {
	isDetails()
}

type UninhabitedDetails struct {
	MeanRadius *apd.Decimal
	Mass       *big.Int
}

func (UninhabitedDetails) isDetails() {}

type InhabitedDetails struct {
	MeanRadius *apd.Decimal
	Mass       *big.Int
	// Population is in billions.
	Population *apd.Decimal
}

func (InhabitedDetails) isDetails() {}

// MassInput is the client-side encoding of a planet's mass. The mass is a
// large number, so clients pass mantissa and exponent with base 10, e.g.
// 6.42e+23 as {mantissa: 6.42, exponent: 23}.
type MassInput struct {
	Mantissa float32
	Exponent uint8
}

// NewPlanetInput is the transient mutation input. It is consumed exactly
// once to produce a persisted planet and its details.
type NewPlanetInput struct {
	Name       string
	Type       PlanetType
	MeanRadius *apd.Decimal
	Mass       MassInput
	Population *apd.Decimal
}

// DetailsNotFoundError reports a planet that exists without a matching
// detail row. It is an internal consistency fault surfaced per field, so
// one broken planet does not void its siblings.
type DetailsNotFoundError struct {
	PlanetID int
}

func (e *DetailsNotFoundError) Error() string {
	return fmt.Sprintf("no details found for planet %d", e.PlanetID)
}

// PlanetRow is a persisted planets row.
type PlanetRow struct {
	ID   int
	Name string
	Type string
}

// DetailsRow is a persisted details row. Numeric columns stay strings at
// this layer; domain assembly parses them.
type DetailsRow struct {
	PlanetID   int
	MeanRadius string
	Mass       string
	Population sql.NullString
}

type NewPlanetRow struct {
	Name string
	Type string
}

type NewDetailsRow struct {
	MeanRadius string
	Mass       string
	Population *string
}

// ParseID translates an opaque wire identifier to the internal integer
// key. A malformed identifier fails the request, never coerces to zero.
func ParseID(wireID string) (int, error) {
	id, err := strconv.Atoi(wireID)
	if err != nil {
		return 0, errors.WrapValidation(fmt.Sprintf("invalid planet id %q", wireID), err)
	}
	return id, nil
}

// FormatID renders the internal key as its opaque wire form.
func FormatID(id int) string {
	return strconv.Itoa(id)
}

func planetFromRow(row PlanetRow) (Planet, error) {
	planetType, err := ParsePlanetType(row.Type)
	if err != nil {
		return Planet{}, errors.WrapInternal(fmt.Sprintf("planet %d has a corrupt type", row.ID), err)
	}

	return Planet{
		ID:   row.ID,
		Name: row.Name,
		Type: planetType,
	}, nil
}

func detailsFromRow(row DetailsRow) (Details, error) {
	meanRadius, err := scalar.ParseBigDecimal(row.MeanRadius)
	if err != nil {
		return nil, errors.WrapInternal(fmt.Sprintf("planet %d has a corrupt mean radius", row.PlanetID), err)
	}

	mass, ok := new(big.Int).SetString(row.Mass, 10)
	if !ok {
		return nil, errors.WrapInternal(fmt.Sprintf("planet %d has a corrupt mass", row.PlanetID), fmt.Errorf("not an integer: %q", row.Mass))
	}

	if !row.Population.Valid {
		return UninhabitedDetails{
			MeanRadius: meanRadius,
			Mass:       mass,
		}, nil
	}

	population, err := scalar.ParseBigDecimal(row.Population.String)
	if err != nil {
		return nil, errors.WrapInternal(fmt.Sprintf("planet %d has a corrupt population", row.PlanetID), err)
	}

	return InhabitedDetails{
		MeanRadius: meanRadius,
		Mass:       mass,
		Population: population,
	}, nil
}
