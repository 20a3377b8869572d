package handlers

import (
	"fmt"

	"planets-service/internal/planet"
	"planets-service/internal/scalar"
	"planets-service/internal/shared/errors"
)

// PlanetPayload is the wire shape of a catalog record. Details is nil when
// resolving it failed; the failure then appears in the response's Errors.
type PlanetPayload struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Details *DetailsPayload `json:"details"`
}

// DetailsPayload carries the numeric scalars in their wire formats:
// meanRadius and population as canonical decimal strings, mass in
// scientific notation. Population is present only for inhabited planets.
type DetailsPayload struct {
	MeanRadius string  `json:"meanRadius"`
	Mass       string  `json:"mass"`
	Population *string `json:"population,omitempty"`
}

// FieldError reports a per-planet resolution failure that did not void the
// rest of the response.
type FieldError struct {
	PlanetID string `json:"planetId"`
	Message  string `json:"message"`
}

type ListPlanetsResponse struct {
	Planets []PlanetPayload `json:"planets"`
	Errors  []FieldError    `json:"errors,omitempty"`
}

type CreatePlanetResponse struct {
	ID string `json:"id"`
}

// CreatePlanetRequest mirrors the createPlanet mutation arguments.
type CreatePlanetRequest struct {
	Name    string              `json:"name"`
	Type    string              `json:"type"`
	Details DetailsInputPayload `json:"details"`
}

type DetailsInputPayload struct {
	MeanRadius string      `json:"meanRadius"`
	Mass       MassPayload `json:"mass"`
	Population *string     `json:"population"`
}

// MassPayload encodes a mass that is too large for any native wire number:
// the value is mantissa times ten to the exponent.
type MassPayload struct {
	Mantissa float32 `json:"mantissa"`
	Exponent uint8   `json:"exponent"`
}

func planetPayload(p planet.Planet) PlanetPayload {
	return PlanetPayload{
		ID:   planet.FormatID(p.ID),
		Name: p.Name,
		Type: string(p.Type),
	}
}

func detailsPayload(details planet.Details) (*DetailsPayload, error) {
	switch d := details.(type) {
	case planet.UninhabitedDetails:
		return &DetailsPayload{
			MeanRadius: scalar.FormatBigDecimal(d.MeanRadius),
			Mass:       scalar.FormatBigInt(d.Mass),
		}, nil
	case planet.InhabitedDetails:
		population := scalar.FormatBigDecimal(d.Population)
		return &DetailsPayload{
			MeanRadius: scalar.FormatBigDecimal(d.MeanRadius),
			Mass:       scalar.FormatBigInt(d.Mass),
			Population: &population,
		}, nil
	default:
		return nil, errors.WrapInternal("unhandled details variant", fmt.Errorf("%T", details))
	}
}

func parseCreateRequest(req CreatePlanetRequest) (planet.NewPlanetInput, error) {
	planetType, err := planet.ParsePlanetType(req.Type)
	if err != nil {
		return planet.NewPlanetInput{}, errors.WrapValidation("invalid planet type", err)
	}

	meanRadius, err := scalar.ParseBigDecimal(req.Details.MeanRadius)
	if err != nil {
		return planet.NewPlanetInput{}, errors.WrapValidation("invalid mean radius", err)
	}

	input := planet.NewPlanetInput{
		Name:       req.Name,
		Type:       planetType,
		MeanRadius: meanRadius,
		Mass: planet.MassInput{
			Mantissa: req.Details.Mass.Mantissa,
			Exponent: req.Details.Mass.Exponent,
		},
	}

	if req.Details.Population != nil {
		population, err := scalar.ParseBigDecimal(*req.Details.Population)
		if err != nil {
			return planet.NewPlanetInput{}, errors.WrapValidation("invalid population", err)
		}
		input.Population = population
	}

	return input, nil
}
