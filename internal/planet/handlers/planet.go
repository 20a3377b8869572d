package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"planets-service/internal/planet"
	sharederrors "planets-service/internal/shared/errors"
	"planets-service/internal/shared/response"
)

// PlanetHandler serves a single catalog record by its opaque identifier.
// The same handler backs the plain query route and the federation route
// used for cross-service entity resolution.
type PlanetHandler struct {
	service *planet.Service
}

func NewPlanetHandler(service *planet.Service) *PlanetHandler {
	return &PlanetHandler{service: service}
}

func (h *PlanetHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_planet")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, sharederrors.MethodNotAllowed(r.Method))
		return
	}

	wireID := r.PathValue("id")

	found, err := h.service.FindByID(ctx, wireID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	if found == nil {
		response.Error(w, r, logger, sharederrors.NotFoundf("planet %q not found", wireID))
		return
	}

	payload := planetPayload(*found)

	details, err := h.service.GetDetails(ctx, found.ID)
	if err != nil {
		var notFound *planet.DetailsNotFoundError
		if !errors.As(err, &notFound) {
			response.Error(w, r, logger, err)
			return
		}
		// The planet itself resolved; its missing details row is reported
		// as a not found on this single-field request.
		response.Error(w, r, logger, sharederrors.NotFoundf("details for planet %q not found", wireID))
		return
	}

	payload.Details, err = detailsPayload(details)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, payload)
}
