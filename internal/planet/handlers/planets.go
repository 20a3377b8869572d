package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"planets-service/internal/planet"
	sharederrors "planets-service/internal/shared/errors"
	"planets-service/internal/shared/response"
)

// PlanetsHandler serves the catalog collection: listing every planet and
// creating new ones.
type PlanetsHandler struct {
	service *planet.Service
}

func NewPlanetsHandler(service *planet.Service) *PlanetsHandler {
	return &PlanetsHandler{service: service}
}

func (h *PlanetsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		response.Error(w, r, slog.With("handler", "planets"), sharederrors.MethodNotAllowed(r.Method))
	}
}

func (h *PlanetsHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "list_planets")

	planets, err := h.service.ListAll(ctx)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	// One loader for the whole request: every details lookup below lands in
	// a single batched gateway call.
	loader := h.service.DetailsLoader()
	thunks := make([]planet.DetailsThunk, len(planets))
	for i, p := range planets {
		thunks[i] = loader.Load(ctx, p.ID)
	}

	resp := ListPlanetsResponse{Planets: make([]PlanetPayload, 0, len(planets))}
	for i, p := range planets {
		payload := planetPayload(p)

		details, err := thunks[i]()
		if err != nil {
			var notFound *planet.DetailsNotFoundError
			if errors.As(err, &notFound) {
				// A planet without details is a per-field failure; its
				// siblings still resolve.
				logger.Warn("Planet has no details row", "planet_id", p.ID)
				resp.Errors = append(resp.Errors, FieldError{PlanetID: payload.ID, Message: err.Error()})
				resp.Planets = append(resp.Planets, payload)
				continue
			}
			response.Error(w, r, logger, err)
			return
		}

		payload.Details, err = detailsPayload(details)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}
		resp.Planets = append(resp.Planets, payload)
	}

	response.Success(w, http.StatusOK, resp)
}

func (h *PlanetsHandler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "create_planet")

	var req CreatePlanetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, logger, sharederrors.WrapValidation("invalid request body", err))
		return
	}

	input, err := parseCreateRequest(req)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	created, err := h.service.Create(ctx, input)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusCreated, CreatePlanetResponse{ID: planet.FormatID(created.ID)})
}
