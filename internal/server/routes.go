package server

import (
	"log/slog"
	"net/http"

	"planets-service/internal/events"
	"planets-service/internal/planet"
	planetHandlers "planets-service/internal/planet/handlers"
	serverHandlers "planets-service/internal/server/handlers"
	"planets-service/internal/shared/database"
)

type Routes struct {
	db            *database.DB
	planetService *planet.Service
	broker        *events.Broker[planet.Planet]
	logger        *slog.Logger
}

func NewRoutes(db *database.DB, planetService *planet.Service, broker *events.Broker[planet.Planet], logger *slog.Logger) *Routes {
	return &Routes{
		db:            db,
		planetService: planetService,
		broker:        broker,
		logger:        logger,
	}
}

func (r *Routes) Setup() *http.ServeMux {
	logger := slog.With("component", "routes", "operation", "setup")
	logger.Debug("Setting up application routes")

	mux := http.NewServeMux()

	healthHandler := serverHandlers.NewHealthHandler(r.db)
	planetsHandler := planetHandlers.NewPlanetsHandler(r.planetService)
	planetHandler := planetHandlers.NewPlanetHandler(r.planetService)
	subscribeHandler := planetHandlers.NewSubscribeHandler(r.broker)

	mux.Handle("/api/server/health", healthHandler)

	// Query and mutation surface
	mux.Handle("/api/planets", planetsHandler)
	mux.HandleFunc("/api/planets/{id}", planetHandler.GetByID)

	// Federation surface: same resolution semantics, separate route for
	// cross-service entity lookups
	mux.HandleFunc("/api/federation/planets/{id}", planetHandler.GetByID)

	// Subscription surface
	mux.Handle("/api/planets/latest", subscribeHandler)

	logger.Info("Routes configured successfully",
		"query_endpoints", []string{"/api/planets", "/api/planets/{id}", "/api/federation/planets/{id}"},
		"subscription_endpoints", []string{"/api/planets/latest"},
		"server_endpoints", []string{"/api/server/health"},
	)

	return mux
}
