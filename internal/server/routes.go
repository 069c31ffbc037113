package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/realitybench/internal/archive"
	"github.com/playperu/realitybench/internal/runner"
)

// Deps are the services the HTTP surface reads from.
type Deps struct {
	Archive *archive.Store
	Games   *Games
	Runner  *runner.Runner
	// Health serves /healthz when set.
	Health http.Handler
}

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", handleSwaggerUI())
	if deps.Health != nil {
		r.Mount("/healthz", deps.Health)
	}

	r.Route("/api/games", func(r chi.Router) {
		r.Get("/", handleListGames(deps.Archive))
		r.Post("/", handleCreateGame(deps.Games))
		r.Get("/{id}", handleGetGame(deps.Archive, deps.Games, deps.Runner))
		r.Get("/{id}/records", handleRecords(deps.Games, deps.Runner))
		r.Get("/{id}/context/{name}", handleContext(deps.Games, deps.Runner))
		r.Get("/{id}/events", handleEvents(deps.Games))
	})
	r.Get("/ws/games/{id}", handleWatch(logger, deps.Games))
}
