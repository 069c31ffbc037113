package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"
	"github.com/swaggest/swgui/v5emb"

	"github.com/playperu/realitybench/internal/archive"
	"github.com/playperu/realitybench/internal/config"
	"github.com/playperu/realitybench/internal/eventlog"
	"github.com/playperu/realitybench/internal/handler/health"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

type gamePath struct {
	ID string `path:"id"`
}

type listGamesQuery struct {
	Status archive.Status `query:"status" enum:"running,finished,failed"`
}

type recordsQuery struct {
	gamePath
	Kind      eventlog.Kind `query:"kind" enum:"event,prompt,query"`
	VisibleTo string        `query:"visible_to"`
}

type contextPath struct {
	gamePath
	Name string `path:"name"`
}

type streamQuery struct {
	gamePath
	Since       int64  `query:"since"`
	VisibleTo   string `query:"visible_to"`
	LastEventID string `header:"Last-Event-ID"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "RealityBench API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Runs and inspects social-deduction games played by language models.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(map[string]health.Result{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(map[string]health.Result{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /api/games
	listGames, _ := r.NewOperationContext(http.MethodGet, "/api/games")
	listGames.SetSummary("List games")
	listGames.SetDescription("Returns archived games, newest first, optionally filtered by status.")
	listGames.AddReqStructure(listGamesQuery{})
	listGames.AddRespStructure([]archive.Game{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(listGames)

	// POST /api/games
	createGame, _ := r.NewOperationContext(http.MethodPost, "/api/games")
	createGame.SetSummary("Start game")
	createGame.SetDescription("Validates a game file and starts playing it in the background.")
	createGame.AddReqStructure(config.Game{})
	createGame.AddRespStructure(CreateGameResponse{}, openapi.WithHTTPStatus(http.StatusAccepted))
	createGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(createGame)

	// GET /api/games/{id}
	getGame, _ := r.NewOperationContext(http.MethodGet, "/api/games/{id}")
	getGame.SetSummary("Get game")
	getGame.SetDescription("Returns a game with its state and results rebuilt from the log.")
	getGame.AddReqStructure(gamePath{})
	getGame.AddRespStructure(GameDetail{}, openapi.WithHTTPStatus(http.StatusOK))
	getGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getGame)

	// GET /api/games/{id}/records
	getRecords, _ := r.NewOperationContext(http.MethodGet, "/api/games/{id}/records")
	getRecords.SetSummary("Get records")
	getRecords.SetDescription("Returns the game's log as a replayable document, optionally filtered by kind or recipient.")
	getRecords.AddReqStructure(recordsQuery{})
	getRecords.AddRespStructure(eventlog.Document{}, openapi.WithHTTPStatus(http.StatusOK))
	getRecords.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getRecords)

	// GET /api/games/{id}/context/{name}
	getContext, _ := r.NewOperationContext(http.MethodGet, "/api/games/{id}/context/{name}")
	getContext.SetSummary("Get participant context")
	getContext.SetDescription("Renders the events one participant has seen so far.")
	getContext.AddReqStructure(contextPath{})
	getContext.AddRespStructure(ContextResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getContext.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getContext)

	// GET /api/games/{id}/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/games/{id}/events")
	getEvents.SetSummary("SSE record stream")
	getEvents.SetDescription("Server-Sent Events stream of the game's records. Ends with an end event when the run stops.")
	getEvents.AddReqStructure(streamQuery{})
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	getEvents.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getEvents)

	// GET /ws/games/{id}
	getWatch, _ := r.NewOperationContext(http.MethodGet, "/ws/games/{id}")
	getWatch.SetSummary("WebSocket record stream")
	getWatch.SetDescription("Upgrades to a WebSocket connection that sends each record as a JSON text message.")
	getWatch.AddReqStructure(streamQuery{})
	getWatch.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	getWatch.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getWatch)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

func handleSwaggerUI() http.HandlerFunc {
	return v5emb.New("RealityBench API", "/openapi.json", "/docs").ServeHTTP
}
