package server

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/realitybench/internal/archive"
	"github.com/playperu/realitybench/internal/config"
	"github.com/playperu/realitybench/internal/eventlog"
	"github.com/playperu/realitybench/internal/realitybench"
	"github.com/playperu/realitybench/internal/runner"
	"github.com/playperu/realitybench/internal/traitors"
)

const maxGameFileBytes = 1 << 20

type CreateGameResponse struct {
	ID     string         `json:"id"`
	Status archive.Status `json:"status"`
}

// GameDetail is an archived game with its state rebuilt from the log.
type GameDetail struct {
	archive.Game
	Live    bool                 `json:"live"`
	Records int                  `json:"records"`
	Results realitybench.Results `json:"results"`
	State   *traitors.State      `json:"state,omitempty"`
}

type ContextResponse struct {
	Participant string `json:"participant"`
	Context     string `json:"context"`
}

func handleListGames(store *archive.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := archive.Status(r.URL.Query().Get("status"))
		list, err := store.ListGames(r.Context(), status)
		if err != nil {
			writeErr(w, err)
			return
		}
		for i := range list {
			list[i].Config = nil
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleCreateGame(live *Games) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		data, err := io.ReadAll(io.LimitReader(r.Body, maxGameFileBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "reading body")
			return
		}
		file, err := config.ParseGame(data)
		if err != nil {
			writeErr(w, err)
			return
		}

		run, err := live.Start(r.Context(), file)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, CreateGameResponse{ID: run.ID, Status: archive.StatusRunning})
	}
}

// inspect returns a replayed copy of game id: a snapshot of the live run when
// it is playing here, otherwise a rebuild from the archive.
func inspect(r *http.Request, live *Games, rn *runner.Runner, id string) (*runner.Run, bool, error) {
	if run, ok := live.Get(id); ok {
		snap, err := rn.Snapshot(run)
		return snap, true, err
	}
	run, err := rn.Rebuild(r.Context(), id)
	return run, false, err
}

func handleGetGame(store *archive.Store, live *Games, rn *runner.Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		stored, err := store.GetGame(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}

		run, playing, err := inspect(r, live, rn, id)
		if err != nil {
			writeErr(w, err)
			return
		}

		detail := GameDetail{
			Game:    stored,
			Live:    playing,
			Records: run.Log.Len(),
			Results: run.Game.Results(),
		}
		if tg, ok := run.Game.(*traitors.Game); ok {
			st := tg.State()
			detail.State = &st
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

func handleRecords(live *Games, rn *runner.Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log, err := gameLog(r, live, rn)
		if err != nil {
			writeErr(w, err)
			return
		}

		q := r.URL.Query()
		kind := eventlog.Kind(q.Get("kind"))
		var want eventlog.Tags
		if name := q.Get("visible_to"); name != "" {
			want = eventlog.VisibleTo(name)
		}

		records := log.Where(func(rec eventlog.Record) bool {
			return (kind == "" || rec.Kind == kind) && rec.Tags.Match(want)
		})
		if records == nil {
			records = []eventlog.Record{}
		}
		writeJSON(w, http.StatusOK, eventlog.Document{Version: eventlog.DocumentVersion, Records: records})
	}
}

// handleContext renders what one participant has seen so far. Viewing it
// does not add a query record to the game's log.
func handleContext(live *Games, rn *runner.Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log, err := gameLog(r, live, rn)
		if err != nil {
			writeErr(w, err)
			return
		}
		name := chi.URLParam(r, "name")
		text, err := eventlog.Render(log.Visible(name))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ContextResponse{Participant: name, Context: text})
	}
}

func gameLog(r *http.Request, live *Games, rn *runner.Runner) (*eventlog.Store, error) {
	id := chi.URLParam(r, "id")
	if run, ok := live.Get(id); ok {
		return run.Log, nil
	}
	run, err := rn.Rebuild(r.Context(), id)
	if err != nil {
		return nil, err
	}
	return run.Log, nil
}
