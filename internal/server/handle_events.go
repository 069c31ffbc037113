package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/realitybench/internal/eventlog"
)

// handleEvents streams a game's records as Server-Sent Events. Each record
// goes out as a "record" event whose id is the record's sequence number, so
// a reconnecting client resumes via Last-Event-ID. An "end" event follows the
// last record once the run stops.
func handleEvents(live *Games) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		since, filter := streamParams(r)
		stream, err := live.Follow(r.Context(), chi.URLParam(r, "id"), filter)
		if err != nil {
			writeErr(w, err)
			return
		}
		defer stream.Close()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		err = stream.Each(r.Context(), since,
			func(rec eventlog.Record) error {
				data, err := json.Marshal(rec)
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintf(w, "id: %d\nevent: record\ndata: %s\n\n", rec.ID, data); err != nil {
					return err
				}
				flusher.Flush()
				return nil
			},
			func() error {
				_, err := fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
				return err
			},
		)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "event: end\ndata: {}\n\n")
		flusher.Flush()
	}
}
