package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"

	"github.com/playperu/realitybench/internal/eventlog"
)

// handleWatch streams a game's records over a WebSocket, one JSON record per
// text message. The server closes normally once the run ends.
func handleWatch(logger *slog.Logger, live *Games) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		since, filter := streamParams(r)
		stream, err := live.Follow(r.Context(), chi.URLParam(r, "id"), filter)
		if err != nil {
			writeErr(w, err)
			return
		}
		defer stream.Close()

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		// Watchers only listen; reading in the background handles pongs and
		// cancels ctx when the peer goes away.
		ctx := conn.CloseRead(r.Context())

		err = stream.Each(ctx, since,
			func(rec eventlog.Record) error {
				data, err := json.Marshal(rec)
				if err != nil {
					return err
				}
				wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
				defer cancel()
				return conn.Write(wctx, websocket.MessageText, data)
			},
			func() error {
				pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
				defer cancel()
				return conn.Ping(pctx)
			},
		)
		if err != nil {
			logger.Debug("websocket stream ended", "error", err)
			return
		}
		conn.Close(websocket.StatusNormalClosure, "game over")
	}
}
