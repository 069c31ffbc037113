package server

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/playperu/realitybench/internal/eventlog"
)

const pingInterval = 30 * time.Second

// Stream follows one game's log: the records appended so far, then every
// record appended while its run plays here.
type Stream struct {
	broker  *Broker
	gameID  string
	ch      chan eventlog.Record
	backlog []eventlog.Record
	filter  eventlog.Tags
	// log is the live run's log, used to fill records the broker dropped.
	log     *eventlog.Store
}

// Follow opens a stream on game id. A game that is not playing in this
// process streams its archived records and ends.
func (g *Games) Follow(ctx context.Context, id string, filter eventlog.Tags) (*Stream, error) {
	// Subscribe before reading the backlog so no record falls between them.
	ch := g.broker.Subscribe(id)
	s := &Stream{broker: g.broker, gameID: id, ch: ch, filter: filter}

	if run, ok := g.Get(id); ok {
		s.log = run.Log
		s.backlog = run.Log.Records()
		return s, nil
	}

	g.broker.Unsubscribe(id, ch)
	s.ch = nil
	if _, err := g.archive.GetGame(ctx, id); err != nil {
		return nil, err
	}
	records, err := g.archive.Records(ctx, id)
	if err != nil {
		return nil, err
	}
	s.backlog = records
	return s, nil
}

func (s *Stream) Close() {
	if s.ch != nil {
		s.broker.Unsubscribe(s.gameID, s.ch)
	}
}

// Each calls emit for every record with an id above since, in order, and
// calls ping while idle. It returns nil once the run ends.
func (s *Stream) Each(ctx context.Context, since int64, emit func(eventlog.Record) error, ping func() error) error {
	last := since
	send := func(rec eventlog.Record) error {
		if rec.ID <= last {
			return nil
		}
		last = rec.ID
		if !rec.Tags.Match(s.filter) {
			return nil
		}
		return emit(rec)
	}

	for _, rec := range s.backlog {
		if err := send(rec); err != nil {
			return err
		}
	}
	if s.ch == nil {
		return nil
	}

	// fill sends the records below upto that the broker dropped.
	fill := func(upto int64) error {
		for _, rec := range s.log.Where(func(r eventlog.Record) bool { return r.ID > last && r.ID < upto }) {
			if err := send(rec); err != nil {
				return err
			}
		}
		return nil
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-s.ch:
			if !ok {
				return fill(math.MaxInt64)
			}
			if err := fill(rec.ID); err != nil {
				return err
			}
			if err := send(rec); err != nil {
				return err
			}
		case <-ticker.C:
			if err := ping(); err != nil {
				return err
			}
		}
	}
}

// streamParams reads the resume point and participant filter shared by the
// streaming endpoints.
func streamParams(r *http.Request) (since int64, filter eventlog.Tags) {
	q := r.URL.Query()
	raw := r.Header.Get("Last-Event-ID")
	if raw == "" {
		raw = q.Get("since")
	}
	since, _ = strconv.ParseInt(raw, 10, 64)
	if name := q.Get("visible_to"); name != "" {
		filter = eventlog.VisibleTo(name)
	}
	return since, filter
}
