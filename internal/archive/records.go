package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/playperu/realitybench/internal/eventlog"
)

// AppendRecord stores rec under game id. Records are immutable; writing the
// same sequence number twice is an error.
func (s *Store) AppendRecord(ctx context.Context, id string, rec eventlog.Record) error {
	var tags any
	if len(rec.Tags) > 0 {
		data, err := json.Marshal(rec.Tags)
		if err != nil {
			return fmt.Errorf("encoding tags: %w", err)
		}
		tags = string(data)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (game_id, seq, kind, payload, tags) VALUES (?, ?, ?, jsonb(?), jsonb(?))`,
		id, rec.ID, string(rec.Kind), string(rec.Payload), tags,
	)
	if err != nil {
		return fmt.Errorf("inserting record %d of game %s: %w", rec.ID, id, err)
	}
	return nil
}

// Sink returns an eventlog.Sink that archives every record of game id.
func (s *Store) Sink(id string) eventlog.Sink {
	return eventlog.SinkFunc(func(ctx context.Context, rec eventlog.Record) error {
		return s.AppendRecord(ctx, id, rec)
	})
}

// Records returns the archived log of game id in sequence order.
func (s *Store) Records(ctx context.Context, id string) ([]eventlog.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, kind, json(payload), json(tags) FROM records WHERE game_id = ? ORDER BY seq`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("loading records of game %s: %w", id, err)
	}
	defer rows.Close()

	var out []eventlog.Record
	for rows.Next() {
		var (
			rec     eventlog.Record
			kind    string
			payload string
			tags    sql.NullString
		)
		if err := rows.Scan(&rec.ID, &kind, &payload, &tags); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		rec.Kind = eventlog.Kind(kind)
		rec.Payload = json.RawMessage(payload)
		if tags.Valid {
			if err := json.Unmarshal([]byte(tags.String), &rec.Tags); err != nil {
				return nil, fmt.Errorf("decoding tags of record %d: %w", rec.ID, err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Log rebuilds the in-memory log of game id. The sinks see only records
// appended afterwards.
func (s *Store) Log(ctx context.Context, id string, sinks ...eventlog.Sink) (*eventlog.Store, error) {
	if _, err := s.GetGame(ctx, id); err != nil {
		return nil, err
	}
	records, err := s.Records(ctx, id)
	if err != nil {
		return nil, err
	}
	log := eventlog.New(sinks...)
	if err := log.Import(records); err != nil {
		return nil, fmt.Errorf("restoring log of game %s: %w", id, err)
	}
	return log, nil
}
