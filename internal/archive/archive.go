// Package archive persists games and their event logs in SQLite. Records are
// written through an eventlog.Sink as they are appended, so a crashed run can
// be rebuilt from the archive by replay.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/playperu/realitybench/internal/eventlog"
)

var ErrNotFound = errors.New("not found")

type Status string

const (
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

// Game is one archived run. Config holds the submitted game file.
type Game struct {
	ID        string          `json:"id"`
	GameType  string          `json:"game_type"`
	Status    Status          `json:"status"`
	Config    json.RawMessage `json:"config,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Check reports whether the database is reachable.
func (s *Store) Check(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) CreateGame(ctx context.Context, id, gameType string, config json.RawMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO games (id, game_type, status, config) VALUES (?, ?, ?, jsonb(?))`,
		id, gameType, StatusRunning, string(config),
	)
	if err != nil {
		return fmt.Errorf("inserting game %s: %w", id, err)
	}
	return nil
}

const gameColumns = `id, game_type, status, json(config), json(result), error, created_at, updated_at`

func scanGame(row interface{ Scan(...any) error }) (Game, error) {
	var (
		g      Game
		config string
		result sql.NullString
	)
	if err := row.Scan(&g.ID, &g.GameType, &g.Status, &config, &result, &g.Error, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return Game{}, err
	}
	g.Config = json.RawMessage(config)
	if result.Valid {
		g.Result = json.RawMessage(result.String)
	}
	return g, nil
}

func (s *Store) GetGame(ctx context.Context, id string) (Game, error) {
	g, err := scanGame(s.db.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return Game{}, ErrNotFound
	}
	if err != nil {
		return Game{}, fmt.Errorf("loading game %s: %w", id, err)
	}
	return g, nil
}

// ListGames returns games newest first. An empty status lists every game.
func (s *Store) ListGames(ctx context.Context, status Status) ([]Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing games: %w", err)
	}
	defer rows.Close()

	games := []Game{}
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// Finish marks a game finished and stores its result document.
func (s *Store) Finish(ctx context.Context, id string, result any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	return s.update(ctx,
		`UPDATE games SET status = ?, result = jsonb(?), error = '', updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now') WHERE id = ?`,
		StatusFinished, string(data), id,
	)
}

// Fail marks a game failed. Its records stay, so it can be inspected or
// resumed later.
func (s *Store) Fail(ctx context.Context, id string, cause error) error {
	return s.update(ctx,
		`UPDATE games SET status = ?, error = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now') WHERE id = ?`,
		StatusFailed, cause.Error(), id,
	)
}

// Resume marks a game running again.
func (s *Store) Resume(ctx context.Context, id string) error {
	return s.update(ctx,
		`UPDATE games SET status = ?, error = '', updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now') WHERE id = ?`,
		StatusRunning, id,
	)
}

func (s *Store) update(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating game: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
