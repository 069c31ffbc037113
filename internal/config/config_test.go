package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/playperu/realitybench/internal/realitybench"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "DB_PATH", "LOG_LEVEL", "PROVIDER", "PROVIDER_RETRY_DELAY", "SEED"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.DBPath != "data/realitybench.db" || cfg.LogLevel != slog.LevelInfo {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Provider != ProviderOpenAI || cfg.ProviderMaxRetries != 12 || cfg.ProviderRetryDelay != 5*time.Second {
		t.Errorf("unexpected provider defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PROVIDER", "random")
	t.Setenv("SEED", "42")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("PROVIDER_RETRY_DELAY", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Provider != ProviderRandom || cfg.GameSeed() != 42 || cfg.LogLevel != slog.LevelDebug {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.ProviderRetryDelay != 250*time.Millisecond {
		t.Errorf("retry delay = %v", cfg.ProviderRetryDelay)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("PROVIDER", "carrier-pigeon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestParseGame(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{
			name: "valid",
			doc: `{"game_type": "THE_TRAITORS", "traitor_count": 2,
				"participants": [{"name": "Ann", "model": "m", "properties": {"age": 30}}]}`,
		},
		{name: "not json", doc: `game_type: x`, wantErr: true},
		{name: "no type", doc: `{"participants": [{"name": "Ann", "model": "m"}]}`, wantErr: true},
		{name: "no participants", doc: `{"game_type": "THE_TRAITORS"}`, wantErr: true},
		{name: "no model", doc: `{"game_type": "THE_TRAITORS", "participants": [{"name": "Ann"}]}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := ParseGame([]byte(tt.doc))
			if tt.wantErr {
				if !errors.Is(err, realitybench.ErrConfiguration) {
					t.Fatalf("err = %v, want ErrConfiguration", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if g.GameType != "THE_TRAITORS" || len(g.Participants) != 1 {
				t.Errorf("game = %+v", g)
			}
			if g.Participants[0].Properties["age"] != float64(30) {
				t.Errorf("properties = %v", g.Participants[0].Properties)
			}
			if string(g.Params) != tt.doc {
				t.Error("params must carry the whole document")
			}
		})
	}
}

func TestLoadGameFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.json")
	doc := `{"game_type": "THE_TRAITORS", "participants": [{"name": "Ann", "model": "m"}]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadGame(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := LoadGame(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
