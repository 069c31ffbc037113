package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/playperu/realitybench/internal/config"
	"github.com/playperu/realitybench/internal/eventlog"
	"github.com/playperu/realitybench/internal/provider"
	"github.com/playperu/realitybench/internal/realitybench"
)

type sseEvent struct {
	id    string
	event string
	data  string
}

func readSSE(t *testing.T, url string, header http.Header) []sseEvent {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content-type = %q", got)
	}

	var (
		events []sseEvent
		cur    sseEvent
	)
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if cur.event != "" {
				events = append(events, cur)
			}
			cur = sseEvent{}
		case strings.HasPrefix(line, "id: "):
			cur.id = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "event: "):
			cur.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		}
	}
	return events
}

func TestEventsStreamsArchivedGame(t *testing.T) {
	env := newTestEnv(t, provider.NewRandom(5))
	id := env.createFinished(t, gameDoc(7, 2))
	records, err := env.store.Records(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		query  string
		header http.Header
		want   func(eventlog.Record) bool
	}{
		{
			name: "everything",
			want: func(eventlog.Record) bool { return true },
		},
		{
			name:   "resume after last event id",
			header: http.Header{"Last-Event-Id": []string{"10"}},
			want:   func(r eventlog.Record) bool { return r.ID > 10 },
		},
		{
			name:  "one participant",
			query: "?visible_to=P2",
			want:  func(r eventlog.Record) bool { return r.Tags[eventlog.VisibleTag("P2")] },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := readSSE(t, env.srv.URL+"/api/games/"+id+"/events"+tt.query, tt.header)

			var want []int64
			for _, r := range records {
				if tt.want(r) {
					want = append(want, r.ID)
				}
			}
			if len(events) != len(want)+1 {
				t.Fatalf("got %d events, want %d records and an end event", len(events), len(want))
			}
			for i, id := range want {
				ev := events[i]
				if ev.event != "record" || ev.id != strconv.FormatInt(id, 10) {
					t.Fatalf("event %d = %+v, want record %d", i, ev, id)
				}
				var rec eventlog.Record
				if err := json.Unmarshal([]byte(ev.data), &rec); err != nil || rec.ID != id {
					t.Fatalf("event %d data = %s (%v)", i, ev.data, err)
				}
			}
			if last := events[len(events)-1]; last.event != "end" {
				t.Errorf("last event = %+v, want end", last)
			}
		})
	}
}

func TestWatchStreamsArchivedGame(t *testing.T) {
	env := newTestEnv(t, provider.NewRandom(6))
	id := env.createFinished(t, gameDoc(7, 2))
	records, err := env.store.Records(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + env.srv.URL[len("http"):] + "/ws/games/" + id
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	var got []int64
	for {
		typ, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				t.Fatalf("read: %v", err)
			}
			break
		}
		if typ != websocket.MessageText {
			t.Fatalf("message type = %v", typ)
		}
		var rec eventlog.Record
		if err := json.Unmarshal(msg, &rec); err != nil {
			t.Fatalf("decoding %s: %v", msg, err)
		}
		got = append(got, rec.ID)
	}

	if len(got) != len(records) {
		t.Fatalf("received %d records, archive has %d", len(got), len(records))
	}
	for i, rec := range records {
		if got[i] != rec.ID {
			t.Fatalf("message %d carries record %d, want %d", i, got[i], rec.ID)
		}
	}
}

func TestWatchUnknownGame(t *testing.T) {
	env := newTestEnv(t, provider.NewRandom(6))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, "ws"+env.srv.URL[len("http"):]+"/ws/games/missing", nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("response = %+v, want 404", resp)
	}
}

// gated holds every completion until the gate is closed.
type gated struct {
	gate chan struct{}
	next realitybench.Provider
}

func (g gated) Complete(ctx context.Context, req realitybench.Request) (string, error) {
	select {
	case <-g.gate:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return g.next.Complete(ctx, req)
}

func TestFollowLiveGameIsLossless(t *testing.T) {
	gate := make(chan struct{})
	env := newTestEnv(t, gated{gate: gate, next: provider.NewRandom(8)})
	ctx := context.Background()

	file, err := config.ParseGame([]byte(gameDoc(9, 2)))
	if err != nil {
		t.Fatal(err)
	}
	run, err := env.live.Start(ctx, file)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	stream, err := env.live.Follow(ctx, run.ID, nil)
	if err != nil {
		t.Fatalf("follow: %v", err)
	}
	defer stream.Close()
	close(gate)

	var got []int64
	err = stream.Each(ctx, 0, func(rec eventlog.Record) error {
		// A slow consumer makes the broker drop records.
		if len(got) == 0 {
			time.Sleep(50 * time.Millisecond)
		}
		got = append(got, rec.ID)
		return nil
	}, func() error { return nil })
	if err != nil {
		t.Fatalf("each: %v", err)
	}

	env.live.Wait()
	if len(got) != run.Log.Len() {
		t.Fatalf("streamed %d records, log has %d", len(got), run.Log.Len())
	}
	for i, id := range got {
		if id != int64(i+1) {
			t.Fatalf("record %d has id %d", i, id)
		}
	}
	if _, ok := env.live.Get(run.ID); ok {
		t.Error("finished run is still registered")
	}
}

func TestResumeRefusesPlayingGame(t *testing.T) {
	gate := make(chan struct{})
	env := newTestEnv(t, gated{gate: gate, next: provider.NewRandom(9)})
	ctx := context.Background()

	file, err := config.ParseGame([]byte(gameDoc(7, 2)))
	if err != nil {
		t.Fatal(err)
	}
	run, err := env.live.Start(ctx, file)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.live.Resume(ctx, run.ID); !errors.Is(err, ErrAlreadyPlaying) {
		t.Errorf("resuming a playing game: err = %v, want ErrAlreadyPlaying", err)
	}
	close(gate)
	env.live.Wait()

	if _, err := env.live.Resume(ctx, "missing"); err == nil {
		t.Error("expected resuming an unknown game to fail")
	}
}

func TestResumeRunningPicksUpInterruptedGames(t *testing.T) {
	gate := make(chan struct{})
	env := newTestEnv(t, gated{gate: gate, next: provider.NewRandom(10)})

	// Interrupt a run by cancelling the Games that owns it.
	ctx, cancel := context.WithCancel(context.Background())
	first := NewGames(ctx, env.live.runner, env.store, env.live.logger)
	file, err := config.ParseGame([]byte(gameDoc(7, 2)))
	if err != nil {
		t.Fatal(err)
	}
	run, err := first.Start(context.Background(), file)
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := first.Wait(); err != nil {
		t.Fatal(err)
	}

	close(gate)
	if err := env.live.ResumeRunning(context.Background()); err != nil {
		t.Fatalf("resume running: %v", err)
	}
	env.live.Wait()

	stored, err := env.store.GetGame(context.Background(), run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != "finished" {
		t.Errorf("status = %s, want finished", stored.Status)
	}
}

func TestConcurrentResumePlaysOnce(t *testing.T) {
	gate := make(chan struct{})
	env := newTestEnv(t, gated{gate: gate, next: provider.NewRandom(12)})

	ctx, cancel := context.WithCancel(context.Background())
	first := NewGames(ctx, env.live.runner, env.store, env.live.logger)
	file, err := config.ParseGame([]byte(gameDoc(7, 2)))
	if err != nil {
		t.Fatal(err)
	}
	run, err := first.Start(context.Background(), file)
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := first.Wait(); err != nil {
		t.Fatal(err)
	}

	const callers = 4
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.live.Resume(context.Background(), run.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, refused int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadyPlaying):
			refused++
		default:
			t.Errorf("resume: %v", err)
		}
	}
	if ok != 1 || refused != callers-1 {
		t.Errorf("%d resumes succeeded and %d were refused, want 1 and %d", ok, refused, callers-1)
	}

	close(gate)
	env.live.Wait()
	stored, err := env.store.GetGame(context.Background(), run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != "finished" {
		t.Errorf("status = %s, want finished", stored.Status)
	}
}

func TestStreamParams(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		lastID     string
		wantSince  int64
		wantFilter eventlog.Tags
	}{
		{name: "none", url: "/x"},
		{name: "query", url: "/x?since=4&visible_to=Ann", wantSince: 4, wantFilter: eventlog.VisibleTo("Ann")},
		{name: "header wins", url: "/x?since=4", lastID: "9", wantSince: 9},
		{name: "garbage", url: "/x?since=abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, tt.url, nil)
			if tt.lastID != "" {
				req.Header.Set("Last-Event-ID", tt.lastID)
			}
			since, filter := streamParams(req)
			if since != tt.wantSince {
				t.Errorf("since = %d, want %d", since, tt.wantSince)
			}
			if len(filter) != len(tt.wantFilter) || !filter.Match(tt.wantFilter) {
				t.Errorf("filter = %v, want %v", filter, tt.wantFilter)
			}
		})
	}
}
