package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"rfidd/internal/driver/sim"
	"rfidd/internal/httpapi"
	"rfidd/internal/session"
)

// fastTimings keeps the scheduling ratios but runs them quickly.
var fastTimings = session.Timings{
	OpTimeout:        500 * time.Millisecond,
	ResumeGrace:      30 * time.Millisecond,
	MinStartInterval: 20 * time.Millisecond,
	FastRestart:      5 * time.Millisecond,
	SlowRestart:      20 * time.Millisecond,
	PresenceWindow:   50 * time.Millisecond,
	TuneCadence:      10 * time.Millisecond,
	QuietWindow:      30 * time.Millisecond,
}

type harness struct {
	srv    *httptest.Server
	reader *sim.Reader
	sess   *session.Session
}

// newHarness runs a session over a simulated reader behind the HTTP API.
func newHarness(t *testing.T, tags ...sim.Tag) *harness {
	t.Helper()
	reader := sim.New(sim.Config{Tags: tags, RoundTime: 5 * time.Millisecond})
	events := session.NewBroadcaster(256)
	sess := session.New(session.Config{
		Driver:    reader,
		Publisher: events,
		Logger:    zerolog.Nop(),
		Timings:   fastTimings,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	httpapi.SetLogger(zerolog.Nop())
	srv := httptest.NewServer(httpapi.NewMux(sess, events))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("session run: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Errorf("session did not stop")
		}
	})
	return &harness{srv: srv, reader: reader, sess: sess}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader([]byte(payload)))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

// mustOK posts payload and requires {"ok":true}.
func (h *harness) mustOK(t *testing.T, path, payload string) {
	t.Helper()
	resp, body := httpPostJSON(t, h.srv.URL+path, payload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s: status %d body=%s", path, resp.StatusCode, body)
	}
	var out struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(body, &out); err != nil || !out.OK {
		t.Fatalf("%s: body=%s err=%v", path, body, err)
	}
}

func (h *harness) status(t *testing.T) session.Status {
	t.Helper()
	resp, body := httpGet(t, h.srv.URL+"/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d %s", resp.StatusCode, body)
	}
	var st session.Status
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return st
}

type sseFrame struct {
	Name string
	Data session.Event
}

// openEvents subscribes to /events and returns decoded frames.
func openEvents(t *testing.T, base string) <-chan sseFrame {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/events", nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("subscribe: status %d", resp.StatusCode)
	}
	out := make(chan sseFrame, 256)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		sc := bufio.NewScanner(resp.Body)
		var name string
		for sc.Scan() {
			line := sc.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				var ev session.Event
				if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev) == nil {
					select {
					case out <- sseFrame{Name: name, Data: ev}:
					default:
					}
				}
			}
		}
	}()
	t.Cleanup(cancel)
	// Subscribe ran before the headers were written
	return out
}

// waitFor reads frames until one named name satisfies match.
func waitFor(t *testing.T, frames <-chan sseFrame, name string, match func(session.Event) bool, d time.Duration) session.Event {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				t.Fatalf("event stream closed while waiting for %s", name)
			}
			if f.Name == name && (match == nil || match(f.Data)) {
				return f.Data
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", name)
		}
	}
}

// eventually polls cond until it holds or d elapses.
func eventually(t *testing.T, d time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
