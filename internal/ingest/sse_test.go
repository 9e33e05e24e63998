package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pepitohq/pepitobot/internal/bus"
	"github.com/pepitohq/pepitobot/internal/config"
)

func newTestIngestor(url string, queue *bus.EventQueue) *Ingestor {
	return New(
		config.StreamConfig{URL: url, Timeout: 2},
		config.RetryConfig{BackoffFactor: 0.01},
		queue,
	)
}

func TestHandleLine_AcceptsMarkedEvents(t *testing.T) {
	q := bus.NewEventQueue(10)
	i := newTestIngestor("http://unused", q)

	i.handleLine(context.Background(), []byte(`data: {"event":"pepito","type":"in","time":1700000000,"img":"https://x/cat.jpg"}`))

	if q.Len() != 1 {
		t.Fatalf("queue length = %d, want 1", q.Len())
	}
	f := <-q.Frames()
	if f.Type != "in" || f.Time != 1700000000 {
		t.Errorf("unexpected frame: %+v", f)
	}
}

func TestHandleLine_DropsUnmarkedAndMalformed(t *testing.T) {
	q := bus.NewEventQueue(10)
	i := newTestIngestor("http://unused", q)

	lines := []string{
		"",
		"   ",
		"data: not json at all",
		`data: {"event":"heartbeat","time":1}`,
		`{"no_event_key": true}`,
		`data: {"event":"other","type":"in","time":1,"img":"x"}`,
	}
	for _, line := range lines {
		i.handleLine(context.Background(), []byte(line))
	}

	if q.Len() != 0 {
		t.Errorf("queue length = %d, want 0 (lines: %q)", q.Len(), lines)
	}
}

func TestHandleLine_WithoutDataPrefix(t *testing.T) {
	// The framing prefix is optional; a bare JSON line still parses.
	q := bus.NewEventQueue(10)
	i := newTestIngestor("http://unused", q)

	i.handleLine(context.Background(), []byte(`{"event":"pepito","type":"out","time":42,"img":"y"}`))
	if q.Len() != 1 {
		t.Errorf("queue length = %d, want 1", q.Len())
	}
}

func TestStreamOnce_EnqueuesFromServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintln(w, `data: {"event":"pepito","type":"in","time":1000,"img":"a"}`)
		fmt.Fprintln(w, "data: broken json")
		fmt.Fprintln(w, `data: {"event":"pepito","type":"out","time":2000,"img":"b"}`)
	}))
	defer srv.Close()

	q := bus.NewEventQueue(10)
	i := newTestIngestor(srv.URL, q)

	// Upstream closing the body is reported as an error so the caller
	// reconnects.
	if err := i.streamOnce(context.Background()); err == nil {
		t.Error("expected error when upstream closes the stream")
	}

	if q.Len() != 2 {
		t.Fatalf("queue length = %d, want 2", q.Len())
	}
	first := <-q.Frames()
	second := <-q.Frames()
	if first.Time != 1000 || second.Time != 2000 {
		t.Errorf("wrong order: %d then %d", first.Time, second.Time)
	}
}

func TestStreamOnce_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	q := bus.NewEventQueue(10)
	i := newTestIngestor(srv.URL, q)

	if err := i.streamOnce(context.Background()); err == nil {
		t.Error("expected error for non-200 response")
	}
	if q.Len() != 0 {
		t.Errorf("queue length = %d, want 0", q.Len())
	}
}

func TestRun_ReconnectsAfterFailure(t *testing.T) {
	var connections atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if connections.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintln(w, `data: {"event":"pepito","type":"in","time":1000,"img":"a"}`)
	}))
	defer srv.Close()

	q := bus.NewEventQueue(10)
	i := newTestIngestor(srv.URL, q)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		i.Run(ctx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for q.Len() == 0 {
		select {
		case <-deadline:
			t.Fatal("no frame arrived after reconnect")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if connections.Load() < 2 {
		t.Errorf("connections = %d, want at least 2", connections.Load())
	}
}
