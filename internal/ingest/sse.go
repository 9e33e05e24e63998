// Package ingest keeps a permanent subscription to the cat-door SSE feed.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/pepitohq/pepitobot/internal/bus"
	"github.com/pepitohq/pepitobot/internal/config"
)

// eventMarker tags the frames we care about; the feed also carries
// heartbeats and other chatter that is silently dropped.
const eventMarker = "pepito"

var dataPrefix = []byte("data: ")

// Ingestor connects to the upstream stream, parses its line framing and
// feeds accepted frames to the queue. On any connection error it backs off
// for a fixed delay and reconnects; the loop only ends with the process.
type Ingestor struct {
	url     string
	client  *http.Client
	queue   *bus.EventQueue
	backoff time.Duration
}

func New(streamCfg config.StreamConfig, retryCfg config.RetryConfig, queue *bus.EventQueue) *Ingestor {
	headerTimeout := time.Duration(streamCfg.Timeout) * time.Second
	// No overall client timeout: the response body is an endless stream.
	client := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: headerTimeout, KeepAlive: 60 * time.Second}).DialContext,
			ResponseHeaderTimeout: headerTimeout,
			TLSHandshakeTimeout:   5 * time.Second,
		},
	}

	delay := time.Duration(retryCfg.BackoffFactor * 2 * float64(time.Second))
	if delay <= 0 {
		delay = time.Second
	}

	return &Ingestor{
		url:     streamCfg.URL,
		client:  client,
		queue:   queue,
		backoff: delay,
	}
}

// Run blocks until ctx is cancelled, reconnecting forever. There is no
// retry cap: a dead upstream just means a quiet cat.
func (i *Ingestor) Run(ctx context.Context) {
	for {
		log.Printf("[sse] connecting to %s", i.url)
		if err := i.streamOnce(ctx); err != nil {
			log.Printf("[sse] stream error: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(i.backoff):
		}
	}
}

// streamOnce holds one connection open and scans it line by line. Returns
// when the connection dies or ctx is cancelled.
func (i *Ingestor) streamOnce(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.url, nil)
	if err != nil {
		return fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := i.client.Do(req)
	if err != nil {
		return fmt.Errorf("connect stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream status %d", resp.StatusCode)
	}

	log.Printf("[sse] connected")

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		i.handleLine(ctx, scanner.Bytes())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return fmt.Errorf("stream closed by upstream")
}

// handleLine processes a single raw line. Malformed lines are logged and
// skipped; they never take the stream down.
func (i *Ingestor) handleLine(ctx context.Context, line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}
	line = bytes.TrimPrefix(line, dataPrefix)

	frame, err := bus.ParseFrame(line)
	if err != nil {
		log.Printf("[sse] skipping unparseable line: %v", err)
		return
	}
	if frame.Event != eventMarker {
		return
	}

	if !i.queue.Enqueue(ctx, frame) {
		return
	}
	log.Printf("[sse] queued %s event at %d", frame.Type, frame.Time)
}
