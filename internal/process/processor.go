// Package process drains the event queue: one worker, strict FIFO, so
// duration arithmetic always sees events in arrival order.
package process

import (
	"context"
	"log"

	"github.com/pepitohq/pepitobot/internal/bus"
	"github.com/pepitohq/pepitobot/internal/chart"
	"github.com/pepitohq/pepitobot/internal/status"
	"github.com/pepitohq/pepitobot/internal/store"
)

// EventStore is the slice of the store the processor writes through.
type EventStore interface {
	Append(typ store.EventType, occurredAt int64, img string) (int64, error)
	PreviousOpposite(typ store.EventType, before int64) (*store.Event, error)
}

// Deliverer pushes one notification to one chat.
type Deliverer interface {
	DeliverUpdate(chatID int64, imgURL, caption string) error
	DeliverChart(chatID int64, png []byte, caption string) error
}

// ChartRenderer produces the optional price overlay for a segment window.
// A nil image with nil error means "no chart this time".
type ChartRenderer interface {
	Render(ctx context.Context, start, end int64, durationLabel string, typ store.EventType) ([]byte, error)
}

// Report tallies one event's fan-out for the log.
type Report struct {
	Delivered int
	Failed    int
}

type Processor struct {
	store      EventStore
	queue      *bus.EventQueue
	deliver    Deliverer
	charts     ChartRenderer
	recipients []int64
}

func New(st EventStore, queue *bus.EventQueue, deliver Deliverer, charts ChartRenderer, recipients []int64) *Processor {
	return &Processor{
		store:      st,
		queue:      queue,
		deliver:    deliver,
		charts:     charts,
		recipients: recipients,
	}
}

// Run consumes frames until the queue closes or ctx is cancelled. No frame,
// however broken, stops the loop.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-p.queue.Frames():
			if !ok {
				return
			}
			report := p.handle(ctx, frame)
			log.Printf("[processor] %s event at %d: delivered %d, failed %d",
				frame.Type, frame.Time, report.Delivered, report.Failed)
		}
	}
}

// handle runs the full per-event pipeline: persist, compute the prior
// segment, fan out. An event that cannot be persisted is never announced;
// the frame is dropped and the loop moves on. Each recipient failure is
// isolated.
func (p *Processor) handle(ctx context.Context, frame bus.Frame) Report {
	var report Report

	if !frame.Valid() {
		log.Printf("[processor] dropping malformed frame: %+v", frame)
		return report
	}
	typ := store.EventType(frame.Type)

	if _, err := p.store.Append(typ, frame.Time, frame.Img); err != nil {
		log.Printf("[processor] persist failed, dropping event: %v", err)
		return report
	}

	prev, err := p.store.PreviousOpposite(typ, frame.Time)
	if err != nil {
		log.Printf("[processor] previous event lookup failed: %v", err)
		prev = nil
	}

	var durationLabel string
	if prev != nil {
		durationLabel = status.FormatDuration(frame.Time - prev.Time)
	}
	caption := status.UpdateCaption(typ, frame.Time, durationLabel)

	// The chart window depends only on the event, not the recipient, so
	// render once and reuse the bytes for every chat.
	var chartPNG []byte
	if prev != nil && p.charts != nil {
		png, err := p.charts.Render(ctx, prev.Time, frame.Time, durationLabel, typ)
		if err != nil {
			log.Printf("[processor] chart render failed: %v", err)
		} else {
			chartPNG = png
		}
	}
	chartCaption := ""
	if chartPNG != nil {
		chartCaption = chart.Caption(typ, durationLabel)
	}

	for _, chatID := range p.recipients {
		if err := p.deliver.DeliverUpdate(chatID, frame.Img, caption); err != nil {
			log.Printf("[processor] update to %d failed: %v", chatID, err)
			report.Failed++
			continue
		}
		report.Delivered++

		if chartPNG != nil {
			if err := p.deliver.DeliverChart(chatID, chartPNG, chartCaption); err != nil {
				log.Printf("[processor] chart to %d failed: %v", chatID, err)
			}
		}
	}
	return report
}
