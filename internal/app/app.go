// Package app wires the pipeline together: ingestor → queue → processor,
// plus the command layer and the optional digest schedule.
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pepitohq/pepitobot/internal/assets"
	"github.com/pepitohq/pepitobot/internal/bot"
	"github.com/pepitohq/pepitobot/internal/bus"
	"github.com/pepitohq/pepitobot/internal/chart"
	"github.com/pepitohq/pepitobot/internal/config"
	"github.com/pepitohq/pepitobot/internal/fetch"
	"github.com/pepitohq/pepitobot/internal/ingest"
	"github.com/pepitohq/pepitobot/internal/notify"
	"github.com/pepitohq/pepitobot/internal/process"
	"github.com/pepitohq/pepitobot/internal/store"
)

// pollRestartDelay paces the supervising loop around Telegram polling.
const pollRestartDelay = 3 * time.Second

// Options for creating an App.
type Options struct {
	BotFactory notify.BotFactory
	SignalChan chan os.Signal // for testing signal handling
}

type App struct {
	cfg        *config.Config
	store      *store.Store
	queue      *bus.EventQueue
	ingestor   *ingest.Ingestor
	processor  *process.Processor
	handler    *bot.Handler
	notifier   *notify.Notifier
	cron       *cron.Cron
	signalChan chan os.Signal
}

func New(cfg *config.Config) (*App, error) {
	return NewWithOptions(cfg, Options{})
}

func NewWithOptions(cfg *config.Config, opts Options) (*App, error) {
	a := &App{cfg: cfg, signalChan: opts.SignalChan}

	// Fatal-at-startup pieces first: nothing useful runs without the
	// images directory and an initialized event log.
	if err := assets.EnsureDir(cfg.Storage.ImagesDir); err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}
	if err := st.Init(); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init event store: %w", err)
	}
	a.store = st

	notifier, err := notify.New(cfg, opts.BotFactory)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	a.notifier = notifier

	charts := chart.NewGenerator(cfg.Charts, fetch.NewClient(cfg.Retry, 15*time.Second))

	a.queue = bus.NewEventQueue(cfg.Storage.QueueSize)
	a.ingestor = ingest.New(cfg.Stream, cfg.Retry, a.queue)
	a.processor = process.New(st, a.queue, notifier, charts, cfg.Recipients())
	a.handler = bot.NewHandler(cfg, notifier, st, charts)

	return a, nil
}

// Run starts every long-lived task and blocks until SIGINT/SIGTERM or ctx
// cancellation.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ingestDone := make(chan struct{})
	go func() {
		defer close(ingestDone)
		a.ingestor.Run(ctx)
	}()
	log.Printf("[app] stream ingestor started")

	go a.processor.Run(ctx)
	log.Printf("[app] event processor started")

	go a.superviseBot(ctx)
	log.Printf("[app] bot polling supervisor started")

	if a.cfg.Digest.Enabled {
		if err := a.startDigest(); err != nil {
			log.Printf("[app] digest schedule warning: %v", err)
		}
	}

	sigCh := a.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}

	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	log.Printf("[app] shutting down...")
	// The producer must be stopped before the queue closes; otherwise a
	// frame arriving mid-shutdown would send on a closed channel.
	cancel()
	<-ingestDone
	return a.Shutdown()
}

// superviseBot keeps Telegram polling alive, restarting it with a short
// fixed delay whenever it fails.
func (a *App) superviseBot(ctx context.Context) {
	for {
		if err := a.handler.Run(ctx); err != nil {
			log.Printf("[app] bot polling error: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(pollRestartDelay):
		}
	}
}

func (a *App) startDigest() error {
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(a.cfg.Digest.Schedule, a.sendDigest); err != nil {
		return fmt.Errorf("register digest job: %w", err)
	}
	c.Start()
	a.cron = c
	log.Printf("[app] daily digest scheduled: %s", a.cfg.Digest.Schedule)
	return nil
}

func (a *App) Shutdown() error {
	if a.cron != nil {
		a.cron.Stop()
	}
	a.queue.Close()
	if err := a.store.Close(); err != nil {
		log.Printf("[app] close store warning: %v", err)
	}
	log.Printf("[app] shutdown complete")
	return nil
}
