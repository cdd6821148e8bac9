package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/cadencehq/cadence/internal/config"
	"gorm.io/gorm"
)

// Daemon is the notifier process. It connects to a chat platform via an
// Adapter and posts sprint lifecycle, recycle-bin and digest events to the
// configured channel.
type Daemon struct {
	db      *gorm.DB
	cfg     *config.Config
	adapter Adapter
	out     io.Writer
}

// DaemonOpts holds parameters for creating a new Daemon.
type DaemonOpts struct {
	DB      *gorm.DB
	Config  *config.Config
	Adapter Adapter
	Out     io.Writer // defaults to os.Stdout
}

// NewDaemon creates a Daemon with the given options.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("notify: db is required")
	}
	if opts.Config == nil {
		return nil, fmt.Errorf("notify: config is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("notify: adapter is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Daemon{
		db:      opts.DB,
		cfg:     opts.Config,
		adapter: opts.Adapter,
		out:     out,
	}, nil
}

// Run starts the notifier. It connects the adapter, starts the watcher and
// digest scheduler, and blocks until the context is cancelled. On shutdown
// it closes the adapter gracefully.
func (d *Daemon) Run(ctx context.Context) error {
	fmt.Fprintf(d.out, "Notifier connecting...\n")
	if err := d.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("notify: connect: %w", err)
	}

	pollInterval := time.Duration(d.cfg.Notify.PollIntervalSec) * time.Second
	watcher, err := NewWatcher(WatcherOpts{
		DB:           d.db,
		PollInterval: pollInterval,
	})
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("notify: build watcher: %w", err)
	}
	eventsCh := watcher.Run(ctx)

	go d.dispatchEvents(ctx, eventsCh)
	go d.runDigestScheduler(ctx, watcher)

	fmt.Fprintf(d.out, "Notifier online\n")

	if err := d.adapter.Send(ctx, Message{
		Text: "Cadence notifier online",
	}); err != nil {
		log.Printf("notify: send online message: %v", err)
	}

	<-ctx.Done()

	fmt.Fprintf(d.out, "Notifier shutting down...\n")
	d.sendShutdown()
	if err := d.adapter.Close(); err != nil {
		log.Printf("notify: close adapter: %v", err)
	}
	fmt.Fprintf(d.out, "Notifier stopped\n")
	return nil
}

// dispatchEvents reads detected events from the watcher channel, filters
// them by config toggles, formats them, and sends to the chat platform.
func (d *Daemon) dispatchEvents(ctx context.Context, eventsCh <-chan DetectedEvent) {
	evtCfg := d.cfg.Notify.Events
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventsCh:
			if !ok {
				return
			}
			d.handleDetectedEvent(ctx, event, evtCfg)
		}
	}
}

// handleDetectedEvent processes a single detected event: applies config
// filters, formats, and sends via the adapter.
func (d *Daemon) handleDetectedEvent(ctx context.Context, event DetectedEvent, evtCfg config.EventsConfig) {
	var formatted FormattedEvent

	switch event.Type {
	case EventSprintStatus, EventSprintStarted, EventSprintCompleted:
		if !evtCfg.SprintLifecycle {
			return
		}
		formatted = FormatSprintEvent(event)
	case EventSprintOverdue:
		if !evtCfg.OverdueSprints {
			return
		}
		formatted = FormatOverdueEvent(event)
	case EventBinEnter, EventBinLeave:
		if !evtCfg.RecycleBin {
			return
		}
		formatted = FormatBinEvent(event)
	case EventDigest:
		// Digest events are not gated by event toggles.
		formatted = FormattedEvent{
			Title:    event.Title,
			Body:     event.Body,
			Severity: "info",
			Color:    ColorInfo,
		}
	default:
		return
	}

	if err := d.adapter.Send(ctx, Message{
		Events: []FormattedEvent{formatted},
	}); err != nil {
		log.Printf("notify: send event %s: %v", event.Type, err)
	}
}

// runDigestScheduler manages cron-based daily and weekly digest timers.
// It returns immediately if neither digest is enabled.
func (d *Daemon) runDigestScheduler(ctx context.Context, watcher *Watcher) {
	dailyCfg := d.cfg.Notify.Digest.Daily
	weeklyCfg := d.cfg.Notify.Digest.Weekly

	if !dailyCfg.Enabled && !weeklyCfg.Enabled {
		return
	}

	var dailyTimer, weeklyTimer *time.Timer
	if dailyCfg.Enabled && dailyCfg.Cron != "" {
		if d := nextCronDuration(dailyCfg.Cron); d > 0 {
			dailyTimer = time.NewTimer(d)
		}
	}
	if weeklyCfg.Enabled && weeklyCfg.Cron != "" {
		if d := nextCronDuration(weeklyCfg.Cron); d > 0 {
			weeklyTimer = time.NewTimer(d)
		}
	}

	defer func() {
		if dailyTimer != nil {
			dailyTimer.Stop()
		}
		if weeklyTimer != nil {
			weeklyTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timerChan(dailyTimer):
			d.fireDigest(ctx, watcher, 24*time.Hour)
			if d := nextCronDuration(dailyCfg.Cron); d > 0 {
				dailyTimer.Reset(d)
			}
		case <-timerChan(weeklyTimer):
			d.fireDigest(ctx, watcher, 7*24*time.Hour)
			if d := nextCronDuration(weeklyCfg.Cron); d > 0 {
				weeklyTimer.Reset(d)
			}
		}
	}
}

// fireDigest builds and sends a single digest covering the given window.
func (d *Daemon) fireDigest(ctx context.Context, watcher *Watcher, window time.Duration) {
	event, err := watcher.BuildDigest(window)
	if err != nil {
		log.Printf("notify: digest: %v", err)
		return
	}
	if event == nil {
		// No activity — suppress digest.
		return
	}

	formatted := FormattedEvent{
		Title:    event.Title,
		Body:     event.Body,
		Severity: "info",
		Color:    ColorInfo,
	}
	if err := d.adapter.Send(ctx, Message{
		Events: []FormattedEvent{formatted},
	}); err != nil {
		log.Printf("notify: send digest: %v", err)
	}
}

// timerChan returns the timer's channel, or nil if the timer is nil.
// A nil channel blocks forever in select, which is the desired behavior
// when a digest type is not enabled.
func timerChan(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

// sendShutdown posts a shutdown message to the adapter (best-effort).
func (d *Daemon) sendShutdown() {
	ctx := context.Background()
	if err := d.adapter.Send(ctx, Message{
		Text: "Cadence notifier shutting down",
	}); err != nil {
		log.Printf("notify: send shutdown message: %v", err)
	}
}
