// Package fleetwatch composes the event stream service, the REST client and
// a machine tab session into a console client for the fleet monitoring
// server.
package fleetwatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"

	"pkt.systems/pslog"

	"pkt.systems/fleetwatch/core"
	"pkt.systems/fleetwatch/eventstream"
	"pkt.systems/fleetwatch/internal/format"
	"pkt.systems/fleetwatch/internal/persist"
	"pkt.systems/fleetwatch/restapi"
	"pkt.systems/fleetwatch/schema"
)

// Client composes the fleetwatch services.
type Client interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
}

// ClientConfig configures the compositor.
type ClientConfig struct {
	// ServerURL is the monitoring server base, e.g. "http://host:8080/api".
	ServerURL string
	// StateDir enables encrypted session persistence when non-empty.
	StateDir string
	// Filter narrows the message stream.
	Filter schema.EventFilter
	// Tabs configures the machine tab session.
	Tabs core.Config
	// EventBufferDepth sizes subscriber channels.
	EventBufferDepth int
	// PageLimit sizes machine table pages.
	PageLimit int
	// FeedbackHistory bounds the retained feedback messages. Defaults to 100.
	FeedbackHistory int
	// Timestamps prefixes rendered events with their creation time.
	Timestamps bool
}

// ClientDeps captures dependencies required to build the client.
type ClientDeps struct {
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
	// Transport overrides the SSE transport (tests).
	Transport eventstream.Transport
	// Out receives rendered events. Defaults to os.Stdout.
	Out io.Writer
	// Sink receives tab and feedback events alongside the console renderer.
	Sink   core.Sink
	Logger pslog.Logger
}

// NewClient constructs a fleetwatch client.
func NewClient(cfg ClientConfig, deps ClientDeps) (Client, error) {
	if cfg.ServerURL == "" {
		return nil, errors.New("server url is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	out := deps.Out
	if out == nil {
		out = os.Stdout
	}

	rest := restapi.New(cfg.ServerURL, deps.HTTPClient, logger)
	table := restapi.NewMachinesTable(rest)
	if cfg.PageLimit > 0 {
		table.ApplyQuery(url.Values{"limit": {strconv.Itoa(cfg.PageLimit)}})
	}
	renderer := format.NewPlainRenderer()
	renderer.Timestamps = cfg.Timestamps
	history := cfg.FeedbackHistory
	if history <= 0 {
		history = 100
	}
	console := &consoleSink{out: out, renderer: renderer, history: history}

	machineDeps := restapi.MachineDeps(rest)
	machineDeps.Table = table
	machineDeps.Sink = FanoutSinks(console, deps.Sink)
	machineDeps.Logger = logger
	manager, err := core.NewManager[schema.Machine](cfg.Tabs, machineDeps)
	if err != nil {
		return nil, err
	}

	events := eventstream.NewService(eventstream.Config{
		BaseURL:     cfg.ServerURL,
		BufferDepth: cfg.EventBufferDepth,
	}, eventstream.Deps{
		Transport: deps.Transport,
		Logger:    logger,
	})

	var store *persist.Store
	if cfg.StateDir != "" {
		store, err = persist.NewStore(cfg.StateDir, logger)
		if err != nil {
			return nil, fmt.Errorf("open state store: %w", err)
		}
	}

	return &compositeClient{
		cfg:     cfg,
		manager: manager,
		events:  events,
		console: console,
		store:   store,
		logger:  logger,
	}, nil
}

type compositeClient struct {
	cfg     ClientConfig
	manager *core.Manager[schema.Machine]
	events  *eventstream.Service
	console *consoleSink
	store   *persist.Store
	logger  pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	cancels []func()
	started bool
}

// Start restores the persisted session (best effort), subscribes to all
// three streams and begins rendering events.
func (c *compositeClient) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("client already started")
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	c.started = true
	c.mu.Unlock()

	log := pslog.Ctx(c.ctx)
	filter := c.cfg.Filter
	if c.store != nil {
		snapshot, ok, err := c.store.Load()
		if err != nil {
			log.Warn("session restore failed", "err", err)
		} else if ok {
			if filter.IsZero() {
				filter = snapshot.Filter
			}
			c.restoreTabs(c.ctx, snapshot)
		}
	}

	ch, cancel, err := c.events.ReceivePriorityAndMessageEvents(c.ctx, filter)
	if err != nil {
		c.cancel()
		close(c.done)
		return err
	}
	c.mu.Lock()
	c.cancels = append(c.cancels, cancel)
	c.mu.Unlock()

	log.Info("client started", "server", c.cfg.ServerURL)
	go c.consume(ch)
	return nil
}

// Wait blocks until the client stops.
func (c *compositeClient) Wait() error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return errors.New("client not started")
	}
	<-done
	return nil
}

// Stop tears the client down, persisting the session when enabled.
func (c *compositeClient) Stop(ctx context.Context) error {
	_ = ctx
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	cancels := c.cancels
	c.cancels = nil
	c.mu.Unlock()

	for _, fn := range cancels {
		fn()
	}
	c.events.Close()
	if cancel != nil {
		cancel()
	}
	if c.store != nil {
		if err := c.store.Save(c.snapshot()); err != nil {
			c.logger.Warn("session save failed", "err", err)
		}
	}
	return nil
}

func (c *compositeClient) consume(ch <-chan schema.StreamEvent) {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			c.handle(event)
		}
	}
}

func (c *compositeClient) handle(event schema.StreamEvent) {
	c.console.writeLines(c.console.renderer.FormatStreamEvent(event))
	if event.LinkDown() || event.Event == nil {
		return
	}
	// Message events carrying machine payloads refresh open tabs in place.
	if event.Stream == schema.StreamMessage && event.Event.Machine != nil {
		machine := *event.Event.Machine
		if err := c.manager.UpdateTabEntity(c.ctx, machine.ID, machine); err != nil &&
			!errors.Is(err, schema.ErrTabNotFound) {
			c.logger.Warn("tab refresh failed", "machine", int64(machine.ID), "err", err)
		}
	}
}

func (c *compositeClient) restoreTabs(ctx context.Context, snapshot schema.SessionSnapshot) {
	for _, id := range snapshot.Order {
		if id <= schema.NewEntitySentinel {
			continue
		}
		if _, err := c.manager.OpenTab(ctx, id); err != nil {
			c.logger.Warn("session tab restore failed", "entity", int64(id), "err", err)
		}
	}
	if snapshot.Active > schema.NewEntitySentinel {
		if _, err := c.manager.OpenTab(ctx, snapshot.Active); err != nil {
			c.logger.Warn("session tab restore failed", "entity", int64(snapshot.Active), "err", err)
		}
	}
}

func (c *compositeClient) snapshot() schema.SessionSnapshot {
	list := c.manager.ListTabs(context.Background())
	snapshot := schema.SessionSnapshot{Filter: c.cfg.Filter}
	for _, tab := range list.Tabs {
		if tab.Type == schema.TabTypeList || tab.Value <= schema.NewEntitySentinel {
			continue
		}
		snapshot.Order = append(snapshot.Order, tab.Value)
	}
	if list.ActiveTab > schema.NewEntitySentinel {
		snapshot.Active = list.ActiveTab
	}
	return snapshot
}

// Manager exposes the machine tab session, e.g. for interactive commands.
func (c *compositeClient) Manager() *core.Manager[schema.Machine] {
	return c.manager
}

// RecentFeedback returns the retained feedback messages, oldest first.
func (c *compositeClient) RecentFeedback() []schema.FeedbackEvent {
	return c.console.recentFeedback()
}

// consoleSink renders tab and feedback events to a writer and retains a
// bounded feedback history.
type consoleSink struct {
	renderer *format.PlainRenderer
	history  int

	mu       sync.Mutex
	out      io.Writer
	feedback []schema.FeedbackEvent
}

func (s *consoleSink) OnTabEvent(event schema.TabEvent) {
	s.writeLines(s.renderer.FormatTabEvent(event))
}

func (s *consoleSink) OnFeedback(event schema.FeedbackEvent) {
	s.mu.Lock()
	s.feedback = append(s.feedback, event)
	if overflow := len(s.feedback) - s.history; overflow > 0 {
		s.feedback = append(s.feedback[:0], s.feedback[overflow:]...)
	}
	s.mu.Unlock()
	s.writeLines(s.renderer.FormatFeedback(event))
}

func (s *consoleSink) recentFeedback() []schema.FeedbackEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schema.FeedbackEvent(nil), s.feedback...)
}

func (s *consoleSink) writeLines(lines []string) {
	if len(lines) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, line := range lines {
		fmt.Fprintln(s.out, line)
	}
}
