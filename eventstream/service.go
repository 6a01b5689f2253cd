// Package eventstream maintains the single server-sent-events connection to
// the fleet monitoring server and fans decoded events out to subscribers.
package eventstream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"pkt.systems/pslog"

	"pkt.systems/fleetwatch/internal/logx"
	"pkt.systems/fleetwatch/schema"
)

const (
	// shortRetryDelay applies to the first reconnect attempts after an error.
	shortRetryDelay = 10 * time.Second
	// longRetryDelay applies from the eleventh consecutive error on.
	longRetryDelay = 60 * time.Second
	// shortRetryLimit is the number of consecutive errors retried quickly.
	shortRetryLimit = 10

	defaultBufferDepth = 256
)

// Config controls the event stream service.
type Config struct {
	// BaseURL is the server base, e.g. "http://fleet.example.org:8080".
	BaseURL string
	// BufferDepth sizes subscriber channels. Defaults to 256.
	BufferDepth int
}

// Deps captures service collaborators. Zero values select production
// defaults; tests inject fakes.
type Deps struct {
	Transport Transport
	Logger    pslog.Logger
	// After schedules a reconnect attempt. Defaults to time.AfterFunc.
	After func(d time.Duration, fn func())
}

type subscriber struct {
	ch      chan schema.StreamEvent
	streams map[schema.StreamName]struct{}
}

func (s *subscriber) wants(stream schema.StreamName) bool {
	if stream == schema.StreamAll {
		return true
	}
	_, ok := s.streams[stream]
	return ok
}

// Service owns exactly one event connection regardless of subscriber count.
// Subscribing to streams not yet carried by the connection reopens it with a
// wider URL; transport errors trigger reconnects with a two-tier backoff and
// never surface to subscribers as anything but the link-down sentinel.
type Service struct {
	cfg       Config
	transport Transport
	after     func(time.Duration, func())
	log       pslog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	order   []schema.StreamName
	filters map[schema.StreamName]schema.EventFilter
	subs    map[*subscriber]struct{}
	src     EventSource
	gen     uint64
	errors  int
	closed  bool
}

// NewService constructs a Service. No connection is opened until the first
// subscription arrives.
func NewService(cfg Config, deps Deps) *Service {
	if cfg.BufferDepth <= 0 {
		cfg.BufferDepth = defaultBufferDepth
	}
	transport := deps.Transport
	if transport == nil {
		transport = &HTTPTransport{}
	}
	after := deps.After
	if after == nil {
		after = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cfg:       cfg,
		transport: transport,
		after:     after,
		log:       logger,
		ctx:       ctx,
		cancel:    cancel,
		filters:   make(map[schema.StreamName]schema.EventFilter),
		subs:      make(map[*subscriber]struct{}),
	}
}

// ReceivePriorityEvents subscribes to the connectivity and registration
// streams with empty filters. The connection is reopened only when either
// stream was not carried before; resubscribing is a no-op on the link.
func (s *Service) ReceivePriorityEvents(ctx context.Context) (<-chan schema.StreamEvent, func(), error) {
	log := logx.Ctx(ctx)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, schema.ErrStreamClosed
	}
	sub := s.addSubscriberLocked(schema.StreamConnectivity, schema.StreamRegistration)
	changed := s.ensureStreamLocked(schema.StreamConnectivity)
	if s.ensureStreamLocked(schema.StreamRegistration) {
		changed = true
	}
	if changed {
		s.reopenLocked()
	}
	s.mu.Unlock()

	log.Debug("stream subscribe", "streams", "priority", "reconnect", changed)
	return sub.ch, s.cancelFunc(sub), nil
}

// ReceivePriorityAndMessageEvents subscribes to all three streams, the
// message stream narrowed by filter. The connection is reused only when all
// three streams are already carried and the active message filter equals the
// requested one; otherwise the priority filters reset to empty and the
// connection reopens.
func (s *Service) ReceivePriorityAndMessageEvents(ctx context.Context, filter schema.EventFilter) (<-chan schema.StreamEvent, func(), error) {
	filter = filter.Normalize()
	log := logx.WithFilter(logx.Ctx(ctx), filter)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, schema.ErrStreamClosed
	}
	sub := s.addSubscriberLocked(schema.StreamConnectivity, schema.StreamRegistration, schema.StreamMessage)
	allActive := s.hasStreamLocked(schema.StreamConnectivity) &&
		s.hasStreamLocked(schema.StreamRegistration) &&
		s.hasStreamLocked(schema.StreamMessage)
	changed := !allActive || !s.filters[schema.StreamMessage].Equal(filter)
	if changed {
		s.ensureStreamLocked(schema.StreamConnectivity)
		s.ensureStreamLocked(schema.StreamRegistration)
		s.ensureStreamLocked(schema.StreamMessage)
		s.filters[schema.StreamConnectivity] = schema.EventFilter{}
		s.filters[schema.StreamRegistration] = schema.EventFilter{}
		s.filters[schema.StreamMessage] = filter
		s.reopenLocked()
	}
	s.mu.Unlock()

	log.Debug("stream subscribe", "streams", "priority+message", "reconnect", changed)
	return sub.ch, s.cancelFunc(sub), nil
}

// Close tears down the connection and closes every subscriber channel.
// Further subscriptions fail with schema.ErrStreamClosed.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.gen++
	src := s.src
	s.src = nil
	subs := make([]*subscriber, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subs = make(map[*subscriber]struct{})
	s.mu.Unlock()

	s.cancel()
	if src != nil {
		src.Close()
	}
	for _, sub := range subs {
		close(sub.ch)
	}
	s.log.Debug("stream service closed")
	return nil
}

func (s *Service) addSubscriberLocked(streams ...schema.StreamName) *subscriber {
	sub := &subscriber{
		ch:      make(chan schema.StreamEvent, s.cfg.BufferDepth),
		streams: make(map[schema.StreamName]struct{}, len(streams)),
	}
	for _, stream := range streams {
		sub.streams[stream] = struct{}{}
	}
	s.subs[sub] = struct{}{}
	return sub
}

func (s *Service) cancelFunc(sub *subscriber) func() {
	return func() {
		s.mu.Lock()
		_, ok := s.subs[sub]
		if ok {
			delete(s.subs, sub)
		}
		s.mu.Unlock()
		if ok {
			close(sub.ch)
		}
	}
}

func (s *Service) hasStreamLocked(name schema.StreamName) bool {
	for _, stream := range s.order {
		if stream == name {
			return true
		}
	}
	return false
}

// ensureStreamLocked appends name to the subscription order if absent and
// reports whether it was added.
func (s *Service) ensureStreamLocked(name schema.StreamName) bool {
	if s.hasStreamLocked(name) {
		return false
	}
	s.order = append(s.order, name)
	if _, ok := s.filters[name]; !ok {
		s.filters[name] = schema.EventFilter{}
	}
	return true
}

// reopenLocked invalidates the current connection generation and dials a new
// connection in the background. The old source is closed asynchronously; its
// pump goroutine sees the stale generation and exits without side effects.
func (s *Service) reopenLocked() {
	s.gen++
	gen := s.gen
	if s.src != nil {
		src := s.src
		s.src = nil
		go src.Close()
	}
	streams := append([]schema.StreamName(nil), s.order...)
	url := connectionURL(s.cfg.BaseURL, s.filters[schema.StreamMessage], streams)
	go s.run(gen, url)
}

func (s *Service) run(gen uint64, url string) {
	log := s.log.With("url", url)
	src, err := s.transport.Connect(s.ctx, url)
	if err != nil {
		log.Warn("stream connect failed", "err", err)
		s.fail(gen)
		return
	}
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		src.Close()
		return
	}
	s.src = src
	s.mu.Unlock()
	log.Info("stream connected")

	for {
		wire, err := src.Next()
		if err != nil {
			s.mu.Lock()
			stale := s.closed || gen != s.gen
			s.mu.Unlock()
			if stale {
				return
			}
			log.Warn("stream read failed", "err", err)
			s.fail(gen)
			return
		}
		stream := schema.StreamName(wire.Name)
		switch stream {
		case schema.StreamConnectivity, schema.StreamRegistration, schema.StreamMessage:
		default:
			log.Trace("stream event skipped", "name", wire.Name)
			continue
		}
		var event schema.DomainEvent
		if err := json.Unmarshal(wire.Data, &event); err != nil {
			log.Warn("stream event decode failed", "stream", stream, "err", err)
			continue
		}
		s.mu.Lock()
		if s.closed || gen != s.gen {
			s.mu.Unlock()
			return
		}
		s.errors = 0
		s.mu.Unlock()
		s.publish(schema.StreamEvent{Stream: stream, Event: &event})
	}
}

// fail records a consecutive transport error, notifies subscribers with the
// link-down sentinel and schedules a reconnect: 10s for the first ten errors
// in a row, 60s from the eleventh. A successful event resets the counter.
func (s *Service) fail(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	if s.src != nil {
		s.src.Close()
		s.src = nil
	}
	s.errors++
	errors := s.errors
	s.mu.Unlock()

	delay := shortRetryDelay
	if errors > shortRetryLimit {
		delay = longRetryDelay
	}
	s.publish(schema.StreamEvent{Stream: schema.StreamAll})
	s.log.Debug("stream reconnect scheduled", "errors", errors, "delay", delay)
	s.after(delay, func() {
		s.mu.Lock()
		if s.closed || gen != s.gen {
			s.mu.Unlock()
			return
		}
		s.reopenLocked()
		s.mu.Unlock()
	})
}

func (s *Service) publish(event schema.StreamEvent) {
	s.mu.Lock()
	subs := make([]*subscriber, 0, len(s.subs))
	for sub := range s.subs {
		if sub.wants(event.Stream) {
			subs = append(subs, sub)
		}
	}
	s.mu.Unlock()
	dropped := 0
	for _, sub := range subs {
		select {
		case sub.ch <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		s.log.Trace("stream events dropped", "stream", event.Stream, "count", dropped)
	}
}
