// Package dispatcher routes map client intents (style changes, range and
// type filters, focus and hover requests) to their handlers.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("dispatcher closed")

// Event is one intent sent by a map client.
type Event struct {
	Command   string
	Args      []string
	Timestamp time.Time
}

// Arg returns the i-th argument or "" when absent.
func (e Event) Arg(i int) string {
	if i < 0 || i >= len(e.Args) {
		return ""
	}
	return e.Args[i]
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	latest     bool
	logged     bool
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Latest makes the handler async, keeping only the newest pending event.
// An event that arrives while another waits replaces it.
func Latest() Option {
	return func(c *config) {
		c.latest = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	logger Logger

	queueSize    metric.Int64ObservableGauge
	processed    metric.Int64Counter
	dropped      metric.Int64Counter
	replaced     metric.Int64Counter
	registration metric.Registration

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	buffers  map[string]chan Event
	closed   bool
	done     chan struct{}
	wg       sync.WaitGroup
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		buffers:  make(map[string]chan Event),
		done:     make(chan struct{}),
		logger:   logger,
	}

	m := meter()

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of intents waiting for a handler"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	d.registration, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for cmd, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("command", cmd)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total intents processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Total intents dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	d.replaced, err = m.Int64Counter(
		"dispatcher.events.replaced",
		metric.WithDescription("Total pending intents replaced by a newer one"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating replaced counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given command with optional configuration.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	// Logging wraps the handler itself so async handlers log when they run.
	if cfg.logged {
		handler = d.withLogging(command, handler)
	}

	switch {
	case cfg.latest:
		handler = d.withLatest(command, handler)
	case cfg.bufferSize > 0:
		handler = d.withBuffer(command, cfg.bufferSize, cfg.blocking, handler)
	}

	d.mu.Lock()
	d.handlers[command] = handler
	d.mu.Unlock()
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	d.mu.RLock()
	h, ok := d.handlers[e.Command]
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return h(e)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[command]
	return ok
}

// Close stops the async handlers and releases the metrics callback. Intents
// still queued are discarded.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.done)
	d.mu.Unlock()

	d.wg.Wait()
	if d.registration != nil {
		return d.registration.Unregister()
	}
	return nil
}

func (d *Dispatcher) consume(command string, buffer <-chan Event, h HandlerFunc) {
	cmdAttr := attribute.String("command", command)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case e := <-buffer:
				h(e)
				d.processed.Add(context.Background(), 1, metric.WithAttributes(cmdAttr))
			case <-d.done:
				return
			}
		}
	}()
}

func (d *Dispatcher) withBuffer(command string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan Event, size)

	d.mu.Lock()
	d.buffers[command] = buffer
	d.mu.Unlock()

	d.consume(command, buffer, h)
	cmdAttr := attribute.String("command", command)

	if blocking {
		return func(e Event) (any, error) {
			select {
			case buffer <- e:
				return "queued", nil
			case <-d.done:
				return nil, ErrClosed
			}
		}
	}

	return func(e Event) (any, error) {
		select {
		case buffer <- e:
			return "queued", nil
		default:
			d.dropped.Add(context.Background(), 1, metric.WithAttributes(cmdAttr))
			return nil, fmt.Errorf("queue full: %s", command)
		}
	}
}

func (d *Dispatcher) withLatest(command string, h HandlerFunc) HandlerFunc {
	buffer := make(chan Event, 1)

	d.mu.Lock()
	d.buffers[command] = buffer
	d.mu.Unlock()

	d.consume(command, buffer, h)
	cmdAttr := attribute.String("command", command)

	var mu sync.Mutex
	return func(e Event) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		for {
			select {
			case buffer <- e:
				return "queued", nil
			default:
			}
			select {
			case <-buffer:
				d.replaced.Add(context.Background(), 1, metric.WithAttributes(cmdAttr))
			default:
			}
		}
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling intent", "command", command, "args", len(e.Args))

		result, err := h(e)

		if err != nil {
			d.logger.Error("intent failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("intent complete", "command", command, "duration", time.Since(start))
		}

		return result, err
	}
}
