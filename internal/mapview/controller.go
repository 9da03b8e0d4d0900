package mapview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/atlo/dashboard/internal/queue"
	"github.com/atlo/dashboard/internal/route"
	"github.com/atlo/dashboard/pkg/core"
)

var (
	// ErrClosed is returned by every method once Close has been called.
	ErrClosed = errors.New("map controller closed")
	// ErrNotStarted is returned when the engine has not finished loading.
	ErrNotStarted = errors.New("map controller not started")
	// ErrSuperseded is returned to a SetStyle caller whose swap was replaced
	// by a newer one before it settled.
	ErrSuperseded = errors.New("style change superseded")
	// ErrUnknownStyle is returned for style ids missing from the catalogue.
	ErrUnknownStyle = errors.New("unknown map style")
	// ErrUnknownFeature is returned for ids not in the current collection.
	ErrUnknownFeature = errors.New("unknown feature")

	errEngine = errors.New("map engine reported an error")
)

// Controller owns one map surface. All engine calls and state changes run on
// a single goroutine fed by a mailbox; engine callbacks only post to it, so
// engines that emit events synchronously from inside their own methods
// cannot deadlock the controller.
//
// Controller methods must not be called from an engine handler that runs
// synchronously inside an engine method.
type Controller struct {
	engine  Engine
	opts    Options
	log     *slog.Logger
	metrics *controllerMetrics

	mailbox   *queue.Queue[func()]
	wake      chan struct{}
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once

	// Owned by the run goroutine.
	stopped       bool
	started       bool
	loading       *oneShot
	loadWaiters   []waiter
	styleID       string
	routes        core.FeatureCollection
	state         LayerState
	hovered       core.FeatureID
	pointer       *interactions
	pending       *pendingStyle
	fitOnAttach   bool
	focusOnAttach core.FeatureID
}

// New creates a controller for engine. The engine is expected to have been
// created with opts.InitialStyle.
func New(engine Engine, opts Options) (*Controller, error) {
	opts = opts.withDefaults()
	if _, ok := opts.Styles[opts.InitialStyle]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStyle, opts.InitialStyle)
	}

	metrics, err := newControllerMetrics()
	if err != nil {
		return nil, err
	}

	c := &Controller{
		engine:  engine,
		opts:    opts,
		log:     opts.Logger.With("component", "mapview"),
		metrics: metrics,
		mailbox: queue.New[func()](),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		styleID: opts.InitialStyle,
	}
	c.pointer = newInteractions(engine, opts.LayerID,
		binding{event: EventMouseMove, handler: c.onPointerMove},
		binding{event: EventMouseLeave, handler: c.onPointerLeave},
		binding{event: EventClick, handler: c.onClick},
	)

	go c.run()
	return c, nil
}

func (c *Controller) run() {
	for {
		select {
		case <-c.done:
			return
		case <-c.wake:
			for {
				fn, ok := c.mailbox.TryPop()
				if !ok {
					break
				}
				fn()
			}
		}
	}
}

// post schedules fn on the controller goroutine.
func (c *Controller) post(fn func()) {
	if c.closed.Load() {
		return
	}
	c.mailbox.Push(fn)
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// do runs fn on the controller goroutine and waits for its result.
func (c *Controller) do(ctx context.Context, fn func() error) error {
	if c.closed.Load() {
		return ErrClosed
	}
	result := newWaiter()
	c.post(func() {
		if c.stopped {
			result.resolve(ErrClosed)
			return
		}
		result.resolve(fn())
	})
	return c.await(ctx, result)
}

func (c *Controller) await(ctx context.Context, w <-chan error) error {
	select {
	case err := <-w:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

// Start waits for the engine to finish its initial load. An engine error
// during load is returned once and not retried; ctx bounds the wait.
func (c *Controller) Start(ctx context.Context) error {
	var result waiter
	err := c.do(ctx, func() error {
		result = newWaiter()
		if c.started {
			result.resolve(nil)
			return nil
		}
		c.loadWaiters = append(c.loadWaiters, result)
		if c.loading != nil {
			return nil
		}
		c.loading = c.once(c.loaded, EventLoad, EventError)
		if c.engine.Loaded() {
			c.loaded(Event{Type: EventLoad})
		}
		return nil
	})
	if err != nil {
		return err
	}
	return c.await(ctx, result)
}

func (c *Controller) loaded(ev Event) {
	c.loading.stop()
	c.loading = nil

	var err error
	if ev.Type == EventError {
		err = fmt.Errorf("map failed to load: %w", engineErr(ev))
		c.log.Error("map failed to load", "error", err)
	} else {
		c.started = true
		c.log.Debug("map loaded", "style", c.styleID)
	}
	for _, w := range c.loadWaiters {
		w.resolve(err)
	}
	c.loadWaiters = nil
}

// SetGeometry replaces the routes shown on the map and frames them: an empty
// collection eases to the default world view, anything else fits its
// envelope. While a style swap is pending the collection is kept and applied
// once the new style settles.
func (c *Controller) SetGeometry(ctx context.Context, fc core.FeatureCollection) error {
	return c.do(ctx, func() error {
		if !c.started {
			return ErrNotStarted
		}
		c.routes = fc
		c.metrics.geometryUpdates.Add(context.Background(), 1)

		if c.pending != nil {
			c.fitOnAttach = true
			return nil
		}
		if err := c.rebuild(); err != nil {
			return err
		}
		return c.frame()
	})
}

// SetStyle swaps the base style. The camera is captured before the swap and
// restored exactly once the engine reports the new style ready (style.load
// or idle, whichever comes first), then the route layer is reattached.
//
// A newer SetStyle replaces a pending one; the earlier caller gets
// ErrSuperseded. An engine error while the swap is pending is returned once
// and leaves the style unknown, so a retry of the same id swaps again.
// Requesting the current style with no swap pending is a no-op.
func (c *Controller) SetStyle(ctx context.Context, styleID string) error {
	settled, err := c.RequestStyle(ctx, styleID)
	if err != nil {
		return err
	}
	return c.await(ctx, settled)
}

// RequestStyle starts a style swap like SetStyle but returns once the engine
// has accepted it. The channel yields the swap's outcome exactly once.
func (c *Controller) RequestStyle(ctx context.Context, styleID string) (<-chan error, error) {
	var result waiter
	err := c.do(ctx, func() error {
		if !c.started {
			return ErrNotStarted
		}
		ref, ok := c.opts.Styles[styleID]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownStyle, styleID)
		}
		if styleID == c.styleID && c.pending == nil {
			result = newWaiter()
			result.resolve(nil)
			return nil
		}

		camera := c.engine.Camera()
		if prev := c.pending; prev != nil {
			// The engine may already show the superseded style's camera.
			camera = prev.camera
			prev.listener.stop()
			prev.result.resolve(ErrSuperseded)
			c.pending = nil
		}

		p := &pendingStyle{styleID: styleID, camera: camera, result: newWaiter()}
		p.listener = c.once(func(ev Event) { c.settle(p, ev) }, EventStyleLoad, EventIdle, EventError)
		c.pending = p

		c.detach()
		if err := c.engine.SetStyle(ref); err != nil {
			p.listener.stop()
			c.pending = nil
			if attachErr := c.attach(); attachErr != nil {
				c.log.Warn("failed to restore routes after style error", "error", attachErr)
			}
			return fmt.Errorf("set style %q: %w", styleID, err)
		}

		c.log.Debug("style swap requested", "from", c.styleID, "to", styleID)
		c.metrics.styleSwaps.Add(context.Background(), 1)
		result = p.result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Controller) settle(p *pendingStyle, ev Event) {
	if c.pending != p {
		return
	}
	c.pending = nil

	if ev.Type == EventError {
		err := fmt.Errorf("style %q failed to load: %w", p.styleID, engineErr(ev))
		c.log.Error("style failed to load", "style", p.styleID, "error", err)
		c.styleID = ""
		p.result.resolve(err)
		return
	}
	c.styleID = p.styleID

	if err := c.engine.EaseTo(p.camera, 0); err != nil {
		p.result.resolve(fmt.Errorf("restore camera: %w", err))
		return
	}
	if err := c.attach(); err != nil {
		p.result.resolve(err)
		return
	}
	c.metrics.reattachments.Add(context.Background(), 1)
	c.log.Debug("style settled", "style", p.styleID, "via", string(ev.Type))

	var err error
	if c.fitOnAttach {
		c.fitOnAttach = false
		err = c.frame()
	}
	if id := c.focusOnAttach; id != core.NoFeature {
		c.focusOnAttach = core.NoFeature
		err = errors.Join(err, c.focus(id))
	}
	p.result.resolve(err)
}

// SetHover flags one route as hovered, clearing the previous one first.
// core.NoFeature clears the flag and resets the cursor.
func (c *Controller) SetHover(ctx context.Context, id core.FeatureID) error {
	return c.do(ctx, func() error {
		return c.hover(id)
	})
}

// Focus fits the camera to one route. Hover state is left alone.
func (c *Controller) Focus(ctx context.Context, id core.FeatureID) error {
	return c.do(ctx, func() error {
		if !c.started {
			return ErrNotStarted
		}
		if _, ok := c.routes.Find(id); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownFeature, id)
		}
		if c.pending != nil {
			c.focusOnAttach = id
			return nil
		}
		return c.focus(id)
	})
}

// State returns the route layer's lifecycle state.
func (c *Controller) State() LayerState {
	return c.Snapshot().State
}

// Snapshot returns the controller's current view. After Close it returns the
// zero Snapshot.
func (c *Controller) Snapshot() Snapshot {
	var s Snapshot
	_ = c.do(context.Background(), func() error {
		s = Snapshot{
			StyleID:  c.styleID,
			Camera:   c.engine.Camera(),
			Hovered:  c.hovered,
			State:    c.state,
			Features: len(c.routes.Features),
		}
		if c.pending != nil {
			s.PendingStyle = c.pending.styleID
		}
		return nil
	})
	return s
}

// Close removes the route layer and source, drops every engine subscription
// and stops the controller goroutine. Waiting callers get ErrClosed.
func (c *Controller) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.do(context.Background(), c.teardown)
		c.closed.Store(true)
		close(c.done)
	})
	return err
}

func (c *Controller) teardown() error {
	c.stopped = true
	if c.loading != nil {
		c.loading.stop()
		c.loading = nil
		for _, w := range c.loadWaiters {
			w.resolve(ErrClosed)
		}
		c.loadWaiters = nil
	}
	if p := c.pending; p != nil {
		p.listener.stop()
		p.result.resolve(ErrClosed)
		c.pending = nil
	}

	c.clearHover()
	c.pointer.unbind()

	var errs []error
	if c.engine.HasLayer(c.opts.LayerID) {
		if err := c.engine.RemoveLayer(c.opts.LayerID); err != nil {
			errs = append(errs, fmt.Errorf("remove route layer: %w", err))
		}
	}
	if c.engine.HasSource(c.opts.SourceID) {
		if err := c.engine.RemoveSource(c.opts.SourceID); err != nil {
			errs = append(errs, fmt.Errorf("remove route source: %w", err))
		}
	}
	c.state = StateAbsent
	return errors.Join(errs...)
}

// attach drives the route layer to StateInteractive. It is idempotent.
func (c *Controller) attach() error {
	src := c.opts.SourceID
	if c.engine.HasSource(src) {
		if err := c.engine.UpdateSource(src, c.routes); err != nil {
			return fmt.Errorf("update route source: %w", err)
		}
	} else if err := c.engine.AddSource(src, c.routes); err != nil {
		return fmt.Errorf("add route source: %w", err)
	}
	c.state = StateSourceBound

	if !c.engine.HasLayer(c.opts.LayerID) {
		if err := c.engine.AddLayer(c.opts.routeLayer()); err != nil {
			return fmt.Errorf("add route layer: %w", err)
		}
	}
	c.state = StateLayerBound

	c.pointer.bind()
	c.state = StateInteractive
	return nil
}

// rebuild tears down the pointer bindings and attaches again with the
// current routes.
func (c *Controller) rebuild() error {
	c.clearHover()
	c.pointer.unbind()
	if c.state > StateLayerBound {
		c.state = StateLayerBound
	}
	return c.attach()
}

// detach forgets everything a style swap is about to discard.
func (c *Controller) detach() {
	c.pointer.unbind()
	if c.hovered != core.NoFeature {
		c.hovered = core.NoFeature
		if err := c.engine.SetCursor(""); err != nil {
			c.log.Warn("failed to reset cursor", "error", err)
		}
	}
	c.state = StateAbsent
}

func (c *Controller) frame() error {
	if len(c.routes.Features) == 0 {
		return c.engine.EaseTo(c.opts.DefaultView, c.opts.DefaultViewDuration)
	}
	return c.engine.FitBounds(route.Bounds(c.routes), c.opts.Fit)
}

func (c *Controller) focus(id core.FeatureID) error {
	f, ok := c.routes.Find(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFeature, id)
	}
	return c.engine.FitBounds(route.FeatureBounds(f), c.opts.Focus)
}

func (c *Controller) hover(id core.FeatureID) error {
	if id == c.hovered {
		return nil
	}
	if id != core.NoFeature {
		if _, ok := c.routes.Find(id); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownFeature, id)
		}
	}

	c.clearHover()
	if id == core.NoFeature || c.state != StateInteractive {
		return nil
	}

	ref := FeatureRef{Source: c.opts.SourceID, ID: id}
	if err := c.engine.SetFeatureState(ref, map[string]any{"hover": true}); err != nil {
		return fmt.Errorf("set hover on %s: %w", id, err)
	}
	c.hovered = id
	if err := c.engine.SetCursor("pointer"); err != nil {
		c.log.Warn("failed to set cursor", "error", err)
	}
	return nil
}

func (c *Controller) clearHover() {
	if c.hovered == core.NoFeature {
		return
	}
	prev := c.hovered
	c.hovered = core.NoFeature

	ref := FeatureRef{Source: c.opts.SourceID, ID: prev}
	if err := c.engine.SetFeatureState(ref, map[string]any{"hover": false}); err != nil {
		c.log.Warn("failed to clear hover", "feature", prev, "error", err)
	}
	if err := c.engine.SetCursor(""); err != nil {
		c.log.Warn("failed to reset cursor", "error", err)
	}
}

func (c *Controller) onPointerMove(ev Event) {
	c.post(func() {
		if err := c.hover(ev.FeatureID); err != nil {
			c.log.Debug("hover ignored", "feature", ev.FeatureID, "error", err)
		}
	})
}

func (c *Controller) onPointerLeave(Event) {
	c.post(func() {
		_ = c.hover(core.NoFeature)
	})
}

func (c *Controller) onClick(ev Event) {
	c.post(func() {
		if c.state != StateInteractive {
			return
		}
		f, ok := c.routes.Find(ev.FeatureID)
		if !ok || f.Properties.ActivityURL == "" {
			return
		}
		if err := c.engine.OpenLink(f.Properties.ActivityURL); err != nil {
			c.log.Warn("failed to open activity", "url", f.Properties.ActivityURL, "error", err)
		}
	})
}

func engineErr(ev Event) error {
	if ev.Err != nil {
		return ev.Err
	}
	return errEngine
}
