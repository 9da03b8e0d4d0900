package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"

	"github.com/atlo/dashboard/internal/dispatcher"
	"github.com/atlo/dashboard/internal/engine/remote"
	"github.com/atlo/dashboard/internal/mapview"
	"github.com/atlo/dashboard/internal/route"
	"github.com/atlo/dashboard/pkg/core"
	"github.com/atlo/dashboard/pkg/streaming"
)

// Intents a map client may send.
const (
	IntentSetStyle = "setStyle"
	IntentSetRange = "setRange"
	IntentFilter   = "filter"
	IntentFocus    = "focus"
	IntentHover    = "hover"
)

// session is one connected map surface: a remote engine, the controller
// driving it and the dispatcher routing the client's intents.
type session struct {
	id     uuid.UUID
	srv    *Server
	log    *slog.Logger
	engine *remote.Engine
	ctrl   *mapview.Controller
	disp   *dispatcher.Dispatcher

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	// applyMu serialises geometry updates so a filter never lands on a
	// stale activity list.
	applyMu    sync.Mutex
	mu         sync.Mutex
	rng        core.DateRange
	typ        string
	activities []core.Activity
}

func (s *Server) handleMapSocket(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("WebSocket upgrade failed", "error", err)
		return
	}

	sess, err := s.newSession(conn)
	if err != nil {
		s.log.Error("Failed to create map session", "error", err)
		_ = conn.Close()
		return
	}
	if !s.register(sess) {
		sess.close()
		return
	}
	defer s.unregister(sess)
	defer sess.close()

	sess.run()
}

func (s *Server) register(sess *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.sessions[sess.id] = sess
	return true
}

func (s *Server) unregister(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess.id)
}

func (s *Server) newSession(conn *ws.Conn) (*session, error) {
	id := uuid.New()
	log := s.log.With("session", id.String())

	opts := s.deps.MapOptions
	opts.Logger = log
	engine := remote.New(conn, opts.Styles[opts.InitialStyle], log)

	ctrl, err := mapview.New(engine, opts)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	disp, err := dispatcher.New(s.deps.DispatcherLogger)
	if err != nil {
		_ = ctrl.Close()
		_ = engine.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{
		id:     id,
		srv:    s,
		log:    log,
		engine: engine,
		ctrl:   ctrl,
		disp:   disp,
		ctx:    ctx,
		cancel: cancel,
		rng:    core.LastYear(s.deps.Now()),
		typ:    route.AllTypes,
	}

	disp.Register(IntentSetStyle, sess.intent(sess.setStyle), dispatcher.Latest(), dispatcher.Logged())
	disp.Register(IntentSetRange, sess.intent(sess.setRange), dispatcher.Latest(), dispatcher.Logged())
	disp.Register(IntentFilter, sess.intent(sess.filter), dispatcher.Latest(), dispatcher.Logged())
	disp.Register(IntentHover, sess.intent(sess.hover), dispatcher.Latest())
	disp.Register(IntentFocus, sess.intent(sess.focus), dispatcher.Buffered(8), dispatcher.Logged())

	engine.OnIntent(func(p streaming.IntentPayload) {
		if _, err := disp.Dispatch(dispatcher.Event{Command: p.Command, Args: p.Args}); err != nil {
			sess.notifyError(err)
		}
	})
	return sess, nil
}

// run waits for the client map to load, shows the initial routes and then
// blocks until the client goes away.
func (sess *session) run() {
	sess.log.Info("Map session opened")

	startCtx, cancel := context.WithTimeout(sess.ctx, sess.srv.deps.Config.StartTimeout)
	err := sess.ctrl.Start(startCtx)
	cancel()
	if err != nil {
		sess.log.Warn("Map did not load", "error", err)
		sess.notifyError(err)
		return
	}

	if err := sess.reload(sess.ctx); err != nil {
		sess.notifyError(err)
	}

	select {
	case <-sess.engine.Done():
	case <-sess.ctx.Done():
	}
	sess.log.Info("Map session closed")
}

func (sess *session) close() {
	sess.closeOnce.Do(func() {
		sess.cancel()
		if err := sess.ctrl.Close(); err != nil {
			sess.log.Debug("Controller teardown incomplete", "error", err)
		}
		_ = sess.disp.Close()
		_ = sess.engine.Close()
	})
}

// intent adapts a session method to a dispatcher handler and reports
// failures to the client.
func (sess *session) intent(fn func(dispatcher.Event) error) dispatcher.HandlerFunc {
	return func(e dispatcher.Event) (any, error) {
		if err := fn(e); err != nil {
			sess.notifyError(err)
			return nil, err
		}
		return nil, nil
	}
}

func (sess *session) notifyError(err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, mapview.ErrClosed) {
		return
	}
	_ = sess.engine.Notify(streaming.TypeStatus, streaming.StatusPayload{Level: "error", Message: err.Error()})
}

// setStyle returns once the swap is requested so a newer setStyle can
// supersede it while the client is still loading tiles. The outcome is
// reported to the client when the swap settles.
func (sess *session) setStyle(e dispatcher.Event) error {
	styleID := e.Arg(0)
	settled, err := sess.ctrl.RequestStyle(sess.ctx, styleID)
	if err != nil {
		return err
	}
	go func() {
		select {
		case err := <-settled:
			if err != nil && !errors.Is(err, mapview.ErrSuperseded) {
				sess.log.Warn("Style swap failed", "style", styleID, "error", err)
				sess.notifyError(err)
			}
		case <-sess.ctx.Done():
		}
	}()
	return nil
}

// setRange takes after and before in the same formats as the REST API.
func (sess *session) setRange(e dispatcher.Event) error {
	q := url.Values{}
	if v := e.Arg(0); v != "" {
		q.Set("after", v)
	}
	if v := e.Arg(1); v != "" {
		q.Set("before", v)
	}
	rng, err := parseRange(q, sess.srv.deps.Now())
	if err != nil {
		return err
	}

	sess.mu.Lock()
	sess.rng = rng
	sess.mu.Unlock()
	return sess.reload(sess.ctx)
}

func (sess *session) filter(e dispatcher.Event) error {
	typ := e.Arg(0)
	if typ == "" {
		typ = route.AllTypes
	}
	sess.mu.Lock()
	sess.typ = typ
	sess.mu.Unlock()
	return sess.apply(sess.ctx)
}

func (sess *session) focus(e dispatcher.Event) error {
	return sess.ctrl.Focus(sess.ctx, core.FeatureID(e.Arg(0)))
}

func (sess *session) hover(e dispatcher.Event) error {
	return sess.ctrl.SetHover(sess.ctx, core.FeatureID(e.Arg(0)))
}

// reload fetches the session's range from the store and applies it.
func (sess *session) reload(ctx context.Context) error {
	sess.mu.Lock()
	rng := sess.rng
	sess.mu.Unlock()

	activities, err := sess.srv.deps.Store.Activities(ctx, rng)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	sess.activities = activities
	sess.mu.Unlock()
	return sess.apply(ctx)
}

// apply builds the filtered routes, hands them to the controller and
// refreshes the client's type filter choices.
func (sess *session) apply(ctx context.Context) error {
	sess.applyMu.Lock()
	defer sess.applyMu.Unlock()

	sess.mu.Lock()
	activities := sess.activities
	typ := sess.typ
	sess.mu.Unlock()

	fc := sess.srv.deps.Builder.BuildType(activities, typ)
	if err := sess.ctrl.SetGeometry(ctx, fc); err != nil {
		return err
	}
	return sess.engine.Notify(streaming.TypeActivityTypes, streaming.ActivityTypesPayload{
		Types:    route.Types(activities),
		Selected: typ,
	})
}
