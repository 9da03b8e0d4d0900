// Package monitor periodically snapshots the dashboard's state to the log
// and to a status file.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/atlo/dashboard/internal/storage"
	"github.com/atlo/dashboard/pkg/core"
)

const defaultInterval = time.Minute

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Store      storage.Backend
	Sessions   func() int
	Logger     *slog.Logger
	StatusPath string
	Interval   time.Duration
	Now        func() time.Time
}

// Status is one snapshot written by the monitor.
type Status struct {
	Time       time.Time        `json:"time"`
	Uptime     string           `json:"uptime"`
	Sessions   int              `json:"sessions"`
	Activities int              `json:"activities"`
	LastSync   *storage.SyncRun `json:"lastSync,omitempty"`
	Errors     []string         `json:"errors,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps    Dependencies
	log     *slog.Logger
	started time.Time

	mu        sync.RWMutex
	isRunning bool
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = defaultInterval
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Sessions == nil {
		deps.Sessions = func() int { return 0 }
	}
	return &Service{
		deps:    deps,
		log:     deps.Logger.With("component", "monitor"),
		started: deps.Now(),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status collects the current program status. Store failures are reported
// in the snapshot rather than returned.
func (s *Service) Status(ctx context.Context) Status {
	now := s.deps.Now()
	st := Status{
		Time:     now.UTC(),
		Uptime:   now.Sub(s.started).Round(time.Second).String(),
		Sessions: s.deps.Sessions(),
	}
	if s.deps.Store == nil {
		return st
	}

	activities, err := s.deps.Store.Activities(ctx, core.DateRange{})
	if err != nil {
		st.Errors = append(st.Errors, fmt.Sprintf("activities: %v", err))
	}
	st.Activities = len(activities)

	run, err := s.deps.Store.LastSync(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		st.Errors = append(st.Errors, fmt.Sprintf("last sync: %v", err))
	default:
		st.LastSync = &run
	}
	return st
}

// WriteStatus writes a snapshot to the status file, replacing its content.
func (s *Service) WriteStatus(st Status) error {
	if s.deps.StatusPath == "" {
		return nil
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.deps.StatusPath + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("error writing status file: %w", err)
	}
	return os.Rename(tmp, s.deps.StatusPath)
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	stop, done := s.stopChan, s.doneChan
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
			close(done)
		}()

		s.log.Debug("Starting status monitor", "interval", s.deps.Interval, "path", s.deps.StatusPath)
		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()

	return nil
}

func (s *Service) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.deps.Interval)
	defer cancel()

	st := s.Status(ctx)
	s.log.Info("Status",
		"sessions", st.Sessions,
		"activities", st.Activities,
		"uptime", st.Uptime,
	)
	for _, e := range st.Errors {
		s.log.Warn("Status check failed", "error", e)
	}
	if err := s.WriteStatus(st); err != nil {
		s.log.Error("Error writing status file", "error", err)
	}
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.doneChan
	s.mu.Unlock()
	<-done
}
