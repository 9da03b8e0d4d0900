package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/atlo/dashboard/internal/card"
	"github.com/atlo/dashboard/internal/route"
	"github.com/atlo/dashboard/internal/storage"
	"github.com/atlo/dashboard/internal/strava"
	"github.com/atlo/dashboard/pkg/core"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("Failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// loadActivities returns every activity in the request's range along with
// the requested type filter. Routes are built before filtering so their ids
// and colours do not depend on the filter.
func (s *Server) loadActivities(w http.ResponseWriter, r *http.Request) ([]core.Activity, string, bool) {
	q := r.URL.Query()
	rng, err := parseRange(q, s.deps.Now())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return nil, "", false
	}
	activities, err := s.deps.Store.Activities(r.Context(), rng)
	if err != nil {
		s.log.Error("Failed to load activities", "error", err)
		s.writeError(w, http.StatusInternalServerError, errors.New("failed to load activities"))
		return nil, "", false
	}
	return activities, activityType(q), true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.Sessions(),
	})
}

func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	activities, typ, ok := s.loadActivities(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, route.Filter(activities, typ))
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid activity id"))
		return
	}
	a, err := s.deps.Store.Activity(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleTypes(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r.URL.Query(), s.deps.Now())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	activities, err := s.deps.Store.Activities(r.Context(), rng)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, route.Types(activities))
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	activities, typ, ok := s.loadActivities(w, r)
	if !ok {
		return
	}
	data, err := route.MarshalGeoJSON(s.deps.Builder.BuildType(activities, typ))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}

func (s *Server) handleRoutesKML(w http.ResponseWriter, r *http.Request) {
	activities, typ, ok := s.loadActivities(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml")
	w.Header().Set("Content-Disposition", `attachment; filename="routes.kml"`)
	if err := route.WriteKML(w, "Routes", s.deps.Builder.BuildType(activities, typ)); err != nil {
		s.log.Error("Failed to write KML", "error", err)
	}
}

type stylesResponse struct {
	Default string   `json:"default"`
	Styles  []string `json:"styles"`
}

func (s *Server) handleStyles(w http.ResponseWriter, r *http.Request) {
	ids := make([]string, 0, len(s.deps.MapOptions.Styles))
	for id := range s.deps.MapOptions.Styles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	s.writeJSON(w, http.StatusOK, stylesResponse{Default: s.deps.MapOptions.InitialStyle, Styles: ids})
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	activities, typ, ok := s.loadActivities(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := card.WritePNG(w, route.Filter(activities, typ), s.deps.Card); err != nil {
		s.log.Error("Failed to render card", "error", err)
	}
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.deps.Provider == nil {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("activity provider not configured"))
		return
	}
	rng, err := parseRange(r.URL.Query(), s.deps.Now())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	run, err := strava.Sync(r.Context(), s.deps.Provider, s.deps.Store, rng)
	switch {
	case errors.Is(err, strava.ErrUnauthorized):
		s.writeError(w, http.StatusUnauthorized, err)
	case err != nil:
		s.log.Error("Sync failed", "error", err)
		s.writeError(w, http.StatusBadGateway, err)
	default:
		s.log.Info("Sync complete", "fetched", run.Fetched, "stored", run.Stored, "duration", run.Duration)
		s.writeJSON(w, http.StatusOK, run)
	}
}

func (s *Server) handleLastSync(w http.ResponseWriter, r *http.Request) {
	run, err := s.deps.Store.LastSync(r.Context())
	if errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, errors.New("no sync recorded"))
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}
