// Package strava fetches GPS-tagged activities from the Strava API.
package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/atlo/dashboard/pkg/core"
)

const (
	DefaultBaseURL = "https://www.strava.com/api/v3"
	DefaultPerPage = 200
	maxErrorBody   = 512
)

// ErrUnauthorized is returned when no token is available or the provider
// rejects it.
var ErrUnauthorized = errors.New("strava: unauthorized")

// StatusError reports a non-2xx provider response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("strava: activities fetch failed: %d %s", e.Code, e.Body)
}

// TokenSource yields a bearer token. Exchange and refresh happen elsewhere.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed access token.
type StaticToken string

// Token returns the token, or ErrUnauthorized when it is empty.
func (s StaticToken) Token(context.Context) (string, error) {
	if s == "" {
		return "", ErrUnauthorized
	}
	return string(s), nil
}

// Config configures the client.
type Config struct {
	BaseURL    string
	PerPage    int
	Timeout    time.Duration
	HTTPClient *http.Client
	Now        func() time.Time
}

// Client lists athlete activities page by page.
type Client struct {
	cfg     Config
	tokens  TokenSource
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[[]summaryActivity]
	log     *slog.Logger
	metrics *clientMetrics
}

// New creates a client. Zero config fields take their defaults.
func New(cfg Config, tokens TokenSource, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PerPage <= 0 {
		cfg.PerPage = DefaultPerPage
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "strava")

	m, err := newClientMetrics()
	if err != nil {
		return nil, err
	}

	return &Client{
		cfg:     cfg,
		tokens:  tokens,
		http:    httpClient,
		cb:      newBreaker(logger),
		log:     logger,
		metrics: m,
	}, nil
}

type summaryActivity struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	StartDate          time.Time `json:"start_date"`
	Distance           float64   `json:"distance"`
	MovingTime         float64   `json:"moving_time"`
	ElapsedTime        float64   `json:"elapsed_time"`
	TotalElevationGain float64   `json:"total_elevation_gain"`
	GearID             string    `json:"gear_id"`
	Map                struct {
		SummaryPolyline string `json:"summary_polyline"`
	} `json:"map"`
}

func (s summaryActivity) toCore() core.Activity {
	id := s.ID
	moving := s.MovingTime
	if moving == 0 {
		moving = s.ElapsedTime
	}
	return core.Activity{
		ID:             &id,
		Polyline:       s.Map.SummaryPolyline,
		Type:           s.Type,
		Name:           s.Name,
		Date:           s.StartDate,
		DistanceM:      s.Distance,
		MovingTimeS:    moving,
		ElevationGainM: s.TotalElevationGain,
		GearID:         s.GearID,
	}
}

// Activities fetches every activity in r that carries a summary polyline.
// An empty range means the last year. Pages are requested until one comes
// back short.
func (c *Client) Activities(ctx context.Context, r core.DateRange) ([]core.Activity, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	base := c.rangeParams(r)
	var out []core.Activity
	for page := 1; ; page++ {
		params := url.Values{}
		for k, v := range base {
			params[k] = v
		}
		params.Set("page", strconv.Itoa(page))
		params.Set("per_page", strconv.Itoa(c.cfg.PerPage))

		batch, err := c.cb.Execute(func() ([]summaryActivity, error) {
			return c.fetchPage(ctx, token, params)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				c.log.Warn("Request rejected by circuit breaker", "error", err)
			}
			return nil, err
		}
		c.metrics.pages.Add(ctx, 1)

		kept := 0
		for _, s := range batch {
			if s.Map.SummaryPolyline == "" {
				continue
			}
			out = append(out, s.toCore())
			kept++
		}
		c.metrics.activities.Add(ctx, int64(kept))
		c.log.Debug("Fetched activity page", "page", page, "received", len(batch), "kept", kept)

		if len(batch) < c.cfg.PerPage {
			break
		}
	}

	if out == nil {
		out = []core.Activity{}
	}
	return out, nil
}

// rangeParams converts r to unix-second after/before parameters. before is
// only sent when it lies after after.
func (c *Client) rangeParams(r core.DateRange) url.Values {
	now := c.cfg.Now()
	def := core.LastYear(now)
	if r.After.IsZero() {
		r.After = def.After
	}
	if r.Before.IsZero() {
		r.Before = def.Before
	}

	params := url.Values{}
	after := r.After.Unix()
	before := r.Before.Unix()
	params.Set("after", strconv.FormatInt(after, 10))
	if before > after {
		params.Set("before", strconv.FormatInt(before, 10))
	}
	return params
}

func (c *Client) fetchPage(ctx context.Context, token string, params url.Values) ([]summaryActivity, error) {
	endpoint := c.cfg.BaseURL + "/athlete/activities?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch activities: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var batch []summaryActivity
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, fmt.Errorf("decode activities: %w", err)
	}
	return batch, nil
}
