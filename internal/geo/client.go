// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package geo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/convene-app/convene/internal/config"
	"github.com/convene-app/convene/internal/logging"
	"github.com/convene-app/convene/internal/metrics"
	"github.com/convene-app/convene/internal/models"
)

// maxErrorBodySize limits how much of an error response body is read
// for diagnostics.
const maxErrorBodySize = 8 * 1024

const breakerName = "place-directory"

// Client talks to the external place directory service. Calls are rate
// limited client-side and wrapped in a circuit breaker so a struggling
// directory cannot absorb the whole request budget; the Resolver
// degrades to local sources whenever a call fails.
//
// Thread safety: safe for concurrent use.
type Client struct {
	baseURL string
	httpc   *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]Match]
}

// NewClient creates a directory client from config. The caller is
// expected to have validated cfg.ServiceURL already.
func NewClient(cfg config.GeoConfig) *Client {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]Match](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,

		// Trip on consecutive failures rather than a ratio; directory
		// traffic is too bursty for ratio windows to be meaningful.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := breakerStateString(from)
			toStr := breakerStateString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).
				Msg("Place directory circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(rps)
	}

	return &Client{
		baseURL: cfg.ServiceURL,
		httpc:   &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		cb:      cb,
	}
}

// directoryResponse is the wire shape of the directory's nearby answer.
type directoryResponse struct {
	Places []Match `json:"places"`
}

// Nearby queries the directory for places within radiusKm of origin.
// Blocks on the rate limiter until a slot is free or ctx expires.
func (c *Client) Nearby(ctx context.Context, origin models.LatLng, radiusKm float64, limit int) ([]Match, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("place directory rate limiter: %w", err)
	}

	matches, err := c.cb.Execute(func() ([]Match, error) {
		return c.fetchNearby(ctx, origin, radiusKm, limit)
	})
	if err != nil {
		result := "failure"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result = "rejected"
		}
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, result).Inc()
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()
	return matches, nil
}

func (c *Client) fetchNearby(ctx context.Context, origin models.LatLng, radiusKm float64, limit int) ([]Match, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(origin.Lat, 'f', -1, 64))
	params.Set("lng", strconv.FormatFloat(origin.Lng, 'f', -1, 64))
	params.Set("radius_km", strconv.FormatFloat(radiusKm, 'f', -1, 64))
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	reqURL := fmt.Sprintf("%s/nearby?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create nearby request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpc.Do(req)
	metrics.GeoServiceCallDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, models.Wrap(models.KindUnavailable, err, "place directory request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, models.Unavailable("place directory returned status %d: %s", resp.StatusCode, string(body))
	}

	var decoded directoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, models.Wrap(models.KindUnavailable, err, "failed to decode place directory response")
	}

	matches := decoded.Places
	sortMatches(matches)
	return capMatches(matches, limit), nil
}

func breakerStateFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func breakerStateString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
