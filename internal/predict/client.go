// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package predict

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
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

const breakerName = "model-service"

// Client talks to the learned-model service. Calls are rate limited
// client-side and wrapped in a circuit breaker; the Predictor treats
// every client error as "model unavailable" and serves the heuristic
// alone, so a struggling model service degrades quality, not uptime.
//
// Thread safety: safe for concurrent use.
type Client struct {
	baseURL string
	httpc   *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[interface{}]
}

// NewClient creates a model service client from config. The caller is
// expected to have validated cfg.ServiceURL already.
func NewClient(cfg config.PredictorConfig) *Client {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     time.Minute,

		// Opens at a 60% failure rate once enough requests have been
		// seen to make the ratio meaningful.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).
				Msg("Model service circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
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

// execute wraps a model service call with the circuit breaker and
// records the outcome per operation.
func (c *Client) execute(operation string, fn func() (interface{}, error)) (interface{}, error) {
	result, err := c.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordModelServiceRequest(operation, "rejected")
		} else {
			metrics.RecordModelServiceRequest(operation, "failure")
		}
		return nil, err
	}
	metrics.RecordModelServiceRequest(operation, "success")
	return result, nil
}

// castResult type-casts the circuit breaker result.
func castResult[T any](result interface{}, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	typed, ok := result.(*T)
	if !ok {
		return nil, fmt.Errorf("model service client: unexpected result type %T", result)
	}
	return typed, nil
}

// predictRequest is the wire shape of a single prediction request.
type predictRequest struct {
	UserID    string           `json:"userId"`
	PlaceID   string           `json:"placeId"`
	User      UserFeatures     `json:"userFeatures"`
	Place     PlaceFeatures    `json:"placeFeatures"`
	Neighbors []NeighborRating `json:"similarUsersRatings"`
}

func requestFor(in Input) predictRequest {
	neighbors := in.Neighbors
	if neighbors == nil {
		neighbors = []NeighborRating{}
	}
	return predictRequest{
		UserID:    in.UserID,
		PlaceID:   in.PlaceID,
		User:      in.User,
		Place:     in.Place,
		Neighbors: neighbors,
	}
}

type predictResponse struct {
	Success    bool        `json:"success"`
	Error      string      `json:"error"`
	Prediction *Prediction `json:"prediction"`
}

type batchRequest struct {
	Predictions []predictRequest `json:"predictions"`
}

type batchResponse struct {
	Success     bool         `json:"success"`
	Error       string       `json:"error"`
	Predictions []batchEntry `json:"predictions"`
	Count       int          `json:"count"`
}

type batchEntry struct {
	UserID     string      `json:"userId"`
	PlaceID    string      `json:"placeId"`
	Prediction *Prediction `json:"prediction"`
}

type modelInfoResponse struct {
	Success bool       `json:"success"`
	Error   string     `json:"error"`
	Model   *ModelInfo `json:"model"`
}

// ModelInfo describes the trained model on the service.
type ModelInfo struct {
	Trained          bool              `json:"trained"`
	TotalSamples     int               `json:"total_samples"`
	LastTrained      string            `json:"last_trained"`
	EpochsCompleted  int               `json:"epochs_completed"`
	UsersInTraining  int               `json:"users_in_training"`
	PlacesInTraining int               `json:"places_in_training"`
	Architecture     ModelArchitecture `json:"architecture"`
}

// ModelArchitecture mirrors the service's network shape report.
type ModelArchitecture struct {
	EmbeddingDim int     `json:"embedding_dim"`
	HiddenUnits  []int   `json:"hidden_units"`
	DropoutRate  float64 `json:"dropout_rate"`
}

// LastTrainedTime parses the service's training timestamp. The service
// emits naive ISO 8601 without a zone; zone-qualified stamps are
// accepted too. Zero when unset or malformed.
func (m *ModelInfo) LastTrainedTime() time.Time {
	if m == nil || m.LastTrained == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, m.LastTrained); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ServiceHealth is the model service liveness answer.
type ServiceHealth struct {
	Status      string      `json:"status"`
	ModelLoaded bool        `json:"model_loaded"`
	Stats       HealthStats `json:"model_stats"`
}

// HealthStats summarizes training state in the health answer.
type HealthStats struct {
	TotalSamples int    `json:"total_samples"`
	LastTrained  string `json:"last_trained"`
	Epochs       int    `json:"epochs"`
}

// Predict asks the service for the learned component of one prediction.
// Returns nil without error when the service answers but has no trained
// model to contribute.
func (c *Client) Predict(ctx context.Context, in Input) (*MLScore, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("model service rate limiter: %w", err)
	}
	return castResult[MLScore](c.execute("predict", func() (interface{}, error) {
		return c.fetchPredict(ctx, in)
	}))
}

func (c *Client) fetchPredict(ctx context.Context, in Input) (*MLScore, error) {
	var decoded predictResponse
	if _, err := c.postJSON(ctx, "/predict", requestFor(in), &decoded); err != nil {
		return nil, err
	}
	if !decoded.Success || decoded.Prediction == nil {
		return nil, models.Unavailable("model service rejected prediction: %s", decoded.Error)
	}
	return extractML(decoded.Prediction), nil
}

// PredictBatch fetches learned components for several pairs in one
// round trip. Pairs the model could not score are absent from the map.
func (c *Client) PredictBatch(ctx context.Context, ins []Input) (map[Pair]MLScore, error) {
	if len(ins) == 0 {
		return map[Pair]MLScore{}, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("model service rate limiter: %w", err)
	}
	result, err := castResult[map[Pair]MLScore](c.execute("batch_predict", func() (interface{}, error) {
		return c.fetchBatch(ctx, ins)
	}))
	if err != nil {
		return nil, err
	}
	return *result, nil
}

func (c *Client) fetchBatch(ctx context.Context, ins []Input) (*map[Pair]MLScore, error) {
	req := batchRequest{Predictions: make([]predictRequest, 0, len(ins))}
	for _, in := range ins {
		req.Predictions = append(req.Predictions, requestFor(in))
	}

	var decoded batchResponse
	if _, err := c.postJSON(ctx, "/batch-predict", req, &decoded); err != nil {
		return nil, err
	}
	if !decoded.Success {
		return nil, models.Unavailable("model service rejected batch: %s", decoded.Error)
	}

	scores := make(map[Pair]MLScore, len(decoded.Predictions))
	for _, entry := range decoded.Predictions {
		if entry.Prediction == nil {
			continue
		}
		if ml := extractML(entry.Prediction); ml != nil {
			scores[Pair{UserID: entry.UserID, PlaceID: entry.PlaceID}] = *ml
		}
	}
	return &scores, nil
}

// ModelInfo reports the service's training state. A service that has
// never trained reports (nil, nil).
func (c *Client) ModelInfo(ctx context.Context) (*ModelInfo, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("model service rate limiter: %w", err)
	}
	return castResult[ModelInfo](c.execute("model_info", func() (interface{}, error) {
		return c.fetchModelInfo(ctx)
	}))
}

func (c *Client) fetchModelInfo(ctx context.Context) (*ModelInfo, error) {
	var decoded modelInfoResponse
	status, err := c.getJSON(ctx, "/model/info", &decoded)
	if status == http.StatusNotFound {
		return (*ModelInfo)(nil), nil
	}
	if err != nil {
		return nil, err
	}
	if !decoded.Success || decoded.Model == nil {
		return nil, models.Unavailable("model service returned malformed model info")
	}
	return decoded.Model, nil
}

// Health checks service liveness and reports its training stats.
func (c *Client) Health(ctx context.Context) (*ServiceHealth, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("model service rate limiter: %w", err)
	}
	return castResult[ServiceHealth](c.execute("health", func() (interface{}, error) {
		var decoded ServiceHealth
		if _, err := c.getJSON(ctx, "/health", &decoded); err != nil {
			return nil, err
		}
		return &decoded, nil
	}))
}

// extractML pulls the learned component out of a service prediction.
// Nil when the model did not contribute.
func extractML(p *Prediction) *MLScore {
	ml := p.Breakdown.ML
	if !ml.Available || ml.Score == nil {
		return nil
	}
	score := MLScore{Score: *ml.Score}
	if ml.Confidence != nil {
		score.Confidence = *ml.Confidence
	}
	return &score
}

func (c *Client) postJSON(ctx context.Context, path string, in, out interface{}) (int, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return 0, fmt.Errorf("failed to encode %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) (int, error) {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, models.Wrap(models.KindUnavailable, err, "model service request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return resp.StatusCode, models.Unavailable("model service returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, models.Wrap(models.KindUnavailable, err, "failed to decode model service response")
	}
	return resp.StatusCode, nil
}

func stateToFloat(state gobreaker.State) float64 {
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

func stateToString(state gobreaker.State) string {
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
