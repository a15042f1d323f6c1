// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package predict

import (
	"context"
	"time"

	"github.com/convene-app/convene/internal/config"
	"github.com/convene-app/convene/internal/insights"
	"github.com/convene-app/convene/internal/logging"
)

// datasetSource reports rating volume from the analytics store.
// *insights.DB satisfies it.
type datasetSource interface {
	Stats(ctx context.Context) (*insights.DatasetStats, error)
	EventsSince(ctx context.Context, t time.Time) (int64, error)
}

// refreshNotifier raises the retraining signal. *notify.Bus satisfies
// it.
type refreshNotifier interface {
	PredictorRefreshDue()
}

// Watcher periodically compares rating volume against the model
// service's training snapshot and raises one notification per stale
// snapshot when retraining is due. Training itself runs out-of-band
// against the exported dataset; the watcher only signals.
//
// A refresh is due when the model has never trained, when enough new
// ratings arrived since the last run, or when the snapshot is older
// than the configured age. Nothing is due while the dataset is below
// the minimum training size.
type Watcher struct {
	client  modelService
	dataset datasetSource
	notify  refreshNotifier
	cfg     config.PredictorConfig

	// signaledFor is the training stamp the last signal was raised
	// against, so a due condition fires once, not every tick.
	signaledFor time.Time

	now func() time.Time
}

// NewWatcher builds the retrain watcher.
func NewWatcher(client *Client, dataset datasetSource, notify refreshNotifier, cfg config.PredictorConfig) *Watcher {
	w := &Watcher{
		dataset: dataset,
		notify:  notify,
		cfg:     cfg,
		now:     time.Now,
	}
	if client != nil {
		w.client = client
	}
	return w
}

// Serve implements suture.Service: check on an interval until canceled.
func (w *Watcher) Serve(ctx context.Context) error {
	interval := w.cfg.RefreshCheckInterval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}

// Check runs one due-evaluation and signals if retraining is warranted.
func (w *Watcher) Check(ctx context.Context) {
	stats, err := w.dataset.Stats(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Retrain check could not read dataset stats")
		return
	}
	if stats.Ratings < int64(w.cfg.RetrainMinRatings) {
		return
	}

	var lastTrained time.Time
	trained := false
	if w.client != nil {
		info, err := w.client.ModelInfo(ctx)
		if err != nil {
			logging.Warn().Err(err).Msg("Retrain check could not reach model service")
			return
		}
		if info != nil && info.Trained {
			trained = true
			lastTrained = info.LastTrainedTime()
		}
	}

	due, reason := w.evaluate(ctx, trained, lastTrained)
	if !due {
		return
	}

	stamp := lastTrained
	if stamp.IsZero() {
		stamp = neverTrainedStamp
	}
	if stamp.Equal(w.signaledFor) {
		return
	}
	w.signaledFor = stamp

	logging.Info().Str("reason", reason).Int64("ratings", stats.Ratings).
		Msg("Model retraining due")
	w.notify.PredictorRefreshDue()
}

// neverTrainedStamp marks that the never-trained condition was already
// signaled.
var neverTrainedStamp = time.Unix(1, 0)

// evaluate decides whether retraining is due and why.
func (w *Watcher) evaluate(ctx context.Context, trained bool, lastTrained time.Time) (bool, string) {
	if !trained || lastTrained.IsZero() {
		return true, "never_trained"
	}
	if w.cfg.RetrainMaxAge > 0 && w.now().Sub(lastTrained) >= w.cfg.RetrainMaxAge {
		return true, "max_age"
	}
	if w.cfg.RetrainNewRatings > 0 {
		n, err := w.dataset.EventsSince(ctx, lastTrained)
		if err != nil {
			logging.Warn().Err(err).Msg("Retrain check could not count new events")
			return false, ""
		}
		if n >= int64(w.cfg.RetrainNewRatings) {
			return true, "new_ratings"
		}
	}
	return false, ""
}

// String implements suture's service naming.
func (w *Watcher) String() string {
	return "model-refresh-watcher"
}
