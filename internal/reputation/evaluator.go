// Package reputation answers whether a day's bounce rate is within limits.
package reputation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/ses-tracking/internal/config"
	"github.com/ignite/ses-tracking/internal/domain"
)

// StatsReader loads the statistics record for a date.
type StatsReader interface {
	GetStats(ctx context.Context, date time.Time) (*domain.DailyStats, error)
}

// Evaluation is the outcome of a bounce-rate check. Stats is nil when the
// check was overridden or no record exists for the date.
type Evaluation struct {
	Acceptable bool               `json:"acceptable"`
	Date       string             `json:"date"`
	Threshold  float64            `json:"threshold"`
	Rate       float64            `json:"bounce_rate"`
	Overridden bool               `json:"overridden"`
	NoData     bool               `json:"no_data"`
	Stats      *domain.DailyStats `json:"stats,omitempty"`
}

// Evaluator checks stored bounce rates against a threshold.
type Evaluator struct {
	stats StatsReader
	cfg   config.ReputationConfig
	loc   *time.Location
	now   func() time.Time
}

// NewEvaluator creates an Evaluator. "Today" is taken in loc; nil means UTC.
func NewEvaluator(stats StatsReader, cfg config.ReputationConfig, loc *time.Location) *Evaluator {
	if loc == nil {
		loc = time.UTC
	}
	return &Evaluator{stats: stats, cfg: cfg, loc: loc, now: time.Now}
}

// DefaultThreshold is the configured threshold used when a caller passes none.
func (e *Evaluator) DefaultThreshold() float64 { return e.cfg.Threshold() }

// Today returns the current calendar date in the evaluator's location.
func (e *Evaluator) Today() time.Time {
	y, m, d := e.now().In(e.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsBounceRateAcceptable reports whether the stored bounce rate for date is
// at most threshold. A nil threshold uses the configured one; zero means no
// bounces are tolerated. A zero date means today. The override flag passes
// every check without reading the store, and a date without a record
// passes too.
func (e *Evaluator) IsBounceRateAcceptable(ctx context.Context, threshold *float64, date time.Time) (*Evaluation, error) {
	limit := e.DefaultThreshold()
	if threshold != nil {
		limit = *threshold
	}
	if date.IsZero() {
		date = e.Today()
	}
	ev := &Evaluation{Date: date.Format(domain.DateLayout), Threshold: limit}

	if e.cfg.BounceRateOverride {
		ev.Acceptable, ev.Overridden = true, true
		return ev, nil
	}

	stats, err := e.stats.GetStats(ctx, date)
	if errors.Is(err, domain.ErrNotFound) {
		ev.Acceptable, ev.NoData = true, true
		return ev, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load stats for %s: %w", ev.Date, err)
	}

	ev.Stats = stats
	ev.Rate = stats.BounceRate
	ev.Acceptable = stats.BounceRate <= limit
	return ev, nil
}
