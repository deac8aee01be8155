// Package api serves the read-only reporting endpoints over stored events
// and daily statistics.
package api

import (
	"context"
	"time"

	"github.com/ignite/ses-tracking/internal/domain"
	"github.com/ignite/ses-tracking/internal/reputation"
)

// EventLister pages through stored events.
type EventLister interface {
	List(ctx context.Context, f domain.EventFilter) ([]domain.Event, int64, error)
}

// StatsQuerier reads daily statistics records.
type StatsQuerier interface {
	ListStats(ctx context.Context, f domain.StatsFilter) ([]domain.DailyStats, int64, error)
	StatsBetween(ctx context.Context, from, to time.Time) ([]domain.DailyStats, error)
	LatestStats(ctx context.Context) (*domain.DailyStats, error)
	TotalsBetween(ctx context.Context, from, to time.Time) (*domain.StatsTotals, error)
}

// RateChecker evaluates a day's bounce rate.
type RateChecker interface {
	IsBounceRateAcceptable(ctx context.Context, threshold *float64, date time.Time) (*reputation.Evaluation, error)
}

// Handlers contains the query API handlers
type Handlers struct {
	events    EventLister
	stats     StatsQuerier
	evaluator RateChecker
	loc       *time.Location
	now       func() time.Time
}

// NewHandlers creates a new Handlers instance. Calendar dates such as
// "today" and event day filters are taken in loc; nil means UTC.
func NewHandlers(events EventLister, stats StatsQuerier, evaluator RateChecker, loc *time.Location) *Handlers {
	if loc == nil {
		loc = time.UTC
	}
	return &Handlers{
		events:    events,
		stats:     stats,
		evaluator: evaluator,
		loc:       loc,
		now:       time.Now,
	}
}

// SetClock replaces the time source used for "today".
func (h *Handlers) SetClock(now func() time.Time) {
	h.now = now
}

// today returns the current calendar date in h.loc as a UTC midnight.
func (h *Handlers) today() time.Time {
	y, m, d := h.now().In(h.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// parseDate parses YYYY-MM-DD as a UTC midnight.
func parseDate(s string) (time.Time, error) {
	return time.Parse(domain.DateLayout, s)
}
