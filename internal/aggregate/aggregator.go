// Package aggregate rolls stored SES events into one statistics record per
// calendar day.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/ses-tracking/internal/domain"
)

// EventScanner streams the events whose timestamp falls in [from, to).
type EventScanner interface {
	ScanRange(ctx context.Context, from, to time.Time, fn func(domain.Event) error) error
}

// StatsStore reads and upserts daily statistics records.
type StatsStore interface {
	GetStats(ctx context.Context, date time.Time) (*domain.DailyStats, error)
	UpsertStats(ctx context.Context, s *domain.DailyStats) (created bool, err error)
}

// Status reports what Aggregate did for a date.
type Status string

const (
	StatusCreated Status = "created"
	StatusUpdated Status = "updated"
	StatusSkipped Status = "skipped"
)

// Result is the outcome of aggregating one date. Stats is the existing
// record when Status is StatusSkipped. Err is set only with StatusFailed.
type Result struct {
	Date   time.Time
	Status Status
	Stats  *domain.DailyStats
	Err    error
}

// Aggregator computes daily statistics. Day boundaries are midnight to
// midnight in its location.
type Aggregator struct {
	events EventScanner
	stats  StatsStore
	loc    *time.Location
}

// New creates an Aggregator. A nil loc means UTC.
func New(events EventScanner, stats StatsStore, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{events: events, stats: stats, loc: loc}
}

// Location returns the zone used for day boundaries.
func (a *Aggregator) Location() *time.Location { return a.loc }

// DayBounds returns the half-open interval covering date's calendar day in
// the aggregator's location. Only the year, month, and day of date are used.
func (a *Aggregator) DayBounds(date time.Time) (from, to time.Time) {
	y, m, d := date.Date()
	from = time.Date(y, m, d, 0, 0, 0, 0, a.loc)
	to = time.Date(y, m, d+1, 0, 0, 0, 0, a.loc)
	return from, to
}

// Aggregate computes and stores the statistics for date. When a record
// already exists and force is false, nothing is recomputed and the existing
// record is returned with StatusSkipped. A day with no events still
// produces a record with zero counters and rates.
func (a *Aggregator) Aggregate(ctx context.Context, date time.Time, force bool) (*Result, error) {
	day := calendarDate(date)

	if !force {
		existing, err := a.stats.GetStats(ctx, day)
		switch {
		case err == nil:
			return &Result{Date: day, Status: StatusSkipped, Stats: existing}, nil
		case !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("check stats for %s: %w", day.Format(domain.DateLayout), err)
		}
	}

	from, to := a.DayBounds(day)
	tally := NewTally()
	if err := a.events.ScanRange(ctx, from, to, func(e domain.Event) error {
		tally.Add(e)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("scan events for %s: %w", day.Format(domain.DateLayout), err)
	}

	stats := tally.Stats(day)
	created, err := a.stats.UpsertStats(ctx, stats)
	if err != nil {
		return nil, fmt.Errorf("store stats for %s: %w", day.Format(domain.DateLayout), err)
	}

	status := StatusUpdated
	if created {
		status = StatusCreated
	}
	return &Result{Date: day, Status: status, Stats: stats}, nil
}

// calendarDate drops the clock and zone from t, keeping its calendar date.
func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
