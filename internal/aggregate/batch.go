package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/ses-tracking/internal/domain"
	"github.com/ignite/ses-tracking/internal/pkg/distlock"
	"github.com/ignite/ses-tracking/internal/pkg/logger"
)

// ErrLocked is returned when another run holds the lock for a date.
var ErrLocked = errors.New("aggregation already in progress")

// Statuses reported only by Batch.Run.
const (
	// StatusLocked marks a date skipped because another run holds its lock.
	StatusLocked Status = "locked"
	// StatusFailed marks a date whose aggregation returned an error.
	StatusFailed Status = "failed"
)

// Archiver receives every record the batch creates or updates.
type Archiver interface {
	Archive(ctx context.Context, s *domain.DailyStats) error
}

// LockFunc returns the lock guarding key.
type LockFunc func(key string) distlock.DistLock

// Batch drives an Aggregator over an inclusive range of dates. Dates are
// processed one at a time and share no state.
type Batch struct {
	agg      *Aggregator
	lockFor  LockFunc
	archiver Archiver
}

// NewBatch wraps agg. Without a lock or archiver the batch only aggregates.
func NewBatch(agg *Aggregator) *Batch {
	return &Batch{agg: agg}
}

// SetLocker makes each date's aggregation hold the lock returned by fn.
func (b *Batch) SetLocker(fn LockFunc) { b.lockFor = fn }

// SetArchiver sends created and updated records to a.
func (b *Batch) SetArchiver(a Archiver) { b.archiver = a }

// Dates returns the days calendar dates ending at end, oldest first.
// days below 1 is treated as 1.
func Dates(end time.Time, days int) []time.Time {
	if days < 1 {
		days = 1
	}
	end = calendarDate(end)
	out := make([]time.Time, 0, days)
	for i := days - 1; i >= 0; i-- {
		out = append(out, end.AddDate(0, 0, -i))
	}
	return out
}

// LockKey names the lock for one date.
func LockKey(date time.Time) string {
	return "ses-daily-stats:" + calendarDate(date).Format(domain.DateLayout)
}

// Run aggregates every date in Dates(end, days) and passes each result to
// report. Dates are independent: a date whose lock is held is reported with
// StatusLocked, a date that fails is reported with StatusFailed, and the run
// continues with the next date either way. The errors of all failed dates
// are returned joined. Cancelling ctx stops the run before the next date.
func (b *Batch) Run(ctx context.Context, end time.Time, days int, force bool, report func(*Result)) error {
	var errs []error
	for _, date := range Dates(end, days) {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		res, err := b.AggregateDate(ctx, date, force)
		switch {
		case errors.Is(err, ErrLocked):
			res = &Result{Date: calendarDate(date), Status: StatusLocked}
		case err != nil:
			logger.Error("daily stats aggregation failed", "date", calendarDate(date).Format(domain.DateLayout), "error", err)
			errs = append(errs, err)
			res = &Result{Date: calendarDate(date), Status: StatusFailed, Err: err}
		}
		if report != nil {
			report(res)
		}
	}
	return errors.Join(errs...)
}

// AggregateDate aggregates one date under its lock and archives the
// record when it changed. Archive failures are logged and do not fail the
// date.
func (b *Batch) AggregateDate(ctx context.Context, date time.Time, force bool) (*Result, error) {
	if b.lockFor != nil {
		lock := b.lockFor(LockKey(date))
		ok, err := lock.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire lock for %s: %w", calendarDate(date).Format(domain.DateLayout), err)
		}
		if !ok {
			return nil, ErrLocked
		}
		defer func() {
			if err := lock.Release(context.Background()); err != nil {
				logger.Warn("failed to release aggregation lock", "date", calendarDate(date).Format(domain.DateLayout), "error", err)
			}
		}()
	}

	res, err := b.agg.Aggregate(ctx, date, force)
	if err != nil {
		return nil, err
	}

	if b.archiver != nil && res.Status != StatusSkipped {
		if err := b.archiver.Archive(ctx, res.Stats); err != nil {
			logger.Warn("failed to archive daily stats", "date", res.Stats.DateKey(), "error", err)
		}
	}
	return res, nil
}
