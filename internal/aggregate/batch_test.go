package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/ses-tracking/internal/domain"
	"github.com/ignite/ses-tracking/internal/pkg/distlock"
)

type recordingArchiver struct {
	dates []string
	err   error
}

func (r *recordingArchiver) Archive(_ context.Context, s *domain.DailyStats) error {
	r.dates = append(r.dates, s.DateKey())
	return r.err
}

func TestDates(t *testing.T) {
	end := time.Date(2024, 3, 2, 18, 30, 0, 0, time.UTC)

	got := Dates(end, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "2024-02-29", got[0].Format(domain.DateLayout))
	assert.Equal(t, "2024-03-01", got[1].Format(domain.DateLayout))
	assert.Equal(t, "2024-03-02", got[2].Format(domain.DateLayout))

	assert.Len(t, Dates(end, 0), 1)
}

func TestBatch_RunReportsEveryDate(t *testing.T) {
	stats := newMemStats()
	events := &memEvents{events: repeat(2, domain.SendDetail{}, "2024-01-02")}
	archiver := &recordingArchiver{err: errors.New("s3 unavailable")}

	b := NewBatch(New(events, stats, time.UTC))
	b.SetArchiver(archiver)

	// Pre-existing record for the last day is skipped and not archived.
	_, err := stats.UpsertStats(context.Background(), &domain.DailyStats{Date: at("2024-01-03", 0)})
	require.NoError(t, err)

	var results []*Result
	err = b.Run(context.Background(), at("2024-01-03", 0), 3, false, func(r *Result) {
		results = append(results, r)
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, StatusCreated, results[0].Status)
	assert.Equal(t, StatusCreated, results[1].Status)
	assert.EqualValues(t, 2, results[1].Stats.TotalSends)
	assert.Equal(t, StatusSkipped, results[2].Status)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02"}, archiver.dates)
}

func TestBatch_FailedDateDoesNotStopRun(t *testing.T) {
	overflow := errors.New("numeric field overflow")
	stats := newMemStats()
	stats.failOn = map[string]error{"2024-01-02": overflow}
	b := NewBatch(New(&memEvents{}, stats, time.UTC))

	var results []*Result
	err := b.Run(context.Background(), at("2024-01-03", 0), 3, false, func(r *Result) {
		results = append(results, r)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, overflow)

	require.Len(t, results, 3)
	assert.Equal(t, StatusCreated, results[0].Status)
	assert.Equal(t, StatusFailed, results[1].Status)
	assert.Equal(t, "2024-01-02", results[1].Date.Format(domain.DateLayout))
	assert.ErrorIs(t, results[1].Err, overflow)
	assert.Equal(t, StatusCreated, results[2].Status)

	_, err = stats.GetStats(context.Background(), at("2024-01-03", 0))
	assert.NoError(t, err)
}

func TestBatch_CancelledContextStopsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := NewBatch(New(&memEvents{}, newMemStats(), time.UTC))

	var reported int
	err := b.Run(ctx, at("2024-01-03", 0), 3, false, func(*Result) {
		reported++
		cancel()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, reported)
}

func TestBatch_LockedDateIsSkipped(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	held := distlock.NewRedisLock(client, LockKey(at("2024-01-02", 0)), time.Minute)
	ok, err := held.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	stats := newMemStats()
	b := NewBatch(New(&memEvents{}, stats, time.UTC))
	b.SetLocker(func(key string) distlock.DistLock {
		return distlock.NewRedisLock(client, key, time.Minute)
	})

	var statuses []Status
	err = b.Run(ctx, at("2024-01-02", 0), 2, false, func(r *Result) {
		statuses = append(statuses, r.Status)
	})
	require.NoError(t, err)
	assert.Equal(t, []Status{StatusCreated, StatusLocked}, statuses)

	_, err = b.AggregateDate(ctx, at("2024-01-02", 0), false)
	assert.ErrorIs(t, err, ErrLocked)

	// The lock for the first date was released after its run.
	assert.False(t, mr.Exists("lock:"+LockKey(at("2024-01-01", 0))))
}
