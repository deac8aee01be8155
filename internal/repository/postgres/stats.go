package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/ses-tracking/internal/domain"
)

// StatsRepo is the daily statistics store on PostgreSQL.
type StatsRepo struct{ db *sql.DB }

// NewStatsRepo creates a Postgres-backed statistics repository.
func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{db: db} }

const statsColumns = `
	id, date,
	total_sends, total_deliveries, total_bounces, total_complaints,
	total_rejects, total_rendering_failures, total_delivery_delays, total_subscriptions,
	permanent_bounces, transient_bounces, undetermined_bounces,
	unique_recipients, bounce_rate, complaint_rate, delivery_rate,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStats(row rowScanner) (*domain.DailyStats, error) {
	s := &domain.DailyStats{}
	err := row.Scan(
		&s.ID, &s.Date,
		&s.TotalSends, &s.TotalDeliveries, &s.TotalBounces, &s.TotalComplaints,
		&s.TotalRejects, &s.TotalRenderingFailures, &s.TotalDeliveryDelays, &s.TotalSubscriptions,
		&s.PermanentBounces, &s.TransientBounces, &s.UndeterminedBounces,
		&s.UniqueRecipients, &s.BounceRate, &s.ComplaintRate, &s.DeliveryRate,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func dateParam(t time.Time) string { return t.Format(domain.DateLayout) }

// GetStats returns the record for date, or domain.ErrNotFound.
func (r *StatsRepo) GetStats(ctx context.Context, date time.Time) (*domain.DailyStats, error) {
	s, err := scanStats(r.db.QueryRowContext(ctx,
		`SELECT `+statsColumns+` FROM ses_daily_stats WHERE date = $1::date`, dateParam(date)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get daily stats: %w", err)
	}
	return s, nil
}

// UpsertStats creates the record for s.Date or overwrites its counters and
// rates in place. created reports whether a new row was inserted. ID and
// timestamps on s are refreshed from the stored row.
func (r *StatsRepo) UpsertStats(ctx context.Context, s *domain.DailyStats) (created bool, err error) {
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO ses_daily_stats
			(date, total_sends, total_deliveries, total_bounces, total_complaints,
			 total_rejects, total_rendering_failures, total_delivery_delays, total_subscriptions,
			 permanent_bounces, transient_bounces, undetermined_bounces,
			 unique_recipients, bounce_rate, complaint_rate, delivery_rate,
			 created_at, updated_at)
		VALUES ($1::date, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW(), NOW())
		ON CONFLICT (date) DO UPDATE SET
			total_sends = EXCLUDED.total_sends,
			total_deliveries = EXCLUDED.total_deliveries,
			total_bounces = EXCLUDED.total_bounces,
			total_complaints = EXCLUDED.total_complaints,
			total_rejects = EXCLUDED.total_rejects,
			total_rendering_failures = EXCLUDED.total_rendering_failures,
			total_delivery_delays = EXCLUDED.total_delivery_delays,
			total_subscriptions = EXCLUDED.total_subscriptions,
			permanent_bounces = EXCLUDED.permanent_bounces,
			transient_bounces = EXCLUDED.transient_bounces,
			undetermined_bounces = EXCLUDED.undetermined_bounces,
			unique_recipients = EXCLUDED.unique_recipients,
			bounce_rate = EXCLUDED.bounce_rate,
			complaint_rate = EXCLUDED.complaint_rate,
			delivery_rate = EXCLUDED.delivery_rate,
			updated_at = NOW()
		RETURNING id, created_at, updated_at, (xmax = 0)
	`, dateParam(s.Date),
		s.TotalSends, s.TotalDeliveries, s.TotalBounces, s.TotalComplaints,
		s.TotalRejects, s.TotalRenderingFailures, s.TotalDeliveryDelays, s.TotalSubscriptions,
		s.PermanentBounces, s.TransientBounces, s.UndeterminedBounces,
		s.UniqueRecipients, s.BounceRate, s.ComplaintRate, s.DeliveryRate,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt, &created)
	if err != nil {
		return false, fmt.Errorf("upsert daily stats: %w", err)
	}
	return created, nil
}

var statsOrderColumns = map[string]string{
	"date":              "date",
	"total_sends":       "total_sends",
	"total_deliveries":  "total_deliveries",
	"total_bounces":     "total_bounces",
	"total_complaints":  "total_complaints",
	"bounce_rate":       "bounce_rate",
	"complaint_rate":    "complaint_rate",
	"delivery_rate":     "delivery_rate",
	"unique_recipients": "unique_recipients",
}

// ListStats returns one page of records matching f and the number of
// matching records across all pages. Without an order column, records are
// newest first.
func (r *StatsRepo) ListStats(ctx context.Context, f domain.StatsFilter) ([]domain.DailyStats, int64, error) {
	var (
		conds []string
		args  []interface{}
	)
	if f.Search != "" {
		args = append(args, "%"+escapeLike(f.Search)+"%")
		conds = append(conds, fmt.Sprintf("date::text ILIKE $%d", len(args)))
	}
	if !f.From.IsZero() {
		args = append(args, dateParam(f.From))
		conds = append(conds, fmt.Sprintf("date >= $%d::date", len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, dateParam(f.To))
		conds = append(conds, fmt.Sprintf("date <= $%d::date", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ses_daily_stats`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count daily stats: %w", err)
	}

	order := "date DESC"
	if col, ok := statsOrderColumns[f.OrderColumn]; ok {
		dir := "ASC"
		if f.Descending {
			dir = "DESC"
		}
		order = col + " " + dir
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	q := `SELECT ` + statsColumns + ` FROM ses_daily_stats` + where +
		fmt.Sprintf(" ORDER BY %s LIMIT $%d OFFSET $%d", order, len(args)+1, len(args)+2)
	qArgs := append(append([]interface{}{}, args...), limit, f.Offset)

	out, err := r.queryStats(ctx, q, qArgs...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// StatsBetween returns every record with from <= date <= to, newest first.
func (r *StatsRepo) StatsBetween(ctx context.Context, from, to time.Time) ([]domain.DailyStats, error) {
	return r.queryStats(ctx, `
		SELECT `+statsColumns+`
		FROM ses_daily_stats
		WHERE date >= $1::date AND date <= $2::date
		ORDER BY date DESC
	`, dateParam(from), dateParam(to))
}

// LatestStats returns the record with the greatest date, or domain.ErrNotFound.
func (r *StatsRepo) LatestStats(ctx context.Context) (*domain.DailyStats, error) {
	s, err := scanStats(r.db.QueryRowContext(ctx,
		`SELECT `+statsColumns+` FROM ses_daily_stats ORDER BY date DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest daily stats: %w", err)
	}
	return s, nil
}

// TotalsBetween sums counters and averages stored rates over
// from <= date <= to. Overall rates are derived from the sums.
func (r *StatsRepo) TotalsBetween(ctx context.Context, from, to time.Time) (*domain.StatsTotals, error) {
	t := &domain.StatsTotals{}
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_sends), 0), COALESCE(SUM(total_deliveries), 0),
		       COALESCE(SUM(total_bounces), 0), COALESCE(SUM(total_complaints), 0),
		       COALESCE(SUM(total_rejects), 0), COALESCE(SUM(total_rendering_failures), 0),
		       COALESCE(SUM(total_delivery_delays), 0),
		       COALESCE(SUM(permanent_bounces), 0), COALESCE(SUM(transient_bounces), 0),
		       COALESCE(AVG(bounce_rate), 0), COALESCE(AVG(complaint_rate), 0),
		       COALESCE(AVG(delivery_rate), 0)
		FROM ses_daily_stats
		WHERE date >= $1::date AND date <= $2::date
	`, dateParam(from), dateParam(to)).Scan(
		&t.TotalSends, &t.TotalDeliveries, &t.TotalBounces, &t.TotalComplaints,
		&t.TotalRejects, &t.TotalRenderingFailures, &t.TotalDeliveryDelays,
		&t.PermanentBounces, &t.TransientBounces,
		&t.AvgBounceRate, &t.AvgComplaintRate, &t.AvgDeliveryRate,
	)
	if err != nil {
		return nil, fmt.Errorf("total daily stats: %w", err)
	}
	t.CalculateOverallRates()
	return t, nil
}

func (r *StatsRepo) queryStats(ctx context.Context, q string, args ...interface{}) ([]domain.DailyStats, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query daily stats: %w", err)
	}
	defer rows.Close()

	var out []domain.DailyStats
	for rows.Next() {
		s, err := scanStats(rows)
		if err != nil {
			return nil, fmt.Errorf("scan daily stats: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}
