package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ignite/ses-tracking/internal/domain"
	"github.com/ignite/ses-tracking/internal/pkg/httputil"
)

// statsColumns is the DataTables column order of the statistics table.
var statsColumns = []string{
	"date",
	"total_sends",
	"total_deliveries",
	"total_bounces",
	"total_complaints",
	"bounce_rate",
	"complaint_rate",
	"delivery_rate",
	"unique_recipients",
}

const (
	defaultSummaryDays   = 7
	defaultAggregateDays = 30
)

// ListStats returns daily statistics records, newest first by default.
//
//	GET /api/stats
func (h *Handlers) ListStats(w http.ResponseWriter, r *http.Request) {
	p := ParseTableParams(r)
	q := r.URL.Query()

	f := domain.StatsFilter{
		Search:      p.Search,
		OrderColumn: p.OrderColumn(statsColumns),
		Descending:  p.Descending,
		Offset:      p.Offset,
		Limit:       p.Limit,
	}
	if d, err := parseDate(q.Get("start_date")); err == nil {
		f.From = d
	}
	if d, err := parseDate(q.Get("end_date")); err == nil {
		f.To = d
	}

	stats, total, err := h.stats.ListStats(r.Context(), f)
	if err != nil {
		httputil.InternalError(w, r, err)
		return
	}
	if stats == nil {
		stats = []domain.DailyStats{}
	}
	httputil.OK(w, NewTableResponse(stats, p, total))
}

type summaryQuery struct {
	Days string `query:"days" validate:"omitempty,number,max=4"`
}

// SummaryResponse lists lightweight records for a recent period.
type SummaryResponse struct {
	Period    string                `json:"period"`
	StartDate string                `json:"start_date"`
	EndDate   string                `json:"end_date"`
	Stats     []domain.StatsSummary `json:"stats"`
}

// StatsSummary returns lightweight records for the last N days.
//
//	GET /api/stats/summary?days=7
func (h *Handlers) StatsSummary(w http.ResponseWriter, r *http.Request) {
	var in summaryQuery
	if err := bindQuery(r, &in); err != nil {
		httputil.Invalid(w, "days must be a non-negative whole number", fieldErrors(err))
		return
	}
	days := defaultSummaryDays
	if in.Days != "" {
		days, _ = strconv.Atoi(in.Days)
	}

	end := h.today()
	start := end.AddDate(0, 0, -days)
	stats, err := h.stats.StatsBetween(r.Context(), start, end)
	if err != nil {
		httputil.InternalError(w, r, err)
		return
	}

	rows := make([]domain.StatsSummary, 0, len(stats))
	for i := range stats {
		rows = append(rows, stats[i].Summary())
	}
	httputil.OK(w, SummaryResponse{
		Period:    fmt.Sprintf("Last %d days", days),
		StartDate: start.Format(domain.DateLayout),
		EndDate:   end.Format(domain.DateLayout),
		Stats:     rows,
	})
}

type dateRangeQuery struct {
	StartDate string `query:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `query:"end_date" validate:"required,datetime=2006-01-02"`
}

// DateRangeResponse lists every record in an inclusive date range.
type DateRangeResponse struct {
	StartDate string              `json:"start_date"`
	EndDate   string              `json:"end_date"`
	Count     int                 `json:"count"`
	Stats     []domain.DailyStats `json:"stats"`
}

// StatsDateRange returns the records between two required dates.
//
//	GET /api/stats/date_range?start_date=YYYY-MM-DD&end_date=YYYY-MM-DD
func (h *Handlers) StatsDateRange(w http.ResponseWriter, r *http.Request) {
	var in dateRangeQuery
	if err := bindQuery(r, &in); err != nil {
		details := fieldErrors(err)
		if hasRule(details, "required") {
			httputil.Invalid(w, "Both start_date and end_date are required (YYYY-MM-DD)", details)
			return
		}
		httputil.Invalid(w, "Invalid date format. Use YYYY-MM-DD", details)
		return
	}
	start, _ := parseDate(in.StartDate)
	end, _ := parseDate(in.EndDate)

	stats, err := h.stats.StatsBetween(r.Context(), start, end)
	if err != nil {
		httputil.InternalError(w, r, err)
		return
	}
	if stats == nil {
		stats = []domain.DailyStats{}
	}
	httputil.OK(w, DateRangeResponse{
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Count:     len(stats),
		Stats:     stats,
	})
}

type aggregateQuery struct {
	StartDate string `query:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `query:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

// Period describes the inclusive range an aggregate covers.
type Period struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Days      int    `json:"days"`
}

// AggregateResponse carries period totals.
type AggregateResponse struct {
	Period Period              `json:"period"`
	Totals *domain.StatsTotals `json:"totals"`
}

// StatsAggregate sums records over a period, by default the last 30 days
// through today.
//
//	GET /api/stats/aggregate?start_date=YYYY-MM-DD&end_date=YYYY-MM-DD
func (h *Handlers) StatsAggregate(w http.ResponseWriter, r *http.Request) {
	var in aggregateQuery
	if err := bindQuery(r, &in); err != nil {
		httputil.Invalid(w, "Invalid date format. Use YYYY-MM-DD", fieldErrors(err))
		return
	}

	end := h.today()
	start := end.AddDate(0, 0, -defaultAggregateDays)
	if in.StartDate != "" {
		start, _ = parseDate(in.StartDate)
	}
	if in.EndDate != "" {
		end, _ = parseDate(in.EndDate)
	}

	totals, err := h.stats.TotalsBetween(r.Context(), start, end)
	if err != nil {
		httputil.InternalError(w, r, err)
		return
	}
	httputil.OK(w, AggregateResponse{
		Period: Period{
			StartDate: start.Format(domain.DateLayout),
			EndDate:   end.Format(domain.DateLayout),
			Days:      int(end.Sub(start)/(24*time.Hour)) + 1,
		},
		Totals: totals,
	})
}

// LatestStats returns the newest record.
//
//	GET /api/stats/latest
func (h *Handlers) LatestStats(w http.ResponseWriter, r *http.Request) {
	s, err := h.stats.LatestStats(r.Context())
	if errors.Is(err, domain.ErrNotFound) {
		httputil.NotFound(w, "No statistics available yet")
		return
	}
	if err != nil {
		httputil.InternalError(w, r, err)
		return
	}
	httputil.OK(w, s)
}

type bounceRateQuery struct {
	Threshold string `query:"threshold" validate:"omitempty,numeric"`
	Date      string `query:"date" validate:"omitempty,datetime=2006-01-02"`
}

// BounceRate reports whether a day's bounce rate is within a threshold.
// Without parameters it checks today against the configured threshold.
//
//	GET /api/stats/bounce-rate?threshold=5.0&date=YYYY-MM-DD
func (h *Handlers) BounceRate(w http.ResponseWriter, r *http.Request) {
	var in bounceRateQuery
	if err := bindQuery(r, &in); err != nil {
		httputil.Invalid(w, "Invalid threshold or date", fieldErrors(err))
		return
	}

	var (
		threshold *float64
		date      time.Time
	)
	if in.Threshold != "" {
		v, _ := strconv.ParseFloat(in.Threshold, 64)
		if v < 0 {
			httputil.Invalid(w, "Invalid threshold or date", []FieldError{{Field: "threshold", Rule: "gte"}})
			return
		}
		threshold = &v
	}
	if in.Date != "" {
		date, _ = parseDate(in.Date)
	}

	eval, err := h.evaluator.IsBounceRateAcceptable(r.Context(), threshold, date)
	if err != nil {
		httputil.InternalError(w, r, err)
		return
	}
	httputil.OK(w, eval)
}
