package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// DateLayout is the calendar-date format used for statistics keys, query
// parameters, and command flags.
const DateLayout = "2006-01-02"

// DailyStats is the per-date aggregate of stored events. It is keyed by
// Date and recomputed in place by the aggregator.
type DailyStats struct {
	ID   int64
	Date time.Time

	TotalSends             int64
	TotalDeliveries        int64
	TotalBounces           int64
	TotalComplaints        int64
	TotalRejects           int64
	TotalRenderingFailures int64
	TotalDeliveryDelays    int64
	TotalSubscriptions     int64

	PermanentBounces    int64
	TransientBounces    int64
	UndeterminedBounces int64

	UniqueRecipients int64

	BounceRate    float64
	ComplaintRate float64
	DeliveryRate  float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DateKey returns the record's date as YYYY-MM-DD.
func (s *DailyStats) DateKey() string {
	return s.Date.Format(DateLayout)
}

// RateBase returns the denominator used for all three rates: sends when
// any were recorded, otherwise deliveries. With deliveries as the base,
// bounce_rate can exceed 100 and delivery_rate is 100 whenever there were
// deliveries.
func (s *DailyStats) RateBase() int64 {
	if s.TotalSends > 0 {
		return s.TotalSends
	}
	return s.TotalDeliveries
}

// CalculateRates derives the three rate fields from the counters.
func (s *DailyStats) CalculateRates() {
	base := s.RateBase()
	if base <= 0 {
		s.BounceRate, s.ComplaintRate, s.DeliveryRate = 0, 0, 0
		return
	}
	s.BounceRate = Percent(s.TotalBounces, base)
	s.ComplaintRate = Percent(s.TotalComplaints, base)
	s.DeliveryRate = Percent(s.TotalDeliveries, base)
}

// Percent returns 100*count/base rounded to 2 decimal places, or 0 when
// base is not positive.
func Percent(count, base int64) float64 {
	if base <= 0 {
		return 0
	}
	return RoundRate(float64(count) / float64(base) * 100)
}

// RoundRate rounds v to 2 decimal places, half away from zero.
func RoundRate(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatRate renders a rate the way the reporting UI shows it, e.g. "5.00%".
func FormatRate(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

type dailyStatsJSON struct {
	ID                     int64     `json:"id"`
	Date                   string    `json:"date"`
	TotalSends             int64     `json:"total_sends"`
	TotalDeliveries        int64     `json:"total_deliveries"`
	TotalBounces           int64     `json:"total_bounces"`
	TotalComplaints        int64     `json:"total_complaints"`
	TotalRejects           int64     `json:"total_rejects"`
	TotalRenderingFailures int64     `json:"total_rendering_failures"`
	TotalDeliveryDelays    int64     `json:"total_delivery_delays"`
	TotalSubscriptions     int64     `json:"total_subscriptions"`
	PermanentBounces       int64     `json:"permanent_bounces"`
	TransientBounces       int64     `json:"transient_bounces"`
	UndeterminedBounces    int64     `json:"undetermined_bounces"`
	BounceRate             float64   `json:"bounce_rate"`
	BounceRateDisplay      string    `json:"bounce_rate_display"`
	ComplaintRate          float64   `json:"complaint_rate"`
	ComplaintRateDisplay   string    `json:"complaint_rate_display"`
	DeliveryRate           float64   `json:"delivery_rate"`
	DeliveryRateDisplay    string    `json:"delivery_rate_display"`
	UniqueRecipients       int64     `json:"unique_recipients"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// MarshalJSON renders the full record with formatted rate displays.
func (s DailyStats) MarshalJSON() ([]byte, error) {
	return json.Marshal(dailyStatsJSON{
		ID:                     s.ID,
		Date:                   s.DateKey(),
		TotalSends:             s.TotalSends,
		TotalDeliveries:        s.TotalDeliveries,
		TotalBounces:           s.TotalBounces,
		TotalComplaints:        s.TotalComplaints,
		TotalRejects:           s.TotalRejects,
		TotalRenderingFailures: s.TotalRenderingFailures,
		TotalDeliveryDelays:    s.TotalDeliveryDelays,
		TotalSubscriptions:     s.TotalSubscriptions,
		PermanentBounces:       s.PermanentBounces,
		TransientBounces:       s.TransientBounces,
		UndeterminedBounces:    s.UndeterminedBounces,
		BounceRate:             s.BounceRate,
		BounceRateDisplay:      FormatRate(s.BounceRate),
		ComplaintRate:          s.ComplaintRate,
		ComplaintRateDisplay:   FormatRate(s.ComplaintRate),
		DeliveryRate:           s.DeliveryRate,
		DeliveryRateDisplay:    FormatRate(s.DeliveryRate),
		UniqueRecipients:       s.UniqueRecipients,
		CreatedAt:              s.CreatedAt,
		UpdatedAt:              s.UpdatedAt,
	})
}

// StatsSummary is the lightweight projection of DailyStats used by the
// summary listing.
type StatsSummary struct {
	Date                 string  `json:"date"`
	TotalSends           int64   `json:"total_sends"`
	TotalDeliveries      int64   `json:"total_deliveries"`
	TotalBounces         int64   `json:"total_bounces"`
	TotalComplaints      int64   `json:"total_complaints"`
	BounceRate           float64 `json:"bounce_rate"`
	BounceRateDisplay    string  `json:"bounce_rate_display"`
	ComplaintRate        float64 `json:"complaint_rate"`
	ComplaintRateDisplay string  `json:"complaint_rate_display"`
	DeliveryRate         float64 `json:"delivery_rate"`
	DeliveryRateDisplay  string  `json:"delivery_rate_display"`
}

// Summary projects s to its lightweight form.
func (s *DailyStats) Summary() StatsSummary {
	return StatsSummary{
		Date:                 s.DateKey(),
		TotalSends:           s.TotalSends,
		TotalDeliveries:      s.TotalDeliveries,
		TotalBounces:         s.TotalBounces,
		TotalComplaints:      s.TotalComplaints,
		BounceRate:           s.BounceRate,
		BounceRateDisplay:    FormatRate(s.BounceRate),
		ComplaintRate:        s.ComplaintRate,
		ComplaintRateDisplay: FormatRate(s.ComplaintRate),
		DeliveryRate:         s.DeliveryRate,
		DeliveryRateDisplay:  FormatRate(s.DeliveryRate),
	}
}
