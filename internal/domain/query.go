package domain

import "time"

// EventFilter selects events for the query API. Zero values disable a
// condition. From/To bound Timestamp as a half-open interval.
type EventFilter struct {
	Kinds       []EventKind
	Kind        EventKind
	Search      string
	From        time.Time
	To          time.Time
	OrderColumn string
	Descending  bool
	Offset      int
	Limit       int
}

// StatsFilter selects statistics records for the query API. From/To are
// inclusive calendar dates.
type StatsFilter struct {
	Search      string
	From        time.Time
	To          time.Time
	OrderColumn string
	Descending  bool
	Offset      int
	Limit       int
}

// StatsTotals sums statistics records over a period.
type StatsTotals struct {
	TotalSends             int64   `json:"total_sends"`
	TotalDeliveries        int64   `json:"total_deliveries"`
	TotalBounces           int64   `json:"total_bounces"`
	TotalComplaints        int64   `json:"total_complaints"`
	TotalRejects           int64   `json:"total_rejects"`
	TotalRenderingFailures int64   `json:"total_rendering_failures"`
	TotalDeliveryDelays    int64   `json:"total_delivery_delays"`
	PermanentBounces       int64   `json:"permanent_bounces"`
	TransientBounces       int64   `json:"transient_bounces"`
	AvgBounceRate          float64 `json:"avg_bounce_rate"`
	AvgComplaintRate       float64 `json:"avg_complaint_rate"`
	AvgDeliveryRate        float64 `json:"avg_delivery_rate"`
	OverallBounceRate      float64 `json:"overall_bounce_rate"`
	OverallComplaintRate   float64 `json:"overall_complaint_rate"`
	OverallDeliveryRate    float64 `json:"overall_delivery_rate"`
}

// CalculateOverallRates derives the overall rates from the summed
// counters. Unlike DailyStats, only sends serve as the base here.
func (t *StatsTotals) CalculateOverallRates() {
	t.OverallBounceRate = Percent(t.TotalBounces, t.TotalSends)
	t.OverallComplaintRate = Percent(t.TotalComplaints, t.TotalSends)
	t.OverallDeliveryRate = Percent(t.TotalDeliveries, t.TotalSends)
}
