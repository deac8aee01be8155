package aggregate

import (
	"time"

	"github.com/ignite/ses-tracking/internal/domain"
)

// Tally accumulates counters over one day's events.
type Tally struct {
	byKind     map[domain.EventKind]int64
	byBounce   map[domain.BounceType]int64
	recipients map[string]struct{}
}

// NewTally returns an empty Tally.
func NewTally() *Tally {
	return &Tally{
		byKind:     make(map[domain.EventKind]int64, len(domain.AllKinds)),
		byBounce:   make(map[domain.BounceType]int64, 3),
		recipients: make(map[string]struct{}),
	}
}

// Add counts one event. Recipients are distinct across all kinds.
func (t *Tally) Add(e domain.Event) {
	t.byKind[e.Kind()]++
	if b, ok := e.Detail.(domain.BounceDetail); ok {
		t.byBounce[b.BounceType]++
	}
	t.recipients[e.RecipientEmail] = struct{}{}
}

// Stats returns a statistics record for date with rates derived from the
// counters.
func (t *Tally) Stats(date time.Time) *domain.DailyStats {
	s := &domain.DailyStats{
		Date:                   date,
		TotalSends:             t.byKind[domain.KindSend],
		TotalDeliveries:        t.byKind[domain.KindDelivery],
		TotalBounces:           t.byKind[domain.KindBounce],
		TotalComplaints:        t.byKind[domain.KindComplaint],
		TotalRejects:           t.byKind[domain.KindReject],
		TotalRenderingFailures: t.byKind[domain.KindRenderingFailure],
		TotalDeliveryDelays:    t.byKind[domain.KindDeliveryDelay],
		TotalSubscriptions:     t.byKind[domain.KindSubscription],
		PermanentBounces:       t.byBounce[domain.BouncePermanent],
		TransientBounces:       t.byBounce[domain.BounceTransient],
		UndeterminedBounces:    t.byBounce[domain.BounceUndetermined],
		UniqueRecipients:       int64(len(t.recipients)),
	}
	s.CalculateRates()
	return s
}
