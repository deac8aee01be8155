package api

import (
	"net/http"
	"time"

	"github.com/ignite/ses-tracking/internal/domain"
	"github.com/ignite/ses-tracking/internal/pkg/httputil"
)

// eventColumns is the DataTables column order of the events table.
var eventColumns = []string{"timestamp", "email", "email_subject", "email_to", "event_type", "bounce_type"}

// ListEvents returns bounce and complaint events, newest first.
//
//	GET /api/events
func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	p := ParseTableParams(r)
	q := r.URL.Query()

	f := domain.EventFilter{
		Kinds:       []domain.EventKind{domain.KindBounce, domain.KindComplaint},
		Kind:        domain.EventKind(q.Get("event_type")),
		Search:      p.Search,
		OrderColumn: p.OrderColumn(eventColumns),
		Descending:  p.Descending,
		Offset:      p.Offset,
		Limit:       p.Limit,
	}
	// Day filters cover whole calendar days in the reporting zone.
	// Unparseable dates are ignored.
	if d, err := parseDate(q.Get("start_date")); err == nil {
		f.From = h.dayStart(d)
	}
	if d, err := parseDate(q.Get("end_date")); err == nil {
		f.To = h.dayStart(d.AddDate(0, 0, 1))
	}

	events, total, err := h.events.List(r.Context(), f)
	if err != nil {
		httputil.InternalError(w, r, err)
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	httputil.OK(w, NewTableResponse(events, p, total))
}

func (h *Handlers) dayStart(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, h.loc)
}
