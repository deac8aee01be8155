package backfill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/ses-tracking/internal/domain"
)

// memStore mimics the SQL store: listing filters on an empty Message-ID and
// filling only touches empty columns.
type memStore struct {
	events  map[string]*domain.Event
	fillErr error
	fills   int
}

func newMemStore(events ...domain.Event) *memStore {
	m := &memStore{events: make(map[string]*domain.Event)}
	for i := range events {
		e := events[i]
		m.events[e.ID] = &e
	}
	return m
}

func (m *memStore) ListMissingMetadata(_ context.Context, afterID string, limit int) ([]domain.Event, error) {
	ids := make([]string, 0, len(m.events))
	for id, e := range m.events {
		if e.Metadata.MessageID == "" && id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]domain.Event, 0, len(ids))
	for _, id := range ids {
		out = append(out, *m.events[id])
	}
	return out, nil
}

func (m *memStore) FillMetadata(_ context.Context, id string, md domain.MessageMetadata) error {
	if m.fillErr != nil {
		return m.fillErr
	}
	m.fills++
	e := m.events[id]
	e.Metadata, _ = e.Metadata.FillFrom(md)
	return nil
}

func payload(messageID, subject string, to []string) json.RawMessage {
	common := map[string]any{}
	if messageID != "" {
		common["messageId"] = messageID
	}
	if subject != "" {
		common["subject"] = subject
	}
	if len(to) > 0 {
		common["to"] = to
	}
	raw, _ := json.Marshal(map[string]any{
		"eventType": "Delivery",
		"mail":      map[string]any{"messageId": "ses-1", "commonHeaders": common},
	})
	return raw
}

func TestRun_FillsOnlyMissingFields(t *testing.T) {
	store := newMemStore(
		domain.Event{
			ID:         "a",
			Metadata:   domain.MessageMetadata{Subject: "Kept subject"},
			RawPayload: payload("<abc@mail.example.com>", "Payload subject", []string{"x@example.com", "y@example.com"}),
		},
		domain.Event{
			ID:         "b",
			RawPayload: json.RawMessage(`{"mail":{"headers":[{"name":"message-id","value":"<hdr@example.com>"}]}}`),
		},
		domain.Event{ID: "c", RawPayload: json.RawMessage(`{"mail":{}}`)},
		domain.Event{ID: "d", RawPayload: json.RawMessage(`not json`)},
		domain.Event{ID: "e", Metadata: domain.MessageMetadata{MessageID: "done"}, RawPayload: payload("other", "", nil)},
	)

	res, err := New(store, 2).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, res.Scanned)
	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 1, res.Unparsable)

	assert.Equal(t, domain.MessageMetadata{
		MessageID: "abc@mail.example.com",
		Subject:   "Kept subject",
		To:        "x@example.com, y@example.com",
	}, store.events["a"].Metadata)
	assert.Equal(t, "hdr@example.com", store.events["b"].Metadata.MessageID)
	assert.Equal(t, domain.MessageMetadata{}, store.events["c"].Metadata)
	assert.Equal(t, "done", store.events["e"].Metadata.MessageID)
}

func TestRun_IsIdempotent(t *testing.T) {
	store := newMemStore(domain.Event{ID: "a", RawPayload: payload("m1", "s", nil)})
	bf := New(store, 0)

	_, err := bf.Run(context.Background())
	require.NoError(t, err)
	res, err := bf.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, res.Scanned)
	assert.Equal(t, 1, store.fills)
}

func TestRun_StoreErrorStops(t *testing.T) {
	boom := errors.New("deadlock detected")
	store := newMemStore(domain.Event{ID: "a", RawPayload: payload("m1", "", nil)})
	store.fillErr = boom

	res, err := New(store, 10).Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, res.Scanned)
}

func TestRun_NeverOverwrites(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	opt := gen.OneGenOf(gen.Const(""), gen.AlphaString())

	properties.Property("present fields are kept and absent ones are filled", prop.ForAll(
		func(haveSubject, haveTo, srcID, srcSubject, srcTo string) bool {
			if srcID == "" {
				srcID = "generated"
			}
			var to []string
			if srcTo != "" {
				to = []string{srcTo + "@example.com"}
			}
			before := domain.MessageMetadata{Subject: haveSubject, To: haveTo}
			store := newMemStore(domain.Event{ID: "e1", Metadata: before, RawPayload: payload(srcID, srcSubject, to)})

			if _, err := New(store, 10).Run(context.Background()); err != nil {
				return false
			}
			after := store.events["e1"].Metadata

			wantSubject := haveSubject
			if wantSubject == "" {
				wantSubject = srcSubject
			}
			wantTo := haveTo
			if wantTo == "" && len(to) > 0 {
				wantTo = to[0]
			}
			return after.MessageID == srcID && after.Subject == wantSubject && after.To == wantTo
		},
		opt, opt, gen.AlphaString(), opt, gen.Identifier(),
	))

	properties.TestingRun(t)
}

func TestRun_PagesPastUnfillableEvents(t *testing.T) {
	var events []domain.Event
	for i := 0; i < 7; i++ {
		events = append(events, domain.Event{ID: fmt.Sprintf("id-%02d", i), RawPayload: json.RawMessage(`{}`)})
	}
	store := newMemStore(events...)

	res, err := New(store, 3).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, res.Scanned)
	assert.Zero(t, res.Updated)
}
