package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/ses-tracking/internal/domain"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return db, mock, func() { db.Close() }
}

func TestEventRepo_Append(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewEventRepo(db)
	ctx := context.Background()

	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	created := time.Date(2024, 1, 1, 12, 0, 1, 0, time.UTC)

	t.Run("assigns an id and stores bounce columns", func(t *testing.T) {
		e := &domain.Event{
			ProviderMessageID: "msg-1",
			RecipientEmail:    "a@x.com",
			Metadata:          domain.MessageMetadata{Subject: "Hello"},
			Detail:            domain.BounceDetail{BounceType: domain.BouncePermanent, BounceSubType: "General"},
			Timestamp:         ts,
			RawPayload:        json.RawMessage(`{"eventType":"Bounce"}`),
		}

		mock.ExpectQuery("INSERT INTO ses_events").
			WithArgs(sqlmock.AnyArg(), "bounce", "msg-1", "a@x.com",
				nil, "Hello", nil,
				"Permanent", "General", nil, nil,
				ts, `{"eventType":"Bounce"}`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

		require.NoError(t, repo.Append(ctx, e))
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, created, e.CreatedAt)
	})

	t.Run("empty raw payload is stored as an empty object", func(t *testing.T) {
		e := &domain.Event{
			ID:             "fixed-id",
			RecipientEmail: "b@x.com",
			Detail:         domain.DeliveryDetail{},
			Timestamp:      ts,
		}

		mock.ExpectQuery("INSERT INTO ses_events").
			WithArgs("fixed-id", "delivery", "", "b@x.com",
				nil, nil, nil, nil, nil, nil, nil, ts, "{}").
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

		require.NoError(t, repo.Append(ctx, e))
		assert.Equal(t, "fixed-id", e.ID)
	})

	t.Run("rejects an event without detail", func(t *testing.T) {
		err := repo.Append(ctx, &domain.Event{RecipientEmail: "c@x.com"})
		assert.Error(t, err)
	})

	t.Run("wraps database errors", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO ses_events").WillReturnError(sql.ErrConnDone)
		err := repo.Append(ctx, &domain.Event{Detail: domain.SendDetail{}, Timestamp: ts})
		assert.ErrorIs(t, err, sql.ErrConnDone)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepo_ScanRange(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewEventRepo(db)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	mock.ExpectQuery("SELECT id, event_kind, recipient_email").
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_kind", "recipient_email", "bounce_type"}).
			AddRow("1", "bounce", "a@x.com", "Transient").
			AddRow("2", "delivery", "b@x.com", "").
			AddRow("3", "rendering_failure", "", ""))

	var got []domain.Event
	err := repo.ScanRange(context.Background(), from, to, func(e domain.Event) error {
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, domain.BounceDetail{BounceType: domain.BounceTransient}, got[0].Detail)
	assert.Equal(t, domain.KindDelivery, got[1].Kind())
	assert.Equal(t, domain.KindRenderingFailure, got[2].Kind())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepo_ScanRange_UnknownKind(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewEventRepo(db)

	mock.ExpectQuery("SELECT id, event_kind, recipient_email").
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_kind", "recipient_email", "bounce_type"}).
			AddRow("1", "open", "a@x.com", ""))

	err := repo.ScanRange(context.Background(), time.Now(), time.Now(), func(domain.Event) error { return nil })
	assert.Error(t, err)
}

func TestEventRepo_ListMissingMetadata(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewEventRepo(db)
	ctx := context.Background()

	cols := []string{"id", "event_kind", "email_message_id", "email_subject", "email_to", "raw_payload"}

	mock.ExpectQuery("WHERE email_message_id IS NULL").
		WithArgs(500).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("a", "bounce", "", "Subj", "", []byte(`{"mail":{}}`)))

	page, err := repo.ListMissingMetadata(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Subj", page[0].Metadata.Subject)
	assert.Equal(t, domain.KindBounce, page[0].Kind())
	assert.JSONEq(t, `{"mail":{}}`, string(page[0].RawPayload))

	mock.ExpectQuery("AND id > ").
		WithArgs("a", 2).
		WillReturnRows(sqlmock.NewRows(cols))

	page, err = repo.ListMissingMetadata(ctx, "a", 2)
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepo_FillMetadata(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewEventRepo(db)

	mock.ExpectExec("UPDATE ses_events").
		WithArgs("id-1", "<m@x>", nil, "to@x.com").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.FillMetadata(context.Background(), "id-1", domain.MessageMetadata{MessageID: "<m@x>", To: "to@x.com"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepo_List(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewEventRepo(db)

	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cols := []string{
		"id", "event_kind", "provider_message_id", "recipient_email",
		"email_message_id", "email_subject", "email_to",
		"bounce_type", "bounce_sub_type", "complaint_feedback_type", "reject_reason",
		"event_timestamp", "created_at",
	}

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(sqlmock.AnyArg(), "%ex\\_ample%", "%ex\\_ample%", "%ex\\_ample%", "%ex\\_ample%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))
	mock.ExpectQuery("ORDER BY recipient_email DESC LIMIT").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), 25, 50).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("1", "complaint", "m-1", "a@x.com", "", "Hi", "", "", "", "abuse", "", ts, ts))

	events, total, err := repo.List(context.Background(), domain.EventFilter{
		Kinds:       []domain.EventKind{domain.KindBounce, domain.KindComplaint},
		Search:      "ex_ample",
		OrderColumn: "email",
		Descending:  true,
		Offset:      50,
		Limit:       25,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 42, total)
	require.Len(t, events, 1)
	assert.Equal(t, domain.ComplaintDetail{FeedbackType: "abuse"}, events[0].Detail)
	assert.Equal(t, "Hi", events[0].Metadata.Subject)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepo_List_Defaults(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewEventRepo(db)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("ORDER BY event_timestamp DESC LIMIT").
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	events, total, err := repo.List(context.Background(), domain.EventFilter{OrderColumn: "raw_payload; DROP TABLE"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, events)
	assert.NoError(t, mock.ExpectationsWereMet())
}
