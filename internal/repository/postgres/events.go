package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/ses-tracking/internal/domain"
	"github.com/lib/pq"
)

// EventRepo is the append-only SES event store on PostgreSQL.
type EventRepo struct{ db *sql.DB }

// NewEventRepo creates a Postgres-backed event repository.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// Append inserts one event. ID is assigned when empty; CreatedAt is set
// from the database clock.
func (r *EventRepo) Append(ctx context.Context, e *domain.Event) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Detail == nil {
		return fmt.Errorf("append event: missing detail")
	}
	raw := string(e.RawPayload)
	if raw == "" {
		raw = "{}"
	}
	f := domain.FlattenDetail(e.Detail)

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO ses_events
			(id, event_kind, provider_message_id, recipient_email,
			 email_message_id, email_subject, email_to,
			 bounce_type, bounce_sub_type, complaint_feedback_type, reject_reason,
			 event_timestamp, raw_payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::jsonb, NOW())
		RETURNING created_at
	`, e.ID, string(e.Kind()), e.ProviderMessageID, e.RecipientEmail,
		nullString(e.Metadata.MessageID), nullString(e.Metadata.Subject), nullString(e.Metadata.To),
		nullString(f.BounceType), nullString(f.BounceSubType), nullString(f.ComplaintFeedbackType), nullString(f.RejectReason),
		e.Timestamp, raw,
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ScanRange calls fn for every event whose timestamp falls in [from, to).
// Only the fields needed for aggregation are loaded: ID, kind, recipient,
// and the bounce type.
func (r *EventRepo) ScanRange(ctx context.Context, from, to time.Time, fn func(domain.Event) error) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_kind, recipient_email, COALESCE(bounce_type, '')
		FROM ses_events
		WHERE event_timestamp >= $1 AND event_timestamp < $2
	`, from, to)
	if err != nil {
		return fmt.Errorf("scan events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e          domain.Event
			kind       string
			bounceType string
		)
		if err := rows.Scan(&e.ID, &kind, &e.RecipientEmail, &bounceType); err != nil {
			return fmt.Errorf("scan event row: %w", err)
		}
		detail, err := domain.DetailFields{BounceType: bounceType}.Detail(domain.EventKind(kind))
		if err != nil {
			return fmt.Errorf("event %s: %w", e.ID, err)
		}
		e.Detail = detail
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ListMissingMetadata returns up to limit events without an
// email_message_id, ordered by ID and starting after afterID. Raw payloads
// and current metadata are loaded for re-extraction.
func (r *EventRepo) ListMissingMetadata(ctx context.Context, afterID string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 500
	}
	var (
		rows *sql.Rows
		err  error
	)
	if afterID == "" {
		rows, err = r.db.QueryContext(ctx, `
			SELECT id, event_kind, COALESCE(email_message_id, ''), COALESCE(email_subject, ''),
			       COALESCE(email_to, ''), raw_payload
			FROM ses_events
			WHERE email_message_id IS NULL
			ORDER BY id
			LIMIT $1
		`, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, `
			SELECT id, event_kind, COALESCE(email_message_id, ''), COALESCE(email_subject, ''),
			       COALESCE(email_to, ''), raw_payload
			FROM ses_events
			WHERE email_message_id IS NULL AND id > $1
			ORDER BY id
			LIMIT $2
		`, afterID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list events missing metadata: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var (
			e    domain.Event
			kind string
			raw  []byte
		)
		if err := rows.Scan(&e.ID, &kind, &e.Metadata.MessageID, &e.Metadata.Subject, &e.Metadata.To, &raw); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if d, err := (domain.DetailFields{}).Detail(domain.EventKind(kind)); err == nil {
			e.Detail = d
		}
		e.RawPayload = json.RawMessage(raw)
		out = append(out, e)
	}
	return out, rows.Err()
}

// FillMetadata sets each metadata column that is currently NULL to the
// corresponding non-empty value in md. Populated columns are never
// overwritten.
func (r *EventRepo) FillMetadata(ctx context.Context, id string, md domain.MessageMetadata) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE ses_events
		SET email_message_id = COALESCE(email_message_id, $2),
		    email_subject    = COALESCE(email_subject, $3),
		    email_to         = COALESCE(email_to, $4)
		WHERE id = $1
	`, id, nullString(md.MessageID), nullString(md.Subject), nullString(md.To))
	if err != nil {
		return fmt.Errorf("fill event metadata: %w", err)
	}
	return nil
}

var eventOrderColumns = map[string]string{
	"timestamp":     "event_timestamp",
	"email":         "recipient_email",
	"email_subject": "email_subject",
	"email_to":      "email_to",
	"event_type":    "event_kind",
	"bounce_type":   "bounce_type",
}

// List returns one page of events matching f and the number of matching
// events across all pages.
func (r *EventRepo) List(ctx context.Context, f domain.EventFilter) ([]domain.Event, int64, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, vals ...interface{}) {
		placeholders := make([]interface{}, len(vals))
		for i, v := range vals {
			args = append(args, v)
			placeholders[i] = len(args)
		}
		conds = append(conds, fmt.Sprintf(cond, placeholders...))
	}

	if len(f.Kinds) > 0 {
		kinds := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			kinds[i] = string(k)
		}
		add("event_kind = ANY($%d)", pq.Array(kinds))
	}
	if f.Kind != "" {
		add("event_kind = $%d", string(f.Kind))
	}
	if f.Search != "" {
		pattern := "%" + escapeLike(f.Search) + "%"
		add("(recipient_email ILIKE $%d OR email_to ILIKE $%d OR email_subject ILIKE $%d OR bounce_type ILIKE $%d)",
			pattern, pattern, pattern, pattern)
	}
	if !f.From.IsZero() {
		add("event_timestamp >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("event_timestamp < $%d", f.To)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ses_events`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	order := "event_timestamp DESC"
	if col, ok := eventOrderColumns[f.OrderColumn]; ok {
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

	q := `
		SELECT id, event_kind, provider_message_id, recipient_email,
		       COALESCE(email_message_id, ''), COALESCE(email_subject, ''), COALESCE(email_to, ''),
		       COALESCE(bounce_type, ''), COALESCE(bounce_sub_type, ''),
		       COALESCE(complaint_feedback_type, ''), COALESCE(reject_reason, ''),
		       event_timestamp, created_at
		FROM ses_events` + where +
		fmt.Sprintf(" ORDER BY %s LIMIT $%d OFFSET $%d", order, len(args)+1, len(args)+2)
	qArgs := append(append([]interface{}{}, args...), limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, qArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var (
			e    domain.Event
			kind string
			df   domain.DetailFields
		)
		if err := rows.Scan(
			&e.ID, &kind, &e.ProviderMessageID, &e.RecipientEmail,
			&e.Metadata.MessageID, &e.Metadata.Subject, &e.Metadata.To,
			&df.BounceType, &df.BounceSubType, &df.ComplaintFeedbackType, &df.RejectReason,
			&e.Timestamp, &e.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan event: %w", err)
		}
		detail, err := df.Detail(domain.EventKind(kind))
		if err != nil {
			return nil, 0, fmt.Errorf("event %s: %w", e.ID, err)
		}
		e.Detail = detail
		out = append(out, e)
	}
	return out, total, rows.Err()
}
