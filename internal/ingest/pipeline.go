// Package ingest turns inbound SNS deliveries of SES events into stored
// event records.
package ingest

import (
	"context"
	"fmt"

	"github.com/ignite/ses-tracking/internal/domain"
	"github.com/ignite/ses-tracking/internal/notification"
	"github.com/ignite/ses-tracking/internal/pkg/logger"
	"github.com/ignite/ses-tracking/internal/sesevent"
)

// EventWriter appends one event record.
type EventWriter interface {
	Append(ctx context.Context, e *domain.Event) error
}

// SubscriptionConfirmer completes the SNS subscription handshake.
type SubscriptionConfirmer interface {
	Confirm(ctx context.Context, subscribeURL string) error
}

// Outcome describes what Process did with a request body.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeStored    Outcome = "stored"
	OutcomeIgnored   Outcome = "ignored"
)

// Result is returned by Process on success.
type Result struct {
	Outcome   Outcome
	EventType string
	Kind      domain.EventKind
	Stored    int
}

// Pipeline parses, classifies, extracts, and stores one notification.
// It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	writer    EventWriter
	confirmer SubscriptionConfirmer
	extractor *sesevent.Extractor
}

// NewPipeline creates a Pipeline. A nil extractor uses the wall clock for
// timestamp fallback.
func NewPipeline(writer EventWriter, confirmer SubscriptionConfirmer, extractor *sesevent.Extractor) *Pipeline {
	if extractor == nil {
		extractor = sesevent.NewExtractor()
	}
	return &Pipeline{writer: writer, confirmer: confirmer, extractor: extractor}
}

// Process handles one request body. Errors matching
// notification.IsClientError mean the body was rejected and nothing was
// written. Unknown event types are logged and reported as OutcomeIgnored.
// Each recipient's record is an independent insert; on a write error the
// records already appended stay.
func (p *Pipeline) Process(ctx context.Context, body []byte) (*Result, error) {
	env, err := notification.Parse(body)
	if err != nil {
		return nil, err
	}

	if env.Type == notification.TypeSubscriptionConfirmation {
		if err := p.confirmer.Confirm(ctx, env.SubscribeURL); err != nil {
			return nil, err
		}
		logger.Info("sns subscription confirmed", "topic_arn", env.TopicArn)
		return &Result{Outcome: OutcomeConfirmed}, nil
	}

	payload, raw, err := env.Payload()
	if err != nil {
		return nil, err
	}

	eventType := sesevent.EventType(payload)
	events, ok := p.extractor.Extract(payload, raw)
	if !ok {
		logger.Warn("ignoring unsupported ses event type", "event_type", eventType, "sns_message_id", env.MessageID)
		return &Result{Outcome: OutcomeIgnored, EventType: eventType}, nil
	}

	res := &Result{Outcome: OutcomeStored, EventType: eventType}
	res.Kind, _ = sesevent.Classify(eventType)
	for i := range events {
		e := &events[i]
		if err := p.writer.Append(ctx, e); err != nil {
			return res, fmt.Errorf("store %s event %d of %d: %w", e.Kind(), i+1, len(events), err)
		}
		res.Stored++
		logger.Info("stored ses event",
			"kind", e.Kind(),
			"recipient_email", e.RecipientEmail,
			"message_id", e.ProviderMessageID,
		)
	}
	return res, nil
}
