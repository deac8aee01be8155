package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind enumerates the delivery-event types reported by SES.
type EventKind string

const (
	KindBounce           EventKind = "bounce"
	KindComplaint        EventKind = "complaint"
	KindDelivery         EventKind = "delivery"
	KindSend             EventKind = "send"
	KindReject           EventKind = "reject"
	KindRenderingFailure EventKind = "rendering_failure"
	KindDeliveryDelay    EventKind = "delivery_delay"
	KindSubscription     EventKind = "subscription"
)

// AllKinds lists every event kind in display order.
var AllKinds = []EventKind{
	KindBounce,
	KindComplaint,
	KindDelivery,
	KindSend,
	KindReject,
	KindRenderingFailure,
	KindDeliveryDelay,
	KindSubscription,
}

var kindDisplay = map[EventKind]string{
	KindBounce:           "Bounce",
	KindComplaint:        "Complaint",
	KindDelivery:         "Delivery",
	KindSend:             "Send",
	KindReject:           "Reject",
	KindRenderingFailure: "Rendering Failure",
	KindDeliveryDelay:    "Delivery Delay",
	KindSubscription:     "Subscription",
}

// Valid reports whether k is one of the eight known kinds.
func (k EventKind) Valid() bool {
	_, ok := kindDisplay[k]
	return ok
}

// Display returns the human-readable label for k.
func (k EventKind) Display() string {
	if d, ok := kindDisplay[k]; ok {
		return d
	}
	return string(k)
}

// BounceType is the SES bounce classification.
type BounceType string

const (
	BouncePermanent    BounceType = "Permanent"
	BounceTransient    BounceType = "Transient"
	BounceUndetermined BounceType = "Undetermined"
)

// Detail is the kind-specific part of an event. Exactly one variant exists
// per EventKind, and the variant determines the event's kind.
type Detail interface {
	Kind() EventKind
}

// BounceDetail carries the bounce classification.
type BounceDetail struct {
	BounceType    BounceType
	BounceSubType string
}

// ComplaintDetail carries the feedback type reported by the mailbox provider.
type ComplaintDetail struct {
	FeedbackType string
}

// DeliveryDetail has no kind-specific fields.
type DeliveryDetail struct{}

// SendDetail has no kind-specific fields.
type SendDetail struct{}

// RejectDetail carries the reason SES refused the message.
type RejectDetail struct {
	Reason string
}

// RenderingFailureDetail carries the template rendering error.
type RenderingFailureDetail struct {
	ErrorMessage string
}

// DeliveryDelayDetail has no kind-specific fields.
type DeliveryDelayDetail struct{}

// SubscriptionDetail has no kind-specific fields.
type SubscriptionDetail struct{}

func (BounceDetail) Kind() EventKind           { return KindBounce }
func (ComplaintDetail) Kind() EventKind        { return KindComplaint }
func (DeliveryDetail) Kind() EventKind         { return KindDelivery }
func (SendDetail) Kind() EventKind             { return KindSend }
func (RejectDetail) Kind() EventKind           { return KindReject }
func (RenderingFailureDetail) Kind() EventKind { return KindRenderingFailure }
func (DeliveryDelayDetail) Kind() EventKind    { return KindDeliveryDelay }
func (SubscriptionDetail) Kind() EventKind     { return KindSubscription }

// DetailFields is the flat column form of a Detail as kept by relational
// stores. Rendering failures reuse RejectReason for the error message.
type DetailFields struct {
	BounceType            string
	BounceSubType         string
	ComplaintFeedbackType string
	RejectReason          string
}

// FlattenDetail converts a Detail variant to its column form.
func FlattenDetail(d Detail) DetailFields {
	switch v := d.(type) {
	case BounceDetail:
		return DetailFields{BounceType: string(v.BounceType), BounceSubType: v.BounceSubType}
	case ComplaintDetail:
		return DetailFields{ComplaintFeedbackType: v.FeedbackType}
	case RejectDetail:
		return DetailFields{RejectReason: v.Reason}
	case RenderingFailureDetail:
		return DetailFields{RejectReason: v.ErrorMessage}
	default:
		return DetailFields{}
	}
}

// Detail rebuilds the variant for kind from column values.
func (f DetailFields) Detail(kind EventKind) (Detail, error) {
	switch kind {
	case KindBounce:
		return BounceDetail{BounceType: BounceType(f.BounceType), BounceSubType: f.BounceSubType}, nil
	case KindComplaint:
		return ComplaintDetail{FeedbackType: f.ComplaintFeedbackType}, nil
	case KindDelivery:
		return DeliveryDetail{}, nil
	case KindSend:
		return SendDetail{}, nil
	case KindReject:
		return RejectDetail{Reason: f.RejectReason}, nil
	case KindRenderingFailure:
		return RenderingFailureDetail{ErrorMessage: f.RejectReason}, nil
	case KindDeliveryDelay:
		return DeliveryDelayDetail{}, nil
	case KindSubscription:
		return SubscriptionDetail{}, nil
	}
	return nil, fmt.Errorf("unknown event kind %q", kind)
}

// MessageMetadata holds values extracted from the mail headers. An empty
// string means the value is absent.
type MessageMetadata struct {
	MessageID string
	Subject   string
	To        string
}

// Complete reports whether all three fields are present.
func (m MessageMetadata) Complete() bool {
	return m.MessageID != "" && m.Subject != "" && m.To != ""
}

// FillFrom returns m with each absent field taken from src. Present fields
// are never overwritten. The bool reports whether anything changed.
func (m MessageMetadata) FillFrom(src MessageMetadata) (MessageMetadata, bool) {
	changed := false
	if m.MessageID == "" && src.MessageID != "" {
		m.MessageID = src.MessageID
		changed = true
	}
	if m.Subject == "" && src.Subject != "" {
		m.Subject = src.Subject
		changed = true
	}
	if m.To == "" && src.To != "" {
		m.To = src.To
		changed = true
	}
	return m, changed
}

// Event is one normalized delivery event for a single recipient. A
// notification naming N recipients becomes N events sharing everything
// except RecipientEmail.
type Event struct {
	ID                string
	ProviderMessageID string
	RecipientEmail    string
	Metadata          MessageMetadata
	Detail            Detail
	Timestamp         time.Time
	RawPayload        json.RawMessage
	CreatedAt         time.Time
}

// Kind returns the event kind, which is fixed by the Detail variant.
func (e Event) Kind() EventKind {
	if e.Detail == nil {
		return ""
	}
	return e.Detail.Kind()
}

type eventJSON struct {
	ID                    string    `json:"id"`
	EventType             EventKind `json:"event_type"`
	EventTypeDisplay      string    `json:"event_type_display"`
	Timestamp             time.Time `json:"timestamp"`
	Email                 string    `json:"email"`
	EmailTo               *string   `json:"email_to"`
	EmailSubject          *string   `json:"email_subject"`
	EmailMessageID        *string   `json:"email_message_id"`
	BounceType            *string   `json:"bounce_type"`
	BounceTypeDisplay     *string   `json:"bounce_type_display"`
	BounceSubType         *string   `json:"bounce_sub_type"`
	ComplaintFeedbackType *string   `json:"complaint_feedback_type"`
	RejectReason          *string   `json:"reject_reason"`
	MessageID             string    `json:"message_id"`
}

// MarshalJSON renders the event in the flat shape consumed by the
// reporting UI.
func (e Event) MarshalJSON() ([]byte, error) {
	f := FlattenDetail(e.Detail)
	return json.Marshal(eventJSON{
		ID:                    e.ID,
		EventType:             e.Kind(),
		EventTypeDisplay:      e.Kind().Display(),
		Timestamp:             e.Timestamp,
		Email:                 e.RecipientEmail,
		EmailTo:               optional(e.Metadata.To),
		EmailSubject:          optional(e.Metadata.Subject),
		EmailMessageID:        optional(e.Metadata.MessageID),
		BounceType:            optional(f.BounceType),
		BounceTypeDisplay:     optional(f.BounceType),
		BounceSubType:         optional(f.BounceSubType),
		ComplaintFeedbackType: optional(f.ComplaintFeedbackType),
		RejectReason:          optional(f.RejectReason),
		MessageID:             e.ProviderMessageID,
	})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
