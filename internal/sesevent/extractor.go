// Package sesevent classifies SES event payloads and extracts one
// normalized domain.Event per recipient.
package sesevent

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/ignite/ses-tracking/internal/domain"
)

// kindSpec describes where each kind keeps its fields.
type kindSpec struct {
	kind domain.EventKind
	// section is the kind-specific object holding detail fields.
	section string
	// timestampKey names the object whose "timestamp" is preferred over
	// mail.timestamp. Empty means mail.timestamp only.
	timestampKey string
	recipients   func(payload map[string]any) []string
	detail       func(section map[string]any) domain.Detail
}

var kindSpecs = map[string]kindSpec{
	"bounce": {
		kind:         domain.KindBounce,
		section:      "bounce",
		timestampKey: "bounce",
		recipients: func(p map[string]any) []string {
			return addressList(mapAt(p, "bounce"), "bouncedRecipients")
		},
		detail: func(s map[string]any) domain.Detail {
			return domain.BounceDetail{
				BounceType:    domain.BounceType(stringAt(s, "bounceType")),
				BounceSubType: stringAt(s, "bounceSubType"),
			}
		},
	},
	"complaint": {
		kind:         domain.KindComplaint,
		section:      "complaint",
		timestampKey: "complaint",
		recipients: func(p map[string]any) []string {
			return addressList(mapAt(p, "complaint"), "complainedRecipients")
		},
		detail: func(s map[string]any) domain.Detail {
			return domain.ComplaintDetail{FeedbackType: stringAt(s, "complaintFeedbackType")}
		},
	},
	"delivery": {
		kind:         domain.KindDelivery,
		section:      "delivery",
		timestampKey: "delivery",
		recipients: func(p map[string]any) []string {
			return stringList(mapAt(p, "delivery"), "recipients")
		},
		detail: func(map[string]any) domain.Detail { return domain.DeliveryDetail{} },
	},
	"send": {
		kind:       domain.KindSend,
		section:    "send",
		recipients: mailDestination,
		detail:     func(map[string]any) domain.Detail { return domain.SendDetail{} },
	},
	"reject": {
		kind:       domain.KindReject,
		section:    "reject",
		recipients: mailDestination,
		detail: func(s map[string]any) domain.Detail {
			return domain.RejectDetail{Reason: stringAt(s, "reason")}
		},
	},
	"renderingfailure": {
		kind:       domain.KindRenderingFailure,
		section:    "failure",
		recipients: mailDestination,
		detail: func(s map[string]any) domain.Detail {
			return domain.RenderingFailureDetail{ErrorMessage: stringAt(s, "errorMessage")}
		},
	},
	"deliverydelay": {
		kind:         domain.KindDeliveryDelay,
		section:      "deliveryDelay",
		timestampKey: "deliveryDelay",
		recipients: func(p map[string]any) []string {
			return addressList(mapAt(p, "deliveryDelay"), "delayedRecipients")
		},
		detail: func(map[string]any) domain.Detail { return domain.DeliveryDelayDetail{} },
	},
	"subscription": {
		kind:         domain.KindSubscription,
		section:      "subscription",
		timestampKey: "subscription",
		recipients: func(p map[string]any) []string {
			return addressList(mapAt(mapAt(p, "subscription"), "contactList"), "contacts")
		},
		detail: func(map[string]any) domain.Detail { return domain.SubscriptionDetail{} },
	},
}

func mailDestination(p map[string]any) []string {
	return stringList(mapAt(p, "mail"), "destination")
}

// EventType returns the payload's declared type: eventType for event
// publishing, notificationType for classic SES notifications.
func EventType(payload map[string]any) string {
	if t := stringAt(payload, "eventType"); t != "" {
		return t
	}
	return stringAt(payload, "notificationType")
}

// Classify maps an SES event type to a kind. Matching ignores case, spaces,
// underscores, and hyphens, so "Rendering Failure" and "DeliveryDelay" are
// both recognized.
func Classify(eventType string) (domain.EventKind, bool) {
	def, ok := kindSpecs[normalizeType(eventType)]
	if !ok {
		return "", false
	}
	return def.kind, true
}

func normalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(t)
}

// Extractor turns a classified payload into events.
type Extractor struct {
	now func() time.Time
}

// NewExtractor returns an Extractor that falls back to the wall clock when a
// payload carries no usable timestamp.
func NewExtractor() *Extractor {
	return &Extractor{now: time.Now}
}

// NewExtractorWithClock returns an Extractor using now for timestamp fallback.
func NewExtractorWithClock(now func() time.Time) *Extractor {
	return &Extractor{now: now}
}

// Extract classifies payload and returns one event per recipient, all
// sharing the kind-specific detail, timestamp, metadata, and raw payload.
// ok is false when the event type is not one of the supported kinds.
func (x *Extractor) Extract(payload map[string]any, raw json.RawMessage) (events []domain.Event, ok bool) {
	def, ok := kindSpecs[normalizeType(EventType(payload))]
	if !ok {
		return nil, false
	}

	mail := mapAt(payload, "mail")
	detail := def.detail(mapAt(payload, def.section))
	ts := x.timestamp(payload, def.timestampKey)
	md := ExtractMetadata(payload)
	messageID := stringAt(mail, "messageId")

	recipients := def.recipients(payload)
	events = make([]domain.Event, 0, len(recipients))
	for _, rcpt := range recipients {
		events = append(events, domain.Event{
			ProviderMessageID: messageID,
			RecipientEmail:    rcpt,
			Metadata:          md,
			Detail:            detail,
			Timestamp:         ts,
			RawPayload:        raw,
		})
	}
	return events, true
}

// timestamp prefers the kind's own timestamp, then mail.timestamp, then the
// clock. Unparsable values fall through to the next source.
func (x *Extractor) timestamp(payload map[string]any, key string) time.Time {
	candidates := make([]string, 0, 2)
	if key != "" {
		candidates = append(candidates, stringAt(mapAt(payload, key), "timestamp"))
	}
	candidates = append(candidates, stringAt(mapAt(payload, "mail"), "timestamp"))

	for _, c := range candidates {
		if c == "" {
			continue
		}
		if t, err := ParseTimestamp(c); err == nil {
			return t
		}
	}
	return x.now().UTC()
}
