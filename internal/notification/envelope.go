// Package notification decodes the SNS envelope that carries SES event
// notifications and completes the SNS subscription handshake.
package notification

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope types understood by the webhook.
const (
	TypeSubscriptionConfirmation = "SubscriptionConfirmation"
	TypeNotification             = "Notification"
)

var (
	// ErrMalformedEnvelope is returned when the request body is not a JSON object.
	ErrMalformedEnvelope = errors.New("malformed notification envelope")
	// ErrUnknownType is returned for envelopes whose Type is missing or unsupported.
	ErrUnknownType = errors.New("invalid message type")
	// ErrMalformedMessage is returned when the inner Message is not a JSON object.
	ErrMalformedMessage = errors.New("malformed notification message")
)

// Envelope is the outer SNS wrapper.
type Envelope struct {
	Type         string  `json:"Type"`
	MessageID    string  `json:"MessageId"`
	TopicArn     string  `json:"TopicArn"`
	Subject      string  `json:"Subject"`
	Timestamp    string  `json:"Timestamp"`
	SubscribeURL string  `json:"SubscribeURL"`
	Token        string  `json:"Token"`
	Message      *string `json:"Message"`
}

// Parse decodes body as an SNS envelope. Only the subscription handshake
// and notification types are accepted.
func Parse(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	switch env.Type {
	case TypeSubscriptionConfirmation, TypeNotification:
		return &env, nil
	case "":
		return nil, fmt.Errorf("%w: missing Type", ErrUnknownType)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

// Payload decodes the second JSON layer held in Message. A missing Message
// decodes as an empty object. The returned raw bytes are the compacted
// payload as received, suitable for verbatim retention.
func (e *Envelope) Payload() (map[string]any, json.RawMessage, error) {
	raw := []byte("{}")
	if e.Message != nil {
		raw = []byte(*e.Message)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if payload == nil {
		return nil, nil, fmt.Errorf("%w: not an object", ErrMalformedMessage)
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return payload, json.RawMessage(buf.Bytes()), nil
}

// IsClientError reports whether err came from bad input rather than a
// processing failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMalformedEnvelope) ||
		errors.Is(err, ErrUnknownType) ||
		errors.Is(err, ErrMalformedMessage)
}
