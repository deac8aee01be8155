package sesevent

import (
	"strings"

	"github.com/ignite/ses-tracking/internal/domain"
)

// ExtractMetadata derives the Message-ID, subject, and "to" addresses from
// the mail object of an SES payload. commonHeaders wins over the raw header
// list when both carry a value. Missing or oddly shaped headers leave the
// field empty.
func ExtractMetadata(payload map[string]any) domain.MessageMetadata {
	mail := mapAt(payload, "mail")
	common := mapAt(mail, "commonHeaders")
	headers := listAt(mail, "headers")

	md := domain.MessageMetadata{
		MessageID: stringAt(common, "messageId"),
		Subject:   stringAt(common, "subject"),
		To:        joinAddresses(common["to"]),
	}
	if md.MessageID == "" {
		md.MessageID = headerValue(headers, "Message-ID")
	}
	if md.Subject == "" {
		md.Subject = headerValue(headers, "Subject")
	}
	if md.To == "" {
		md.To = headerValue(headers, "To")
	}
	md.MessageID = stripAngleBrackets(md.MessageID)
	return md
}

// headerValue scans SES's [{name, value}] header list for name, ignoring case.
func headerValue(headers []any, name string) string {
	for _, h := range headers {
		obj, ok := h.(map[string]any)
		if !ok {
			continue
		}
		if strings.EqualFold(stringAt(obj, "name"), name) {
			return stringAt(obj, "value")
		}
	}
	return ""
}

func joinAddresses(v any) string {
	switch to := v.(type) {
	case string:
		return to
	case []any:
		addrs := make([]string, 0, len(to))
		for _, a := range to {
			if s, ok := a.(string); ok && s != "" {
				addrs = append(addrs, s)
			}
		}
		return strings.Join(addrs, ", ")
	}
	return ""
}

func stripAngleBrackets(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "<")
	return strings.TrimSuffix(id, ">")
}
