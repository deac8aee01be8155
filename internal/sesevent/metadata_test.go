package sesevent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/ses-tracking/internal/domain"
)

func TestExtractMetadata_HeaderFallback(t *testing.T) {
	payload, _ := decode(t, `{"mail":{
		"headers":[
			{"name":"From","value":"news@example.com"},
			{"name":"message-id","value":" <abc@mail.example.com> "},
			{"name":"SUBJECT","value":"Weekly digest"},
			{"name":"To","value":"a@x.com"}
		]}}`)

	assert.Equal(t, domain.MessageMetadata{
		MessageID: "abc@mail.example.com",
		Subject:   "Weekly digest",
		To:        "a@x.com",
	}, ExtractMetadata(payload))
}

func TestExtractMetadata_CommonHeadersWin(t *testing.T) {
	payload, _ := decode(t, `{"mail":{
		"commonHeaders":{"subject":"Common subject","to":"single@x.com"},
		"headers":[{"name":"Subject","value":"Raw subject"},{"name":"Message-ID","value":"<raw@x>"}]}}`)

	md := ExtractMetadata(payload)
	assert.Equal(t, "Common subject", md.Subject)
	assert.Equal(t, "single@x.com", md.To)
	assert.Equal(t, "raw@x", md.MessageID)
}

func TestExtractMetadata_OddShapes(t *testing.T) {
	for _, s := range []string{
		`{}`,
		`{"mail":"text"}`,
		`{"mail":{"headers":"nope","commonHeaders":[]}}`,
		`{"mail":{"headers":[1,"x",{"name":5}],"commonHeaders":{"to":[1,null]}}}`,
	} {
		payload, _ := decode(t, s)
		assert.Equal(t, domain.MessageMetadata{}, ExtractMetadata(payload), s)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-01T00:00:00Z", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-01-01T00:00:00.5Z", time.Date(2024, 1, 1, 0, 0, 0, 500000000, time.UTC)},
		{"2024-01-01T02:00:00+02:00", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-01-01T02:00:00+0200", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-01-01 00:00:00Z", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-01-01T00:00:00", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-01-01", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		require.NoError(t, err, tt.in)
		assert.True(t, tt.want.Equal(got), "%s: got %s", tt.in, got)
	}

	for _, bad := range []string{"", "  ", "yesterday", "01/02/2024"} {
		_, err := ParseTimestamp(bad)
		assert.Error(t, err, bad)
	}
}
