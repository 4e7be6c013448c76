package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var errMalformedFrame = errors.New("malformed frame")

// request is the only outbound frame.
type request struct {
	Message string `json:"message"`
}

// reply is an inbound frame normalised from either field-naming convention.
type reply struct {
	Message   string
	Timestamp string
	IsError   bool
}

func encodeRequest(text string) ([]byte, error) {
	return json.Marshal(request{Message: text})
}

// decodeReply accepts both lower-camel and upper-camel keys (the backend is
// .NET and may emit either), preferring lower-camel when both are set.
// encoding/json matches keys case-insensitively and the last duplicate wins,
// so keys are resolved by hand from the raw object.
func decodeReply(raw []byte) (reply, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return reply{}, fmt.Errorf("%w: %v", errMalformedFrame, err)
	}
	if fields == nil {
		return reply{}, fmt.Errorf("%w: not a JSON object", errMalformedFrame)
	}

	var r reply
	if err := pickField(fields, &r.Message, "message", "Message"); err != nil {
		return reply{}, err
	}
	if err := pickField(fields, &r.Timestamp, "timestamp", "Timestamp"); err != nil {
		return reply{}, err
	}
	if err := pickField(fields, &r.IsError, "isError", "IsError"); err != nil {
		return reply{}, err
	}
	return r, nil
}

// pickField decodes the first key present (and not null) into dst.
func pickField(fields map[string]json.RawMessage, dst any, keys ...string) error {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("%w: field %q: %v", errMalformedFrame, key, err)
		}
		return nil
	}
	return nil
}

// Zone-less layouts are what System.Text.Json writes for DateTime values
// of unspecified kind.
var localTimestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// parseTimestamp returns the parsed time and true, or now and false when s is
// empty or not a recognisable date.
func parseTimestamp(s string, now time.Time) (time.Time, bool) {
	if s == "" {
		return now, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	for _, layout := range localTimestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	return now, false
}
