package adrive

import (
	"bytes"
	"fmt"
	"time"
)

// TimeFormat is the timestamp layout the API sends and expects.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// Time is a UTC timestamp in the API wire format. The zero value marshals
// as an empty string and is dropped from request bodies by omitzero.
type Time struct {
	time.Time
}

// NewTime wraps t, converted to UTC.
func NewTime(t time.Time) Time {
	return Time{Time: t.UTC()}
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}

	return []byte(`"` + t.UTC().Format(TimeFormat) + `"`), nil
}

// UnmarshalJSON accepts the API layout, any RFC 3339 timestamp, an empty
// string, or null.
func (t *Time) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(`""`)) {
		t.Time = time.Time{}

		return nil
	}

	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("adrive: timestamp %s is not a string", data)
	}

	raw := string(data[1 : len(data)-1])

	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return fmt.Errorf("adrive: parsing timestamp %q: %w", raw, err)
	}

	t.Time = parsed.UTC()

	return nil
}
