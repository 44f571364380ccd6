package api

import (
	"bytes"
	"time"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/cockroachdb/errors"
)

// Timestamp is a wire time. It accepts RFC 3339 or a local date-time
// without offset; the latter is placed in a zone chosen later by In.
type Timestamp struct {
	time.Time
	local bool
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return errors.New("timestamp must be a string")
	}
	parsed, err := parseTimestamp(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.Format(domain.TimestampLayout) + `"`), nil
}

// In resolves the instant, placing offset-less values in loc.
func (t Timestamp) In(loc *time.Location) time.Time {
	if t.IsZero() || !t.local {
		return t.Time
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

func timestampOf(t time.Time, loc *time.Location) Timestamp {
	return Timestamp{Time: t.In(loc)}
}

func parseTimestamp(s string) (Timestamp, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Timestamp{Time: t}, nil
	}
	t, err := time.Parse(domain.TimestampLayout, s)
	if err != nil {
		return Timestamp{}, errors.Wrapf(err, "invalid timestamp %q", s)
	}
	return Timestamp{Time: t, local: true}, nil
}
