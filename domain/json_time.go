package domain

import (
	"strings"
	"time"
)

// UTCTime marshals a time.Time as RFC3339Nano in UTC, regardless of the zone
// it was constructed with. The Repository is responsible for assigning
// creation timestamps in UTC in the first place; this just guards JSON output
// of anything that slipped through with a non-UTC location.
type UTCTime time.Time

func (t UTCTime) MarshalJSON() ([]byte, error) {
	s := time.Time(t).UTC().Format(`"` + time.RFC3339Nano + `"`)
	return []byte(s), nil
}

func (t *UTCTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*t = UTCTime(time.Time{})
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	*t = UTCTime(parsed.UTC())
	return nil
}

func (t UTCTime) Time() time.Time { return time.Time(t).UTC() }
