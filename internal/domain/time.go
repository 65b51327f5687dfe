package domain

import (
	"encoding/json/v2"
	"fmt"
	"strconv"
	"time"
)

// localDateTime is the zone-less layout the backend uses for LocalDateTime fields.
const localDateTime = "2006-01-02T15:04:05.999999999"

// Time is a timestamp that can unmarshal from any of:
//   - RFC3339 string: "2024-01-15T10:30:00Z"
//   - zone-less local date-time: "2024-01-15T10:30:00" (read as UTC)
//   - epoch milliseconds, as a number or a numeric string
//
// It always marshals to RFC3339.
type Time struct {
	time.Time
}

// NewTime wraps t, dropping the monotonic clock reading.
func NewTime(t time.Time) Time {
	return Time{Time: t.Round(0)}
}

// UnmarshalJSON handles flexible time parsing from JSON.
func (t *Time) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := parseTimeString(s)
		if err != nil {
			return err
		}
		t.Time = parsed
		return nil
	}

	var ms int64
	if err := json.Unmarshal(data, &ms); err == nil {
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}

	var msFloat float64
	if err := json.Unmarshal(data, &msFloat); err == nil {
		t.Time = time.UnixMilli(int64(msFloat)).UTC()
		return nil
	}

	return fmt.Errorf("cannot unmarshal %s into Time", string(data))
}

func parseTimeString(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return parsed, nil
	}
	if parsed, err := time.Parse(localDateTime, s); err == nil {
		return parsed, nil
	}
	if parsed, err := time.Parse(time.DateOnly, s); err == nil {
		return parsed, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("cannot parse time string: %s", s)
}

// MarshalJSON outputs time in RFC3339 format.
func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format(time.RFC3339Nano))
}
