package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// DemandSample is a single raw current reading from the demand feed
type DemandSample struct {
	Timestamp   time.Time `json:"timestamp"`
	CurrentAmps *float64  `json:"current_amps"` // nil when the feed had no value
}

// Valid reports whether the sample has both a timestamp and a finite current value
func (s DemandSample) Valid() bool {
	if s.Timestamp.IsZero() || s.CurrentAmps == nil {
		return false
	}
	v := *s.CurrentAmps
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Amps is a convenience for building samples
func Amps(v float64) *float64 {
	return &v
}

// TimeOfDay is a wall-clock offset from midnight with second precision
type TimeOfDay int

// ClockOf returns the time of day of t in t's own location
func ClockOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(h*3600 + m*60 + s)
}

// Clock builds a TimeOfDay from its components
func Clock(hour, minute, second int) TimeOfDay {
	return TimeOfDay(hour*3600 + minute*60 + second)
}

// String formats as HH:MM, or HH:MM:SS when seconds are set
func (t TimeOfDay) String() string {
	h, m, s := int(t)/3600, (int(t)%3600)/60, int(t)%60
	if s == 0 {
		return fmt.Sprintf("%02d:%02d", h, m)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// MarshalJSON encodes the time of day as its string form
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts HH:MM or HH:MM:SS
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTimeOfDay parses HH:MM or HH:MM:SS
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return ClockOf(t), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day: %q", s)
}

// ProfilePoint is one time-of-day bucket of a demand profile
type ProfilePoint struct {
	TimeOfDay          TimeOfDay `json:"time_of_day"`
	AverageCurrentAmps float64   `json:"average_current_amps"`
	Samples            int       `json:"samples"`
}

// DemandProfile is an averaged daily load curve, ordered by time of day
type DemandProfile []ProfilePoint
