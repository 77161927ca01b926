package types

import (
	"fmt"
	"time"
)

type Interval string

const (
	OneMinute      Interval = "1"
	FiveMinutes    Interval = "5"
	FifteenMinutes Interval = "15"
	ThirtyMinutes  Interval = "30"
	Hour           Interval = "60"
	FourHours      Interval = "240"
	Day            Interval = "D"
	Week           Interval = "W"
)

var IntervalToTime = map[Interval]time.Duration{
	OneMinute:      time.Minute,
	FiveMinutes:    time.Minute * 5,
	FifteenMinutes: time.Minute * 15,
	ThirtyMinutes:  time.Minute * 30,
	Hour:           time.Hour,
	FourHours:      time.Hour * 4,
	Day:            time.Hour * 24,
	Week:           time.Hour * 24 * 7,
}

// ParseInterval accepts the short codes ("1", "60", "D") as well as the
// common names used in config files ("1m", "1h", "1d").
func ParseInterval(s string) (Interval, error) {
	if _, ok := IntervalToTime[Interval(s)]; ok {
		return Interval(s), nil
	}
	aliases := map[string]Interval{
		"1m":  OneMinute,
		"5m":  FiveMinutes,
		"15m": FifteenMinutes,
		"30m": ThirtyMinutes,
		"1h":  Hour,
		"4h":  FourHours,
		"1d":  Day,
		"1w":  Week,
	}
	if iv, ok := aliases[s]; ok {
		return iv, nil
	}
	return "", fmt.Errorf("unknown interval %q", s)
}

func (i Interval) Duration() time.Duration {
	return IntervalToTime[i]
}
