package types

import (
	"strings"
	"time"

	"github.com/rxtech-lab/argo-console/pkg/errors"
)

// Granularity is the bar-time resolution of a loaded dataset. It governs how
// timestamps are normalized into row keys.
type Granularity string

const (
	GranularityDaily    Granularity = "daily"
	GranularityIntraday Granularity = "intraday"
)

// GranularityForTimeframe maps a timeframe string ("D", "1m", "3m", "5m", ...)
// to its granularity. Anything that is not the daily timeframe is intraday.
func GranularityForTimeframe(timeframe string) Granularity {
	if timeframe == "D" || timeframe == "1d" {
		return GranularityDaily
	}

	return GranularityIntraday
}

// TimeKey is a normalized per-bar row key: "YYYYMMDD" for daily bars,
// "YYYYMMDD HHMMSS" for intraday bars.
type TimeKey string

const (
	dailyKeyLen    = 8
	intradayKeyLen = 15
)

// NewTimeKey builds a TimeKey from separate date and time fields, the way
// baseline rows carry them. Intraday keys join the two with a single space.
func NewTimeKey(date, timeOfDay string, g Granularity) TimeKey {
	date = strings.TrimSpace(date)
	if g == GranularityDaily {
		return TimeKey(date)
	}

	return TimeKey(date + " " + padTime(timeOfDay))
}

// NormalizeTimestamp reduces a raw event timestamp to the same precision as a
// baseline loaded at granularity g. Accepted inputs are "YYYYMMDD",
// "YYYYMMDD HHMMSS", the same with "-", ":" or "T" separators, and RFC 3339
// instants. Trailing time parts are dropped for daily granularity.
func NormalizeTimestamp(raw string, g Granularity) (TimeKey, error) {
	digits := digitsOf(raw)
	if len(digits) < dailyKeyLen {
		return "", errors.Newf(errors.ErrCodeInvalidTimeKey, "timestamp %q too short for a time key", raw)
	}

	if g == GranularityDaily {
		return TimeKey(digits[:dailyKeyLen]), nil
	}

	if len(digits) < dailyKeyLen+6 {
		// Daily-keyed event against an intraday baseline: pad midnight so the
		// key is at least well formed. The lookup will simply not match.
		return TimeKey(digits[:dailyKeyLen] + " 000000"), nil
	}

	return TimeKey(digits[:dailyKeyLen] + " " + digits[dailyKeyLen:dailyKeyLen+6]), nil
}

// Time parses the key into a time.Time. Daily keys resolve to midnight.
func (k TimeKey) Time() (time.Time, error) {
	switch len(k) {
	case dailyKeyLen:
		t, err := time.Parse("20060102", string(k))
		if err != nil {
			return time.Time{}, errors.Wrapf(errors.ErrCodeInvalidTimeKey, err, "invalid daily time key %q", k)
		}

		return t, nil
	case intradayKeyLen:
		t, err := time.Parse("20060102 150405", string(k))
		if err != nil {
			return time.Time{}, errors.Wrapf(errors.ErrCodeInvalidTimeKey, err, "invalid intraday time key %q", k)
		}

		return t, nil
	default:
		return time.Time{}, errors.Newf(errors.ErrCodeInvalidTimeKey, "time key %q has unexpected length %d", k, len(k))
	}
}

// Granularity reports the resolution encoded in the key itself.
func (k TimeKey) Granularity() Granularity {
	if len(k) == dailyKeyLen {
		return GranularityDaily
	}

	return GranularityIntraday
}

// padTime left-pads an intraday time field to HHMMSS. Minute bars are often
// stored with leading zeros stripped (e.g. "90000" for 09:00:00).
func padTime(t string) string {
	t = strings.TrimSpace(t)
	for len(t) < 6 {
		t = "0" + t
	}

	return t
}

// digitsOf strips every non-digit rune from raw.
func digitsOf(raw string) string {
	var b strings.Builder

	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	return b.String()
}
