package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrNoDuration is returned when the text holds no positive duration.
var ErrNoDuration = errors.New("no duration found")

const (
	Day  = 24 * time.Hour
	Week = 7 * Day
)

var durationPattern = regexp.MustCompile(`(?i)\b(\d{1,4})\s*(segundos|segundo|segs|seg|secs|sec|s|minutos|minuto|mins|min|m|horas|hora|hrs|hr|h|dias|dia|d|semanas|semana|sem|w)\b`)

var durationUnits = map[string]time.Duration{
	"s": time.Second, "seg": time.Second, "segs": time.Second, "sec": time.Second, "secs": time.Second,
	"segundo": time.Second, "segundos": time.Second,
	"m": time.Minute, "min": time.Minute, "mins": time.Minute, "minuto": time.Minute, "minutos": time.Minute,
	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour, "hora": time.Hour, "horas": time.Hour,
	"d": Day, "dia": Day, "dias": Day,
	"w": Week, "sem": Week, "semana": Week, "semanas": Week,
}

// DurationUnits returns every accepted unit spelling.
func DurationUnits() map[string]time.Duration {
	out := make(map[string]time.Duration, len(durationUnits))
	for k, v := range durationUnits {
		out[k] = v
	}
	return out
}

// ParseDuration finds the first "<number><unit>" expression in free text,
// e.g. "10m", "2 horas", "1 día". A missing unit is never assumed.
func ParseDuration(text string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(strings.ToLower(StripDiacritics(text)))
	if m == nil {
		return 0, ErrNoDuration
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, ErrNoDuration
	}
	unit, ok := durationUnits[m[2]]
	if !ok {
		return 0, fmt.Errorf("unknown duration unit %q: %w", m[2], ErrNoDuration)
	}
	return time.Duration(n) * unit, nil
}

// FormatDurationShort renders d with its largest exact unit. Zero means the
// timeout is being removed.
func FormatDurationShort(d time.Duration) string {
	switch {
	case d <= 0:
		return "remover"
	case d%Day == 0:
		return fmt.Sprintf("%dd", d/Day)
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	default:
		return fmt.Sprintf("%ds", d/time.Second)
	}
}
