package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrUnparsableTime = errors.New("unparsable time")
	ErrPastTime       = errors.New("time is in the past")
	ErrNotFound       = errors.New("not found")
)

// Layouts accepted for input carrying an explicit offset, tried in order.
var offsetLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
}

// Layouts accepted for offset-naive input, tried in order.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ResolveTime converts a raw time expression into an absolute UTC instant.
// An explicit offset in the input is authoritative and tz is ignored;
// offset-naive input is interpreted as wall-clock time in tz. An unknown
// tz degrades to UTC; callers decide whether that is acceptable.
func ResolveTime(raw, tz string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty input", ErrUnparsableTime)
	}
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	loc := LocationOrUTC(tz)
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsableTime, raw)
}

// EnsureFuture rejects instants at or before now. A reminder scheduled
// into the past would be silently dropped by the scheduler, so it is
// refused up front instead.
func EnsureFuture(t, now time.Time) error {
	if !t.After(now) {
		return fmt.Errorf("%w: %s", ErrPastTime, t.UTC().Format(time.RFC3339))
	}
	return nil
}

// LocationOrUTC loads tz, falling back to UTC on empty or unknown names.
func LocationOrUTC(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ValidateTZ checks that tz names a known IANA location.
func ValidateTZ(tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", err
	}
	return loc.String(), nil
}

// LocalizeISO renders a UTC instant in the user's zone as an ISO-8601
// string with offset, e.g. 2025-01-17T09:00:00+03:00.
func LocalizeISO(t time.Time, tz string) string {
	return t.In(LocationOrUTC(tz)).Format(time.RFC3339)
}

var (
	relMinutes = regexp.MustCompile(`(?i)\bin\s+(\d+)\s*(?:minutes?|min)\b`)
	relHours   = regexp.MustCompile(`(?i)\bin\s+(\d+)\s*(?:hours?|hr)\b`)
)

// ParseRelative extracts an "in N minutes" / "in N hours" offset from
// free chat text. The caller turns the offset into an absolute instant.
func ParseRelative(text string) (time.Duration, bool) {
	if m := relMinutes.FindStringSubmatch(text); len(m) == 2 {
		n, _ := strconv.Atoi(m[1])
		return time.Duration(n) * time.Minute, true
	}
	if m := relHours.FindStringSubmatch(text); len(m) == 2 {
		n, _ := strconv.Atoi(m[1])
		return time.Duration(n) * time.Hour, true
	}
	return 0, false
}
