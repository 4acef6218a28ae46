// Package timeofday normalizes and orders the time-of-day strings attached to
// grades ("08:50", "9:5", "14").
package timeofday

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

var (
	canonicalPattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)
	colonPattern     = regexp.MustCompile(`^(\d{1,2}):(\d{1,2})$`)
	hourPattern      = regexp.MustCompile(`^(\d{1,2})$`)
)

// FormatTime returns input as zero-padded "hh:mm", or "" when the shape is not
// recognized. Components are padded but not range checked; use
// IsValidTimeFormat for that.
func FormatTime(input string) string {
	value := strings.TrimSpace(input)
	if value == "" {
		return ""
	}
	if m := colonPattern.FindStringSubmatch(value); m != nil {
		return pad(m[1]) + ":" + pad(m[2])
	}
	if m := hourPattern.FindStringSubmatch(value); m != nil {
		return pad(m[1]) + ":00"
	}
	return ""
}

// IsValidTimeFormat reports whether input is exactly "hh:mm" with hour 00-23
// and minute 00-59.
func IsValidTimeFormat(input string) bool {
	return canonicalPattern.MatchString(input)
}

// Minutes returns the minute of day for input. ok is false when input cannot
// be normalized.
func Minutes(input string) (int, bool) {
	formatted := FormatTime(input)
	if formatted == "" {
		return 0, false
	}
	hour, _ := strconv.Atoi(formatted[:2])
	minute, _ := strconv.Atoi(formatted[3:])
	return hour*60 + minute, true
}

// TimeToMinutes is Minutes with 0 as the unknown value. A warning is logged
// for input that cannot be normalized.
func TimeToMinutes(input string) int {
	minutes, ok := Minutes(input)
	if !ok {
		zap.L().Warn("invalid time of day", zap.String("input", input))
		return 0
	}
	return minutes
}

// MinutesToTime formats a minute of day as "hh:mm". Values of 1440 and above
// are not wrapped.
func MinutesToTime(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Compare orders two time-of-day strings. Unknown values sort after every
// known value and compare equal to each other.
func Compare(a, b string) int {
	ma, okA := Minutes(a)
	mb, okB := Minutes(b)
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return 1
	case !okB:
		return -1
	case ma < mb:
		return -1
	case ma > mb:
		return 1
	}
	return 0
}

// SortStable sorts items by the time returned by key, keeping the relative
// order of equal times.
func SortStable[T any](items []T, key func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		return Compare(key(items[i]), key(items[j])) < 0
	})
}

func pad(component string) string {
	if len(component) == 1 {
		return "0" + component
	}
	return component
}
