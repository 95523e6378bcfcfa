// Package timeparse interprets the duration strings found in manually
// produced timesheets and formats minute totals for display.
package timeparse

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	hoursPattern   = regexp.MustCompile(`([0-9]+(?:[.,][0-9]+)?)\s*h`)
	minutesPattern = regexp.MustCompile(`([0-9]+)\s*m`)
)

// ParseDuration converts a free-form duration cell into integer minutes.
//
// Values with explicit hour/minute markers are read accordingly ("2h30m",
// "1,5h", "45 m"). A bare decimal with magnitude <= 24 is read as hours;
// anything else numeric is read as minutes. Malformed input yields 0 —
// timesheets routinely contain stray text cells and a single bad value must
// not abort an import.
func ParseDuration(raw string) int {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}

	lower := strings.ToLower(s)
	hourMatch := hoursPattern.FindStringSubmatch(lower)
	minuteMatch := minutesPattern.FindStringSubmatch(lower)

	if hourMatch != nil || minuteMatch != nil {
		hours := 0.0
		minutes := 0
		if hourMatch != nil {
			if parsed, err := strconv.ParseFloat(strings.ReplaceAll(hourMatch[1], ",", "."), 64); err == nil {
				hours = parsed
			}
		}
		if minuteMatch != nil {
			if parsed, err := strconv.Atoi(minuteMatch[1]); err == nil && parsed > 0 {
				minutes = parsed
			}
		}
		total := int(math.Round(hours*60)) + minutes
		if total < 0 {
			return 0
		}
		return total
	}

	normalized := strings.ReplaceAll(s, ",", ".")

	if strings.Contains(normalized, ".") {
		hours, err := strconv.ParseFloat(normalized, 64)
		if err != nil {
			return 0
		}
		if math.Abs(hours) <= 24 {
			return clampMinutes(int(math.Round(hours * 60)))
		}
		return clampMinutes(int(math.Round(hours)))
	}

	minutes, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0
	}
	return clampMinutes(int(math.Round(minutes)))
}

// FormatMinutes renders minutes as "XhYYm".
func FormatMinutes(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%dh%02dm", minutes/60, minutes%60)
}

func clampMinutes(minutes int) int {
	if minutes < 0 {
		return 0
	}
	return minutes
}
