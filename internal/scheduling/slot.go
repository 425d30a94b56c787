// Package scheduling implements the appointment-scheduling engine: slot
// normalization, availability derived from calendar busy intervals, atomic
// reservation with compensating rollback, and the decision logic the agent
// runtime invokes through its scheduling tool.
package scheduling

import (
	"strings"
	"time"
)

// The clinic operates on a fixed UTC-4 offset; every slot key is expressed
// in this zone regardless of how the caller phrased the time.
var ClinicZone = time.FixedZone("UTC-4", -4*60*60)

// SlotFormat is the canonical key format for bookable slots: local clinic
// time at minute precision with an explicit offset.
const SlotFormat = "2006-01-02T15:04-07:00"

// SlotDuration is the length of every bookable interval.
const SlotDuration = 30 * time.Minute

// Operating hours: 16 consecutive 30-minute cells starting at 09:00 local.
const (
	openingHour = 9
	slotsPerDay = 16
)

var offsetLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04Z07:00",
}

var bareLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// NormalizeSlot coerces an arbitrary time string into the canonical slot
// key. Unparsable input is returned trimmed but otherwise unchanged so
// callers can surface it to the patient; such a value never matches a real
// slot. A parsed time of exactly midnight is rewritten to 09:00, the
// clinic's convention for "no time specified".
func NormalizeSlot(raw string) string {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return ""
	}

	parsed, ok := parseSlotInput(candidate)
	if !ok {
		return candidate
	}

	parsed = parsed.Truncate(time.Minute)
	if parsed.Hour() == 0 && parsed.Minute() == 0 {
		parsed = parsed.Add(time.Duration(openingHour) * time.Hour)
	}

	return parsed.In(ClinicZone).Format(SlotFormat)
}

// parseSlotInput handles trailing-Z UTC notation, explicit offsets, and
// bare date-times, which are treated as already being in clinic time.
func parseSlotInput(candidate string) (time.Time, bool) {
	if strings.HasSuffix(candidate, "Z") || hasExplicitOffset(candidate) {
		for _, layout := range offsetLayouts {
			if t, err := time.Parse(layout, candidate); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	}
	for _, layout := range bareLayouts {
		if t, err := time.ParseInLocation(layout, candidate, ClinicZone); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// hasExplicitOffset reports whether the string carries a numeric UTC
// offset. Two dashes belong to the date; a third means a negative offset.
func hasExplicitOffset(candidate string) bool {
	return strings.Contains(candidate, "+") || strings.Count(candidate, "-") > 2
}

// ParseSlotKey parses a canonical slot key back into a time value.
func ParseSlotKey(slot string) (time.Time, error) {
	return time.Parse(SlotFormat, slot)
}
