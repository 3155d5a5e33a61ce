package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "lecnote/internal/log"
)

// Raw property names; not every golang-ical release exports constants for them.
const (
	propDuration     ical.ComponentProperty = "DURATION"
	propRecurrenceID ical.ComponentProperty = "RECURRENCE-ID"
)

// ParsedEvent is the normalized representation of a VEVENT as produced
// by the ICS parser. Recurrence expansion will operate on this type.
type ParsedEvent struct {
	UID string
	Seq int

	Summary string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID (if present)
	IsOverride bool       // true if this VEVENT overrides one recurring instance
}

// ParseICS parses a single ICS payload into a list of ParsedEvent.
//
//   - TZID-qualified and UTC times keep their zone; floating (naive) times
//     and all-day dates are interpreted in loc.
//   - It records RRULE/EXDATE/RECURRENCE-ID but does not expand recurrences;
//     expansion is done in expand.go.
//   - A VEVENT that cannot be parsed is logged and skipped.
func ParseICS(body []byte, loc *time.Location, logger *appLog.Logger) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("ics: empty calendar body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics: parse calendar: %w", err)
	}

	events := make([]ParsedEvent, 0)

	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp, loc)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			logger.Warn("ics vevent skipped", "err", perr)
			continue
		}
		events = append(events, ev)
	}

	logger.Debug("ics parse completed", "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (ParsedEvent, error) {
	var out ParsedEvent

	// UID is optional for single events; recurring overrides need it to pair up.
	if uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId); uidProp != nil {
		out.UID = uidProp.Value
	}

	if seqProp := ve.GetProperty(ical.ComponentPropertySequence); seqProp != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(seqProp.Value)); err == nil {
			out.Seq = n
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}

	dtStartProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStartProp == nil {
		return out, fmt.Errorf("missing DTSTART (uid %q)", out.UID)
	}

	start, err := propTime(dtStartProp, loc)
	if err != nil {
		return out, fmt.Errorf("DTSTART (uid %q): %w", out.UID, err)
	}
	out.Start = start
	out.AllDay = isDateValue(dtStartProp)

	switch {
	case ve.GetProperty(ical.ComponentPropertyDtEnd) != nil:
		end, err := propTime(ve.GetProperty(ical.ComponentPropertyDtEnd), loc)
		if err != nil {
			return out, fmt.Errorf("DTEND (uid %q): %w", out.UID, err)
		}
		out.End = end
	case ve.GetProperty(propDuration) != nil:
		d, err := parseDuration(ve.GetProperty(propDuration).Value)
		if err != nil {
			return out, fmt.Errorf("DURATION (uid %q): %w", out.UID, err)
		}
		out.End = out.Start.Add(d)
	case out.AllDay:
		out.End = out.Start.AddDate(0, 0, 1)
	default:
		out.End = out.Start
	}
	if out.End.Before(out.Start) {
		out.End = out.Start
	}

	// RRULE (we only keep raw string here; expansion will be in expand.go).
	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	// EXDATE (can appear multiple times, each possibly comma-separated)
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		exLoc := paramLocation(p, loc)
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, exLoc); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	// RECURRENCE-ID (overridden instance)
	if ridProp := ve.GetProperty(propRecurrenceID); ridProp != nil {
		if t, err := parseICSTime(ridProp.Value, paramLocation(ridProp, loc)); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

// propTime parses a DTSTART/DTEND style property honoring its TZID parameter.
func propTime(p *ical.IANAProperty, loc *time.Location) (time.Time, error) {
	return parseICSTime(p.Value, paramLocation(p, loc))
}

// paramLocation returns the TZID zone of p, or fallback when absent/unknown.
func paramLocation(p *ical.IANAProperty, fallback *time.Location) *time.Location {
	if p == nil || p.ICalParameters == nil {
		return fallback
	}
	if tzs, ok := p.ICalParameters["TZID"]; ok && len(tzs) > 0 {
		if l, err := time.LoadLocation(strings.Trim(tzs[0], `"`)); err == nil {
			return l
		}
	}
	return fallback
}

// isDateValue detects all-day values: VALUE=DATE or no 'T' in the value.
func isDateValue(p *ical.IANAProperty) bool {
	if params := p.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			return true
		}
	}
	return !strings.Contains(p.Value, "T")
}

// parseICSTime parses a basic ICS date/date-time string. UTC values keep
// UTC; floating values are interpreted in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}

	// Local date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}

	// Date-only (all-day), e.g., 20250101
	return time.ParseInLocation("20060102", v, loc)
}

// parseDuration handles the RFC 5545 dur-value subset used by calendar
// exports: [+-]P[nW][nD][T[nH][nM][nS]].
func parseDuration(v string) (time.Duration, error) {
	s := strings.TrimSpace(v)
	sign := time.Duration(1)
	if strings.HasPrefix(s, "-") {
		sign = -1
		s = s[1:]
	} else {
		s = strings.TrimPrefix(s, "+")
	}
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	s = s[1:]

	var total time.Duration
	inTime := false
	num := ""
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
		case r == 'T':
			inTime = true
		default:
			n, err := strconv.Atoi(num)
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q", v)
			}
			num = ""
			switch {
			case r == 'W' && !inTime:
				total += time.Duration(n) * 7 * 24 * time.Hour
			case r == 'D' && !inTime:
				total += time.Duration(n) * 24 * time.Hour
			case r == 'H' && inTime:
				total += time.Duration(n) * time.Hour
			case r == 'M' && inTime:
				total += time.Duration(n) * time.Minute
			case r == 'S' && inTime:
				total += time.Duration(n) * time.Second
			default:
				return 0, fmt.Errorf("invalid duration %q", v)
			}
		}
	}
	if num != "" {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return sign * total, nil
}
