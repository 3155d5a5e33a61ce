package ics

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"lecnote/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the timezone to which all occurrences will be converted.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd define the half-open window [RangeStart, RangeEnd)
	// an occurrence's start must fall into.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent is a safety cap to avoid infinite or extremely
	// large expansions. If zero, defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the list of expanded occurrences and optionally
// information about truncation.
type ExpandResult struct {
	Events []model.CalendarEvent
	// TruncatedEvents records UIDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
}

// ExpandOccurrences takes a list of ParsedEvent and expands them into
// concrete occurrences within the given time range. It handles:
//
//   - Single non-recurring events
//   - RRULE-based recurrence (DAILY/WEEKLY/MONTHLY/YEARLY, etc.)
//   - EXDATE for exception removal
//   - RECURRENCE-ID overrides
//
// Any RRULE that cannot be parsed makes the whole expansion fail; callers
// fall back to ExplicitEvents.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Group base events and overrides by UID, keeping feed order.
	var uids []string
	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)

	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			uids = append(uids, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	var errs []error
	out := make([]model.CalendarEvent, 0)

	for _, uid := range uids {
		ov := overridesByUID[uid]
		truncated := false

		for _, ev := range baseByUID[uid] {
			occ, hitCap, err := expandEvent(ev, ov, cfg)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if hitCap {
				truncated = true
			}
			out = append(out, occ...)
		}

		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
		}
	}

	if len(errs) > 0 {
		return result, errors.Join(errs...)
	}

	result.Events = out
	return result, nil
}

// ExplicitEvents is the degraded path used when recurrence expansion is
// unavailable: every VEVENT contributes exactly its own DTSTART/DTEND, if
// that start lies in [RangeStart, RangeEnd). Recurring instances beyond the
// first are missed.
func ExplicitEvents(events []ParsedEvent, cfg ExpandConfig) []model.CalendarEvent {
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	out := make([]model.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if !inWindow(ev.Start, cfg) {
			continue
		}
		out = append(out, makeEvent(ev, ev.Start, ev.End, cfg.DisplayLocation))
	}
	return out
}

// expandEvent expands a single ParsedEvent (base event) with its possible
// overrides, returning occurrences and whether the cap was hit.
func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.CalendarEvent, bool, error) {
	// Single non-recurring event
	if ev.RawRRule == "" {
		return expandSingleEvent(ev, overrides, cfg), false, nil
	}

	// Recurring event via RRULE
	return expandRecurringEvent(ev, overrides, cfg)
}

func expandSingleEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.CalendarEvent {
	start, end := ev.Start, ev.End

	// Apply any override whose RECURRENCE-ID matches this start.
	if o, ok := findOverrideForStart(overrides, start); ok {
		start, end = o.Start, o.End
		ev = o
	}

	if !inWindow(start, cfg) {
		return nil
	}
	return []model.CalendarEvent{makeEvent(ev, start, end, cfg.DisplayLocation)}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.CalendarEvent, bool, error) {
	out := make([]model.CalendarEvent, 0)
	hitCap := false

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		return nil, false, fmt.Errorf("expand: parse RRULE %q (uid %q): %w", ev.RawRRule, ev.UID, err)
	}

	// Ensure Dtstart is set to the event's DTSTART.
	r.DTStart(ev.Start)

	// Build a set so we can apply EXDATE.
	var set rrule.Set
	set.RRule(r)

	for _, ex := range ev.ExDates {
		// Best effort: align EXDATE location with event's start.
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Adjust range into the event's original location for Between().
	rangeStart := cfg.RangeStart.In(ev.Start.Location())
	rangeEnd := cfg.RangeEnd.In(ev.Start.Location())

	occTimes := set.Between(rangeStart, rangeEnd, true)

	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	// Preserve original duration.
	dur := ev.End.Sub(ev.Start)

	for _, occStart := range occTimes {
		start := occStart
		end := occStart.Add(dur)
		baseEv := ev

		if o, ok := findOverrideForStart(overrides, occStart); ok {
			start, end = o.Start, o.End
			baseEv = o
		}

		if !inWindow(start, cfg) {
			continue
		}
		out = append(out, makeEvent(baseEv, start, end, cfg.DisplayLocation))
	}

	return out, hitCap, nil
}

// findOverrideForStart finds an override event whose RECURRENCE-ID matches
// the given baseStart with exact time equality.
func findOverrideForStart(overrides []ParsedEvent, baseStart time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence == nil {
			continue
		}
		if ov.Recurrence.Equal(baseStart) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// makeEvent converts a (possibly overridden) ParsedEvent + specific
// start/end time into a model.CalendarEvent normalized into displayLoc.
func makeEvent(ev ParsedEvent, start, end time.Time, displayLoc *time.Location) model.CalendarEvent {
	if end.Before(start) {
		end = start
	}
	return model.CalendarEvent{
		Name:  ev.Summary,
		UID:   ev.UID,
		Begin: start.In(displayLoc),
		End:   end.In(displayLoc),
	}
}

func inWindow(t time.Time, cfg ExpandConfig) bool {
	return !t.Before(cfg.RangeStart) && t.Before(cfg.RangeEnd)
}
