package ics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	appLog "lecnote/internal/log"
	"lecnote/internal/model"
)

const (
	// MatchTolerance bounds how far a recording may sit outside an event
	// (measured to the nearer of its two edges) and still match it.
	MatchTolerance = time.Hour

	// Expansion window: [semester start - WindowLeadDays, + WindowSpanDays).
	WindowLeadDays = 7
	WindowSpanDays = 200
)

// Index answers "which class was running at time T" over a calendar feed
// expanded once at construction. Events are sorted by Begin and never
// mutated afterwards.
type Index struct {
	events        []model.CalendarEvent
	loc           *time.Location
	semesterStart time.Time
	windowStart   time.Time
	windowEnd     time.Time
	degraded      bool
}

// ParseSemesterStart parses a YYYY-MM-DD date as midnight in loc.
func ParseSemesterStart(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("ics: semester start %q: %w", s, err)
	}
	return d, nil
}

// NewIndex expands parsed events over the semester window. When recurrence
// expansion fails the index degrades to the explicitly listed events whose
// start falls inside the window; Degraded reports that state.
func NewIndex(parsed []ParsedEvent, semesterStart time.Time, loc *time.Location, logger *appLog.Logger) *Index {
	if loc == nil {
		loc = time.Local
	}
	start := time.Date(semesterStart.Year(), semesterStart.Month(), semesterStart.Day(), 0, 0, 0, 0, loc)
	windowStart := start.AddDate(0, 0, -WindowLeadDays)
	windowEnd := windowStart.AddDate(0, 0, WindowSpanDays)

	ix := &Index{
		loc:           loc,
		semesterStart: start,
		windowStart:   windowStart,
		windowEnd:     windowEnd,
	}

	cfg := ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      windowStart,
		RangeEnd:        windowEnd,
	}

	res, err := ExpandOccurrences(parsed, cfg)
	if err != nil {
		logger.Warn("recurrence expansion failed; using explicit events only",
			"err", err,
			"window_start", windowStart.Format(time.RFC3339),
			"window_end", windowEnd.Format(time.RFC3339),
		)
		ix.events = ExplicitEvents(parsed, cfg)
		ix.degraded = true
	} else {
		ix.events = res.Events
		for _, uid := range res.TruncatedEvents {
			logger.Warn("expansion truncated at occurrence cap", "uid", uid, "cap", defaultMaxOccurrencesPerEvent)
		}
	}

	sort.SliceStable(ix.events, func(i, j int) bool {
		return ix.events[i].Begin.Before(ix.events[j].Begin)
	})

	logger.Info("calendar index built",
		"events", len(ix.events),
		"degraded", ix.degraded,
		"semester_start", start.Format("2006-01-02"),
	)
	return ix
}

// LoadIndex reads the feed at location (file path or URL), parses it and
// builds an Index.
func LoadIndex(ctx context.Context, fetcher *Fetcher, location, semesterStart string, loc *time.Location, logger *appLog.Logger) (*Index, error) {
	start, err := ParseSemesterStart(semesterStart, loc)
	if err != nil {
		return nil, err
	}
	body, err := fetcher.Read(ctx, location)
	if err != nil {
		return nil, err
	}
	parsed, err := ParseICS(body, loc, logger)
	if err != nil {
		return nil, err
	}
	return NewIndex(parsed, start, loc, logger), nil
}

// Match resolves t to a course.
//
//  1. Events whose [Begin, End] contains t: the one whose Begin is closest
//     to t wins; ties go to the earliest-sorted event.
//  2. Otherwise the event with the smallest distance from t to either edge,
//     if that distance is within MatchTolerance (inclusive).
//  3. Otherwise no match.
func (ix *Index) Match(t time.Time) (model.CourseMatch, bool) {
	if ix == nil || len(ix.events) == 0 {
		return model.CourseMatch{}, false
	}
	t = t.In(ix.loc)

	best := -1
	var bestDist time.Duration
	for i, ev := range ix.events {
		if !ev.Contains(t) {
			continue
		}
		d := absDuration(ev.Begin.Sub(t))
		if best == -1 || d < bestDist {
			best, bestDist = i, d
		}
	}
	if best >= 0 {
		return ix.matchFor(ix.events[best], t), true
	}

	best = -1
	for i, ev := range ix.events {
		d := edgeDistance(ev, t)
		if best == -1 || d < bestDist {
			best, bestDist = i, d
		}
	}
	if bestDist <= MatchTolerance {
		return ix.matchFor(ix.events[best], t), true
	}
	return model.CourseMatch{}, false
}

// WeekNum is max(1, 1 + floor(days since semester start / 7)), counting
// civil days in the index timezone.
func (ix *Index) WeekNum(t time.Time) int {
	t = t.In(ix.loc)
	days := civilDays(ix.semesterStart, t)
	if days < 0 {
		return 1
	}
	return 1 + days/7
}

// Events returns a copy of the expanded, sorted events.
func (ix *Index) Events() []model.CalendarEvent {
	out := make([]model.CalendarEvent, len(ix.events))
	copy(out, ix.events)
	return out
}

// Degraded reports whether recurrence expansion failed and only explicit
// events are indexed.
func (ix *Index) Degraded() bool {
	return ix.degraded
}

// Location is the civil timezone every event is normalized to.
func (ix *Index) Location() *time.Location {
	return ix.loc
}

// Window returns the expansion window [start, end).
func (ix *Index) Window() (time.Time, time.Time) {
	return ix.windowStart, ix.windowEnd
}

func (ix *Index) matchFor(ev model.CalendarEvent, t time.Time) model.CourseMatch {
	return model.CourseMatch{
		CourseName: strings.TrimSpace(ev.Name),
		WeekNum:    ix.WeekNum(t),
	}
}

func edgeDistance(ev model.CalendarEvent, t time.Time) time.Duration {
	db := absDuration(ev.Begin.Sub(t))
	de := absDuration(ev.End.Sub(t))
	if de < db {
		return de
	}
	return db
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// civilDays counts calendar days from a to b ignoring DST shifts.
func civilDays(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
