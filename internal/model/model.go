package model

import "time"

// CalendarEvent is a single concrete occurrence of a scheduled class
// (after recurrence expansion and timezone normalization).
// Begin is never after End.
type CalendarEvent struct {
	// Name is the event SUMMARY as found in the feed (untrimmed).
	Name string `json:"name"`

	// UID is the iCalendar UID; several events share one UID when they
	// come from the same recurring definition.
	UID string `json:"uid"`

	// Begin / End are in the configured civil timezone.
	Begin time.Time `json:"begin"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies in [Begin, End], inclusive on both ends.
func (e CalendarEvent) Contains(t time.Time) bool {
	return !t.Before(e.Begin) && !t.After(e.End)
}

// CourseMatch is the result of resolving a recording timestamp to a course.
type CourseMatch struct {
	CourseName string `json:"course_name"`
	// WeekNum is 1-based, counted from the semester start date.
	WeekNum int `json:"week_num"`
}

// RenderMetadata is built once per transcript and fed to the prompt template.
type RenderMetadata struct {
	Sequence           int    `json:"sequence"`
	Date               string `json:"date"` // YYYY-MM-DD
	TranscriptFilename string `json:"transcript_filename"`
}
