package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"lecnote/internal/config"
	appLog "lecnote/internal/log"
	"lecnote/internal/model"
	"lecnote/internal/pipeline"
)

type fakeCalendar struct {
	loc    *time.Location
	events []model.CalendarEvent
}

func (f fakeCalendar) Match(t time.Time) (model.CourseMatch, bool) {
	for _, ev := range f.events {
		if ev.Contains(t) {
			return model.CourseMatch{CourseName: ev.Name, WeekNum: 2}, true
		}
	}
	return model.CourseMatch{}, false
}
func (f fakeCalendar) Events() []model.CalendarEvent { return f.events }
func (f fakeCalendar) Degraded() bool                { return false }
func (f fakeCalendar) Window() (time.Time, time.Time) {
	return time.Time{}, time.Time{}
}
func (f fakeCalendar) Location() *time.Location { return f.loc }

type fakeStatus struct{ sum pipeline.Summary }

func (f fakeStatus) LastSummary() (pipeline.Summary, bool) { return f.sum, true }

func serve(h http.Handler, method, target string, setup func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if setup != nil {
		setup(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer(t *testing.T) {
	loc, _ := time.LoadLocation("Asia/Shanghai")
	begin := time.Now().In(loc).Add(-time.Hour)
	cal := fakeCalendar{loc: loc, events: []model.CalendarEvent{
		{Name: "Anatomy 101", Begin: time.Date(2025, 9, 8, 14, 0, 0, 0, loc), End: time.Date(2025, 9, 8, 16, 0, 0, 0, loc)},
		{Name: "Today", Begin: begin, End: begin.Add(2 * time.Hour)},
	}}

	Convey("Given a server without auth", t, func() {
		runs := 0
		status := fakeStatus{sum: pipeline.Summary{
			RunID: "r1",
			Done:  1,
			Aborted: &pipeline.AbortError{
				Code: pipeline.ExitGeneration, Stage: pipeline.StageGenerate, File: "a.txt", Err: errors.New("boom"),
			},
		}}
		s := NewServer(config.ServeConfig{}, Deps{
			Calendar: cal,
			Status:   status,
			Metrics:  http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("m 1\n")) }),
			RunNow:   func() { runs++ },
			Logger:   appLog.Nop(),
		})
		h := s.Handler()

		Convey("Health and metrics respond", func() {
			So(serve(h, "GET", "/health", nil).Body.String(), ShouldEqual, "OK")
			So(serve(h, "GET", "/metrics", nil).Body.String(), ShouldEqual, "m 1\n")
		})

		Convey("Match resolves a timestamp", func() {
			rec := serve(h, "GET", "/api/match?ts=20250908-143000", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			var got matchResponse
			So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
			So(got.Matched, ShouldBeTrue)
			So(got.CourseName, ShouldEqual, "Anatomy 101")
			So(got.WeekNum, ShouldEqual, 2)

			So(serve(h, "GET", "/api/match?ts=yesterday", nil).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Status reports the last abort", func() {
			rec := serve(h, "GET", "/api/status", nil)
			var got statusResponse
			So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
			So(got.CalendarEvents, ShouldEqual, 2)
			So(got.ExitCode, ShouldEqual, pipeline.ExitGeneration)
			So(got.Abort, ShouldNotBeNil)
			So(got.Abort.Stage, ShouldEqual, "generate")
			So(got.LastRun.RunID, ShouldEqual, "r1")
		})

		Convey("Events lists only the window around now", func() {
			rec := serve(h, "GET", "/api/events?days=1&backfill=0", nil)
			var got eventsResponse
			So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
			So(got.Events, ShouldHaveLength, 1)
			So(got.Events[0].Name, ShouldEqual, "Today")
		})

		Convey("Run only accepts POST", func() {
			So(serve(h, "GET", "/api/run", nil).Code, ShouldEqual, http.StatusMethodNotAllowed)
			So(serve(h, "POST", "/api/run", nil).Code, ShouldEqual, http.StatusAccepted)
			So(runs, ShouldEqual, 1)
		})
	})

	Convey("Given basic auth", t, func() {
		s := NewServer(config.ServeConfig{BasicAuth: &config.BasicAuthConfig{Username: "u", Password: "p"}}, Deps{
			Calendar: cal,
			Logger:   appLog.Nop(),
		})
		h := s.Handler()

		So(serve(h, "GET", "/health", nil).Code, ShouldEqual, http.StatusOK)
		So(serve(h, "GET", "/api/status", nil).Code, ShouldEqual, http.StatusUnauthorized)
		So(serve(h, "GET", "/api/status", func(r *http.Request) { r.SetBasicAuth("u", "p") }).Code, ShouldEqual, http.StatusOK)
		So(serve(h, "POST", "/api/run", func(r *http.Request) { r.SetBasicAuth("u", "p") }).Code, ShouldEqual, http.StatusNotFound)
	})
}
