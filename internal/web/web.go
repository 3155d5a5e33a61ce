package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"lecnote/internal/config"
	appLog "lecnote/internal/log"
	"lecnote/internal/model"
	"lecnote/internal/pipeline"
)

// Calendar is the read-only view of the calendar index the API exposes.
// *ics.Index implements it.
type Calendar interface {
	Match(t time.Time) (model.CourseMatch, bool)
	Events() []model.CalendarEvent
	Degraded() bool
	Window() (time.Time, time.Time)
	Location() *time.Location
}

// StatusSource reports the most recent batch. *pipeline.Controller
// implements it.
type StatusSource interface {
	LastSummary() (pipeline.Summary, bool)
}

// Deps are the collaborators of a Server. Metrics, NextRun and RunNow may
// be nil; the matching endpoints then answer 404.
type Deps struct {
	Calendar Calendar
	Status   StatusSource
	Metrics  http.Handler
	NextRun  func() (time.Time, bool)
	// RunNow starts a batch in the background.
	RunNow func()
	Logger *appLog.Logger
}

// Server provides the HTTP status API of `lecnote serve`.
type Server struct {
	cfg     config.ServeConfig
	deps    Deps
	mux     *http.ServeMux
	started time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg config.ServeConfig, deps Deps) *Server {
	s := &Server{
		cfg:     cfg,
		deps:    deps,
		mux:     http.NewServeMux(),
		started: time.Now(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		s.deps.Logger.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password disables auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="lecnote", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves until ctx is cancelled, then shuts down gracefully.
func StartServer(ctx context.Context, cfg config.ServeConfig, deps Deps) error {
	s := NewServer(cfg, deps)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		deps.Logger.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/match", s.handleMatch)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/run", s.handleRun)
	if s.deps.Metrics != nil {
		s.mux.Handle("/metrics", s.deps.Metrics)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// abortDTO is the JSON view of a batch abort.
type abortDTO struct {
	Stage    string `json:"stage"`
	File     string `json:"file"`
	ExitCode int    `json:"exit_code"`
	Error    string `json:"error"`
}

// statusResponse is the JSON response shape for /api/status.
type statusResponse struct {
	StartedAt        time.Time         `json:"started_at"`
	CalendarEvents   int               `json:"calendar_events"`
	CalendarDegraded bool              `json:"calendar_degraded"`
	NextRun          *time.Time        `json:"next_run,omitempty"`
	LastRun          *pipeline.Summary `json:"last_run,omitempty"`
	ExitCode         int               `json:"exit_code"`
	Abort            *abortDTO         `json:"abort,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{StartedAt: s.started}
	if s.deps.Calendar != nil {
		resp.CalendarEvents = len(s.deps.Calendar.Events())
		resp.CalendarDegraded = s.deps.Calendar.Degraded()
	}
	if s.deps.NextRun != nil {
		if next, ok := s.deps.NextRun(); ok {
			resp.NextRun = &next
		}
	}
	if s.deps.Status != nil {
		if sum, ok := s.deps.Status.LastSummary(); ok {
			resp.LastRun = &sum
			resp.ExitCode = sum.ExitCode()
			if a := sum.Aborted; a != nil {
				resp.Abort = &abortDTO{Stage: string(a.Stage), File: a.File, ExitCode: a.Code, Error: a.Err.Error()}
			}
		}
	}
	writeJSON(w, http.StatusOK, resp, s.deps.Logger)
}

// matchResponse is the JSON response shape for /api/match.
type matchResponse struct {
	Time    time.Time `json:"time"`
	Matched bool      `json:"matched"`
	model.CourseMatch
}

// handleMatch resolves a recording timestamp.
//
// GET /api/match?ts=YYYYMMDD-HHMMSS
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Calendar == nil {
		writeError(w, http.StatusServiceUnavailable, "calendar not loaded", s.deps.Logger)
		return
	}
	raw := r.URL.Query().Get("ts")
	ts, ok := pipeline.TimestampFromName(raw, s.deps.Calendar.Location())
	if !ok {
		writeError(w, http.StatusBadRequest, "ts must be YYYYMMDD-HHMMSS", s.deps.Logger)
		return
	}
	m, matched := s.deps.Calendar.Match(ts)
	writeJSON(w, http.StatusOK, matchResponse{Time: ts, Matched: matched, CourseMatch: m}, s.deps.Logger)
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Events      []model.CalendarEvent `json:"events"`
	RangeStart  time.Time             `json:"range_start"`
	RangeEnd    time.Time             `json:"range_end"`
	WindowStart time.Time             `json:"window_start"`
	WindowEnd   time.Time             `json:"window_end"`
	Degraded    bool                  `json:"degraded"`
	TimeZone    string                `json:"timezone"`
}

// handleEvents lists indexed occurrences overlapping a window around now.
//
// GET /api/events?days=7&backfill=1
//   - days:     days ahead to include (default 7)
//   - backfill: days back to include (default 1)
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.deps.Calendar == nil {
		writeError(w, http.StatusServiceUnavailable, "calendar not loaded", s.deps.Logger)
		return
	}
	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), 7)
	if days <= 0 {
		days = 7
	}
	backfill := parseIntDefault(q.Get("backfill"), 1)
	if backfill < 0 {
		backfill = 0
	}

	loc := s.deps.Calendar.Location()
	now := time.Now().In(loc)
	rangeStart := now.AddDate(0, 0, -backfill)
	rangeEnd := now.AddDate(0, 0, days)

	events := make([]model.CalendarEvent, 0)
	for _, ev := range s.deps.Calendar.Events() {
		if ev.End.Before(rangeStart) || !ev.Begin.Before(rangeEnd) {
			continue
		}
		events = append(events, ev)
	}

	ws, we := s.deps.Calendar.Window()
	writeJSON(w, http.StatusOK, eventsResponse{
		Events:      events,
		RangeStart:  rangeStart,
		RangeEnd:    rangeEnd,
		WindowStart: ws,
		WindowEnd:   we,
		Degraded:    s.deps.Calendar.Degraded(),
		TimeZone:    loc.String(),
	}, s.deps.Logger)
}

// handleRun starts a batch outside the schedule.
//
// POST /api/run
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.deps.RunNow == nil {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "use POST", s.deps.Logger)
		return
	}
	s.deps.Logger.Info("batch requested over HTTP", "remote", r.RemoteAddr)
	s.deps.RunNow()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"}, s.deps.Logger)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *appLog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string, logger *appLog.Logger) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg}, logger)
}
