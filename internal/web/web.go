package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"icalgen/internal/config"
	appLog "icalgen/internal/log"
	"icalgen/internal/model"
	"icalgen/internal/pipeline"
)

const (
	maxTextBytes   = 1 << 20
	maxUploadBytes = 16 << 20
	// uploadMemory is how much of a multipart form is held in memory; the
	// rest spills to temp files.
	uploadMemory = 4 << 20
	dateLayout     = "2006-01-02"
)

// Server exposes the converter over HTTP.
type Server struct {
	cfg      *config.Config
	conv     *pipeline.Converter
	router   chi.Router
	validate *validator.Validate
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, conv *pipeline.Converter) *Server {
	s := &Server{
		cfg:      cfg,
		conv:     conv,
		router:   chi.NewRouter(),
		validate: validator.New(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password means disabled.
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
			w.Header().Set("WWW-Authenticate", `Basic realm="icalgen", charset="UTF-8"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
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

// StartServer serves on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func StartServer(ctx context.Context, cfg *config.Config, conv *pipeline.Converter) error {
	s := NewServer(cfg, conv)
	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			appLog.Error("http shutdown error", err)
		}
	}()

	appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen, "basic_auth", s.basicAuthEnabled())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	if s.cfg.RateLimitPerMinute > 0 {
		r.Use(httprate.LimitByIP(s.cfg.RateLimitPerMinute, time.Minute))
	}
	if s.basicAuthEnabled() {
		r.Use(s.basicAuthMiddleware)
	}

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/parse", s.handleParse)
		r.Post("/events", s.handleEvents)
		r.Post("/calendar", s.handleCalendar)
		r.Post("/calendar/image", s.handleCalendarImage)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// parseRequest is the JSON body of /api/parse.
type parseRequest struct {
	Text string `json:"text" validate:"required"`
}

// convertRequest is the JSON body of /api/events and /api/calendar.
type convertRequest struct {
	Text  string `json:"text" validate:"required"`
	Start string `json:"start" validate:"required,datetime=2006-01-02"`
	End   string `json:"end" validate:"required,datetime=2006-01-02"`
}

// slotDTO is a JSON-friendly view of a weekly slot.
type slotDTO struct {
	Day   string `json:"day"`
	Start string `json:"start"`
	End   string `json:"end"`
	Code  string `json:"code,omitempty"`
}

// eventDTO is a JSON-friendly view of a dated event. Times are floating
// local values formatted without a zone.
type eventDTO struct {
	Summary string `json:"summary"`
	Start   string `json:"start"`
	End     string `json:"end"`
	AllDay  bool   `json:"all_day"`
}

type parseResponse struct {
	Slots []slotDTO `json:"slots"`
}

type eventsResponse struct {
	Slots      []slotDTO  `json:"slots"`
	Events     []eventDTO `json:"events"`
	RangeStart string     `json:"range_start"`
	RangeEnd   string     `json:"range_end"`
}

// handleParse returns the weekly slots found in the posted text.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if !s.decode(w, r, &req) {
		return
	}

	slots := s.conv.Parser.Parse(req.Text)
	writeJSON(w, http.StatusOK, parseResponse{Slots: toSlotDTOs(slots)})
}

// handleEvents returns the dated events for the posted text and range.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if !s.decode(w, r, &req) {
		return
	}
	start, end, err := s.dates(req.Start, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := s.conv.Convert(req.Text, start, end)

	appLog.Info("api events request",
		"range_start", req.Start,
		"range_end", req.End,
		"slot_count", len(res.Slots),
		"event_count", len(res.Events),
	)

	writeJSON(w, http.StatusOK, eventsResponse{
		Slots:      toSlotDTOs(res.Slots),
		Events:     toEventDTOs(res.Events),
		RangeStart: req.Start,
		RangeEnd:   req.End,
	})
}

// handleCalendar returns the calendar document for the posted text and range.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if !s.decode(w, r, &req) {
		return
	}
	start, end, err := s.dates(req.Start, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := s.conv.Convert(req.Text, start, end)
	writeCalendar(w, res.Document)
}

// handleCalendarImage accepts a multipart form with an "image" file plus
// "start" and "end" fields, runs OCR and returns the calendar document.
func (s *Server) handleCalendarImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, pipeline.ErrNoImage.Error())
		return
	}
	defer file.Close()

	start, end, err := s.dates(r.FormValue("start"), r.FormValue("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tmpPath, cleanup, err := saveUpload(file, header.Filename)
	if err != nil {
		appLog.Error("api upload save failed", err)
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	defer cleanup()

	text, err := s.conv.Text(r.Context(), pipeline.Request{Image: tmpPath})
	if err != nil {
		appLog.Error("api ocr failed", err)
		writeError(w, http.StatusUnprocessableEntity, "text extraction failed")
		return
	}

	res := s.conv.Convert(text, start, end)
	appLog.Info("api image calendar", "slot_count", len(res.Slots), "event_count", len(res.Events))
	writeCalendar(w, res.Document)
}

// decode reads a JSON body into v and validates it. It writes the error
// response itself and reports whether the handler should continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxTextBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func (s *Server) dates(startStr, endStr string) (time.Time, time.Time, error) {
	loc := s.conv.Location
	if loc == nil {
		loc = time.Local
	}
	start, err := time.ParseInLocation(dateLayout, startStr, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q", startStr)
	}
	end, err := time.ParseInLocation(dateLayout, endStr, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q", endStr)
	}
	return start, end, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, strings.ToLower(fe.Field())+": "+fe.Tag())
	}
	return "invalid request: " + strings.Join(parts, ", ")
}

func saveUpload(src io.Reader, name string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "icalgen-upload-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { os.RemoveAll(dir) }

	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".img"
	}
	path := filepath.Join(dir, "upload"+ext)

	dst, err := os.Create(path)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		cleanup()
		return "", nil, err
	}
	if err := dst.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}

func toSlotDTOs(slots []model.WeeklySlot) []slotDTO {
	out := make([]slotDTO, 0, len(slots))
	for _, sl := range slots {
		out = append(out, slotDTO{
			Day:   sl.Day,
			Start: sl.StartClock(),
			End:   sl.EndClock(),
			Code:  sl.Code,
		})
	}
	return out
}

func toEventDTOs(events []model.DatedEvent) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		out = append(out, eventDTO{
			Summary: ev.Summary,
			Start:   ev.Start.Format("2006-01-02T15:04"),
			End:     ev.End.Format("2006-01-02T15:04"),
			AllDay:  ev.AllDay,
		})
	}
	return out
}

func writeCalendar(w http.ResponseWriter, doc string) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+pipeline.DefaultOutput+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, doc)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
