// Package server exposes the pipeline over HTTP: multipart uploads in, JSON
// analyses or MP4 videos out, and a websocket per job for progress.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/pawdcast/pawdcast/detect"
	"github.com/pawdcast/pawdcast/media"
	"github.com/pawdcast/pawdcast/orchestrator"
	"github.com/pawdcast/pawdcast/script"
)

// Pipeline is the part of orchestrator.Pipeline the server drives.
type Pipeline interface {
	Analyze(ctx context.Context, audio, skit, timestamps string) (*orchestrator.Analysis, error)
	Run(ctx context.Context, req orchestrator.Request, progress media.ProgressFunc) (*orchestrator.Result, error)
}

type Options struct {
	// MaxUploadMB caps the whole multipart body.
	MaxUploadMB int64
	// WorkDir holds per-request upload directories. Empty uses the OS temp dir.
	WorkDir string
}

type Server struct {
	p    Pipeline
	hub  *Hub
	opts Options
	log  logrus.FieldLogger
}

func New(p Pipeline, opts Options, log logrus.FieldLogger) *Server {
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 512
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{p: p, hub: NewHub(), opts: opts, log: log}
}

func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/render", s.handleRender)
	mux.HandleFunc("GET /api/jobs/{id}/events", s.handleEvents)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	return s.logRequests(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.WithField("addr", addr).Info("listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdown)
}

type analyzeResp struct {
	Lines  []script.DialogueLine `json:"lines"`
	Total  float64               `json:"total"`
	Points detect.SwitchPoints   `json:"points"`
	Tier   string                `json:"tier"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	dir, err := s.parseUpload(w, r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	defer os.RemoveAll(dir)

	audio, err := saveUpload(r, "audio", dir)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	if audio == "" {
		s.fail(w, http.StatusBadRequest, fmt.Errorf("%w: audio file", orchestrator.ErrMissingInput))
		return
	}
	a, err := s.p.Analyze(r.Context(), audio, r.FormValue("skit"), r.FormValue("timestamps"))
	if err != nil {
		s.fail(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, analyzeResp{Lines: a.Lines, Total: a.Total, Points: a.Points, Tier: a.Tier})
}

// handleRender runs a job and streams back the video, which stays in the
// job's output directory next to its manifest.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	dir, err := s.parseUpload(w, r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	defer os.RemoveAll(dir)

	req := orchestrator.Request{
		JobID:      r.FormValue("job"),
		Mode:       orchestrator.Mode(r.FormValue("mode")),
		Skit:       r.FormValue("skit"),
		Article:    r.FormValue("article"),
		Timestamps: r.FormValue("timestamps"),
	}
	if req.Mode == "" {
		req.Mode = orchestrator.ModeAudio
	}
	if req.JobID == "" {
		req.JobID = uuid.NewString()
	}
	if !orchestrator.ValidJobID(req.JobID) {
		s.fail(w, http.StatusBadRequest, fmt.Errorf("%w: %q", orchestrator.ErrInvalidJob, req.JobID))
		return
	}
	for field, dst := range map[string]*string{
		"audio":     &req.Audio,
		"template1": &req.Templates.Speaker1,
		"template2": &req.Templates.Speaker2,
		"closing":   &req.Templates.Closing,
	} {
		if *dst, err = saveUpload(r, field, dir); err != nil {
			s.fail(w, http.StatusBadRequest, err)
			return
		}
	}

	job := req.JobID
	res, err := s.p.Run(r.Context(), req, func(f float64, msg string) {
		s.hub.Publish(Event{Job: job, Fraction: f, Message: msg})
	})
	if err != nil {
		s.hub.Publish(Event{Job: job, Done: true, Error: orchestrator.UserMessage(err)})
		s.fail(w, statusFor(err), err)
		return
	}
	s.hub.Publish(Event{Job: job, Fraction: 1, Message: "done", Done: true})

	f, err := os.Open(res.Video)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", `attachment; filename="pawdcast.mp4"`)
	w.Header().Set("X-Job-Id", job)
	if fi, err := f.Stat(); err == nil {
		w.Header().Set("Content-Length", fmt.Sprint(fi.Size()))
	}
	if _, err := io.Copy(w, f); err != nil {
		s.log.WithError(err).WithField("job", job).Warn("video stream interrupted")
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	job := r.PathValue("id")
	events, cancel := s.hub.Subscribe(job)
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("websocket upgrade")
		return
	}
	defer conn.Close()

	// Reads only serve to notice the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case ev := <-events:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
			if ev.Done {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	}
}

func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) (string, error) {
	limit := s.opts.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	return os.MkdirTemp(s.opts.WorkDir, "upload-")
}

// saveUpload stores the multipart file field in dir. A missing field yields
// an empty path.
func saveUpload(r *http.Request, field, dir string) (string, error) {
	src, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", field, err)
	}
	defer src.Close()

	path := filepath.Join(dir, field+filepath.Ext(hdr.Filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("%s: %w", field, err)
	}
	return path, dst.Close()
}

type errorResp struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	s.log.WithError(err).WithField("status", status).Warn("request failed")
	writeJSON(w, status, errorResp{Error: orchestrator.UserMessage(err), Details: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, script.ErrNoDialogue),
		errors.Is(err, orchestrator.ErrMissingInput),
		errors.Is(err, orchestrator.ErrInvalidJob),
		errors.Is(err, detect.ErrDegenerateInput):
		return http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrJobExists):
		return http.StatusConflict
	case errors.Is(err, detect.ErrDetectionUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, media.ErrToolMissing),
		errors.Is(err, orchestrator.ErrNoProvider):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Hijack is needed by the websocket upgrader.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	w.status = http.StatusSwitchingProtocols
	return http.NewResponseController(w.ResponseWriter).Hijack()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.log.WithFields(logrus.Fields{
			"method":  r.Method,
			"path":    r.URL.Path,
			"status":  sw.status,
			"elapsed": time.Since(start).Round(time.Millisecond),
		}).Debug("http")
	})
}
