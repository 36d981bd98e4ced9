package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/datasen-project/datasen/internal/archive"
	"github.com/datasen-project/datasen/internal/dataset"
	"github.com/datasen-project/datasen/internal/memory"
	"github.com/datasen-project/datasen/internal/metrics"
	"github.com/datasen-project/datasen/internal/prompt"
	"github.com/datasen-project/datasen/internal/session"
)

// maxUploadBytes bounds multipart dataset uploads.
const maxUploadBytes = 32 << 20

// SessionHandler serves the assistant session endpoints.
type SessionHandler struct {
	manager     *session.Manager
	mirror      *memory.RedisStore  // optional, used to rehydrate on resume
	archiveRepo *archive.Repository // optional
	datasetOpts dataset.Options
	maxTurns    int
	validate    *validator.Validate
}

// SessionHandlerOptions configures a SessionHandler.
type SessionHandlerOptions struct {
	Manager     *session.Manager
	Mirror      *memory.RedisStore
	Archive     *archive.Repository
	DatasetOpts dataset.Options
	MaxTurns    int
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(opts SessionHandlerOptions) *SessionHandler {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = 10
	}
	return &SessionHandler{
		manager:     opts.Manager,
		mirror:      opts.Mirror,
		archiveRepo: opts.Archive,
		datasetOpts: opts.DatasetOpts,
		maxTurns:    opts.MaxTurns,
		validate:    validator.New(),
	}
}

type createSessionRequest struct {
	DatasetPath string `json:"dataset_path" validate:"required,min=1"`
	SessionID   string `json:"session_id,omitempty" validate:"omitempty,uuid4"`
}

type sessionResponse struct {
	SessionID      string           `json:"session_id"`
	Summary        *dataset.Summary `json:"summary,omitempty"`
	TurnCount      int              `json:"turn_count"`
	CreatedAt      time.Time        `json:"created_at"`
	LastActivityAt time.Time        `json:"last_activity_at"`
}

type askRequest struct {
	Question string `json:"question" validate:"required,min=1"`
}

type askResponse struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
}

// Create starts a session from an uploaded dataset (multipart) or a
// server-local dataset path (JSON body). A JSON body with a known
// session_id resumes that conversation from the redis mirror.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		h.createFromUpload(w, r)
		return
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		HandleError(w, ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		HandleError(w, NewValidationError(err.Error()))
		return
	}

	sum, err := dataset.Summarize(req.DatasetPath, h.datasetOpts)
	if err != nil {
		h.datasetError(w, err)
		return
	}
	metrics.DatasetsLoadedTotal.WithLabelValues(formatLabel(req.DatasetPath)).Inc()

	var s *session.Session
	if req.SessionID != "" {
		var turns []memory.Turn
		if h.mirror != nil {
			turns, err = h.mirror.Recent(r.Context(), req.SessionID, h.maxTurns)
			if err != nil {
				slog.Warn("rehydrating session from mirror", "error", err, "session_id", req.SessionID)
			}
		}
		s = h.manager.Resume(req.SessionID, sum, turns)
	} else {
		s = h.manager.Create(sum)
	}

	JSON(w, http.StatusCreated, h.sessionResponse(s, true))
}

func (h *SessionHandler) createFromUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		HandleError(w, NewBadRequestError("invalid multipart form"))
		return
	}
	file, header, err := r.FormFile("dataset")
	if err != nil {
		HandleError(w, NewBadRequestError("missing dataset file field"))
		return
	}
	defer file.Close()

	var format dataset.Format
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".csv":
		format = dataset.FormatCSV
	case ".json":
		format = dataset.FormatJSON
	default:
		HandleError(w, ErrUnsupportedFormat)
		return
	}

	sum, err := dataset.SummarizeReader(file, format, header.Filename, h.datasetOpts)
	if err != nil {
		h.datasetError(w, err)
		return
	}
	metrics.DatasetsLoadedTotal.WithLabelValues(string(format)).Inc()

	s := h.manager.Create(sum)
	JSON(w, http.StatusCreated, h.sessionResponse(s, true))
}

// Get returns session metadata.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, h.sessionResponse(s, false))
}

// Summary returns the dataset summary the session is grounded on.
func (h *SessionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, s.Summary())
}

// Ask relays one question through the session.
func (h *SessionHandler) Ask(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		HandleError(w, ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		HandleError(w, NewValidationError(err.Error()))
		return
	}

	start := time.Now()
	answer, err := s.Ask(r.Context(), req.Question)
	metrics.AskDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		h.askError(w, s.ID, err)
		return
	}
	metrics.AsksTotal.WithLabelValues("ok").Inc()

	JSON(w, http.StatusOK, askResponse{
		SessionID: s.ID,
		Question:  req.Question,
		Answer:    answer,
	})
}

// History returns recent turns, from the in-memory buffer by default or from
// the postgres archive with ?source=archive.
func (h *SessionHandler) History(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	n := h.maxTurns
	if q := r.URL.Query().Get("n"); q != "" {
		if v, err := strconv.Atoi(q); err == nil && v > 0 {
			n = v
		}
	}

	if r.URL.Query().Get("source") == "archive" {
		if h.archiveRepo == nil {
			HandleError(w, NewBadRequestError("turn archive is not configured"))
			return
		}
		turns, err := h.archiveRepo.ListBySession(r.Context(), s.ID, n)
		if err != nil {
			slog.Error("listing archived turns", "error", err, "session_id", s.ID)
			HandleError(w, ErrInternalServer)
			return
		}
		JSON(w, http.StatusOK, turns)
		return
	}

	JSON(w, http.StatusOK, s.History(n))
}

// Delete ends the session.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := h.manager.End(id); err != nil {
		HandleError(w, ErrNotFound)
		return
	}
	if h.mirror != nil {
		if err := h.mirror.Clear(r.Context(), id); err != nil {
			slog.Warn("clearing session mirror", "error", err, "session_id", id)
		}
	}
	JSONMessage(w, http.StatusOK, "session ended")
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "sessionID")
	if _, err := uuid.Parse(id); err != nil {
		HandleError(w, NewBadRequestError("invalid session id"))
		return nil, false
	}
	s, err := h.manager.Get(id)
	if err != nil {
		HandleError(w, ErrNotFound)
		return nil, false
	}
	return s, true
}

func (h *SessionHandler) sessionResponse(s *session.Session, includeSummary bool) sessionResponse {
	resp := sessionResponse{
		SessionID:      s.ID,
		TurnCount:      len(s.History(h.maxTurns)),
		CreatedAt:      s.CreatedAt(),
		LastActivityAt: s.LastActivityAt(),
	}
	if includeSummary {
		resp.Summary = s.Summary()
	}
	return resp
}

func (h *SessionHandler) datasetError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dataset.ErrUnsupportedFormat):
		HandleError(w, ErrUnsupportedFormat)
	case errors.Is(err, dataset.ErrLoad):
		HandleError(w, NewBadRequestError(err.Error()))
	default:
		slog.Error("summarizing dataset", "error", err)
		HandleError(w, ErrInternalServer)
	}
}

func (h *SessionHandler) askError(w http.ResponseWriter, sessionID string, err error) {
	switch {
	case errors.Is(err, session.ErrBusy):
		metrics.AsksTotal.WithLabelValues("busy").Inc()
		HandleError(w, ErrSessionBusy)
	case errors.Is(err, prompt.ErrContextOverflow):
		metrics.AsksTotal.WithLabelValues("overflow").Inc()
		HandleError(w, ErrContextOverflow)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		metrics.AsksTotal.WithLabelValues("cancelled").Inc()
		// The client went away; a response is best-effort.
		HandleError(w, ErrModelUpstream)
	default:
		metrics.AsksTotal.WithLabelValues("error").Inc()
		slog.Error("ask failed", "error", err, "session_id", sessionID)
		HandleError(w, ErrModelUpstream)
	}
}

func formatLabel(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}
