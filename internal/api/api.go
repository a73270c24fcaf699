package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/slok/cmdpool/internal/app/list"
	"github.com/slok/cmdpool/internal/app/output"
	"github.com/slok/cmdpool/internal/app/show"
	"github.com/slok/cmdpool/internal/app/submit"
	"github.com/slok/cmdpool/internal/log"
	"github.com/slok/cmdpool/internal/model"
	"github.com/slok/cmdpool/internal/printer"
)

const maxBodyBytes = 1024 * 1024

// HandlerConfig is the configuration for the HTTP API handler.
type HandlerConfig struct {
	SubmitService *submit.Service
	ListService   *list.Service
	ShowService   *show.Service
	OutputService *output.Service
	// TokenSecret enables the bearer token authentication of the /api routes
	// (HS256 tokens, see NewToken).
	TokenSecret []byte
	// TimeNow is used to validate the token times, time.Now by default.
	TimeNow func() time.Time
	Logger  log.Logger
}

func (c *HandlerConfig) defaults() error {
	if c.SubmitService == nil {
		return fmt.Errorf("submit service is required")
	}
	if c.ListService == nil {
		return fmt.Errorf("list service is required")
	}
	if c.ShowService == nil {
		return fmt.Errorf("show service is required")
	}
	if c.OutputService == nil {
		return fmt.Errorf("output service is required")
	}
	if len(c.TokenSecret) > 0 && len(c.TokenSecret) < MinTokenSecretLen {
		return fmt.Errorf("token secret must be at least %d bytes", MinTokenSecretLen)
	}
	if c.TimeNow == nil {
		c.TimeNow = time.Now
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "api.Handler"})
	return nil
}

type handler struct {
	submitSvc   *submit.Service
	listSvc     *list.Service
	showSvc     *show.Service
	outputSvc   *output.Service
	validator   *validator.Validate
	tokenSecret []byte
	now         func() time.Time
	logger      log.Logger
}

// NewHandler returns the HTTP JSON API of the pool.
func NewHandler(cfg HandlerConfig) (http.Handler, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	h := handler{
		submitSvc:   cfg.SubmitService,
		listSvc:     cfg.ListService,
		showSvc:     cfg.ShowService,
		outputSvc:   cfg.OutputService,
		validator:   validator.New(),
		tokenSecret: cfg.TokenSecret,
		now:         cfg.TimeNow,
		logger:      cfg.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/tasks", func(r chi.Router) {
		if len(h.tokenSecret) > 0 {
			r.Use(h.authenticate)
		}
		r.Post("/", h.submitTask)
		r.Get("/", h.listTasks)
		r.Get("/{id}", h.getTask)
		r.Get("/{id}/output", h.getTaskOutput)
	})

	return r, nil
}

type submitTaskRequest struct {
	Command *string `json:"command" validate:"required,max=65536"`
}

type submitTaskResponse struct {
	ID uint64 `json:"id"`
}

type listTasksQuery struct {
	Status string `validate:"omitempty,oneof=queued running finished failed"`
	Limit  int    `validate:"gte=0"`
	RunID  string `validate:"omitempty,alphanum"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h handler) submitTask(w http.ResponseWriter, r *http.Request) {
	var req submitTaskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "validation error: "+err.Error())
		return
	}

	id, err := h.submitSvc.Run(r.Context(), submit.Request{Command: *req.Command})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if subject, ok := SubjectFromContext(r.Context()); ok {
		h.logger.Infof("Task %d submitted by %s", id, subject)
	}

	respondJSON(w, http.StatusCreated, submitTaskResponse{ID: uint64(id)})
}

func (h handler) listTasks(w http.ResponseWriter, r *http.Request) {
	q := listTasksQuery{
		Status: r.URL.Query().Get("status"),
		RunID:  r.URL.Query().Get("run"),
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		q.Limit = limit
	}
	if err := h.validator.Struct(q); err != nil {
		respondError(w, http.StatusBadRequest, "validation error: "+err.Error())
		return
	}

	req := list.Request{RunID: q.RunID, Limit: q.Limit}
	if q.Status != "" {
		st, err := model.ParseTaskStatus(q.Status)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.StatusFilter = &st
	}

	tasks, err := h.listSvc.Run(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	res := make([]printer.TaskJSON, 0, len(tasks))
	for _, t := range tasks {
		res = append(res, printer.NewTaskJSON(t, false))
	}
	respondJSON(w, http.StatusOK, res)
}

func (h handler) getTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskIDParam(w, r)
	if !ok {
		return
	}

	t, err := h.showSvc.Run(r.Context(), show.Request{RunID: r.URL.Query().Get("run"), ID: id})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, printer.NewTaskJSON(*t, true))
}

func (h handler) getTaskOutput(w http.ResponseWriter, r *http.Request) {
	id, ok := taskIDParam(w, r)
	if !ok {
		return
	}

	out, err := h.outputSvc.Run(r.Context(), output.Request{RunID: r.URL.Query().Get("run"), ID: id})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, printer.NewOutputJSON(*out))
}

func taskIDParam(w http.ResponseWriter, r *http.Request) (model.TaskID, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid task ID")
		return 0, false
	}
	return model.TaskID(id), true
}

func (h handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrTaskFailed):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrNotValid):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Errorf("Request %s %s failed: %s", r.Method, r.URL.Path, err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		h.logger.WithValues(log.Kv{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request-id": middleware.GetReqID(r.Context()),
		}).Debugf("Request handled")
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}
