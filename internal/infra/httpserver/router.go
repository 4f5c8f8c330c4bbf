package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appanalysis "github.com/bryanwahyu/friendlens/internal/application/analysis"
	apphistory "github.com/bryanwahyu/friendlens/internal/application/history"
	domanalysis "github.com/bryanwahyu/friendlens/internal/domain/analysis"
	domhistory "github.com/bryanwahyu/friendlens/internal/domain/history"
	"github.com/bryanwahyu/friendlens/internal/middleware"
)

// Options bound the upload batch; zero values fall back to the original
// limits (20 files of 10 MiB each).
type Options struct {
	MaxImages     int
	MaxImageBytes int64
	CORSOrigins   []string
	HealthChecks  map[string]middleware.HealthChecker
}

type Router struct {
	analyzeSvc *appanalysis.Service
	historySvc *apphistory.Service
	opts       Options
}

func NewRouter(analyzeSvc *appanalysis.Service, historySvc *apphistory.Service, opts Options) http.Handler {
	if opts.MaxImages <= 0 {
		opts.MaxImages = 20
	}
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = 10 << 20
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	r := &Router{analyzeSvc: analyzeSvc, historySvc: historySvc, opts: opts}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", middleware.IdentityHeader},
	}))
	mux.Use(middleware.Logging)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.Identity)

	mux.Get("/health", middleware.HealthHandler(opts.HealthChecks))
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/api", func(rt chi.Router) {
		rt.Post("/login", r.wrap(r.handleLogin))
		rt.Post("/analyze", r.wrap(r.handleAnalyze))
		rt.Get("/history", r.wrap(r.handleHistoryList))
		rt.Get("/history/export", r.wrap(r.handleHistoryExport))
		rt.Get("/history/{id}", r.wrap(r.handleHistoryGet))
		rt.Delete("/history", r.wrap(r.handleHistoryDeleteAll))
		rt.Delete("/history/{id}", r.wrap(r.handleHistoryDeleteOne))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequestError marks validation failures that map to 400.
type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

// wrap maps domain errors to HTTP statuses; every failure body is
// {"error": message} and upstream statuses are forwarded verbatim.
func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		var insufficient *domanalysis.InsufficientInputError
		var upstream *domanalysis.UpstreamError
		var badReq *badRequestError
		switch {
		case errors.Is(err, domhistory.ErrUnauthenticated):
			writeError(w, http.StatusUnauthorized, err)
		case errors.Is(err, domhistory.ErrNotFound):
			writeError(w, http.StatusNotFound, err)
		case errors.As(err, &insufficient), errors.As(err, &badReq):
			writeError(w, http.StatusBadRequest, err)
		case errors.As(err, &upstream):
			status := upstream.Status
			if status < 100 {
				status = http.StatusBadGateway
			}
			writeError(w, status, upstream)
		case errors.Is(err, domanalysis.ErrNotConfigured):
			writeError(w, http.StatusInternalServerError, err)
		case errors.Is(err, domhistory.ErrCorrupt), errors.Is(err, domhistory.ErrRead), errors.Is(err, domhistory.ErrWrite):
			slog.Error("storage failure", "path", req.URL.Path, "error", err)
			writeError(w, http.StatusInternalServerError, err)
		default:
			slog.Error("request failed", "path", req.URL.Path, "error", err)
			writeError(w, http.StatusInternalServerError, err)
		}
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// POST /api/login
// Identity claiming only: echo the trimmed username, no credential check.
func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return &badRequestError{msg: "invalid request body"}
	}
	username := strings.TrimSpace(body.Username)
	if err := middleware.ValidateUsername(username); err != nil {
		return &badRequestError{msg: err.Error()}
	}
	writeJSON(w, http.StatusOK, map[string]string{"username": username})
	return nil
}

// POST /api/analyze
// Multipart field "images" carries the batch; identity via header.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	username := middleware.UsernameFromContext(req.Context())
	if username == "" {
		return domhistory.ErrUnauthenticated
	}

	images, err := r.readBatch(req)
	if err != nil {
		return err
	}

	middleware.IncrementAnalyses()
	res, err := r.analyzeSvc.Analyze(req.Context(), username, images)
	if err != nil {
		middleware.IncrementAnalysesFailed()
		return err
	}
	if !res.Persisted {
		slog.Error("analysis completed but history write failed",
			"username", username, "record", res.Record.ID, "error", res.PersistErr)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"text":      res.Text,
		"record":    res.Record,
		"persisted": res.Persisted,
	})
	return nil
}

// readBatch parses the multipart form into the in-memory image batch,
// preserving upload order. Oversize or non-image files reject the request.
func (r *Router) readBatch(req *http.Request) ([]domanalysis.Image, error) {
	limit := int64(r.opts.MaxImages)*r.opts.MaxImageBytes + (1 << 20)
	req.Body = http.MaxBytesReader(nil, req.Body, limit)
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		return nil, &badRequestError{msg: fmt.Sprintf("invalid multipart form: %v", err)}
	}
	if req.MultipartForm == nil || len(req.MultipartForm.File["images"]) == 0 {
		return nil, &badRequestError{msg: "no images uploaded"}
	}

	files := req.MultipartForm.File["images"]
	if len(files) > r.opts.MaxImages {
		return nil, &badRequestError{msg: fmt.Sprintf("too many images: %d (max %d)", len(files), r.opts.MaxImages)}
	}

	images := make([]domanalysis.Image, 0, len(files))
	for _, fh := range files {
		if fh.Size > r.opts.MaxImageBytes {
			return nil, &badRequestError{msg: fmt.Sprintf("image %s exceeds the %d byte limit", fh.Filename, r.opts.MaxImageBytes)}
		}
		contentType := fh.Header.Get("Content-Type")
		if err := middleware.ValidateImageContentType(contentType); err != nil {
			return nil, &badRequestError{msg: err.Error()}
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		images = append(images, domanalysis.Image{Data: data, ContentType: contentType})
	}
	return images, nil
}

// GET /api/history
func (r *Router) handleHistoryList(w http.ResponseWriter, req *http.Request) error {
	items, err := r.historySvc.List(req.Context(), middleware.UsernameFromContext(req.Context()))
	if err != nil {
		return err
	}
	if items == nil {
		items = []domhistory.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
	return nil
}

// GET /api/history/{id}
func (r *Router) handleHistoryGet(w http.ResponseWriter, req *http.Request) error {
	id := domhistory.RecordID(chi.URLParam(req, "id"))
	item, err := r.historySvc.Get(req.Context(), middleware.UsernameFromContext(req.Context()), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
	return nil
}

// GET /api/history/export
// Streams a downloadable JSON file for the caller's records.
func (r *Router) handleHistoryExport(w http.ResponseWriter, req *http.Request) error {
	username := middleware.UsernameFromContext(req.Context())
	data, err := r.historySvc.Export(req.Context(), username)
	if err != nil {
		return err
	}
	filename := fmt.Sprintf("history-%s.json", middleware.SanitizeFilename(username))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(data)
	return err
}

// DELETE /api/history
func (r *Router) handleHistoryDeleteAll(w http.ResponseWriter, req *http.Request) error {
	if err := r.historySvc.DeleteAll(req.Context(), middleware.UsernameFromContext(req.Context())); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// DELETE /api/history/{id}
func (r *Router) handleHistoryDeleteOne(w http.ResponseWriter, req *http.Request) error {
	id := domhistory.RecordID(chi.URLParam(req, "id"))
	if err := r.historySvc.DeleteOne(req.Context(), middleware.UsernameFromContext(req.Context()), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
