// Package api binds the pipeline operations to HTTP. The core is
// transport-agnostic; this layer only translates payloads and maps the
// error taxonomy onto status codes.
package api

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/shmulike/face-parade/internal/analyze"
	"github.com/shmulike/face-parade/internal/domain"
	"github.com/shmulike/face-parade/internal/importer"
	"github.com/shmulike/face-parade/internal/jobs"
	"github.com/shmulike/face-parade/internal/render"
)

// Server exposes the import/analyze/render/progress operations over HTTP.
type Server struct {
	echo     *echo.Echo
	store    *jobs.Store
	importer *importer.Importer
	analyzer *analyze.Analyzer
	renderer *render.Renderer
	log      *slog.Logger
}

// New wires the stages into an echo instance with routes registered.
func New(store *jobs.Store, imp *importer.Importer, an *analyze.Analyzer, rd *render.Renderer, log *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:     e,
		store:    store,
		importer: imp,
		analyzer: an,
		renderer: rd,
		log:      log,
	}

	e.POST("/api/import", s.handleImport)
	e.POST("/api/analyze", s.handleAnalyze)
	e.POST("/api/render", s.handleRender)
	e.GET("/api/progress", s.handleProgress)
	e.GET("/api/result", s.handleResult)
	e.GET("/api/thumb", s.handleThumb)

	return s
}

// Start serves HTTP on addr until the listener fails or is closed.
func (s *Server) Start(addr string) error {
	s.log.Info("listening", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown stops the HTTP listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routed handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// analyzeRequest is the analyze operation payload.
type analyzeRequest struct {
	JobID   string   `json:"jobId"`
	Order   []string `json:"order"`
	Options struct {
		MinConfidence *float64 `json:"minConfidence"`
	} `json:"options"`
}

// renderRequest is the render operation payload.
type renderRequest struct {
	JobID   string               `json:"jobId"`
	Order   []string             `json:"order"`
	Options domain.RenderOptions `json:"options"`
}

// progressResponse is the polled progress payload.
type progressResponse struct {
	Status    domain.JobState `json:"status"`
	Progress  int             `json:"progress"`
	Step      string          `json:"step"`
	ResultURL string          `json:"resultUrl,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// handleImport accepts a multipart batch under the "files" field.
func (s *Server) handleImport(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return s.fail(c, domain.Invalid("multipart form required"))
	}

	var files []importer.File
	for _, header := range form.File["files"] {
		f, err := header.Open()
		if err != nil {
			return s.fail(c, domain.Invalid("unreadable upload "+header.Filename))
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return s.fail(c, domain.Invalid("unreadable upload "+header.Filename))
		}
		files = append(files, importer.File{Filename: header.Filename, Data: data})
	}

	res, err := s.importer.Import(files)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// handleAnalyze runs the synchronous analyze stage.
func (s *Server) handleAnalyze(c echo.Context) error {
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, domain.Invalid("malformed JSON body"))
	}

	minConfidence := analyze.DefaultMinConfidence
	if req.Options.MinConfidence != nil {
		minConfidence = *req.Options.MinConfidence
	}

	results, err := s.analyzer.Analyze(c.Request().Context(), req.JobID, req.Order, analyze.Options{
		MinConfidence: minConfidence,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"results": results})
}

// handleRender validates and accepts an asynchronous render.
func (s *Server) handleRender(c echo.Context) error {
	var req renderRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, domain.Invalid("malformed JSON body"))
	}

	if err := s.renderer.Start(req.JobID, req.Order, req.Options); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"accepted": true, "jobId": req.JobID})
}

// handleProgress returns the job's poll-safe progress snapshot.
func (s *Server) handleProgress(c echo.Context) error {
	jobID := c.QueryParam("jobId")
	if jobID == "" {
		return s.fail(c, domain.Invalid("missing jobId"))
	}

	snap, err := s.store.Progress(jobID)
	if err != nil {
		return s.fail(c, err)
	}

	resp := progressResponse{
		Status:   snap.State,
		Progress: snap.Progress,
		Step:     snap.Step,
		Error:    snap.Error,
	}
	if snap.State == domain.JobStateCompleted {
		resp.ResultURL = "/api/result?jobId=" + jobID
	}
	return c.JSON(http.StatusOK, resp)
}

// handleResult serves the finished artifact of a completed job.
func (s *Server) handleResult(c echo.Context) error {
	jobID := c.QueryParam("jobId")
	if jobID == "" {
		return s.fail(c, domain.Invalid("missing jobId"))
	}

	snap, err := s.store.Progress(jobID)
	if err != nil {
		return s.fail(c, err)
	}
	if snap.State != domain.JobStateCompleted || snap.Result == nil {
		return s.fail(c, domain.ErrConflict)
	}
	return c.Attachment(snap.Result.Path, "parade."+pathExt(snap.Result.Path))
}

// handleThumb serves a square JPEG preview of one imported image.
// Thumbnails are derived from immutable stored rasters, so clients may
// cache them indefinitely.
func (s *Server) handleThumb(c echo.Context) error {
	jobID := c.QueryParam("jobId")
	imageID := c.QueryParam("id")
	if jobID == "" || imageID == "" {
		return s.fail(c, domain.Invalid("missing jobId or id"))
	}

	raster, err := s.store.Raster(jobID, imageID)
	if err != nil {
		return s.fail(c, err)
	}

	var buf bytes.Buffer
	thumb := render.Thumbnail(raster, render.ThumbnailSize)
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 80}); err != nil {
		return s.fail(c, err)
	}

	c.Response().Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	return c.Blob(http.StatusOK, "image/jpeg", buf.Bytes())
}

// pathExt returns the artifact extension without the dot.
func pathExt(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			return path[i+1:]
		}
	}
	return "bin"
}

// fail maps taxonomy errors onto HTTP status codes.
func (s *Server) fail(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}
