// Command face-parade serves the photo-to-video parade pipeline:
// import a batch of photographs, analyze faces, render an ordered video,
// and poll progress over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/shmulike/face-parade/internal/analyze"
	"github.com/shmulike/face-parade/internal/api"
	"github.com/shmulike/face-parade/internal/faces"
	"github.com/shmulike/face-parade/internal/importer"
	"github.com/shmulike/face-parade/internal/jobs"
	"github.com/shmulike/face-parade/internal/logging"
	"github.com/shmulike/face-parade/internal/render"
)

func main() {
	var (
		addr         = flag.String("addr", ":8080", "HTTP listen address")
		workDir      = flag.String("workdir", filepath.Join(os.TempDir(), "face-parade"), "directory for staged frames and finished videos")
		pythonPath   = flag.String("python", "python3", "python interpreter for the landmark script")
		detectScript = flag.String("detect-script", "scripts/detect_face.py", "face landmark detection script")
		ffmpegPath   = flag.String("ffmpeg", "ffmpeg", "ffmpeg binary for video encoding")
		workers      = flag.Int("workers", 0, "analysis worker pool size (0 = CPU count)")
		logFormat    = flag.String("log-format", "json", "log format: json or text")
		logLevel     = flag.String("log-level", "info", "log level: debug, info, warn, error")
	)
	flag.Parse()

	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(*logLevel),
		Format: *logFormat,
	})

	if err := os.MkdirAll(*workDir, 0o755); err != nil {
		log.Error("create work directory", "dir", *workDir, "error", err)
		os.Exit(1)
	}

	// Missing tools are reported at startup instead of on the first job.
	if err := render.CheckTool(*ffmpegPath); err != nil {
		log.Warn("encoding unavailable", "error", err)
	}
	if err := render.CheckTool(*pythonPath); err != nil {
		log.Warn("face detection unavailable", "error", err)
	}
	if _, err := os.Stat(*detectScript); err != nil {
		log.Warn("landmark script missing", "path", *detectScript, "error", err)
	}

	store := jobs.NewStore()
	detector := faces.NewExecDetector(*pythonPath, *detectScript)
	encoder := render.NewFFmpegEncoder(*ffmpegPath)

	server := api.New(
		store,
		importer.New(store, log),
		analyze.New(store, detector, *workers, log),
		render.New(store, encoder, *workDir, log),
		log,
	)

	go func() {
		if err := server.Start(*addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("shutdown", "error", err)
	}
}
