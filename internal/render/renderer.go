// Package render assembles a job's images into an ordered frame
// sequence and hands it to the video-encoding capability. Validation is
// synchronous; frame production and encoding run in the background with
// progress published through the job store.
package render

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shmulike/face-parade/internal/domain"
	"github.com/shmulike/face-parade/internal/jobs"
)

// Progress split between the two background phases.
const (
	compositeShare = 60
	encodeShare    = 40
)

// Renderer is the render stage.
type Renderer struct {
	store   *jobs.Store
	encoder Encoder
	workDir string
	log     *slog.Logger
}

// New constructs the render stage. Finished artifacts are written under
// workDir; frame staging uses per-job temporary directories below it.
func New(store *jobs.Store, encoder Encoder, workDir string, log *slog.Logger) *Renderer {
	return &Renderer{
		store:   store,
		encoder: encoder,
		workDir: workDir,
		log:     log,
	}
}

// Start validates the request, transitions the job to PROCESSING, and
// returns immediately. order defines the frame sequence; identifiers may
// repeat or omit images relative to import order.
func (r *Renderer) Start(jobID string, order []string, opts domain.RenderOptions) error {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return err
	}
	if len(order) == 0 {
		return domain.Invalid("empty frame order")
	}
	if err := r.store.ValidateOrder(jobID, order); err != nil {
		return err
	}
	if err := r.store.BeginRender(jobID); err != nil {
		return err
	}

	r.log.Info("render accepted", "jobId", jobID, "frames", len(order),
		"fps", opts.FPS, "format", opts.Format, "landmarks", opts.IncludeLandmarks)
	go r.run(jobID, order, opts)
	return nil
}

// run is the per-job background task. Every outcome lands the job in a
// terminal state through the store; the original caller may be gone.
func (r *Renderer) run(jobID string, order []string, opts domain.RenderOptions) {
	ctx := context.Background()

	framesDir, err := os.MkdirTemp(r.workDir, "frames-*")
	if err != nil {
		r.fail(jobID, fmt.Sprintf("create frame workspace: %v", err))
		return
	}
	defer func() { _ = os.RemoveAll(framesDir) }()

	total := len(order)
	for i, imageID := range order {
		r.store.SetProgress(jobID, i*compositeShare/total,
			fmt.Sprintf("compositing frame %d/%d", i+1, total))

		frame, err := r.composeOne(jobID, imageID, opts)
		if err != nil {
			r.fail(jobID, fmt.Sprintf("compose frame %d: %v", i+1, err))
			return
		}
		if err := writeJPEG(filepath.Join(framesDir, fmt.Sprintf(framePattern, i)), frame); err != nil {
			r.fail(jobID, fmt.Sprintf("stage frame %d: %v", i+1, err))
			return
		}
	}

	r.store.SetProgress(jobID, compositeShare, "encoding video")
	outputPath := filepath.Join(r.workDir, fmt.Sprintf("parade-%s.%s", jobID, opts.Format))

	err = r.encoder.Encode(ctx, EncodeRequest{
		FramesDir:  framesDir,
		FrameCount: total,
		OutputPath: outputPath,
		Options:    opts,
		OnProgress: func(percent int) {
			r.store.SetProgress(jobID, compositeShare+percent*encodeShare/100, "encoding video")
		},
	})
	if err != nil {
		r.fail(jobID, err.Error())
		return
	}

	if err := r.store.Complete(jobID, domain.RenderResult{Path: outputPath, FrameCount: total}); err != nil {
		r.log.Error("publish render result", "jobId", jobID, "error", err)
		return
	}
	r.log.Info("render completed", "jobId", jobID, "frames", total, "output", outputPath)
}

// composeOne produces one letterboxed frame, overlaying landmarks when
// requested and available. An image without analysis or without faces
// renders unannotated rather than failing the job.
func (r *Renderer) composeOne(jobID, imageID string, opts domain.RenderOptions) (image.Image, error) {
	raster, err := r.store.Raster(jobID, imageID)
	if err != nil {
		return nil, err
	}

	frame, content := composeFrame(raster, opts.Width, opts.Height)
	if !opts.IncludeLandmarks {
		return frame, nil
	}

	det, ok, err := r.store.Detection(jobID, imageID)
	if err != nil || !ok || len(det.Landmarks) == 0 {
		if err != nil {
			r.log.Warn("landmark lookup failed, rendering unannotated",
				"jobId", jobID, "imageId", imageID, "error", err)
		}
		return frame, nil
	}

	drawLandmarks(frame, content, det.Landmarks)
	return frame, nil
}

// fail lands the job in ERROR with a captured message.
func (r *Renderer) fail(jobID, msg string) {
	r.log.Error("render failed", "jobId", jobID, "error", msg)
	if err := r.store.Fail(jobID, msg); err != nil {
		r.log.Error("publish render failure", "jobId", jobID, "error", err)
	}
}
