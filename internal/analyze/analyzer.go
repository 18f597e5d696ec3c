// Package analyze runs face detection over a job's images and applies
// the flagging policy. The stage is synchronous for the caller and
// bounded-parallel internally.
package analyze

import (
	"context"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/shmulike/face-parade/internal/domain"
	"github.com/shmulike/face-parade/internal/faces"
	"github.com/shmulike/face-parade/internal/jobs"
)

// DefaultMinConfidence is applied when the caller supplies no threshold.
const DefaultMinConfidence = 0.5

// Options tunes one analysis call.
type Options struct {
	MinConfidence float64
}

// Analyzer is the analyze stage.
type Analyzer struct {
	store    *jobs.Store
	detector faces.Detector
	workers  int
	log      *slog.Logger
}

// New constructs the analyze stage. workers bounds concurrent detector
// invocations; values below one fall back to the CPU count.
func New(store *jobs.Store, detector faces.Detector, workers int, log *slog.Logger) *Analyzer {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Analyzer{
		store:    store,
		detector: detector,
		workers:  workers,
		log:      log,
	}
}

// Analyze detects faces in the requested images and returns one result
// per identifier, preserving request order. Detection runs once per
// image and is cached; re-analysis with a different threshold only
// recomputes flagging. A single image's detection failure degrades to a
// flagged placeholder result and never fails the batch.
func (a *Analyzer) Analyze(ctx context.Context, jobID string, order []string, opts Options) ([]domain.AnalysisResult, error) {
	if opts.MinConfidence < 0 || opts.MinConfidence > 1 {
		return nil, domain.Invalid("minConfidence must be within [0,1]")
	}
	if len(order) == 0 {
		return nil, domain.Invalid("empty image order")
	}
	if err := a.store.ValidateOrder(jobID, order); err != nil {
		return nil, err
	}

	results := make([]domain.AnalysisResult, len(order))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, imageID := range order {
		i, imageID := i, imageID
		g.Go(func() error {
			res, err := a.analyzeOne(gctx, jobID, imageID, opts.MinConfidence)
			if err != nil {
				return err
			}
			results[i] = res
			return a.store.SetAnalysis(jobID, imageID, res)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	flagged := 0
	for _, res := range results {
		if res.Flagged {
			flagged++
		}
	}
	a.log.Info("analyzed batch", "jobId", jobID, "images", len(results), "flagged", flagged)

	return results, nil
}

// analyzeOne produces one image's result, reusing a cached detection
// when present and degrading on capability failure.
func (a *Analyzer) analyzeOne(ctx context.Context, jobID, imageID string, minConfidence float64) (domain.AnalysisResult, error) {
	det, cached, err := a.store.Detection(jobID, imageID)
	if err != nil {
		return domain.AnalysisResult{}, err
	}

	if !cached {
		raster, err := a.store.Raster(jobID, imageID)
		if err != nil {
			return domain.AnalysisResult{}, err
		}

		det, err = a.detector.Detect(ctx, raster)
		if err != nil {
			a.log.Warn("detection failed, degrading image", "jobId", jobID, "imageId", imageID, "error", err)
			return domain.AnalysisResult{
				ID:      imageID,
				Flagged: true,
				Reason:  domain.FlagNoFace,
				Note:    err.Error(),
			}, nil
		}
		if err := a.store.SetDetection(jobID, imageID, det); err != nil {
			return domain.AnalysisResult{}, err
		}
	}

	flagged, reason := domain.Classify(det.FaceCount, det.Confidence, minConfidence)
	return domain.AnalysisResult{
		ID:         imageID,
		FaceCount:  det.FaceCount,
		Confidence: det.Confidence,
		Landmarks:  det.Landmarks,
		Flagged:    flagged,
		Reason:     reason,
	}, nil
}
