// Package importer validates and registers a batch of uploaded
// photographs as a new job. It is intentionally cheap and synchronous:
// decode-validate only, no detection or encoding work.
package importer

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"

	// Supported upload formats, registered for image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/shmulike/face-parade/internal/domain"
	"github.com/shmulike/face-parade/internal/jobs"
)

// File is one raw upload payload.
type File struct {
	Filename string
	Data     []byte
}

// Result reports the created job and its image identifiers in input order.
type Result struct {
	JobID  string          `json:"jobId"`
	Images []jobs.ImageRef `json:"images"`
}

// Importer is the import stage. One call creates one job.
type Importer struct {
	store *jobs.Store
	log   *slog.Logger
}

// New constructs the import stage over the given store.
func New(store *jobs.Store, log *slog.Logger) *Importer {
	return &Importer{store: store, log: log}
}

// Import decodes every payload and registers them under a fresh job.
// The batch is all-or-nothing: an empty batch or a single undecodable
// payload rejects the whole call with ErrInvalidInput and no job is
// created.
func (i *Importer) Import(files []File) (Result, error) {
	if len(files) == 0 {
		return Result{}, domain.Invalid("empty image batch")
	}

	decoded := make([]jobs.NewImage, 0, len(files))
	for _, f := range files {
		if f.Filename == "" {
			return Result{}, domain.Invalid("payload without filename")
		}

		img, format, err := image.Decode(bytes.NewReader(f.Data))
		if err != nil {
			return Result{}, fmt.Errorf("%w: cannot decode %q: %v", domain.ErrInvalidInput, f.Filename, err)
		}

		i.log.Debug("decoded upload", "filename", f.Filename, "format", format,
			"width", img.Bounds().Dx(), "height", img.Bounds().Dy())
		decoded = append(decoded, jobs.NewImage{Filename: f.Filename, Raster: img})
	}

	jobID, refs := i.store.Create(decoded)
	i.log.Info("imported batch", "jobId", jobID, "images", len(refs))

	return Result{JobID: jobID, Images: refs}, nil
}
