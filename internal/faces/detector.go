// Package faces wraps the external face-landmark capability: given one
// image it returns zero or more faces, each with a confidence score and
// an ordered set of normalized landmark points.
package faces

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/shmulike/face-parade/internal/domain"
	"github.com/shmulike/face-parade/internal/execx"
)

// Detector is the face-detection capability consumed by the analyze stage.
type Detector interface {
	Detect(ctx context.Context, img image.Image) (domain.Detection, error)
}

// scriptResponse is the JSON contract of the landmark script: either a
// detection payload or an error message, printed on stdout.
type scriptResponse struct {
	FaceCount  int                 `json:"faceCount"`
	Confidence float64             `json:"confidence"`
	Landmarks  [][]domain.Landmark `json:"landmarks"`
	Error      string              `json:"error"`
}

// ExecDetector runs a Python landmark script as a subprocess. The raster
// is written to a temporary JPEG, the script receives its path and prints
// one JSON object on stdout.
type ExecDetector struct {
	pythonPath string
	scriptPath string
	runner     execx.Runner
	mkdirTemp  func(dir, pattern string) (string, error)
	removeAll  func(path string) error
}

// NewExecDetector constructs the production detector.
func NewExecDetector(pythonPath, scriptPath string) *ExecDetector {
	return &ExecDetector{
		pythonPath: pythonPath,
		scriptPath: scriptPath,
		runner:     &execx.OSRunner{},
		mkdirTemp:  os.MkdirTemp,
		removeAll:  os.RemoveAll,
	}
}

// Detect runs the landmark script over one image and validates its output.
func (d *ExecDetector) Detect(ctx context.Context, img image.Image) (domain.Detection, error) {
	tempDir, err := d.mkdirTemp("", "face-parade-detect-*")
	if err != nil {
		return domain.Detection{}, fmt.Errorf("create detect workspace: %w", err)
	}
	defer func() { _ = d.removeAll(tempDir) }()

	imgPath := filepath.Join(tempDir, "input.jpg")
	if err := writeJPEG(imgPath, img); err != nil {
		return domain.Detection{}, fmt.Errorf("stage detect input: %w", err)
	}

	result, runErr := d.runner.Run(ctx, d.pythonPath, d.scriptPath, imgPath)

	var resp scriptResponse
	if jsonErr := json.Unmarshal([]byte(result.Stdout), &resp); jsonErr != nil {
		if runErr != nil {
			return domain.Detection{}, fmt.Errorf("%w: landmark script failed (exit=%d): %v",
				domain.ErrCapability, result.ExitCode, runErr)
		}
		return domain.Detection{}, fmt.Errorf("%w: landmark script printed malformed JSON: %v",
			domain.ErrCapability, jsonErr)
	}
	if resp.Error != "" {
		return domain.Detection{}, fmt.Errorf("%w: %s", domain.ErrCapability, resp.Error)
	}
	if runErr != nil {
		return domain.Detection{}, fmt.Errorf("%w: landmark script failed (exit=%d): %v",
			domain.ErrCapability, result.ExitCode, runErr)
	}

	return normalize(resp)
}

// normalize enforces the detection invariants: confidence within [0,1]
// and one landmark set per detected face.
func normalize(resp scriptResponse) (domain.Detection, error) {
	if resp.FaceCount < 0 {
		return domain.Detection{}, fmt.Errorf("%w: negative face count %d", domain.ErrCapability, resp.FaceCount)
	}
	if len(resp.Landmarks) != resp.FaceCount {
		return domain.Detection{}, fmt.Errorf("%w: %d landmark sets for %d faces",
			domain.ErrCapability, len(resp.Landmarks), resp.FaceCount)
	}

	confidence := resp.Confidence
	if resp.FaceCount == 0 {
		confidence = 0
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return domain.Detection{
		FaceCount:  resp.FaceCount,
		Confidence: confidence,
		Landmarks:  resp.Landmarks,
	}, nil
}

// writeJPEG encodes one raster to disk for the script to consume.
func writeJPEG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 92}); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// NewDetectorForTests constructs a detector with injectable dependencies.
func NewDetectorForTests(
	pythonPath string,
	scriptPath string,
	runner execx.Runner,
	mkdirTemp func(dir, pattern string) (string, error),
	removeAll func(path string) error,
) *ExecDetector {
	return &ExecDetector{
		pythonPath: pythonPath,
		scriptPath: scriptPath,
		runner:     runner,
		mkdirTemp:  mkdirTemp,
		removeAll:  removeAll,
	}
}
