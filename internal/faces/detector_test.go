package faces

import (
	"context"
	"errors"
	"image"
	"os"
	"testing"

	"github.com/shmulike/face-parade/internal/domain"
	"github.com/shmulike/face-parade/internal/execx"
)

// fakeRunner simulates landmark script execution.
type fakeRunner struct {
	run func(ctx context.Context, name string, args ...string) (execx.Result, error)
}

// Run delegates to injected behavior.
func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (execx.Result, error) {
	if f.run == nil {
		return execx.Result{}, nil
	}
	return f.run(ctx, name, args...)
}

// testImage builds a small raster for detector tests.
func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 8, 8))
}

// TestExecDetectorParsesScriptOutput checks the happy path contract.
func TestExecDetectorParsesScriptOutput(t *testing.T) {
	var gotName string
	var gotArgs []string
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (execx.Result, error) {
			gotName = name
			gotArgs = append([]string{}, args...)
			if _, err := os.Stat(args[1]); err != nil {
				t.Fatalf("staged image missing: %v", err)
			}
			return execx.Result{
				Stdout: `{"faceCount":1,"confidence":0.87,"landmarks":[[{"x":0.5,"y":0.4,"z":0.01}]]}`,
			}, nil
		},
	}

	d := NewDetectorForTests("python3", "detect_face.py", runner, os.MkdirTemp, os.RemoveAll)
	det, err := d.Detect(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	if gotName != "python3" || gotArgs[0] != "detect_face.py" {
		t.Fatalf("command = %s %v", gotName, gotArgs)
	}
	if det.FaceCount != 1 || det.Confidence != 0.87 {
		t.Fatalf("detection = %+v", det)
	}
	if len(det.Landmarks) != 1 || len(det.Landmarks[0]) != 1 {
		t.Fatalf("landmarks = %+v", det.Landmarks)
	}
	if det.Landmarks[0][0].Y != 0.4 {
		t.Fatalf("landmark y = %v, want 0.4", det.Landmarks[0][0].Y)
	}
}

// TestExecDetectorScriptError verifies the JSON error contract surfaces
// as a capability failure.
func TestExecDetectorScriptError(t *testing.T) {
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (execx.Result, error) {
			return execx.Result{
				Stdout:   `{"error":"model file missing"}`,
				ExitCode: 1,
			}, errors.New("exit status 1")
		},
	}

	d := NewDetectorForTests("python3", "detect_face.py", runner, os.MkdirTemp, os.RemoveAll)
	_, err := d.Detect(context.Background(), testImage())
	if !errors.Is(err, domain.ErrCapability) {
		t.Fatalf("err = %v, want capability failure", err)
	}
}

// TestExecDetectorMalformedOutput verifies garbage stdout is rejected.
func TestExecDetectorMalformedOutput(t *testing.T) {
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (execx.Result, error) {
			return execx.Result{Stdout: "Segmentation fault"}, nil
		},
	}

	d := NewDetectorForTests("python3", "detect_face.py", runner, os.MkdirTemp, os.RemoveAll)
	_, err := d.Detect(context.Background(), testImage())
	if !errors.Is(err, domain.ErrCapability) {
		t.Fatalf("err = %v, want capability failure", err)
	}
}

// TestNormalizeEnforcesInvariants covers clamping and landmark arity.
func TestNormalizeEnforcesInvariants(t *testing.T) {
	if _, err := normalize(scriptResponse{FaceCount: 2, Landmarks: [][]domain.Landmark{{}}}); !errors.Is(err, domain.ErrCapability) {
		t.Fatalf("landmark arity mismatch err = %v", err)
	}

	det, err := normalize(scriptResponse{FaceCount: 0, Confidence: 0.9, Landmarks: nil})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if det.Confidence != 0 {
		t.Fatalf("zero-face confidence = %v, want 0", det.Confidence)
	}

	det, err = normalize(scriptResponse{FaceCount: 1, Confidence: 1.5, Landmarks: [][]domain.Landmark{{}}})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if det.Confidence != 1 {
		t.Fatalf("confidence = %v, want clamped to 1", det.Confidence)
	}
}
