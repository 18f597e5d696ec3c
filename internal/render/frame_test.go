package render

import (
	"image"
	"testing"

	"github.com/shmulike/face-parade/internal/domain"
)

// TestComposeFrameLetterboxesWideSource checks geometry for a source
// wider than the target frame.
func TestComposeFrameLetterboxesWideSource(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	frame, content := composeFrame(src, 100, 100)

	if frame.Bounds().Dx() != 100 || frame.Bounds().Dy() != 100 {
		t.Fatalf("frame bounds = %v", frame.Bounds())
	}
	if content.Dx() != 100 || content.Dy() != 50 {
		t.Fatalf("content = %v, want 100x50", content)
	}
	if content.Min.Y != 25 {
		t.Fatalf("content offset = %v, want vertically centered", content.Min)
	}
}

// TestComposeFrameTallTarget checks the portrait target path.
func TestComposeFrameTallTarget(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 100))
	_, content := composeFrame(src, 108, 192)

	if content.Dx() != 108 || content.Dy() != 108 {
		t.Fatalf("content = %v, want 108x108", content)
	}
	if content.Min.X != 0 || content.Min.Y != 42 {
		t.Fatalf("content offset = %v", content.Min)
	}
}

// TestDrawLandmarksDenormalizesIntoContent verifies pixel mapping and
// that out-of-range points are skipped rather than failing the frame.
func TestDrawLandmarksDenormalizesIntoContent(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 100, 100))
	content := image.Rect(10, 20, 90, 80)

	drawLandmarks(frame, content, [][]domain.Landmark{{
		{X: 0.5, Y: 0.5},
		{X: 2.0, Y: 0.5}, // out of range, skipped
	}})

	// Center of content: (10 + 0.5*80, 20 + 0.5*60) = (50, 50).
	if frame.RGBAAt(50, 50) != landmarkColor {
		t.Fatalf("center pixel = %v, want landmark color", frame.RGBAAt(50, 50))
	}

	// No stray marker outside the content rect's right edge region.
	if frame.RGBAAt(99, 50) == landmarkColor {
		t.Fatal("out-of-range landmark was drawn")
	}
}
