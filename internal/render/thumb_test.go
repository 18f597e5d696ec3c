package render

import (
	"image"
	"image/color"
	"image/draw"
	"testing"
)

// TestThumbnailGeometry checks the output is a filled square of the
// requested size.
func TestThumbnailGeometry(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 120, 40))
	fill := color.RGBA{R: 200, G: 40, B: 40, A: 255}
	draw.Draw(src, src.Bounds(), image.NewUniform(fill), image.Point{}, draw.Src)

	thumb := Thumbnail(src, 32)
	if thumb.Bounds().Dx() != 32 || thumb.Bounds().Dy() != 32 {
		t.Fatalf("thumbnail bounds = %v, want 32x32", thumb.Bounds())
	}
	if got := thumb.RGBAAt(16, 16); got != fill {
		t.Fatalf("center pixel = %v, want %v", got, fill)
	}
}

// TestThumbnailCropsCenterSquare checks the centered square region of a
// wide source is what gets scaled, not the full letterboxed image.
func TestThumbnailCropsCenterSquare(t *testing.T) {
	edge := color.RGBA{R: 0, G: 0, B: 200, A: 255}
	center := color.RGBA{R: 0, G: 200, B: 0, A: 255}

	src := image.NewRGBA(image.Rect(0, 0, 120, 40))
	draw.Draw(src, src.Bounds(), image.NewUniform(edge), image.Point{}, draw.Src)
	draw.Draw(src, image.Rect(40, 0, 80, 40), image.NewUniform(center), image.Point{}, draw.Src)

	thumb := Thumbnail(src, 40)
	for _, pt := range []image.Point{{20, 20}, {10, 10}, {30, 30}} {
		if got := thumb.RGBAAt(pt.X, pt.Y); got != center {
			t.Fatalf("pixel %v = %v, want center color %v", pt, got, center)
		}
	}
}
