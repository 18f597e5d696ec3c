package render

import (
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"os"

	xdraw "golang.org/x/image/draw"

	"github.com/shmulike/face-parade/internal/domain"
)

// landmarkColor is the overlay dot color for composited face points.
var landmarkColor = color.RGBA{R: 0, G: 230, B: 118, A: 255}

// composeFrame scales the source raster to fit the requested geometry,
// letterboxed on black. It returns the frame and the content rectangle
// the source was drawn into, which landmark denormalization needs.
func composeFrame(src image.Image, width, height int) (*image.RGBA, image.Rectangle) {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.Black, image.Point{}, draw.Src)

	sb := src.Bounds()
	scaleX := float64(width) / float64(sb.Dx())
	scaleY := float64(height) / float64(sb.Dy())
	scale := scaleX
	if scaleY < scale {
		scale = scaleY
	}

	w := int(float64(sb.Dx())*scale + 0.5)
	h := int(float64(sb.Dy())*scale + 0.5)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	if w > width {
		w = width
	}
	if h > height {
		h = height
	}

	content := image.Rect(0, 0, w, h).Add(image.Pt((width-w)/2, (height-h)/2))
	xdraw.CatmullRom.Scale(dst, content, src, sb, xdraw.Src, nil)
	return dst, content
}

// drawLandmarks composites denormalized landmark dots onto the frame.
// Points are normalized to the source image, so they map into the
// letterboxed content rectangle. Out-of-range points are skipped.
func drawLandmarks(frame *image.RGBA, content image.Rectangle, sets [][]domain.Landmark) {
	for _, set := range sets {
		for _, p := range set {
			if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
				continue
			}
			px := content.Min.X + int(p.X*float64(content.Dx()))
			py := content.Min.Y + int(p.Y*float64(content.Dy()))
			dot(frame, px, py)
		}
	}
}

// dot paints a small square marker centered on (x, y).
func dot(frame *image.RGBA, x, y int) {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			pt := image.Pt(x+dx, y+dy)
			if pt.In(frame.Bounds()) {
				frame.SetRGBA(pt.X, pt.Y, landmarkColor)
			}
		}
	}
}

// writeJPEG stores one finished frame for the encoder to consume.
func writeJPEG(path string, frame image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, frame, &jpeg.Options{Quality: 92}); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
