package render

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// ThumbnailSize is the square edge length of served preview thumbnails.
const ThumbnailSize = 300

// Thumbnail downscales a raster into a size x size square, cropping the
// centered square region of the source so the preview fills the frame
// without distortion.
func Thumbnail(src image.Image, size int) *image.RGBA {
	sb := src.Bounds()
	side := sb.Dx()
	if sb.Dy() < side {
		side = sb.Dy()
	}
	crop := image.Rect(0, 0, side, side).
		Add(sb.Min).
		Add(image.Pt((sb.Dx()-side)/2, (sb.Dy()-side)/2))

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, xdraw.Src, nil)
	return dst
}
