// Package render draws detection overlays: bounding boxes with colored
// label tags on top of the analyzed source image.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/redharvest/redharvest-go/internal/detection"
	"github.com/redharvest/redharvest-go/internal/errors"
	"github.com/redharvest/redharvest-go/internal/stage"
)

const (
	strokeWidth  = 3
	labelHeight  = 25
	labelPadding = 10
	textInsetX   = 5
	textInsetY   = 7
)

var labelTextColor = color.RGBA{255, 255, 255, 255}

// Decode reads an image from r. Undecodable input returns an explicit
// image-decode error so callers can abort the analysis flow cleanly.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.New(err).
			Component("render").
			Category(errors.CategoryImageDecode).
			Build()
	}
	return img, nil
}

// DecodeBytes decodes an in-memory image.
func DecodeBytes(data []byte) (image.Image, error) {
	return Decode(bytes.NewReader(data))
}

// Overlay draws every detection over the source image, in input order, and
// returns the composed surface. The surface has the source's native pixel
// dimensions. Later detections draw over earlier ones; zero detections
// yield a bare copy of the image.
func Overlay(src image.Image, detections []detection.Detection) *image.RGBA {
	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(out, out.Bounds(), src, bounds.Min, draw.Src)

	for i := range detections {
		drawDetection(out, &detections[i], width, height)
	}

	return out
}

// EncodePNG writes the rendered surface as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode overlay: %w", err)
	}
	return nil
}

func drawDetection(img *image.RGBA, det *detection.Detection, width, height int) {
	c := parseHexColor(det.Stage.Color())

	x := int(det.BBox.X1() * float64(width))
	y := int(det.BBox.Y1() * float64(height))
	w := int((det.BBox.X2() - det.BBox.X1()) * float64(width))
	h := int((det.BBox.Y2() - det.BBox.Y1()) * float64(height))

	strokeRect(img, x, y, w, h, c)

	label := det.StageAr
	if label == "" {
		label = stage.DisplayLabel(det.Stage.String())
	}

	textWidth := measureString(label)
	fillRect(img, x, y-labelHeight, textWidth+labelPadding, labelHeight, c)
	drawString(img, x+textInsetX, y-textInsetY, label, labelTextColor)
}

// strokeRect draws a rectangle outline of strokeWidth pixels, inset into
// the rectangle the way canvas strokes center on the path.
func strokeRect(img *image.RGBA, x, y, w, h int, c color.RGBA) {
	fillRect(img, x, y, w, strokeWidth, c)               // top
	fillRect(img, x, y+h-strokeWidth, w, strokeWidth, c) // bottom
	fillRect(img, x, y, strokeWidth, h, c)               // left
	fillRect(img, x+w-strokeWidth, y, strokeWidth, h, c) // right
}

// fillRect fills the given rectangle, clipped to the image bounds.
func fillRect(img *image.RGBA, x, y, w, h int, c color.RGBA) {
	r := image.Rect(x, y, x+w, y+h).Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(img, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
}

// measureString returns the pixel width of s in the label face.
func measureString(s string) int {
	d := font.Drawer{Face: basicfont.Face7x13}
	return d.MeasureString(s).Ceil()
}

// drawString renders s with its baseline at (x, y).
func drawString(img *image.RGBA, x, y int, s string, c color.RGBA) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// parseHexColor converts "#rrggbb" to an RGBA color. Malformed values fall
// back to the stage fallback color's gray.
func parseHexColor(s string) color.RGBA {
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{0x6b, 0x72, 0x80, 0xff}
	}
	return color.RGBA{r, g, b, 0xff}
}
