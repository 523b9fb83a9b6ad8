package render

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redharvest/redharvest-go/internal/detection"
	"github.com/redharvest/redharvest-go/internal/errors"
	"github.com/redharvest/redharvest-go/internal/stage"
)

var background = color.RGBA{10, 20, 30, 255}

func solidImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, background)
		}
	}
	return img
}

func TestOverlayZeroDetections(t *testing.T) {
	src := solidImage(50, 40)
	out := Overlay(src, nil)

	require.Equal(t, 50, out.Bounds().Dx())
	require.Equal(t, 40, out.Bounds().Dy())
	for y := 0; y < 40; y++ {
		for x := 0; x < 50; x++ {
			require.Equal(t, background, out.RGBAAt(x, y), "pixel (%d,%d) must be untouched", x, y)
		}
	}
}

func TestOverlaySingleDetectionGeometry(t *testing.T) {
	// Maturity box covering 40% x 50% of a 100x100 surface.
	src := solidImage(100, 100)
	det := detection.Detection{
		Stage:      stage.Maturity,
		Confidence: 0.92,
		BBox:       detection.BBox{0.1, 0.1, 0.5, 0.6},
	}

	out := Overlay(src, []detection.Detection{det})

	maturity := parseHexColor(stage.Maturity.Color())

	// Rectangle spans (10,10) to (50,60): corners carry the stroke color.
	assert.Equal(t, maturity, out.RGBAAt(10, 10), "top-left corner")
	assert.Equal(t, maturity, out.RGBAAt(49, 10), "top-right corner")
	assert.Equal(t, maturity, out.RGBAAt(10, 59), "bottom-left corner")
	assert.Equal(t, maturity, out.RGBAAt(49, 59), "bottom-right corner")

	// Stroke is 3px wide.
	assert.Equal(t, maturity, out.RGBAAt(30, 12), "inner edge of top stroke")
	assert.NotEqual(t, maturity, out.RGBAAt(30, 13), "below the top stroke")

	// Interior stays untouched.
	assert.Equal(t, background, out.RGBAAt(30, 35), "interior pixel")

	// Label background sits above the box in the stage color.
	assert.Equal(t, maturity, out.RGBAAt(12, 5), "label background")
}

func TestOverlayDrawsEveryDetection(t *testing.T) {
	src := solidImage(200, 200)
	dets := []detection.Detection{
		{Stage: stage.Bud, Confidence: 0.5, BBox: detection.BBox{0.05, 0.3, 0.25, 0.5}},
		{Stage: stage.Flower, Confidence: 0.6, BBox: detection.BBox{0.4, 0.4, 0.6, 0.7}},
		{Stage: stage.Maturity, Confidence: 0.9, BBox: detection.BBox{0.7, 0.2, 0.95, 0.6}},
	}

	out := Overlay(src, dets)

	for i, det := range dets {
		want := parseHexColor(det.Stage.Color())
		x := int(det.BBox.X1() * 200)
		y := int(det.BBox.Y1() * 200)
		assert.Equal(t, want, out.RGBAAt(x, y), "detection %d top-left stroke", i)
	}
}

func TestOverlayStackingOrder(t *testing.T) {
	// Two overlapping boxes: the later detection draws over the earlier one.
	src := solidImage(100, 100)
	dets := []detection.Detection{
		{Stage: stage.Bud, BBox: detection.BBox{0.2, 0.4, 0.6, 0.8}},
		{Stage: stage.Maturity, BBox: detection.BBox{0.2, 0.4, 0.6, 0.8}},
	}

	out := Overlay(src, dets)
	assert.Equal(t, parseHexColor(stage.Maturity.Color()), out.RGBAAt(20, 40))
}

func TestOverlayClipsAtImageEdge(t *testing.T) {
	// Box touching the top edge: the label background would extend above
	// the surface and must be clipped, not panic.
	src := solidImage(100, 100)
	dets := []detection.Detection{
		{Stage: stage.Dry, BBox: detection.BBox{0.0, 0.0, 0.3, 0.3}},
	}

	out := Overlay(src, dets)
	assert.Equal(t, parseHexColor(stage.Dry.Color()), out.RGBAAt(0, 0))
}

func TestDecode(t *testing.T) {
	t.Run("valid png", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, EncodePNG(&buf, solidImage(8, 8)))

		img, err := DecodeBytes(buf.Bytes())
		require.NoError(t, err)
		assert.Equal(t, 8, img.Bounds().Dx())
	})

	t.Run("garbage input fails with decode category", func(t *testing.T) {
		_, err := DecodeBytes([]byte("definitely not an image"))
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryImageDecode))
	})
}

func TestParseHexColor(t *testing.T) {
	assert.Equal(t, color.RGBA{0xdc, 0x26, 0x26, 0xff}, parseHexColor("#dc2626"))
	assert.Equal(t, color.RGBA{0x6b, 0x72, 0x80, 0xff}, parseHexColor("nonsense"))
}
