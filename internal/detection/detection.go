// Package detection defines the analysis result types produced by one
// inference call: individual bounding-box detections and the aggregate
// result describing the whole image.
package detection

import (
	"fmt"

	"github.com/redharvest/redharvest-go/internal/stage"
)

// BBox is a normalized bounding box [x1, y1, x2, y2], all coordinates in [0,1].
type BBox [4]float64

// X1 returns the left edge.
func (b BBox) X1() float64 { return b[0] }

// Y1 returns the top edge.
func (b BBox) Y1() float64 { return b[1] }

// X2 returns the right edge.
func (b BBox) X2() float64 { return b[2] }

// Y2 returns the bottom edge.
func (b BBox) Y2() float64 { return b[3] }

// Validate checks the box invariants: x1<x2, y1<y2, all coordinates in [0,1].
func (b BBox) Validate() error {
	for i, v := range b {
		if v < 0 || v > 1 {
			return fmt.Errorf("bbox coordinate %d out of range [0,1]: %v", i, v)
		}
	}
	if b[0] >= b[2] {
		return fmt.Errorf("bbox x1 (%v) must be less than x2 (%v)", b[0], b[2])
	}
	if b[1] >= b[3] {
		return fmt.Errorf("bbox y1 (%v) must be less than y2 (%v)", b[1], b[3])
	}
	return nil
}

// Detection is one bounding-box + stage + confidence triple from one
// inference call.
type Detection struct {
	Stage      stage.Kind `json:"stage"`
	StageAr    string     `json:"stageAr,omitempty"`
	Confidence float64    `json:"confidence"`
	BBox       BBox       `json:"bbox"`
}

// Validate checks the detection invariants.
func (d *Detection) Validate() error {
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("confidence out of range [0,1]: %v", d.Confidence)
	}
	return d.BBox.Validate()
}

// Result describes everything one inference call produced. It is created
// once per call and not mutated afterwards.
type Result struct {
	Detections     []Detection `json:"detections"`
	Dominant       stage.Kind  `json:"dominant"`
	DominantLabel  string      `json:"dominantAr"`
	Total          int         `json:"total"`
	ElapsedSeconds float64     `json:"time"`
}

// Validate checks the result invariants.
func (r *Result) Validate() error {
	if r.Total < 0 {
		return fmt.Errorf("total must not be negative: %d", r.Total)
	}
	if r.ElapsedSeconds < 0 {
		return fmt.Errorf("elapsed seconds must not be negative: %v", r.ElapsedSeconds)
	}
	for i := range r.Detections {
		if err := r.Detections[i].Validate(); err != nil {
			return fmt.Errorf("detection %d: %w", i, err)
		}
	}
	return nil
}

// TopConfidence returns the confidence of the first detection, or 0 when the
// result has none. The first detection is the one the backend ranked highest.
func (r *Result) TopConfidence() float64 {
	if len(r.Detections) == 0 {
		return 0
	}
	return r.Detections[0].Confidence
}

// DominantFromCounts determines the dominant stage from per-stage detection
// counts, the same fold the inference backend applies. Ties resolve to the
// stage encountered first in detection order. Zero detections yield Unknown.
func DominantFromCounts(detections []Detection) stage.Kind {
	counts := make(map[stage.Kind]int, len(detections))
	order := make([]stage.Kind, 0, len(detections))
	for i := range detections {
		k := detections[i].Stage
		if _, seen := counts[k]; !seen {
			order = append(order, k)
		}
		counts[k]++
	}

	dominant := stage.Unknown
	best := 0
	for _, k := range order {
		if counts[k] > best {
			dominant = k
			best = counts[k]
		}
	}
	return dominant
}
