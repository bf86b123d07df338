package model

import (
	"fmt"
	"sort"

	ort "github.com/yalue/onnxruntime_go"
)

const maxDetections = 300

type candidate struct {
	box   [4]float64
	score float64
	class int
}

// decodeDetections reads a YOLO-style detection head of shape
// (1, 4+numClasses, anchors): per anchor a center-format box followed by one
// confidence per class. Boxes are filtered at conf, reduced with class-aware
// NMS at iou, and scaled back to the original image space.
func decodeDetections(data []float32, shape ort.Shape, conf, iou float64, inputSize, origW, origH int) (*RawResult, error) {
	if len(shape) != 3 || shape[1] < 5 {
		return nil, fmt.Errorf("unexpected detection output shape %v", shape)
	}
	rows := int(shape[1])
	anchors := int(shape[2])
	numClasses := rows - 4
	if len(data) < rows*anchors {
		return nil, fmt.Errorf("detection output has %d values, want %d", len(data), rows*anchors)
	}

	scaleX := float64(origW) / float64(inputSize)
	scaleY := float64(origH) / float64(inputSize)

	candidates := make([]candidate, 0, 64)
	for a := 0; a < anchors; a++ {
		bestClass := 0
		bestScore := float64(data[4*anchors+a])
		for c := 1; c < numClasses; c++ {
			if score := float64(data[(4+c)*anchors+a]); score > bestScore {
				bestScore = score
				bestClass = c
			}
		}
		if bestScore < conf {
			continue
		}

		cx := float64(data[a])
		cy := float64(data[anchors+a])
		w := float64(data[2*anchors+a])
		h := float64(data[3*anchors+a])

		candidates = append(candidates, candidate{
			box: [4]float64{
				clamp((cx-w/2)*scaleX, 0, float64(origW)),
				clamp((cy-h/2)*scaleY, 0, float64(origH)),
				clamp((cx+w/2)*scaleX, 0, float64(origW)),
				clamp((cy+h/2)*scaleY, 0, float64(origH)),
			},
			score: bestScore,
			class: bestClass,
		})
	}

	kept := nonMaxSuppress(candidates, iou)
	if len(kept) > maxDetections {
		kept = kept[:maxDetections]
	}

	result := &RawResult{
		Boxes:   make([][4]float64, len(kept)),
		Scores:  make([]float64, len(kept)),
		Classes: make([]int, len(kept)),
	}
	for i, c := range kept {
		result.Boxes[i] = c.box
		result.Scores[i] = c.score
		result.Classes[i] = c.class
	}
	return result, nil
}

// nonMaxSuppress keeps the highest scoring box of each overlapping group,
// comparing only boxes of the same class.
func nonMaxSuppress(candidates []candidate, iouThreshold float64) []candidate {
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	kept := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		suppressed := false
		for _, k := range kept {
			if k.class == c.class && boxIoU(k.box, c.box) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, c)
		}
	}
	return kept
}

func boxIoU(a, b [4]float64) float64 {
	x1 := maxFloat(a[0], b[0])
	y1 := maxFloat(a[1], b[1])
	x2 := minFloat(a[2], b[2])
	y2 := minFloat(a[3], b[3])
	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	intersection := (x2 - x1) * (y2 - y1)
	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

// decodeClassification reads a probability vector and reports the top-5
// classes in descending confidence order.
func decodeClassification(data []float32) *RawResult {
	indices := make([]int, len(data))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(i, j int) bool {
		return data[indices[i]] > data[indices[j]]
	})

	limit := 5
	if len(indices) < limit {
		limit = len(indices)
	}

	result := &RawResult{
		Top5:     make([]int, limit),
		Top5Conf: make([]float64, limit),
	}
	for i := 0; i < limit; i++ {
		result.Top5[i] = indices[i]
		result.Top5Conf[i] = float64(data[indices[i]])
	}
	return result
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
