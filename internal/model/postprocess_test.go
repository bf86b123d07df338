package model

import (
	"testing"

	ort "github.com/yalue/onnxruntime_go"
)

// buildDetectionOutput lays out anchor predictions in the (1, 4+nc, anchors)
// head format: all cx values, then all cy, w, h, then per-class confidences.
func buildDetectionOutput(anchors []candidate, numClasses, totalAnchors int) ([]float32, ort.Shape) {
	rows := 4 + numClasses
	data := make([]float32, rows*totalAnchors)
	for i, a := range anchors {
		cx := (a.box[0] + a.box[2]) / 2
		cy := (a.box[1] + a.box[3]) / 2
		w := a.box[2] - a.box[0]
		h := a.box[3] - a.box[1]
		data[i] = float32(cx)
		data[totalAnchors+i] = float32(cy)
		data[2*totalAnchors+i] = float32(w)
		data[3*totalAnchors+i] = float32(h)
		data[(4+a.class)*totalAnchors+i] = float32(a.score)
	}
	return data, ort.NewShape(1, int64(rows), int64(totalAnchors))
}

func TestDecodeDetectionsFiltersAndScales(t *testing.T) {
	anchors := []candidate{
		{box: [4]float64{100, 100, 200, 200}, score: 0.9, class: 1},
		{box: [4]float64{300, 300, 400, 400}, score: 0.1, class: 0}, // below conf
	}
	data, shape := buildDetectionOutput(anchors, 3, 8)

	// Input space 640, original image 1280x1280: boxes scale by 2.
	result, err := decodeDetections(data, shape, 0.25, 0.45, 640, 1280, 1280)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(result.Boxes) != 1 {
		t.Fatalf("expected 1 box after confidence filter, got %d", len(result.Boxes))
	}
	if len(result.Boxes) != len(result.Scores) || len(result.Boxes) != len(result.Classes) {
		t.Fatalf("parallel arrays disagree: %d boxes, %d scores, %d classes",
			len(result.Boxes), len(result.Scores), len(result.Classes))
	}
	box := result.Boxes[0]
	if box[0] != 200 || box[1] != 200 || box[2] != 400 || box[3] != 400 {
		t.Fatalf("unexpected scaled box: %v", box)
	}
	if result.Classes[0] != 1 {
		t.Fatalf("unexpected class: %d", result.Classes[0])
	}
}

func TestDecodeDetectionsNMSSuppressesOverlaps(t *testing.T) {
	anchors := []candidate{
		{box: [4]float64{100, 100, 200, 200}, score: 0.9, class: 0},
		{box: [4]float64{105, 105, 205, 205}, score: 0.8, class: 0}, // overlaps the first
		{box: [4]float64{100, 100, 200, 200}, score: 0.7, class: 1}, // same area, other class
	}
	data, shape := buildDetectionOutput(anchors, 2, 8)

	result, err := decodeDetections(data, shape, 0.25, 0.45, 640, 640, 640)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(result.Boxes) != 2 {
		t.Fatalf("expected 2 boxes after class-aware NMS, got %d", len(result.Boxes))
	}
	if result.Scores[0] < result.Scores[1] {
		t.Fatalf("expected descending scores, got %v", result.Scores)
	}
}

func TestDecodeDetectionsRejectsBadShape(t *testing.T) {
	if _, err := decodeDetections(make([]float32, 10), ort.NewShape(1, 10), 0.25, 0.45, 640, 640, 640); err == nil {
		t.Fatal("expected error for 2-dim shape")
	}
}

func TestDecodeClassificationTop5(t *testing.T) {
	scores := []float32{0.01, 0.6, 0.05, 0.2, 0.1, 0.3, 0.02}
	result := decodeClassification(scores)

	if len(result.Top5) != 5 {
		t.Fatalf("expected 5 predictions, got %d", len(result.Top5))
	}
	expected := []int{1, 5, 3, 4, 2}
	for i, id := range expected {
		if result.Top5[i] != id {
			t.Fatalf("position %d: expected class %d, got %d", i, id, result.Top5[i])
		}
	}
	for i := 1; i < len(result.Top5Conf); i++ {
		if result.Top5Conf[i] > result.Top5Conf[i-1] {
			t.Fatalf("confidences not descending: %v", result.Top5Conf)
		}
	}
}

func TestDecodeClassificationFewerThanFiveClasses(t *testing.T) {
	result := decodeClassification([]float32{0.7, 0.3})
	if len(result.Top5) != 2 {
		t.Fatalf("expected 2 predictions, got %d", len(result.Top5))
	}
	if result.Top5[0] != 0 {
		t.Fatalf("expected class 0 first, got %d", result.Top5[0])
	}
}

func TestBoxIoU(t *testing.T) {
	a := [4]float64{0, 0, 10, 10}
	if iou := boxIoU(a, a); iou != 1 {
		t.Fatalf("identical boxes should have IoU 1, got %f", iou)
	}
	if iou := boxIoU(a, [4]float64{20, 20, 30, 30}); iou != 0 {
		t.Fatalf("disjoint boxes should have IoU 0, got %f", iou)
	}
}
