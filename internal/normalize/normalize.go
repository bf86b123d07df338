package normalize

import (
	"math"

	"github.com/example/vision-infer/internal/model"
)

// Detection is one normalized bounding box. Score and ClassID are pointers
// so a missing value serializes as JSON null when the model's parallel
// arrays disagree in length.
type Detection struct {
	BBoxXYXY []float64 `json:"bbox_xyxy"`
	Score    *float64  `json:"score"`
	ClassID  *int      `json:"class_id"`
	Label    *string   `json:"label"`
}

// Pred is one top-5 classification entry.
type Pred struct {
	ClassID int     `json:"class_id"`
	Label   string  `json:"label"`
	Score   float64 `json:"score"`
}

// Probs carries the raw top-5 confidence list for classification results.
type Probs struct {
	Top5Conf []float64 `json:"top5conf"`
}

// Output is the JSON-serializable, normalized model result. Exactly one of
// the detection or classification sections is populated depending on Task.
type Output struct {
	Task       model.Task         `json:"task"`
	SpeedMS    map[string]float64 `json:"speed_ms,omitempty"`
	Detections []Detection        `json:"detections,omitempty"`
	Probs      *Probs             `json:"probs,omitempty"`
	Preds      []Pred             `json:"preds,omitempty"`
}

// Normalize converts a raw model result into the wire shape. Classification
// and detection are mutually exclusive; a result exposing neither becomes
// task "unknown" with whatever timing info is available. Every float leaf
// except speed_ms is rounded to 5 decimal places.
func Normalize(raw *model.RawResult, labels *model.LabelTable) *Output {
	if raw == nil {
		return &Output{Task: model.TaskUnknown}
	}

	if raw.Top5Conf != nil {
		return normalizeClassification(raw, labels)
	}
	if raw.Boxes != nil {
		return normalizeDetection(raw, labels)
	}
	return &Output{Task: model.TaskUnknown, SpeedMS: raw.Speed}
}

func normalizeClassification(raw *model.RawResult, labels *model.LabelTable) *Output {
	top5conf := make([]float64, len(raw.Top5Conf))
	for i, score := range raw.Top5Conf {
		top5conf[i] = round5(score)
	}

	preds := make([]Pred, 0, len(raw.Top5))
	for i, classID := range raw.Top5 {
		var score float64
		if i < len(raw.Top5Conf) {
			score = round5(raw.Top5Conf[i])
		}
		preds = append(preds, Pred{
			ClassID: classID,
			Label:   labels.Label(classID),
			Score:   score,
		})
	}

	return &Output{
		Task:    model.TaskClassification,
		SpeedMS: raw.Speed,
		Probs:   &Probs{Top5Conf: top5conf},
		Preds:   preds,
	}
}

func normalizeDetection(raw *model.RawResult, labels *model.LabelTable) *Output {
	detections := make([]Detection, 0, len(raw.Boxes))
	for i, box := range raw.Boxes {
		det := Detection{
			BBoxXYXY: []float64{round5(box[0]), round5(box[1]), round5(box[2]), round5(box[3])},
		}
		if i < len(raw.Scores) {
			score := round5(raw.Scores[i])
			det.Score = &score
		}
		if i < len(raw.Classes) {
			classID := raw.Classes[i]
			label := labels.Label(classID)
			det.ClassID = &classID
			det.Label = &label
		}
		detections = append(detections, det)
	}

	return &Output{
		Task:       model.TaskDetection,
		SpeedMS:    raw.Speed,
		Detections: detections,
	}
}

func round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}
