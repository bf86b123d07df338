package model

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"strconv"
)

// Task identifies what kind of output a model produces.
type Task string

const (
	TaskDetection      Task = "detection"
	TaskClassification Task = "classification"
	TaskUnknown        Task = "unknown"
)

// Options are the per-request inference overrides. Zero values mean "use the
// instance default".
type Options struct {
	Conf      float64
	IoU       float64
	ImageSize int
}

// RawResult is the model output before normalization. Detection fields and
// classification fields are mutually exclusive; a result with neither is an
// unknown task. Speed carries stage timings in milliseconds.
type RawResult struct {
	Boxes   [][4]float64
	Scores  []float64
	Classes []int

	Top5     []int
	Top5Conf []float64

	Speed map[string]float64
}

// Predictor runs a pretrained model over one decoded image.
type Predictor interface {
	Predict(ctx context.Context, img *image.NRGBA, opts Options) (*RawResult, error)
	Labels() *LabelTable
	Close() error
}

// LabelTable maps class ids to human readable labels. The underlying table
// may come from a JSON object keyed by class id or from an ordered JSON
// array; an id outside the table degrades to its stringified index.
type LabelTable struct {
	list []string
	byID map[int]string
}

// NewLabelList builds a table from an ordered label list.
func NewLabelList(labels []string) *LabelTable {
	return &LabelTable{list: labels}
}

// NewLabelMap builds a table from a class-id keyed mapping.
func NewLabelMap(labels map[int]string) *LabelTable {
	return &LabelTable{byID: labels}
}

// Label resolves a class id to its label.
func (t *LabelTable) Label(classID int) string {
	if t != nil {
		if t.byID != nil {
			if label, ok := t.byID[classID]; ok {
				return label
			}
		} else if classID >= 0 && classID < len(t.list) {
			return t.list[classID]
		}
	}
	return strconv.Itoa(classID)
}

// UnmarshalJSON accepts either a JSON array of labels or an object keyed by
// class id.
func (t *LabelTable) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		t.list = list
		t.byID = nil
		return nil
	}

	var keyed map[string]string
	if err := json.Unmarshal(data, &keyed); err != nil {
		return fmt.Errorf("names must be a list or a class-id keyed object: %w", err)
	}
	byID := make(map[int]string, len(keyed))
	for key, label := range keyed {
		id, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("invalid class id %q in names table: %w", key, err)
		}
		byID[id] = label
	}
	t.list = nil
	t.byID = byID
	return nil
}

// Metadata is the sidecar description shipped next to an exported ONNX model.
type Metadata struct {
	Task       Task       `json:"task"`
	InputName  string     `json:"input_name"`
	OutputName string     `json:"output_name"`
	InputShape []int64    `json:"input_shape"`
	Names      LabelTable `json:"names"`
}

// LoadMetadata reads and validates a model metadata file.
func LoadMetadata(path string) (*Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("parse model metadata: %w", err)
	}
	if meta.Task != TaskDetection && meta.Task != TaskClassification {
		return nil, fmt.Errorf("unsupported model task %q", meta.Task)
	}
	if meta.InputName == "" {
		meta.InputName = "images"
	}
	if meta.OutputName == "" {
		meta.OutputName = "output0"
	}
	return &meta, nil
}
