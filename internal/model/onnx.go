package model

import (
	"context"
	"fmt"
	"image"
	"os"
	"strconv"
	"strings"
	"time"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXPredictor runs inference through an onnxruntime session. A single
// session is shared across requests; onnxruntime's Run is safe for
// concurrent use and the caller bounds parallelism with its own semaphore.
type ONNXPredictor struct {
	session *ort.DynamicAdvancedSession
	meta    *Metadata

	defaultConf  float64
	defaultIoU   float64
	defaultInput int
}

// ONNXConfig controls predictor construction.
type ONNXConfig struct {
	ModelPath    string
	MetadataPath string
	Device       string
	Conf         float64
	IoU          float64
	ImageSize    int
}

// NewONNXPredictor initializes the onnxruntime environment (once per
// process) and opens a session for the configured model.
func NewONNXPredictor(cfg ONNXConfig) (*ONNXPredictor, error) {
	meta, err := LoadMetadata(cfg.MetadataPath)
	if err != nil {
		return nil, err
	}

	if libPath := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"); libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer options.Destroy()

	if err := applyDevice(options, cfg.Device); err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{meta.InputName},
		[]string{meta.OutputName},
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("open onnx session %q: %w", cfg.ModelPath, err)
	}

	inputSize := cfg.ImageSize
	if inputSize <= 0 && len(meta.InputShape) == 4 {
		inputSize = int(meta.InputShape[3])
	}
	if inputSize <= 0 {
		inputSize = 640
	}

	return &ONNXPredictor{
		session:      session,
		meta:         meta,
		defaultConf:  cfg.Conf,
		defaultIoU:   cfg.IoU,
		defaultInput: inputSize,
	}, nil
}

// applyDevice wires the requested execution provider. "cpu" is the default
// provider; "cuda" or "cuda:N" selects the CUDA provider on device N.
func applyDevice(options *ort.SessionOptions, device string) error {
	device = strings.TrimSpace(strings.ToLower(device))
	if device == "" || device == "cpu" {
		return nil
	}
	if !strings.HasPrefix(device, "cuda") {
		return fmt.Errorf("unsupported device %q", device)
	}

	deviceID := 0
	if _, suffix, ok := strings.Cut(device, ":"); ok {
		parsed, err := strconv.Atoi(suffix)
		if err != nil {
			return fmt.Errorf("invalid cuda device %q: %w", device, err)
		}
		deviceID = parsed
	}

	cudaOptions, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("create cuda provider options: %w", err)
	}
	defer cudaOptions.Destroy()
	if err := cudaOptions.Update(map[string]string{"device_id": strconv.Itoa(deviceID)}); err != nil {
		return fmt.Errorf("configure cuda device %d: %w", deviceID, err)
	}
	if err := options.AppendExecutionProviderCUDA(cudaOptions); err != nil {
		return fmt.Errorf("enable cuda provider: %w", err)
	}
	return nil
}

// Labels returns the class id to label table from the model metadata.
func (p *ONNXPredictor) Labels() *LabelTable {
	return &p.meta.Names
}

// Predict runs the model over one image with effective per-request options.
func (p *ONNXPredictor) Predict(ctx context.Context, img *image.NRGBA, opts Options) (*RawResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conf := p.defaultConf
	if opts.Conf > 0 {
		conf = opts.Conf
	}
	iou := p.defaultIoU
	if opts.IoU > 0 {
		iou = opts.IoU
	}
	inputSize := p.defaultInput
	if opts.ImageSize > 0 {
		inputSize = opts.ImageSize
	}

	speed := make(map[string]float64, 3)

	start := time.Now()
	inputData := prepareInput(img, inputSize)
	speed["preprocess"] = msSince(start)

	inputTensor, err := ort.NewTensor(ort.NewShape(1, 3, int64(inputSize), int64(inputSize)), inputData)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	start = time.Now()
	outputs := []ort.Value{nil}
	if err := p.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	speed["inference"] = msSince(start)
	defer outputs[0].Destroy()

	outputTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type %T", outputs[0])
	}

	start = time.Now()
	result, err := p.decode(outputTensor.GetData(), outputTensor.GetShape(), conf, iou, inputSize, img.Bounds().Dx(), img.Bounds().Dy())
	if err != nil {
		return nil, err
	}
	speed["postprocess"] = msSince(start)

	result.Speed = speed
	return result, nil
}

func (p *ONNXPredictor) decode(data []float32, shape ort.Shape, conf, iou float64, inputSize, origW, origH int) (*RawResult, error) {
	switch p.meta.Task {
	case TaskClassification:
		return decodeClassification(data), nil
	case TaskDetection:
		return decodeDetections(data, shape, conf, iou, inputSize, origW, origH)
	default:
		return &RawResult{}, nil
	}
}

// Close releases the session. The onnxruntime environment is left alive for
// the process lifetime.
func (p *ONNXPredictor) Close() error {
	if p.session != nil {
		return p.session.Destroy()
	}
	return nil
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
