// Package onnx runs YOLOv8 ONNX exports through onnxruntime.
package onnx

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"objectvision/internal/logger"
	"objectvision/internal/model"
	"objectvision/internal/service/ai"
	"objectvision/internal/service/ai/postprocess"
)

var (
	envOnce sync.Once
	envErr  error
)

// InitEnvironment loads the onnxruntime shared library once per process.
// An empty libraryPath keeps the library's platform default.
func InitEnvironment(libraryPath string) error {
	envOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			envErr = fmt.Errorf("%w: failed to initialize ONNX environment: %v", model.ErrUninitialized, err)
		}
	})
	return envErr
}

// DestroyEnvironment releases the runtime after every session is closed.
func DestroyEnvironment() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// Options describes the exported model.
type Options struct {
	ModelPath    string
	Name         string
	PretrainedOn string
	InputSize    int
	InputName    string
	OutputName   string
	NMSThreshold float64
	Catalog      *model.ClassCatalog
}

// Detector holds one session with its own input and output tensors.
// It is not safe for concurrent use.
type Detector struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	opts         Options
	logger       *logger.Logger
}

// New creates a session for opts.ModelPath. InitEnvironment must be called first.
func New(opts Options, log *logger.Logger) (*Detector, error) {
	if opts.Catalog == nil {
		return nil, fmt.Errorf("%w: no class catalog", model.ErrUninitialized)
	}
	if opts.InputSize <= 0 {
		opts.InputSize = 640
	}
	size := int64(opts.InputSize)
	numClasses := int64(opts.Catalog.Len())

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, 4+numClasses, int64(Anchors(opts.InputSize)))
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()
	// Parallelism comes from the pool, not from the session.
	if err := options.SetIntraOpNumThreads(1); err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to set intra-op threads: %w", err)
	}
	if err := options.SetInterOpNumThreads(1); err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to set inter-op threads: %w", err)
	}

	session, err := ort.NewAdvancedSession(opts.ModelPath,
		[]string{opts.InputName}, []string{opts.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		options)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("%w: failed to create ONNX session: %v", model.ErrUninitialized, err)
	}

	log.Info("ONNX session for %s created (input %d, output %v)", opts.Name, opts.InputSize, outputShape)
	return &Detector{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		opts:         opts,
		logger:       log,
	}, nil
}

// Anchors returns the number of YOLOv8 candidate boxes for a square input
// (strides 8, 16 and 32).
func Anchors(inputSize int) int {
	n := 0
	for _, stride := range []int{8, 16, 32} {
		side := inputSize / stride
		n += side * side
	}
	return n
}

// Detect decodes the image, runs the session and returns detections above minConfidence.
func (d *Detector) Detect(ctx context.Context, imageBytes []byte, minConfidence float64) (*model.DetectionSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := DecodeImage(imageBytes)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	Preprocess(img, d.opts.InputSize, d.inputTensor.GetData())
	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	detections, err := postprocess.DecodeYOLO(d.outputTensor.GetData(), d.opts.Catalog.Len(), d.opts.InputSize, width, height, minConfidence)
	if err != nil {
		return nil, err
	}
	detections = postprocess.NMS(detections, d.opts.NMSThreshold)
	postprocess.Clamp(detections, width, height)
	postprocess.Label(detections, d.opts.Catalog)

	return &model.DetectionSet{Detections: detections, Width: width, Height: height}, nil
}

// Catalog returns the classes the model was trained on.
func (d *Detector) Catalog() *model.ClassCatalog {
	return d.opts.Catalog
}

// Info describes the loaded model.
func (d *Detector) Info() ai.Info {
	return ai.Info{
		Backend:      "onnx",
		ModelType:    "YOLOv8",
		ModelName:    d.opts.Name,
		InputSize:    d.opts.InputSize,
		PretrainedOn: d.opts.PretrainedOn,
	}
}

// Close destroys the session and its tensors.
func (d *Detector) Close() error {
	var err error
	if d.session != nil {
		err = d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	if d.outputTensor != nil {
		d.outputTensor.Destroy()
	}
	return err
}

var _ ai.Detector = (*Detector)(nil)
