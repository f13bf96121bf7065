// Package opencv runs detection models through the OpenCV DNN module.
package opencv

import (
	"context"
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	"objectvision/internal/logger"
	"objectvision/internal/model"
	"objectvision/internal/service/ai"
	"objectvision/internal/service/ai/postprocess"
)

// Options selects the network and how its output is read.
type Options struct {
	Format       string // "yolo" or "ssd"
	ModelPath    string
	ConfigPath   string // optional network description, e.g. .pbtxt for TF graphs
	Name         string
	PretrainedOn string
	InputSize    int
	NMSThreshold float64
	Catalog      *model.ClassCatalog
}

// Detector wraps one gocv.Net. It is not safe for concurrent use.
type Detector struct {
	net    gocv.Net
	opts   Options
	logger *logger.Logger
}

// New loads the network and sets backend/target preferences.
func New(opts Options, log *logger.Logger) (*Detector, error) {
	if opts.Catalog == nil {
		return nil, fmt.Errorf("%w: no class catalog", model.ErrUninitialized)
	}
	if opts.InputSize <= 0 {
		opts.InputSize = defaultInputSize(opts.Format)
	}

	if _, err := os.Stat(opts.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: model file not found: %s", model.ErrUninitialized, opts.ModelPath)
	}
	if opts.ConfigPath != "" {
		if _, err := os.Stat(opts.ConfigPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: config file not found: %s", model.ErrUninitialized, opts.ConfigPath)
		}
	}

	net := gocv.ReadNet(opts.ModelPath, opts.ConfigPath)
	if net.Empty() {
		return nil, fmt.Errorf("%w: failed to load network %s", model.ErrUninitialized, opts.ModelPath)
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	log.Info("Detection network %s initialized (%s, input %d)", opts.Name, opts.Format, opts.InputSize)
	return &Detector{net: net, opts: opts, logger: log}, nil
}

func defaultInputSize(format string) int {
	if format == "ssd" {
		return 300
	}
	return 640
}

// Detect runs the network on the image and returns detections above minConfidence.
func (d *Detector) Detect(ctx context.Context, imageBytes []byte, minConfidence float64) (*model.DetectionSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.net.Empty() {
		return nil, fmt.Errorf("%w: detection network not loaded", model.ErrUninitialized)
	}

	mat, err := gocv.IMDecode(imageBytes, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image: %v", model.ErrInvalidArgument, err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("%w: decoded image is empty", model.ErrInvalidArgument)
	}

	width, height := mat.Cols(), mat.Rows()
	size := image.Pt(d.opts.InputSize, d.opts.InputSize)

	var blob gocv.Mat
	if d.opts.Format == "ssd" {
		blob = gocv.BlobFromImage(mat, 1.0/127.5, size, gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	} else {
		blob = gocv.BlobFromImage(mat, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), true, false)
	}
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read network output: %w", err)
	}

	var detections []model.RawDetection
	if d.opts.Format == "ssd" {
		detections, err = postprocess.DecodeSSD(data, width, height, minConfidence)
	} else {
		detections, err = postprocess.DecodeYOLO(data, d.opts.Catalog.Len(), d.opts.InputSize, width, height, minConfidence)
		if err == nil {
			detections = postprocess.NMS(detections, d.opts.NMSThreshold)
		}
	}
	if err != nil {
		return nil, err
	}

	postprocess.Clamp(detections, width, height)
	postprocess.Label(detections, d.opts.Catalog)

	return &model.DetectionSet{Detections: detections, Width: width, Height: height}, nil
}

// Catalog returns the classes the network was trained on.
func (d *Detector) Catalog() *model.ClassCatalog {
	return d.opts.Catalog
}

// Info describes the loaded network.
func (d *Detector) Info() ai.Info {
	modelType := "YOLOv8"
	if d.opts.Format == "ssd" {
		modelType = "SSD"
	}
	return ai.Info{
		Backend:      "opencv",
		ModelType:    modelType,
		ModelName:    d.opts.Name,
		InputSize:    d.opts.InputSize,
		PretrainedOn: d.opts.PretrainedOn,
	}
}

// Close frees the network.
func (d *Detector) Close() error {
	return d.net.Close()
}

var (
	_ ai.Detector  = (*Detector)(nil)
	_ ai.Annotator = (*Annotator)(nil)
)
