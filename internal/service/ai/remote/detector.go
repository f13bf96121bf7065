// Package remote delegates inference to an external model service that
// exposes /api/info, /api/health and /api/predict_with_boxes.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"objectvision/internal/logger"
	"objectvision/internal/model"
	"objectvision/internal/service/ai"
)

// Options configures the remote service client.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	Name         string
	PretrainedOn string
	// Catalog is used when the service does not report its class names.
	Catalog *model.ClassCatalog
}

// Detector is an HTTP client for the model service. It is safe for
// concurrent use.
type Detector struct {
	baseURL string
	client  *http.Client
	catalog *model.ClassCatalog
	info    ai.Info
	logger  *logger.Logger
}

type infoResponse struct {
	ModelType    string   `json:"model_type"`
	ModelSize    string   `json:"model_size"`
	ClassNames   []string `json:"class_names"`
	PretrainedOn string   `json:"pretrained_on"`
}

type remoteDetection struct {
	Class      string    `json:"class"`
	Confidence float64   `json:"confidence"`
	Box        []float64 `json:"box"`
}

type predictResponse struct {
	Success    bool              `json:"success"`
	Error      string            `json:"error"`
	Detections []remoteDetection `json:"detections"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
}

// New asks the service for its model description. When that fails the
// configured catalog is used and a warning is logged.
func New(ctx context.Context, opts Options, log *logger.Logger) (*Detector, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("%w: no remote model url configured", model.ErrUninitialized)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	d := &Detector{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		client:  &http.Client{Timeout: opts.Timeout},
		catalog: opts.Catalog,
		info: ai.Info{
			Backend:      "remote",
			ModelType:    "YOLOv8",
			ModelName:    opts.Name,
			PretrainedOn: opts.PretrainedOn,
		},
		logger: log,
	}

	info, err := d.fetchInfo(ctx)
	if err != nil {
		log.Warning("Could not read remote model info from %s: %v", d.baseURL, err)
	} else {
		if len(info.ClassNames) > 0 {
			catalog, err := model.NewClassCatalogFromNames(info.ClassNames)
			if err != nil {
				return nil, fmt.Errorf("%w: remote class names: %v", model.ErrDataIntegrity, err)
			}
			d.catalog = catalog
		}
		if info.ModelType != "" {
			d.info.ModelType = info.ModelType
		}
		if info.ModelSize != "" && opts.Name == "" {
			d.info.ModelName = info.ModelType + "-" + info.ModelSize
		}
		if info.PretrainedOn != "" {
			d.info.PretrainedOn = info.PretrainedOn
		}
	}

	if d.catalog == nil {
		return nil, fmt.Errorf("%w: remote service reported no classes and none are configured", model.ErrUninitialized)
	}
	log.Info("Remote detector %s ready with %d classes", d.baseURL, d.catalog.Len())
	return d, nil
}

func (d *Detector) fetchInfo(ctx context.Context) (*infoResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/api/info", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("info failed with status: %d", resp.StatusCode)
	}

	var info infoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &info, nil
}

// Detect uploads the image with threshold=minConfidence.
func (d *Detector) Detect(ctx context.Context, imageBytes []byte, minConfidence float64) (*model.DetectionSet, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("image", "image.jpg")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(imageBytes)); err != nil {
		return nil, fmt.Errorf("copy image data: %w", err)
	}
	if err := writer.WriteField("threshold", strconv.FormatFloat(minConfidence, 'f', -1, 64)); err != nil {
		return nil, fmt.Errorf("write threshold: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/api/predict_with_boxes", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	var result predictResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, fmt.Errorf("%w: remote service rejected image (%d): %s", model.ErrInvalidArgument, resp.StatusCode, result.Error)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("inference failed with status: %d", resp.StatusCode)
	case decodeErr != nil:
		return nil, fmt.Errorf("%w: decode response: %v", model.ErrDataIntegrity, decodeErr)
	}

	detections := make([]model.RawDetection, 0, len(result.Detections))
	for i, rd := range result.Detections {
		det := model.RawDetection{ClassID: -1, ClassName: rd.Class, Confidence: rd.Confidence}
		if id, ok := d.catalog.ID(rd.Class); ok {
			det.ClassID = id
		}
		switch len(rd.Box) {
		case 0:
		case 4:
			det.Box = &model.Box{X1: rd.Box[0], Y1: rd.Box[1], X2: rd.Box[2], Y2: rd.Box[3]}
		default:
			return nil, fmt.Errorf("%w: detection %d has a box of %d values", model.ErrDataIntegrity, i, len(rd.Box))
		}
		detections = append(detections, det)
	}

	return &model.DetectionSet{Detections: detections, Width: result.Width, Height: result.Height}, nil
}

// Health checks that the model service is reachable.
func (d *Detector) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/api/health", nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ml service unhealthy: %d", resp.StatusCode)
	}
	return nil
}

// Catalog returns the classes reported by the service.
func (d *Detector) Catalog() *model.ClassCatalog {
	return d.catalog
}

// Info describes the remote model.
func (d *Detector) Info() ai.Info {
	return d.info
}

// Close releases idle connections.
func (d *Detector) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

var _ ai.Detector = (*Detector)(nil)
