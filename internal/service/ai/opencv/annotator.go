package opencv

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"objectvision/internal/model"
)

// Annotator draws detection boxes with OpenCV.
type Annotator struct {
	Color     color.RGBA
	Thickness int
}

// NewAnnotator returns an annotator drawing red 2px boxes.
func NewAnnotator() *Annotator {
	return &Annotator{Color: color.RGBA{R: 255, G: 0, B: 0, A: 0}, Thickness: 2}
}

// Annotate draws detections on the image and returns a re-encoded JPEG buffer.
func (a *Annotator) Annotate(img []byte, detections []model.RawDetection) ([]byte, error) {
	mat, err := gocv.IMDecode(img, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image: %v", model.ErrInvalidArgument, err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("%w: decoded image is empty", model.ErrInvalidArgument)
	}

	for _, detection := range detections {
		if detection.Box == nil {
			continue
		}
		b := detection.Box
		rect := image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2))
		if err := gocv.Rectangle(&mat, rect, a.Color, a.Thickness); err != nil {
			return nil, fmt.Errorf("failed to draw rectangle: %w", err)
		}

		label := fmt.Sprintf("%s (%.2f)", detection.ClassName, detection.Confidence)
		y := rect.Min.Y - 5
		if y < 10 {
			y = rect.Min.Y + 15
		}
		if err := gocv.PutText(&mat, label, image.Pt(rect.Min.X, y), gocv.FontHersheySimplex, 0.5, a.Color, 1); err != nil {
			return nil, fmt.Errorf("failed to draw text: %w", err)
		}
	}

	buf, err := gocv.IMEncode(".jpg", mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}
