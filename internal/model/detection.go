package model

// Box is an axis-aligned bounding box in source image pixels.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Width returns the horizontal extent of the box.
func (b Box) Width() float64 { return b.X2 - b.X1 }

// Height returns the vertical extent of the box.
func (b Box) Height() float64 { return b.Y2 - b.Y1 }

// Area returns the box area, zero for degenerate boxes.
func (b Box) Area() float64 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Corners returns the box as [x1, y1, x2, y2].
func (b Box) Corners() [4]float64 {
	return [4]float64{b.X1, b.Y1, b.X2, b.Y2}
}

// RawDetection is a single detected instance as reported by a detector.
type RawDetection struct {
	ClassID    int     `json:"class_id"`
	ClassName  string  `json:"class_name"`
	Confidence float64 `json:"confidence"`
	Box        *Box    `json:"box,omitempty"`
}

// DetectionSet is the complete detector output for one image.
type DetectionSet struct {
	Detections []RawDetection `json:"detections"`
	Width      int            `json:"width"`
	Height     int            `json:"height"`
}
