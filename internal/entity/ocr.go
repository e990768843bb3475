package entity

// Point is a vertex of a detection polygon, in image pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Region is the polygon (usually a 4-point box) around a detected text line.
type Region []Point

// Fragment is one OCR detection: where, what, and how sure.
type Fragment struct {
	Region     Region  `json:"region"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// OCRResult is the untouched output of an OCR engine for one image.
type OCRResult struct {
	Fragments      []Fragment `json:"fragments"`
	Engine         string     `json:"engine"`
	ImageWidth     int        `json:"image_width,omitempty"`
	ImageHeight    int        `json:"image_height,omitempty"`
	ProcessingTime float64    `json:"processing_time"` // seconds
}

// Texts returns fragment texts in detection order.
func (r OCRResult) Texts() []string {
	out := make([]string, len(r.Fragments))
	for i, f := range r.Fragments {
		out[i] = f.Text
	}
	return out
}
