package models

// BoundingBox is a page-relative rectangle in PDF user space.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// TextElement is a block of selectable text at a known position.
type TextElement struct {
	BBox    BoundingBox `json:"bbox"`
	Content string      `json:"content"`
}

// ImageElement is an embedded or rasterized image on a page.
type ImageElement struct {
	BBox            BoundingBox `json:"bbox"`
	Width           int         `json:"width"`
	Height          int         `json:"height"`
	BlobKey         string      `json:"blob_key"`
	Description     *string     `json:"description,omitempty"`
	SurroundingText *string     `json:"surrounding_text,omitempty"`
}

// PDFElementKind tags which arm of PDFElement's union is populated.
type PDFElementKind string

const (
	PDFElementText  PDFElementKind = "text"
	PDFElementImage PDFElementKind = "image"
)

// PDFElement is a tagged union: exactly one of Text/Image is non-nil,
// matching Kind. Elements within a page appear in reading order
// (top-to-bottom, left-to-right tiebreak).
type PDFElement struct {
	Kind  PDFElementKind `json:"kind"`
	Text  *TextElement   `json:"text,omitempty"`
	Image *ImageElement  `json:"image,omitempty"`
}

// PDFPage is one page's extracted content, in document order.
type PDFPage struct {
	PageNumber int          `json:"page_number"`
	RawText    string       `json:"raw_text"`
	Elements   []PDFElement `json:"elements"`
}

// PDFMeta carries document-level metadata about the artefact's origin.
type PDFMeta struct {
	FileName    string `json:"filename"`
	CreatedAt   string `json:"created_at"`
	Language    string `json:"language"`
	VisionModel string `json:"vision_model"`
}

// PDFStats summarizes extraction coverage for the whole artefact.
type PDFStats struct {
	PageCount      int   `json:"page_count"`
	ImagesDetected int   `json:"images_detected"`
	ImagesAnalysed int   `json:"images_analysed"`
	RasterPages    []int `json:"raster_pages"`
}

// PDFArtifact is the full extraction result for one PDF document.
// Invariant: every image element's BlobKey exists in the artefact's blob
// bundle; ImagesAnalysed <= ImagesDetected.
type PDFArtifact struct {
	Meta  PDFMeta   `json:"meta"`
	Pages []PDFPage `json:"pages"`
	Stats PDFStats  `json:"stats"`
}

// RasterMode selects how C7 handles pages with no selectable text.
type RasterMode string

const (
	RasterModeAuto   RasterMode = "auto"
	RasterModeManual RasterMode = "manual"
	RasterModeOff    RasterMode = "off"
)
