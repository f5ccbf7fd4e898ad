package domain

// ExtractionResult is the output of the external document-extraction
// service: a loosely-typed field map with a confidence score. Gavel never
// invokes the extractor itself; it only consumes this shape, and candidate
// values go through the same validation path as manually entered data.
type ExtractionResult struct {
	Fields     map[string]any `json:"fields"`
	Confidence float64        `json:"confidence"`

	MissingFields []string `json:"missingFields,omitempty"`

	DocumentType     string  `json:"documentType,omitempty"`
	PageCount        int     `json:"pageCount,omitempty"`
	ProcessingTimeMs float64 `json:"processingTimeMs,omitempty"`
}

// MinExtractionConfidence is the floor below which extracted fields are not
// eligible for automatic intake.
const MinExtractionConfidence = 0.5
