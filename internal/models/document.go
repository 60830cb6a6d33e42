package models

import (
	"time"
)

const (
	StageStatusPending    = "pending"
	StageStatusProcessing = "processing"
	StageStatusCompleted  = "completed"
	StageStatusFailed     = "failed"
)

// Document is one uploaded file and its processing lineage. The JSON shape is
// the persisted contract and must stay stable.
type Document struct {
	ID                string            `json:"id"`
	OriginalName      string            `json:"originalName"`
	Mimetype          string            `json:"mimetype"`
	Size              int64             `json:"size"`
	Description       string            `json:"description,omitempty"`
	UploadDate        time.Time         `json:"uploadDate"`
	BlobURL           *string           `json:"blobUrl"`
	Processed         bool              `json:"processed"`
	ProcessingStatus  ProcessingStatus  `json:"processingStatus"`
	ProcessedVersions ProcessedVersions `json:"processedVersions"`
}

// ProcessingStatus tracks the three pipeline stages. They are produced by one
// model call, so they move together.
type ProcessingStatus struct {
	OCR         StageStatus `json:"ocr"`
	Structuring StageStatus `json:"structuring"`
	Translation StageStatus `json:"translation"`
}

type StageStatus struct {
	Status         string     `json:"status"`
	Error          string     `json:"error,omitempty"`
	StartTime      *time.Time `json:"startTime,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	ProcessingTime *int64     `json:"processingTime,omitempty"`
}

type ProcessedVersions struct {
	OCRText          *string         `json:"ocrText"`
	MarkdownOriginal *string         `json:"markdownOriginal"`
	JSONOriginal     *string         `json:"jsonOriginal"`
	MarkdownEnglish  *string         `json:"markdownEnglish"`
	JSONEnglish      *string         `json:"jsonEnglish"`
	StructuredData   *StructuredData `json:"structuredData,omitempty"`
	TranslatedData   *TranslatedData `json:"translatedData,omitempty"`
}

type StructuredData struct {
	DocumentType        string    `json:"document_type"`
	ModelUsed           string    `json:"model_used"`
	Tier                string    `json:"tier"`
	TokensUsed          int       `json:"tokens_used"`
	EstimatedCost       float64   `json:"estimated_cost"`
	Attempts            int       `json:"attempts"`
	Pages               int       `json:"pages,omitempty"`
	Sections            []Section `json:"sections"`
	PatientInfoDetected bool      `json:"patient_info_detected"`
	MedicalDataDetected bool      `json:"medical_data_detected"`
}

type Section struct {
	Type    string `json:"type"`
	Heading string `json:"heading"`
	Content string `json:"content"`
}

type TranslatedData struct {
	OriginalLanguage string `json:"original_language"`
	TargetLanguage   string `json:"target_language"`
	TranslatedText   string `json:"translated_text"`
	Model            string `json:"model"`
	ProcessingTime   int64  `json:"processing_time"`
}

// NewDocument returns a document in the all-pending state.
func NewDocument(id, name, mimetype string, size int64, uploaded time.Time) Document {
	return Document{
		ID:           id,
		OriginalName: name,
		Mimetype:     mimetype,
		Size:         size,
		UploadDate:   uploaded,
		ProcessingStatus: ProcessingStatus{
			OCR:         StageStatus{Status: StageStatusPending},
			Structuring: StageStatus{Status: StageStatusPending},
			Translation: StageStatus{Status: StageStatusPending},
		},
	}
}

func (d *Document) HasBlob() bool {
	return d.BlobURL != nil && *d.BlobURL != ""
}

func (d *Document) IsProcessing() bool {
	return d.ProcessingStatus.OCR.Status == StageStatusProcessing
}

// Completed reports whether every stage finished successfully.
func (s ProcessingStatus) Completed() bool {
	return s.OCR.Status == StageStatusCompleted &&
		s.Structuring.Status == StageStatusCompleted &&
		s.Translation.Status == StageStatusCompleted
}

// MarkProcessing moves OCR to processing and resets the other stages. A
// re-run clears Processed until it completes again.
func (d *Document) MarkProcessing(now time.Time) {
	d.Processed = false
	d.ProcessingStatus = ProcessingStatus{
		OCR:         StageStatus{Status: StageStatusProcessing, StartTime: &now},
		Structuring: StageStatus{Status: StageStatusPending},
		Translation: StageStatus{Status: StageStatusPending},
	}
}

// MarkCompleted records a successful run. elapsedMs is attributed to OCR; the
// other stages ran inside the same call.
func (d *Document) MarkCompleted(now time.Time, elapsedMs int64, versions ProcessedVersions) {
	var zero int64
	start := d.ProcessingStatus.OCR.StartTime
	d.Processed = true
	d.ProcessingStatus = ProcessingStatus{
		OCR:         StageStatus{Status: StageStatusCompleted, StartTime: start, CompletedAt: &now, ProcessingTime: &elapsedMs},
		Structuring: StageStatus{Status: StageStatusCompleted, CompletedAt: &now, ProcessingTime: &zero},
		Translation: StageStatus{Status: StageStatusCompleted, CompletedAt: &now, ProcessingTime: &zero},
	}
	d.ProcessedVersions = versions
}

// MarkFailed records a terminal failure on every stage.
func (d *Document) MarkFailed(msg string) {
	if msg == "" {
		msg = "processing failed"
	}
	start := d.ProcessingStatus.OCR.StartTime
	d.Processed = false
	d.ProcessingStatus = ProcessingStatus{
		OCR:         StageStatus{Status: StageStatusFailed, Error: msg, StartTime: start},
		Structuring: StageStatus{Status: StageStatusFailed, Error: msg},
		Translation: StageStatus{Status: StageStatusFailed, Error: msg},
	}
}

// Normalize fills fields missing from documents written by older versions and
// reports whether anything changed.
func (d *Document) Normalize() bool {
	changed := false
	for _, st := range []*StageStatus{&d.ProcessingStatus.OCR, &d.ProcessingStatus.Structuring, &d.ProcessingStatus.Translation} {
		if st.Status == "" {
			st.Status = StageStatusPending
			changed = true
		}
	}
	if d.Processed && !d.ProcessingStatus.Completed() {
		d.Processed = false
		changed = true
	}
	return changed
}
