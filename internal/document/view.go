package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nikhilbhutani/medportal/internal/models"
)

const (
	VersionOriginal   = "original"
	VersionProcessed  = "processed"
	VersionTranslated = "translated"
)

const markdownType = "text/markdown"

// ViewResult is either a redirect to the stored file or inline content.
type ViewResult struct {
	RedirectURL  string
	Content      string
	ContentType  string
	DocumentName string
}

// View renders one version of a document. It never changes stored state.
func (s *Service) View(ctx context.Context, accountNumber, documentID, version string) (*ViewResult, error) {
	if version == "" {
		version = VersionOriginal
	}
	switch version {
	case VersionOriginal, VersionProcessed, VersionTranslated:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownVersion, version)
	}

	acc, err := s.repo.Get(ctx, accountNumber)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	doc, _ := acc.FindDocument(documentID)
	if doc == nil {
		return nil, ErrNotFound
	}
	doc.Normalize()

	if version == VersionOriginal {
		return viewOriginal(doc), nil
	}
	return s.viewProcessed(ctx, doc, version), nil
}

func viewOriginal(doc *models.Document) *ViewResult {
	if doc.HasBlob() {
		return &ViewResult{
			RedirectURL:  *doc.BlobURL,
			ContentType:  doc.Mimetype,
			DocumentName: doc.OriginalName,
		}
	}

	size := "Unknown"
	if doc.Size > 0 {
		size = fmt.Sprintf("%d KB", (doc.Size+512)/1024)
	}
	mimetype := doc.Mimetype
	if mimetype == "" {
		mimetype = "Unknown"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", doc.OriginalName)
	b.WriteString("**File Preview Not Available**\n\n")
	b.WriteString("This document was uploaded but the file content is not available for preview.\n\n")
	b.WriteString("Document details:\n")
	fmt.Fprintf(&b, "- Original name: %s\n", doc.OriginalName)
	fmt.Fprintf(&b, "- Upload date: %s\n", formatTime(doc.UploadDate))
	fmt.Fprintf(&b, "- File size: %s\n", size)
	fmt.Fprintf(&b, "- MIME type: %s\n\n", mimetype)
	b.WriteString("**Note**: Re-upload this file to enable preview.")

	return &ViewResult{Content: b.String(), ContentType: markdownType, DocumentName: doc.OriginalName}
}

func (s *Service) viewProcessed(ctx context.Context, doc *models.Document, version string) *ViewResult {
	label := "Translation"
	if version == VersionProcessed {
		label = "OCR Processing"
	}
	st := doc.ProcessingStatus

	if doc.IsProcessing() {
		var b strings.Builder
		fmt.Fprintf(&b, "# %s - Processing in Progress\n\n", doc.OriginalName)
		b.WriteString("**Current Status**: Processing\n\n**Processing Steps:**\n\n")
		writeStages(&b, st)
		b.WriteString("\nResults will appear here when processing is complete.\n\n*Refresh this page to see updated status*")
		return &ViewResult{
			Content:      b.String(),
			ContentType:  markdownType,
			DocumentName: fmt.Sprintf("%s (%s - processing)", doc.OriginalName, version),
		}
	}

	if !doc.Processed {
		var b strings.Builder
		fmt.Fprintf(&b, "# %s - %s\n\n", doc.OriginalName, label)
		if st.OCR.Status == models.StageStatusFailed {
			fmt.Fprintf(&b, "**Status**: Processing failed\n\n**Error**: %s\n\n", st.OCR.Error)
		} else {
			b.WriteString("**Status**: Not yet processed\n\n")
		}
		b.WriteString("**To process this document:**\n")
		b.WriteString("1. Click the \"Process\" button in the document list\n")
		b.WriteString("2. Wait for OCR and translation to complete\n")
		b.WriteString("3. Refresh this view to see results\n\n")
		b.WriteString("**Current Processing Status:**\n")
		writeStages(&b, st)
		return &ViewResult{
			Content:      b.String(),
			ContentType:  markdownType,
			DocumentName: fmt.Sprintf("%s (%s - pending)", doc.OriginalName, version),
		}
	}

	pv := doc.ProcessedVersions
	reportURL, name := pv.MarkdownOriginal, doc.OriginalName+" (OCR Results)"
	if version == VersionTranslated {
		reportURL, name = pv.MarkdownEnglish, doc.OriginalName+" (English Translation)"
	}

	if reportURL != nil && *reportURL != "" {
		content, err := s.fetchReport(ctx, *reportURL)
		if err == nil {
			return &ViewResult{Content: content, ContentType: markdownType, DocumentName: name}
		}
		slog.Warn("fetch report", "document_id", doc.ID, "version", version, "error", err)
	}

	if content, ok := fallbackReport(doc, version); ok {
		return &ViewResult{Content: content, ContentType: markdownType, DocumentName: name}
	}

	stage := st.Translation
	if version == VersionProcessed {
		stage = st.OCR
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s - %s\n\n", doc.OriginalName, label)
	b.WriteString("**Status**: Processing completed but content not available\n\n")
	fmt.Fprintf(&b, "The document was processed successfully, but the %s content could not be retrieved.\n\n", version)
	b.WriteString("**Processing Details:**\n")
	fmt.Fprintf(&b, "- Completed: %s\n", formatTimePtr(stage.CompletedAt))
	fmt.Fprintf(&b, "- Processing Time: %dms\n\n", derefInt64(stage.ProcessingTime))
	b.WriteString("Please try processing the document again.")
	return &ViewResult{
		Content:      b.String(),
		ContentType:  markdownType,
		DocumentName: fmt.Sprintf("%s (%s - error)", doc.OriginalName, version),
	}
}

func fallbackReport(doc *models.Document, version string) (string, bool) {
	pv := doc.ProcessedVersions
	st := doc.ProcessingStatus
	var b strings.Builder

	switch version {
	case VersionProcessed:
		if pv.OCRText == nil || *pv.OCRText == "" {
			return "", false
		}
		fmt.Fprintf(&b, "# OCR Results - %s\n\n", doc.OriginalName)
		fmt.Fprintf(&b, "**Processing Date:** %s\n", formatTimePtr(st.OCR.CompletedAt))
		fmt.Fprintf(&b, "**Processing Time:** %dms\n\n", derefInt64(st.OCR.ProcessingTime))
		fmt.Fprintf(&b, "## Extracted Text\n\n%s", *pv.OCRText)
	case VersionTranslated:
		td := pv.TranslatedData
		if td == nil || td.TranslatedText == "" {
			return "", false
		}
		fmt.Fprintf(&b, "# Medical Report Translation - %s\n\n", doc.OriginalName)
		fmt.Fprintf(&b, "**Translation Date:** %s\n", formatTimePtr(st.Translation.CompletedAt))
		fmt.Fprintf(&b, "**Model:** %s\n", td.Model)
		fmt.Fprintf(&b, "**Processing Time:** %dms\n\n", td.ProcessingTime)
		fmt.Fprintf(&b, "## Translation\n\n%s", td.TranslatedText)
	default:
		return "", false
	}
	return b.String(), true
}

func (s *Service) fetchReport(ctx context.Context, url string) (string, error) {
	key := reportCacheKey(url)
	if s.cache != nil {
		var cached string
		ok, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			slog.Warn("report cache get", "error", err)
		}
		if ok {
			return cached, nil
		}
	}

	data, err := s.blobs.Get(ctx, url)
	if err != nil {
		return "", err
	}
	content := string(data)
	if strings.TrimSpace(content) == "" {
		return "", errors.New("report is empty")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, content, s.reportTTL); err != nil {
			slog.Warn("report cache set", "error", err)
		}
	}
	return content, nil
}

func reportCacheKey(url string) string { return "report:" + url }

func writeStages(b *strings.Builder, st models.ProcessingStatus) {
	for _, s := range []struct {
		name   string
		status string
	}{
		{"OCR", st.OCR.Status},
		{"Structuring", st.Structuring.Status},
		{"Translation", st.Translation.Status},
	} {
		fmt.Fprintf(b, "- %s %s: %s\n", stageIcon(s.status), s.name, s.status)
	}
}

func stageIcon(status string) string {
	switch status {
	case models.StageStatusCompleted:
		return "✅"
	case models.StageStatusProcessing:
		return "🔄"
	case models.StageStatusFailed:
		return "❌"
	default:
		return "⏳"
	}
}

const displayTime = "2006-01-02 15:04:05 UTC"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "Unknown"
	}
	return t.UTC().Format(displayTime)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "Unknown"
	}
	return formatTime(*t)
}

func derefInt64(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
