package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/nikhilbhutani/medportal/internal/account"
	"github.com/nikhilbhutani/medportal/internal/llm"
	"github.com/nikhilbhutani/medportal/internal/models"
	"github.com/nikhilbhutani/medportal/internal/storage"
	"github.com/nikhilbhutani/medportal/pkg/textextract"
)

const terminalWriteTimeout = 30 * time.Second

// Processor performs the detached part of document processing: run the model
// chain and persist the terminal state.
type Processor struct {
	repo         account.Repository
	blobs        storage.BlobStore
	chain        llm.Processor
	reports      *ReportGenerator
	inlineSource bool
	now          func() time.Time
}

func NewProcessor(repo account.Repository, blobs storage.BlobStore, chain llm.Processor, inlineSource bool) *Processor {
	return &Processor{
		repo:         repo,
		blobs:        blobs,
		chain:        chain,
		reports:      NewReportGenerator(blobs),
		inlineSource: inlineSource,
		now:          time.Now,
	}
}

// Run processes one job. Every path that returns leaves the document
// completed or failed unless it was deleted or is no longer processing.
// The returned error only reports a failure to persist the outcome.
func (p *Processor) Run(ctx context.Context, job Job) (err error) {
	log := slog.With("document_id", job.DocumentID, "account", account.Mask(job.AccountNumber))

	acc, err := p.repo.Get(ctx, job.AccountNumber)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			log.Warn("account gone, skipping processing")
			return nil
		}
		return fmt.Errorf("load account: %w", err)
	}
	found, _ := acc.FindDocument(job.DocumentID)
	if found == nil {
		log.Warn("document deleted before processing, skipping")
		return nil
	}
	if !found.IsProcessing() {
		log.Info("document not in processing state, skipping", "status", found.ProcessingStatus.OCR.Status)
		return nil
	}
	doc := *found

	defer func() {
		if r := recover(); r != nil {
			log.Error("processing panicked", "panic", r, "stack", string(debug.Stack()))
			err = p.failDetached(ctx, job, fmt.Sprintf("internal error: %v", r))
		}
	}()

	src, info := p.source(ctx, &doc, log)
	result := p.chain.Process(ctx, llm.Subject{DocumentID: doc.ID, Name: doc.OriginalName, MimeType: doc.Mimetype}, src)

	success, ok := result.Succeeded()
	if !ok {
		log.Error("processing failed", "attempts", result.Attempts, "error", result.Error())
		return p.fail(ctx, job, result.Error())
	}

	now := p.now().UTC()
	versions := p.buildVersions(ctx, doc, result, success, info, now)

	_, err = p.repo.Update(ctx, job.AccountNumber, func(acc *models.Account) error {
		d, _ := acc.FindDocument(job.DocumentID)
		if d == nil {
			return ErrNotFound
		}
		d.MarkCompleted(now, result.ElapsedMs, versions)
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		log.Warn("document deleted during processing, result discarded")
		return nil
	}
	if err != nil {
		log.Error("save processing result", "error", err)
		return p.failDetached(ctx, job, fmt.Sprintf("save processing result: %v", err))
	}

	log.Info("processing completed",
		"model", success.ModelID,
		"attempts", result.Attempts,
		"tokens", success.TokensUsed,
		"cost", success.CostEstimate,
		"elapsed_ms", result.ElapsedMs,
	)
	return nil
}

// source fetches the stored bytes. If the fetch fails the model still gets
// the blob URL.
func (p *Processor) source(ctx context.Context, doc *models.Document, log *slog.Logger) (llm.Source, *textextract.Info) {
	src := llm.Source{MimeType: doc.Mimetype, PreferInline: p.inlineSource}
	if doc.HasBlob() {
		src.URL = *doc.BlobURL
	}

	data, err := p.blobs.Get(ctx, src.URL)
	if err != nil {
		log.Warn("fetch document bytes, falling back to url", "error", err)
		return src, nil
	}
	src.Data = data

	info, err := textextract.Inspect(data, doc.Mimetype)
	if err != nil {
		log.Debug("inspect document", "error", err)
		return src, nil
	}
	return src, info
}

func (p *Processor) buildVersions(ctx context.Context, doc models.Document, result llm.AggregateResult, success llm.Success, info *textextract.Info, now time.Time) models.ProcessedVersions {
	sections := DetectSections(success.Text)
	pages := 0
	sourceLanguage := "chinese"
	if info != nil {
		pages = info.Pages
		if info.HasTextLayer() && !containsHan(info.Text) {
			sourceLanguage = "other"
		}
	}

	mdURL, jsonURL := p.reports.Generate(ctx, ReportInput{
		Document:    doc,
		Model:       result.Winner,
		Result:      success,
		Attempts:    result.Attempts,
		ElapsedMs:   result.ElapsedMs,
		Sections:    sections,
		GeneratedAt: now,
	})

	text := success.Text
	return models.ProcessedVersions{
		OCRText:          &text,
		MarkdownOriginal: optional(mdURL),
		JSONOriginal:     optional(jsonURL),
		MarkdownEnglish:  optional(mdURL),
		JSONEnglish:      optional(jsonURL),
		StructuredData: &models.StructuredData{
			DocumentType:        "medical_report",
			ModelUsed:           success.ModelID,
			Tier:                result.Winner.Tier,
			TokensUsed:          success.TokensUsed,
			EstimatedCost:       success.CostEstimate,
			Attempts:            result.Attempts,
			Pages:               pages,
			Sections:            sections,
			PatientInfoDetected: hasSection(sections, SectionPatientInfo),
			MedicalDataDetected: hasSection(sections, SectionFindings, SectionDiagnosis),
		},
		TranslatedData: &models.TranslatedData{
			OriginalLanguage: sourceLanguage,
			TargetLanguage:   "english",
			TranslatedText:   success.Text,
			Model:            result.Winner.DisplayName,
			ProcessingTime:   result.ElapsedMs,
		},
	}
}

// failDetached writes the failed state with a context of its own, so a
// cancelled or expired run still leaves the document out of processing.
func (p *Processor) failDetached(ctx context.Context, job Job, msg string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
	defer cancel()
	return p.fail(ctx, job, msg)
}

func (p *Processor) fail(ctx context.Context, job Job, msg string) error {
	_, err := p.repo.Update(ctx, job.AccountNumber, func(acc *models.Account) error {
		d, _ := acc.FindDocument(job.DocumentID)
		if d == nil {
			return ErrNotFound
		}
		d.MarkFailed(msg)
		return nil
	})
	if errors.Is(err, ErrNotFound) || errors.Is(err, account.ErrNotFound) {
		slog.Warn("document deleted during processing, failure discarded", "document_id", job.DocumentID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("save processing failure: %w", err)
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
