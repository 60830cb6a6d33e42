package document

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nikhilbhutani/medportal/internal/account"
	"github.com/nikhilbhutani/medportal/internal/llm"
	"github.com/nikhilbhutani/medportal/internal/models"
)

const reportText = `# Patient Information
Name: Zhang Wei

## Test Results
Hemoglobin 135 g/L

## Diagnosis
Mild anemia

## Recommendations
Iron supplements`

func startedDocument(t *testing.T, f *fixture) *models.Document {
	t.Helper()
	doc := f.upload(t, "scan.png", "png-bytes")
	if err := f.svc.StartProcessing(context.Background(), testAccount, doc.ID); err != nil {
		t.Fatalf("start processing: %v", err)
	}
	return doc
}

func TestProcessorCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := startedDocument(t, f)

	var gotSrc llm.Source
	chain := chainFunc(func(ctx context.Context, s llm.Subject, src llm.Source) llm.AggregateResult {
		gotSrc = src
		return succeedWith(reportText)(ctx, s, src)
	})
	if err := f.processor(chain).Run(ctx, f.queue.jobs[0]); err != nil {
		t.Fatalf("run: %v", err)
	}

	if string(gotSrc.Data) != "png-bytes" || gotSrc.URL != *doc.BlobURL {
		t.Errorf("source = %+v", gotSrc)
	}

	got := f.document(t, doc.ID)
	if !got.Processed || !got.ProcessingStatus.Completed() {
		t.Fatalf("status = %+v processed=%v", got.ProcessingStatus, got.Processed)
	}
	if pt := got.ProcessingStatus.OCR.ProcessingTime; pt == nil || *pt != 1234 {
		t.Errorf("ocr processing time = %v", pt)
	}

	pv := got.ProcessedVersions
	if pv.OCRText == nil || *pv.OCRText != reportText {
		t.Errorf("ocr text = %v", pv.OCRText)
	}
	if pv.MarkdownOriginal == nil || pv.JSONOriginal == nil || pv.MarkdownEnglish == nil || pv.JSONEnglish == nil {
		t.Fatalf("report urls missing: %+v", pv)
	}
	sd := pv.StructuredData
	if sd == nil || sd.ModelUsed != "paid-model" || sd.Tier != "premium" || sd.Attempts != 2 || sd.TokensUsed != 1500 {
		t.Errorf("structured data = %+v", sd)
	}
	if !sd.PatientInfoDetected || !sd.MedicalDataDetected || sd.Pages != 1 {
		t.Errorf("detection flags = %+v", sd)
	}
	td := pv.TranslatedData
	if td == nil || td.OriginalLanguage != "chinese" || td.TargetLanguage != "english" || td.Model != "Paid Model" {
		t.Errorf("translated data = %+v", td)
	}

	raw, err := f.blobs.Get(ctx, *pv.JSONEnglish)
	if err != nil {
		t.Fatalf("read result json: %v", err)
	}
	var result map[string]any
	if err := json.Unmarshal(raw, &result); err != nil || result["documentId"] != doc.ID {
		t.Errorf("result json = %s (%v)", raw, err)
	}

	for _, version := range []string{VersionProcessed, VersionTranslated} {
		view, err := f.svc.View(ctx, testAccount, doc.ID, version)
		if err != nil {
			t.Fatalf("view %s: %v", version, err)
		}
		if !strings.HasPrefix(view.Content, "# Medical Report Translation - scan.png") {
			t.Errorf("view %s = %q", version, view.Content)
		}
	}
}

func TestProcessorFailed(t *testing.T) {
	f := newFixture(t)
	doc := startedDocument(t, f)

	chain := chainFunc(func(context.Context, llm.Subject, llm.Source) llm.AggregateResult {
		return llm.AggregateResult{
			Outcome:  llm.Failure{ModelID: "c", Error: "All models failed. Last error: 429 - rate limited"},
			Attempts: 3,
		}
	})
	if err := f.processor(chain).Run(context.Background(), f.queue.jobs[0]); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := f.document(t, doc.ID)
	if got.Processed {
		t.Error("failed document must not be processed")
	}
	for _, st := range []models.StageStatus{got.ProcessingStatus.OCR, got.ProcessingStatus.Structuring, got.ProcessingStatus.Translation} {
		if st.Status != models.StageStatusFailed || !strings.Contains(st.Error, "429 - rate limited") {
			t.Errorf("stage = %+v", st)
		}
	}
	if got.ProcessedVersions.OCRText != nil {
		t.Error("failed run must not write versions")
	}

	view, err := f.svc.View(context.Background(), testAccount, doc.ID, VersionTranslated)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(view.Content, "Processing failed") {
		t.Errorf("view = %q", view.Content)
	}
}

func TestProcessorSkipsDocumentDeletedDuringRun(t *testing.T) {
	f := newFixture(t)
	doc := startedDocument(t, f)

	chain := chainFunc(func(ctx context.Context, s llm.Subject, src llm.Source) llm.AggregateResult {
		if _, err := f.svc.Delete(ctx, testAccount, doc.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		return succeedWith("late result")(ctx, s, src)
	})
	if err := f.processor(chain).Run(context.Background(), f.queue.jobs[0]); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := f.document(t, doc.ID); got != nil {
		t.Errorf("deleted document came back: %+v", got)
	}
}

func TestProcessorPanicMarksFailed(t *testing.T) {
	f := newFixture(t)
	doc := startedDocument(t, f)

	chain := chainFunc(func(context.Context, llm.Subject, llm.Source) llm.AggregateResult {
		panic("boom")
	})
	if err := f.processor(chain).Run(context.Background(), f.queue.jobs[0]); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := f.document(t, doc.ID)
	if got.ProcessingStatus.OCR.Status != models.StageStatusFailed || !strings.Contains(got.ProcessingStatus.OCR.Error, "internal error: boom") {
		t.Errorf("ocr = %+v", got.ProcessingStatus.OCR)
	}
}

func TestProcessorIgnoresJobForIdleDocument(t *testing.T) {
	f := newFixture(t)
	doc := f.upload(t, "a.png", "png")

	called := false
	chain := chainFunc(func(ctx context.Context, s llm.Subject, src llm.Source) llm.AggregateResult {
		called = true
		return succeedWith("x")(ctx, s, src)
	})
	job := Job{DocumentID: doc.ID, AccountNumber: testAccount}
	if err := f.processor(chain).Run(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("chain should not run for a document that is not processing")
	}
	if err := f.processor(chain).Run(context.Background(), Job{DocumentID: "gone", AccountNumber: "00-00-00-0000-00-0000"}); err != nil {
		t.Errorf("missing account should be skipped, got %v", err)
	}
}

func TestProcessorReportWriteFailureLeavesURLsEmpty(t *testing.T) {
	f := newFixture(t)
	doc := startedDocument(t, f)
	f.blobs.failPut = true

	if err := f.processor(succeedWith(reportText)).Run(context.Background(), f.queue.jobs[0]); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := f.document(t, doc.ID)
	if !got.Processed {
		t.Fatal("report write failures must not fail processing")
	}
	if got.ProcessedVersions.MarkdownEnglish != nil || got.ProcessedVersions.JSONEnglish != nil {
		t.Errorf("urls = %+v", got.ProcessedVersions)
	}

	// The view falls back to the stored translation text.
	view, err := f.svc.View(context.Background(), testAccount, doc.ID, VersionTranslated)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(view.Content, "## Translation") || !strings.Contains(view.Content, "Mild anemia") {
		t.Errorf("view = %q", view.Content)
	}
}

// flakyRepo fails the first Update call and passes the rest through.
type flakyRepo struct {
	*account.FileRepository
	failed bool
}

func (r *flakyRepo) Update(ctx context.Context, accountNumber string, fn func(*models.Account) error) (*models.Account, error) {
	if !r.failed {
		r.failed = true
		return nil, errors.New("transient write error")
	}
	return r.FileRepository.Update(ctx, accountNumber, fn)
}

func TestProcessorCompletionWriteFailureMarksFailed(t *testing.T) {
	f := newFixture(t)
	doc := startedDocument(t, f)

	p := NewProcessor(&flakyRepo{FileRepository: f.repo}, f.blobs, succeedWith(reportText), false)
	p.now = func() time.Time { return f.clock }
	if err := p.Run(context.Background(), f.queue.jobs[0]); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := f.document(t, doc.ID)
	if got.Processed || got.ProcessingStatus.OCR.Status != models.StageStatusFailed {
		t.Fatalf("status = %+v processed=%v", got.ProcessingStatus, got.Processed)
	}
	if !strings.Contains(got.ProcessingStatus.OCR.Error, "transient write error") {
		t.Errorf("ocr error = %q", got.ProcessingStatus.OCR.Error)
	}
}

func TestProcessorFailureWriteSurvivesCancelledContext(t *testing.T) {
	f := newFixture(t)
	doc := startedDocument(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	chain := chainFunc(func(context.Context, llm.Subject, llm.Source) llm.AggregateResult {
		cancel()
		panic("worker shutting down")
	})
	if err := f.processor(chain).Run(ctx, f.queue.jobs[0]); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := f.document(t, doc.ID); got.ProcessingStatus.OCR.Status != models.StageStatusFailed {
		t.Errorf("ocr = %+v", got.ProcessingStatus.OCR)
	}
}

func TestReprocessingCompletedDocumentClearsProcessed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := startedDocument(t, f)
	if err := f.processor(succeedWith(reportText)).Run(ctx, f.queue.jobs[0]); err != nil {
		t.Fatalf("run: %v", err)
	}

	if err := f.svc.StartProcessing(ctx, testAccount, doc.ID); err != nil {
		t.Fatalf("restart: %v", err)
	}
	got := f.document(t, doc.ID)
	if got.Processed {
		t.Error("a document back in processing must not be marked processed")
	}
	if got.ProcessingStatus.OCR.Status != models.StageStatusProcessing {
		t.Errorf("ocr = %+v", got.ProcessingStatus.OCR)
	}
}
