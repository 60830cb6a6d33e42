package document

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nikhilbhutani/medportal/internal/llm"
	"github.com/nikhilbhutani/medportal/internal/models"
	"github.com/nikhilbhutani/medportal/internal/storage"
)

// ReportInput is everything a report renders. GeneratedAt is passed in so
// output is deterministic.
type ReportInput struct {
	Document    models.Document
	Model       llm.ModelConfig
	Result      llm.Success
	Attempts    int
	ElapsedMs   int64
	Sections    []models.Section
	GeneratedAt time.Time
}

// ReportGenerator writes the markdown and JSON artifacts of a successful run
// through the blob store.
type ReportGenerator struct {
	blobs storage.BlobStore
}

func NewReportGenerator(blobs storage.BlobStore) *ReportGenerator {
	return &ReportGenerator{blobs: blobs}
}

func MarkdownPath(documentID string) string { return "processed/" + documentID + "-translated.md" }
func ResultPath(documentID string) string   { return "processed/" + documentID + "-result.json" }

// Generate stores both artifacts and returns their URLs. A failed write
// yields an empty URL for that artifact and is logged only.
func (g *ReportGenerator) Generate(ctx context.Context, in ReportInput) (markdownURL, jsonURL string) {
	md := RenderMarkdown(in)
	url, err := g.blobs.Put(ctx, MarkdownPath(in.Document.ID), []byte(md), "text/markdown; charset=utf-8")
	if err != nil {
		slog.Error("write markdown report", "document_id", in.Document.ID, "error", err)
	} else {
		markdownURL = url
	}

	data, err := RenderJSON(in)
	if err == nil {
		url, err = g.blobs.Put(ctx, ResultPath(in.Document.ID), data, "application/json")
	}
	if err != nil {
		slog.Error("write json report", "document_id", in.Document.ID, "error", err)
	} else {
		jsonURL = url
	}
	return markdownURL, jsonURL
}

// RenderMarkdown builds the human-readable report.
func RenderMarkdown(in ReportInput) string {
	doc, m, r := in.Document, in.Model, in.Result
	name := m.DisplayName
	if name == "" {
		name = m.ID
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Medical Report Translation - %s\n\n", doc.OriginalName)
	fmt.Fprintf(&b, "**Document ID:** %s  \n", doc.ID)
	fmt.Fprintf(&b, "**Translation Date:** %s  \n", in.GeneratedAt.UTC().Format(displayTime))
	fmt.Fprintf(&b, "**AI Model:** %s  \n", name)
	fmt.Fprintf(&b, "**Model Tier:** %s  \n", m.Tier)
	fmt.Fprintf(&b, "**Processing Time:** %dms  \n", in.ElapsedMs)
	fmt.Fprintf(&b, "**Tokens Used:** %d  \n", r.TokensUsed)
	fmt.Fprintf(&b, "**Estimated Cost:** $%.4f\n\n", r.CostEstimate)

	b.WriteString("## Translation Results\n\n")
	b.WriteString(strings.TrimSpace(r.Text))
	b.WriteString("\n\n")

	if len(in.Sections) > 0 {
		b.WriteString("## Detected Sections\n\n")
		for _, s := range in.Sections {
			heading := s.Heading
			if heading == "" {
				heading = "(untitled)"
			}
			fmt.Fprintf(&b, "- %s: %s\n", s.Type, heading)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Processing Details\n\n")
	fmt.Fprintf(&b, "- **Provider:** %s\n", m.Provider)
	fmt.Fprintf(&b, "- **Model:** %s\n", m.ID)
	if m.Description != "" {
		fmt.Fprintf(&b, "- **Tier:** %s (%s)\n", m.Tier, m.Description)
	} else {
		fmt.Fprintf(&b, "- **Tier:** %s\n", m.Tier)
	}
	fmt.Fprintf(&b, "- **Cost per 1K tokens:** $%g\n", m.CostPerKToken)
	fmt.Fprintf(&b, "- **Attempts:** %d\n", in.Attempts)
	fmt.Fprintf(&b, "- **Original File:** %s (%s, %d bytes)\n", doc.OriginalName, doc.Mimetype, doc.Size)
	return b.String()
}

type reportJSON struct {
	DocumentID     string           `json:"documentId"`
	OriginalName   string           `json:"originalName"`
	GeneratedAt    time.Time        `json:"generatedAt"`
	Model          string           `json:"model"`
	ModelName      string           `json:"modelName"`
	Provider       string           `json:"provider"`
	Tier           string           `json:"tier"`
	Attempts       int              `json:"attempts"`
	ProcessingTime int64            `json:"processingTime"`
	TokensUsed     int              `json:"tokensUsed"`
	EstimatedCost  float64          `json:"estimatedCost"`
	Text           string           `json:"text"`
	Sections       []models.Section `json:"sections"`
}

func RenderJSON(in ReportInput) ([]byte, error) {
	sections := in.Sections
	if sections == nil {
		sections = []models.Section{}
	}
	return json.MarshalIndent(reportJSON{
		DocumentID:     in.Document.ID,
		OriginalName:   in.Document.OriginalName,
		GeneratedAt:    in.GeneratedAt.UTC(),
		Model:          in.Model.ID,
		ModelName:      in.Model.DisplayName,
		Provider:       in.Model.Provider,
		Tier:           in.Model.Tier,
		Attempts:       in.Attempts,
		ProcessingTime: in.ElapsedMs,
		TokensUsed:     in.Result.TokensUsed,
		EstimatedCost:  in.Result.CostEstimate,
		Text:           in.Result.Text,
		Sections:       sections,
	}, "", "  ")
}
