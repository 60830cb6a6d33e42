package textextract

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// Info describes what could be read locally from an uploaded file before it
// is sent to a vision model.
type Info struct {
	Kind  string
	Pages int
	// Text is the embedded text layer, empty for scans and images.
	Text string
}

// HasTextLayer reports whether the file carried machine-readable text.
func (i *Info) HasTextLayer() bool {
	return strings.TrimSpace(i.Text) != ""
}

// Inspect reads page count and any embedded text. Images report one page and
// no text.
func Inspect(data []byte, mimetype string) (*Info, error) {
	switch kind := Kind(mimetype); kind {
	case "pdf":
		return inspectPDF(data)
	case "text":
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("text file is not valid UTF-8")
		}
		return &Info{Kind: kind, Pages: 1, Text: string(bytes.TrimSpace(data))}, nil
	case "image":
		return &Info{Kind: kind, Pages: 1}, nil
	default:
		return nil, fmt.Errorf("unsupported file type: %s", mimetype)
	}
}

// Kind buckets a MIME type into pdf, image, text or "".
func Kind(mimetype string) string {
	mt := strings.ToLower(strings.TrimSpace(mimetype))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch {
	case mt == "application/pdf":
		return "pdf"
	case strings.HasPrefix(mt, "image/"):
		return "image"
	case mt == "text/plain" || mt == "text/markdown":
		return "text"
	default:
		return ""
	}
}

func inspectPDF(data []byte) (info *Info, err error) {
	// The PDF reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			info, err = nil, fmt.Errorf("open PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	var buf strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
		buf.WriteString("\n")
	}

	return &Info{Kind: "pdf", Pages: numPages, Text: strings.TrimSpace(buf.String())}, nil
}
