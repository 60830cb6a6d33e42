package document

import (
	"strings"
	"unicode"

	"github.com/nikhilbhutani/medportal/internal/models"
)

const (
	SectionPatientInfo     = "patient_info"
	SectionFindings        = "findings"
	SectionDiagnosis       = "diagnosis"
	SectionRecommendations = "recommendations"
	SectionGeneral         = "general"
)

// Keyword lists are matched against lower-cased headings, in this order.
var sectionKeywords = []struct {
	kind     string
	keywords []string
}{
	{SectionPatientInfo, []string{"patient", "personal", "demographic", "患者", "病人", "姓名", "基本信息", "一般资料"}},
	{SectionDiagnosis, []string{"diagnos", "impression", "assessment", "conclusion", "诊断", "结论", "印象"}},
	{SectionRecommendations, []string{"recommend", "advice", "treatment", "plan", "follow-up", "follow up", "建议", "治疗", "医嘱", "处理"}},
	{SectionFindings, []string{"finding", "result", "test", "lab", "examination", "observation", "measurement", "检查", "结果", "化验", "检验", "所见", "报告"}},
}

// knownHeaders are lines that count as headings even without markdown
// markers or a trailing colon.
var knownHeaders = map[string]bool{
	"patient information": true, "test results": true, "diagnosis": true,
	"recommendations": true, "findings": true, "impression": true,
	"clinical history": true, "medical notes": true, "document details": true,
	"患者信息": true, "检查结果": true, "诊断": true, "诊断意见": true,
	"建议": true, "检查所见": true, "医嘱": true,
}

// DetectSections splits model output into headed sections and classifies
// each one. Text before the first heading becomes an unheaded general
// section.
func DetectSections(text string) []models.Section {
	var (
		out     []models.Section
		heading string
		body    []string
		started bool
	)
	flush := func() {
		content := strings.TrimSpace(strings.Join(body, "\n"))
		if heading != "" || content != "" {
			out = append(out, models.Section{Type: ClassifySection(heading), Heading: heading, Content: content})
		}
		body = body[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		if h, ok := headingOf(line); ok {
			if started || len(body) > 0 {
				flush()
			}
			heading, started = h, true
			continue
		}
		body = append(body, line)
	}
	flush()
	return out
}

func headingOf(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", false
	}

	if strings.HasPrefix(trimmed, "#") {
		h := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		return h, h != ""
	}

	bare := strings.TrimSpace(strings.Trim(trimmed, "*_"))
	if knownHeaders[strings.ToLower(bare)] {
		return bare, true
	}

	if r := []rune(bare); len(r) > 0 && len(r) <= 40 {
		last := r[len(r)-1]
		if (last == ':' || last == '：') && !strings.HasPrefix(bare, "-") && looksLikeLabel(r[:len(r)-1]) {
			return strings.TrimSpace(string(r[:len(r)-1])), true
		}
	}
	return "", false
}

// looksLikeLabel rejects "key: value"-style lines that merely end in a colon
// after a number or punctuation.
func looksLikeLabel(r []rune) bool {
	if len(r) == 0 {
		return false
	}
	for _, c := range r {
		if unicode.IsDigit(c) {
			return false
		}
	}
	return true
}

// ClassifySection maps a heading to one of the section kinds.
func ClassifySection(heading string) string {
	h := strings.ToLower(heading)
	if h == "" {
		return SectionGeneral
	}
	for _, group := range sectionKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(h, kw) {
				return group.kind
			}
		}
	}
	return SectionGeneral
}

func hasSection(sections []models.Section, kinds ...string) bool {
	for _, s := range sections {
		for _, k := range kinds {
			if s.Type == k {
				return true
			}
		}
	}
	return false
}

// containsHan reports whether text has any CJK ideographs.
func containsHan(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}
