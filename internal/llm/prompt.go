package llm

const baseMedicalPrompt = `You are a professional medical document analyst. Please analyze this medical document and provide a complete English translation.

TASK:
1. Extract ALL text from this medical document using OCR
2. Translate the content to professional English
3. Preserve medical terminology and document structure
4. Include patient information, test results, diagnoses, and recommendations

FORMAT your response as a structured medical report in English:

# Medical Report Translation

## Patient Information
[Extract and translate patient details]

## Document Details
- Original Document: [document name/type]
- Date: [if visible]
- Hospital/Clinic: [if visible]

## Medical Content
[Complete English translation of all medical content]

## Test Results
[Any lab results, imaging findings, etc.]

## Diagnosis/Findings
[Medical diagnoses or findings]

## Recommendations
[Treatment recommendations or follow-up instructions]

---
*Professional medical translation - preserve all clinical details*`

var promptSuffixes = map[string]string{
	"google/gemini-flash-1.5":            "Please be thorough and accurate in your OCR extraction.",
	"qwen/qwen-2.5-vl-72b-instruct":      "As a specialized Chinese model, please provide the most accurate OCR extraction and professional English translation for this Chinese medical document. Focus on preserving medical terminology and clinical accuracy.",
	"anthropic/claude-3-haiku-vision":    "Focus on medical accuracy and professional terminology.",
	"openai/gpt-4-vision-preview":        "Provide the most accurate medical translation possible.",
	"anthropic/claude-3.5-sonnet-vision": "Analyze thoroughly and provide comprehensive medical translation.",
	"dashscope/qwen-vl-plus":             "The source is most likely Chinese. Keep the original Chinese section headers in parentheses after each English header.",
	"dashscope/qwen-vl-max":              "The source is most likely Chinese. Keep the original Chinese section headers in parentheses after each English header.",
}

// MedicalPrompt returns the OCR+translation prompt tailored to modelID.
func MedicalPrompt(modelID string) string {
	if suffix, ok := promptSuffixes[modelID]; ok {
		return baseMedicalPrompt + "\n\n" + suffix
	}
	return baseMedicalPrompt
}
