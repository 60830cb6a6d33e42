package llm

import "github.com/nikhilbhutani/medportal/pkg/tokenizer"

// CalculateCost prices a call from the total token count and the model's
// per-1K-token rate.
func CalculateCost(model ModelConfig, tokensUsed int) float64 {
	return float64(tokensUsed) / 1000.0 * model.CostPerKToken
}

// tokensOrEstimate returns reported when the API sent usage, otherwise a
// rough count over prompt and completion.
func tokensOrEstimate(reported int, model ModelConfig, prompt, completion string) int {
	if reported > 0 {
		return reported
	}
	return tokenizer.CountTokensForModel(prompt, model.APIModel()) +
		tokenizer.CountTokensForModel(completion, model.APIModel())
}
