// Package advisor asks a language model for a plain-language explanation of
// a prediction.
package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/verte-zerg/heartaudit/internal/logging"
	"github.com/verte-zerg/heartaudit/internal/model"
	"github.com/verte-zerg/heartaudit/internal/scoring"
)

// Placeholder is returned whenever no explanation can be generated.
const Placeholder = "AI explanation unavailable. Please ensure an API key is configured."

const maxCompletionTokens = 400

// Completer sends chat completion requests.
type Completer interface {
	ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error)
}

// Advisor produces narrative explanations. A nil Completer always yields
// the placeholder.
type Advisor struct {
	Completer Completer
	Model     string
	Logger    *slog.Logger
}

// New returns an advisor. An empty apiKey disables remote calls.
func New(apiKey, baseURL, modelName string, logger *slog.Logger) *Advisor {
	a := &Advisor{Model: modelName, Logger: logger}
	if apiKey != "" {
		c := NewClient(apiKey, baseURL)
		c.Logger = logger
		a.Completer = c
	}
	return a
}

// Explain returns the model's explanation for a patient scored at
// probability p and classified at threshold, or Placeholder on any failure.
func (a *Advisor) Explain(ctx context.Context, patient model.Record, p, threshold float64, contribs []model.Contribution) string {
	logger := a.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if a.Completer == nil {
		logger.Debug("advisor disabled: no api key")
		return Placeholder
	}
	resp, err := a.Completer.ChatCompletion(ctx, ChatCompletionRequest{
		Model: a.Model,
		Messages: []ChatMessage{
			{Role: "system", Content: "You are an expert cardiologist assistant explaining model output to patients."},
			{Role: "user", Content: BuildPrompt(patient, p, threshold, contribs)},
		},
		MaxCompletionTokens: maxCompletionTokens,
	})
	if err != nil {
		logger.Warn("advisor request failed", "err", err)
		return Placeholder
	}
	if len(resp.Choices) == 0 {
		logger.Warn("advisor returned no choices")
		return Placeholder
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return Placeholder
	}
	return text
}

// BuildPrompt describes the patient profile and the predicted risk.
func BuildPrompt(patient model.Record, p, threshold float64, contribs []model.Contribution) string {
	sex := "Female"
	if patient.Sex == 1 {
		sex = "Male"
	}
	var b strings.Builder
	b.WriteString("Patient Profile:\n")
	fmt.Fprintf(&b, "- Age: %g\n", patient.Age)
	fmt.Fprintf(&b, "- Sex: %s\n", sex)
	fmt.Fprintf(&b, "- Cholesterol: %g mg/dl\n", patient.Chol)
	fmt.Fprintf(&b, "- Blood Pressure: %g mm Hg\n", patient.Trestbps)
	fmt.Fprintf(&b, "- Chest Pain Type: %g (Scale 0-3)\n", patient.CP)
	fmt.Fprintf(&b, "- Max Heart Rate: %g\n", patient.Thalach)
	fmt.Fprintf(&b, "\nThe model predicted: %s (%.1f%% probability).\n", scoring.RiskLabelAt(p, threshold), p*100)
	if len(contribs) > 0 {
		b.WriteString("Largest factors:\n")
		for i, c := range contribs {
			if i == 3 {
				break
			}
			fmt.Fprintf(&b, "- %s: %+.2f\n", c.Label, c.Value)
		}
	}
	b.WriteString(`
Please provide:
1. A simplified explanation of why this risk score was given based on the factors above.
2. Three general lifestyle changes that positively impact heart health.
3. A disclaimer that this is an educational demo and not a medical diagnosis.

Keep it under 200 words.`)
	return b.String()
}
