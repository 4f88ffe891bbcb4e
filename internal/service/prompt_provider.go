package service

import (
	"fmt"
	"strings"
)

// Prompt templates are a fixed input to the orchestration, not something it
// reasons about. The wording matches what the model was tuned against: brief
// segments ending in bracket-formatted choices.
const (
	startTemplate = "Start a new short story (max 3-4 sentences): %s. " +
		"Make it exciting and engaging. " +
		"At the end, provide 3 distinct action-oriented choices for the reader to continue the story, " +
		"formatted as: [Choice 1], [Choice 2], [Choice 3]."

	continueTemplate = "Continue the story based on the following choices: %s. %s " +
		"Keep it brief (max 3-4 sentences) and exciting. " +
		"At the end, provide 3 distinct action-oriented choices for the reader to continue the story, " +
		"formatted as: [Choice 1], [Choice 2], [Choice 3]."

	choiceRequestTemplate = "Continue the story based on the choice: %s"
)

// PromptProvider formats the fixed upstream prompt templates.
type PromptProvider struct{}

// FormatRequest builds the full model prompt for one generation request.
// With no prior choices it is a story opener; otherwise a continuation fed
// the ordered prior choices plus the new request text.
func (PromptProvider) FormatRequest(requestText string, priorChoices []string) string {
	if len(priorChoices) == 0 {
		return fmt.Sprintf(startTemplate, requestText)
	}
	return fmt.Sprintf(continueTemplate, strings.Join(priorChoices, ", "), requestText)
}

// ChoiceRequestText is the per-call request text recorded for a chosen
// option; it also feeds the cache key of that request context.
func (PromptProvider) ChoiceRequestText(choice string) string {
	return fmt.Sprintf(choiceRequestTemplate, choice)
}
