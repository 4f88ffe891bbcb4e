// Package parser extracts the structured story payload the model embeds in
// free text: bracket-delimited continuation choices plus the surrounding
// narrative.
package parser

import (
	"regexp"
	"strings"

	"story-client/internal/gemini"
	"story-client/internal/models"
)

// choicePattern matches one bracket-delimited choice token, non-greedy so
// that adjacent tokens stay separate.
var choicePattern = regexp.MustCompile(`\[(.*?)\]`)

// Result is a validated story segment: the narrative with every bracket
// token removed, and the choices in order of appearance.
type Result struct {
	StoryText string
	Choices   []string
}

// ParseResponse validates the upstream envelope and extracts the story
// segment from its candidate text. It fails with an invalid-response error
// when the envelope carries no text or the text offers no choices.
func ParseResponse(resp *gemini.GenerateContentResponse) (*Result, error) {
	text, ok := resp.CandidateText()
	if !ok {
		return nil, models.NewInvalidResponseError("invalid API response format")
	}
	return ParseText(text)
}

// ParseText extracts choices and narrative from raw model text in a single
// left-to-right pass. Duplicate choice texts are preserved as distinct
// options; a segment with no choices is not a valid result.
func ParseText(text string) (*Result, error) {
	matches := choicePattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil, models.NewInvalidResponseError("no choices found in the story response")
	}

	choices := make([]string, 0, len(matches))
	var narrative strings.Builder
	last := 0
	for _, m := range matches {
		narrative.WriteString(text[last:m[0]])
		choices = append(choices, text[m[2]:m[3]])
		last = m[1]
	}
	narrative.WriteString(text[last:])

	return &Result{
		StoryText: strings.TrimSpace(narrative.String()),
		Choices:   choices,
	}, nil
}
