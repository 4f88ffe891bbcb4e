package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPromptProvider(t *testing.T) {
	var p PromptProvider

	t.Run("opening prompt uses the start template", func(t *testing.T) {
		prompt := p.FormatRequest("a haunted lighthouse", nil)
		assert.True(t, strings.HasPrefix(prompt, "Start a new short story (max 3-4 sentences): a haunted lighthouse."))
		assert.Contains(t, prompt, "[Choice 1], [Choice 2], [Choice 3]")
	})

	t.Run("continuation prompt joins prior choices in order", func(t *testing.T) {
		prompt := p.FormatRequest(p.ChoiceRequestText("Climb down"), []string{"Enter", "Climb down"})
		assert.True(t, strings.HasPrefix(prompt, "Continue the story based on the following choices: Enter, Climb down."))
		assert.Contains(t, prompt, "Continue the story based on the choice: Climb down")
	})
}
