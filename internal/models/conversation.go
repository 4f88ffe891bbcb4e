package models

// StorySegment is one generated piece of the narrative. ChoiceTaken is the
// choice that led to this segment; it is nil only for the first segment of a
// session. Segments are immutable once appended to the history.
type StorySegment struct {
	Text        string  `json:"text"`
	ChoiceTaken *string `json:"choice"`
}

// ConversationState is the full state of one play-through. It is owned by the
// story service and persisted as a single unit; History is append-only within
// a session and cleared only by an explicit reset.
type ConversationState struct {
	Prompt       string         `json:"prompt"`
	Story        string         `json:"story"`
	Choices      []string       `json:"choices"`
	PriorChoices []string       `json:"previousChoices"`
	History      []StorySegment `json:"storyHistory"`
}

// NewConversationState returns the default-empty state used for a fresh
// session and as the fallback when persisted data is absent or corrupt.
func NewConversationState() *ConversationState {
	return &ConversationState{
		Choices:      []string{},
		PriorChoices: []string{},
		History:      []StorySegment{},
	}
}

// CacheEntry is the memoized result of one generation request.
type CacheEntry struct {
	StoryText string
	Choices   []string
}
