package gemini

// Wire envelope for the generateContent API. The request and response shapes
// must be reproduced exactly for interoperability; do not rename fields.

// Part is one text fragment of a content block.
type Part struct {
	Text string `json:"text"`
}

// Content is a block of parts in a request.
type Content struct {
	Parts []Part `json:"parts"`
}

// GenerateContentRequest is the request body for generateContent.
type GenerateContentRequest struct {
	Contents []Content `json:"contents"`
}

// NewGenerateContentRequest wraps a single prompt in the request envelope.
func NewGenerateContentRequest(prompt string) GenerateContentRequest {
	return GenerateContentRequest{
		Contents: []Content{
			{Parts: []Part{{Text: prompt}}},
		},
	}
}

// CandidateContent is the content block of one response candidate.
type CandidateContent struct {
	Parts []Part `json:"parts"`
}

// Candidate is one generated answer in the response.
type Candidate struct {
	Content *CandidateContent `json:"content"`
}

// GenerateContentResponse is the response body of generateContent.
type GenerateContentResponse struct {
	Candidates []Candidate `json:"candidates"`
}

// CandidateText returns the text of the first candidate. The second return
// is false when any nesting level is absent or the text is empty.
func (r *GenerateContentResponse) CandidateText() (string, bool) {
	if r == nil || len(r.Candidates) == 0 {
		return "", false
	}
	content := r.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return "", false
	}
	text := content.Parts[0].Text
	if text == "" {
		return "", false
	}
	return text, true
}
