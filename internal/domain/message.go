package domain

import "strings"

// PartType identifies the kind of content carried by a message or artifact part.
type PartType string

// Possible part types
const (
	PartTypeText  PartType = "text"
	PartTypeAudio PartType = "audio"
	PartTypeFile  PartType = "file"
	PartTypeData  PartType = "data"
)

// Part is one element of a message or artifact payload. Exactly one of the
// content fields is populated, selected by Type.
type Part struct {
	Type     PartType       `json:"type"`
	Text     string         `json:"text,omitempty"`
	AudioURL string         `json:"audioUrl,omitempty"`
	FileURL  string         `json:"fileUrl,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// NewTextPart creates a text part with the given content.
func NewTextPart(text string) Part {
	return Part{Type: PartTypeText, Text: text}
}

// NewAudioPart creates an audio part referencing the given URL.
func NewAudioPart(url string) Part {
	return Part{Type: PartTypeAudio, AudioURL: url}
}

// NewDataPart creates a data part carrying structured key/value content.
func NewDataPart(data map[string]any) Part {
	return Part{Type: PartTypeData, Data: data}
}

// Valid reports whether the part's type is one of the known part types.
func (p Part) Valid() bool {
	switch p.Type {
	case PartTypeText, PartTypeAudio, PartTypeFile, PartTypeData:
		return true
	default:
		return false
	}
}

// Message is a request payload: a role plus an ordered sequence of parts.
type Message struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// NewTextMessage creates a message with a single text part.
func NewTextMessage(role, text string) *Message {
	return &Message{
		Role:  role,
		Parts: []Part{NewTextPart(text)},
	}
}

// Validate checks that the message has at least one part and that every part
// carries a known type.
func (m *Message) Validate() error {
	if m == nil {
		return ErrNilMessage
	}
	if len(m.Parts) == 0 {
		return ErrNoMessageParts
	}
	for _, p := range m.Parts {
		if !p.Valid() {
			return ErrInvalidPartType
		}
	}
	return nil
}

// Text returns the trimmed concatenation of all text parts, joined with
// newlines. Non-text parts are skipped.
func (m *Message) Text() string {
	if m == nil {
		return ""
	}
	var texts []string
	for _, p := range m.Parts {
		if p.Type == PartTypeText {
			texts = append(texts, p.Text)
		}
	}
	return strings.TrimSpace(strings.Join(texts, "\n"))
}

// HasTextContent reports whether the message contains at least one text part
// with non-empty trimmed content.
func (m *Message) HasTextContent() bool {
	if m == nil {
		return false
	}
	for _, p := range m.Parts {
		if p.Type == PartTypeText && strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}
