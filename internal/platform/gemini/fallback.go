package gemini

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/songforge/agent-api/internal/domain"
)

// knownStyles maps prompt keywords to style tags for the fallback generator.
var knownStyles = []string{
	"rock", "pop", "jazz", "blues", "folk", "country", "metal", "punk",
	"ambient", "techno", "house", "synthwave", "lo-fi", "hip hop", "rap",
	"classical", "piano", "acoustic", "electronic", "orchestral", "trance",
}

// titleWordLimit caps how many prompt words the fallback title uses.
const titleWordLimit = 6

// FallbackGenerator derives song metadata from the prompt text alone,
// without calling any model. It keeps the agent fully functional when no
// Gemini API key is configured.
type FallbackGenerator struct{}

// NewFallbackGenerator creates a FallbackGenerator.
func NewFallbackGenerator() *FallbackGenerator {
	return &FallbackGenerator{}
}

// GenerateMetadata builds deterministic metadata from the prompt.
func (g *FallbackGenerator) GenerateMetadata(_ context.Context, prompt string) (domain.SongMetadata, error) {
	prompt = strings.TrimSpace(prompt)
	return domain.SongMetadata{
		Title:  titleFromPrompt(prompt),
		Tags:   tagsFromPrompt(prompt),
		Lyrics: lyricsFromPrompt(prompt),
	}, nil
}

// titleFromPrompt title-cases the first few words of the prompt.
func titleFromPrompt(prompt string) string {
	words := strings.Fields(prompt)
	if len(words) > titleWordLimit {
		words = words[:titleWordLimit]
	}
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	title := strings.Join(words, " ")
	if title == "" {
		title = "Untitled Song"
	}
	return title
}

// tagsFromPrompt collects the style keywords the prompt mentions.
func tagsFromPrompt(prompt string) string {
	lower := strings.ToLower(prompt)
	var tags []string
	for _, style := range knownStyles {
		if strings.Contains(lower, style) {
			tags = append(tags, style)
		}
	}
	if len(tags) == 0 {
		tags = []string{"pop"}
	}
	return strings.Join(tags, ", ")
}

// lyricsFromPrompt builds a minimal verse/chorus skeleton around the prompt.
func lyricsFromPrompt(prompt string) string {
	theme := strings.TrimRight(prompt, ".!?")
	if theme == "" {
		theme = "a song without words"
	}
	return fmt.Sprintf("[Verse]\nThis is a song about %s\nCarried on a simple melody\n\n[Chorus]\n%s\nSing it back to me\n",
		theme, titleFromPrompt(prompt))
}
