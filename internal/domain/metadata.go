package domain

// Metadata keys recognized in a task's free-form metadata map.
const (
	MetadataKeyTitle    = "title"
	MetadataKeyTags     = "tags"
	MetadataKeyLyrics   = "lyrics"
	MetadataKeyDuration = "duration"
)

// SongMetadata is the typed view of the song-related fields a client may
// supply in a task's metadata map. Any field may be empty; the generation
// pipeline fills missing fields before invoking the song backend.
type SongMetadata struct {
	Title    string  `json:"title,omitempty"`
	Tags     string  `json:"tags,omitempty"`
	Lyrics   string  `json:"lyrics,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// SongMetadataFromMap extracts the recognized song fields from a task's
// metadata map. Unknown keys and values of unexpected types are ignored.
func SongMetadataFromMap(metadata map[string]any) SongMetadata {
	var m SongMetadata
	if metadata == nil {
		return m
	}
	if v, ok := metadata[MetadataKeyTitle].(string); ok {
		m.Title = v
	}
	if v, ok := metadata[MetadataKeyTags].(string); ok {
		m.Tags = v
	}
	if v, ok := metadata[MetadataKeyLyrics].(string); ok {
		m.Lyrics = v
	}
	switch v := metadata[MetadataKeyDuration].(type) {
	case float64:
		m.Duration = v
	case int:
		m.Duration = float64(v)
	}
	return m
}

// Complete reports whether every field the song backend requires is present.
func (m SongMetadata) Complete() bool {
	return m.Title != "" && m.Tags != "" && m.Lyrics != ""
}

// Merge returns a copy of m with empty fields filled from other.
func (m SongMetadata) Merge(other SongMetadata) SongMetadata {
	merged := m
	if merged.Title == "" {
		merged.Title = other.Title
	}
	if merged.Tags == "" {
		merged.Tags = other.Tags
	}
	if merged.Lyrics == "" {
		merged.Lyrics = other.Lyrics
	}
	if merged.Duration == 0 {
		merged.Duration = other.Duration
	}
	return merged
}

// ToMap writes the populated fields into a metadata map, creating one if nil.
func (m SongMetadata) ToMap(metadata map[string]any) map[string]any {
	if metadata == nil {
		metadata = make(map[string]any)
	}
	if m.Title != "" {
		metadata[MetadataKeyTitle] = m.Title
	}
	if m.Tags != "" {
		metadata[MetadataKeyTags] = m.Tags
	}
	if m.Lyrics != "" {
		metadata[MetadataKeyLyrics] = m.Lyrics
	}
	if m.Duration != 0 {
		metadata[MetadataKeyDuration] = m.Duration
	}
	return metadata
}
