// Package gemini generates song metadata (title, tags, lyrics) from a
// prompt using Google's Gemini API, with a deterministic fallback generator
// for configurations without an API key.
package gemini
