package services

import "context"

// SpeechSynthesizer converts narration text into an audio file on disk.
// The production implementation shells out to edge-tts; tests use an
// in-memory fake so pipeline logic runs without real media tools.
type SpeechSynthesizer interface {
	// Synthesize writes spoken audio for text to outPath using the given
	// voice identifier (empty = provider default).
	Synthesize(ctx context.Context, text, voice, outPath string) error
}
