package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
)

// EdgeTTSService synthesizes narration by invoking the edge-tts process.
// Synthesis is not retried. A non-zero exit is fatal for the job.
type EdgeTTSService struct {
	defaultVoice string
}

var _ SpeechSynthesizer = (*EdgeTTSService)(nil)

func NewEdgeTTSService(defaultVoice string) *EdgeTTSService {
	return &EdgeTTSService{defaultVoice: defaultVoice}
}

func (s *EdgeTTSService) Synthesize(ctx context.Context, text, voice, outPath string) error {
	if voice == "" {
		voice = s.defaultVoice
	}

	log.Printf("[TTS] synthesizing %d chars (voice=%s)", len(text), voice)

	cmd := exec.CommandContext(ctx, "edge-tts",
		"--voice", voice,
		"--text", text,
		"--write-media", outPath,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: edge-tts: %v", ErrAssetFetch, err)
	}

	return nil
}
