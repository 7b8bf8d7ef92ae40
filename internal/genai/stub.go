package genai

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// StubClipGenerator writes a placeholder clip file without calling the
// video API. Used when no API token is configured and in tests.
type StubClipGenerator struct {
	Err    error
	logger *slog.Logger
}

func NewStubClipGenerator(logger *slog.Logger) *StubClipGenerator {
	return &StubClipGenerator{logger: logger}
}

func (g *StubClipGenerator) GenerateClip(ctx context.Context, req ClipRequest) (string, error) {
	if g.Err != nil {
		return "", g.Err
	}
	if g.logger != nil {
		g.logger.Info("clip stub: generation requested", "prompt_chars", len(req.Prompt))
	}
	tmp, err := os.CreateTemp("", "vidforge-clip-stub-*.mp4")
	if err != nil {
		return "", fmt.Errorf("create stub clip: %w", err)
	}
	defer tmp.Close()
	fmt.Fprintf(tmp, "stub clip: %s\n", req.Prompt)
	return tmp.Name(), nil
}

// StubSpeechSynthesizer renders a quiet tone whose length matches the text
// at a fixed speaking rate, so downstream timing code sees plausible audio.
type StubSpeechSynthesizer struct {
	Err    error
	WPS    float64
	logger *slog.Logger
}

func NewStubSpeechSynthesizer(logger *slog.Logger) *StubSpeechSynthesizer {
	return &StubSpeechSynthesizer{WPS: 2.5, logger: logger}
}

func (s *StubSpeechSynthesizer) Synthesize(ctx context.Context, req SpeechRequest) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}

	wps := s.WPS
	if wps <= 0 {
		wps = 2.5
	}
	words := len(strings.Fields(req.Text))
	if words == 0 {
		words = 1
	}
	seconds := float64(words) / wps

	if s.logger != nil {
		s.logger.Info("tts stub: synthesis requested", "words", words, "seconds", seconds)
	}
	return writeToneWAV(seconds)
}

// writeToneWAV renders a 220 Hz tone at 16 kHz mono, 16-bit.
func writeToneWAV(seconds float64) (string, error) {
	const sampleRate = 16000

	tmp, err := os.CreateTemp("", "vidforge-tts-stub-*.wav")
	if err != nil {
		return "", fmt.Errorf("create stub audio: %w", err)
	}
	defer tmp.Close()

	n := int(seconds * sampleRate)
	if n < 1 {
		n = 1
	}
	samples := make([]int, n)
	for i := range samples {
		samples[i] = int(8000 * math.Sin(2*math.Pi*220*float64(i)/sampleRate))
	}

	enc := wav.NewEncoder(tmp, sampleRate, 16, 1, 1)
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write stub audio: %w", err)
	}
	if err := enc.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close stub audio: %w", err)
	}
	return tmp.Name(), nil
}
