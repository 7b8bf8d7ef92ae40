package subtitle

import (
	"log/slog"
	"math"
	"strings"

	"github.com/vidforge/vidforge-agent/internal/audio"
)

const (
	// minViableDuration is the shortest cue a viewer can still read.
	minViableDuration = 0.5
	// maxInterPause is the micro-gap inserted between cues.
	maxInterPause = 0.1
	// tailSliver keeps the last cue from collapsing to zero length when the
	// audio budget runs out.
	tailSliver = 0.05
	// connectorFactor shortens throwaway connector cues.
	connectorFactor = 0.8
	// confidenceSaturationWords: cue confidence stops growing past this many
	// words.
	confidenceSaturationWords = 5
	// fallbackConfidence marks cues produced by even division.
	fallbackConfidence = 0.5
)

// connectorWords are segments that read as filler and can pass quickly.
var connectorWords = map[string]bool{
	"and": true, "but": true, "so": true, "then": true,
	"now": true, "well": true, "okay": true, "right": true,
}

// Synchronizer maps script segments onto the analyzed narration timeline.
// It is stateless and safe for concurrent use.
type Synchronizer struct {
	logger *slog.Logger
}

func NewSynchronizer(logger *slog.Logger) *Synchronizer {
	return &Synchronizer{logger: logger}
}

// Synchronize assigns a start/end window to every segment. paceFactors, when
// present, are index-aligned with segments; a factor below 1 means slower
// delivery and lengthens the cue. The result is non-decreasing in start time,
// every cue has positive duration, and no end exceeds the audio duration.
// Empty input yields an empty result; a degraded analysis yields the
// even-division fallback. Never fails.
func (s *Synchronizer) Synchronize(segments []string, analysis *audio.Result, paceFactors []float64) []Timing {
	if len(segments) == 0 {
		return nil
	}
	if analysis == nil || analysis.Degraded {
		return s.evenDivision(segments, analysisDuration(segments, analysis))
	}

	duration := analysis.Duration
	if duration <= 0 {
		return s.evenDivision(segments, analysisDuration(segments, analysis))
	}

	speaking := analysis.SpeakingDuration()
	if len(analysis.Silences) == 0 {
		speaking = duration * 0.8
	}

	rate := analysis.SpeechRate
	if rate <= 0 {
		total := 0
		for _, seg := range segments {
			total += wordCount(seg)
		}
		if speaking > 0 {
			rate = float64(total) / speaking
		}
		if rate <= 0 {
			rate = 2.0
		}
	}

	timings := make([]Timing, 0, len(segments))
	cursor := 0.0
	lastStart := 0.0

	for i, seg := range segments {
		words := wordCount(seg)
		d := float64(words) / rate
		if d < minViableDuration {
			d = minViableDuration
		}

		if i < len(paceFactors) && paceFactors[i] > 0 {
			d *= 2 - paceFactors[i]
		}
		if isConnector(seg, words) {
			d *= connectorFactor
		}
		// Question and exclamation segments keep their computed duration.
		// Stretching them would push the cue track past the fixed audio
		// length the composer must match.

		start, end := s.avoidSilence(analysis, cursor, d)

		// Clamp into the audio while preserving start ordering.
		if start > duration-tailSliver {
			start = duration - tailSliver
		}
		if start < lastStart {
			start = lastStart
		}
		if start < 0 {
			start = 0
		}
		if end > duration {
			end = duration
		}
		if end <= start {
			end = duration
		}

		t := Timing{
			Text:       seg,
			Start:      start,
			End:        end,
			Confidence: cueConfidence(analysis.Confidence, words),
			SpeechRate: float64(words) / (end - start),
			PitchLevel: pitchLevel(analysis.PitchMean),
		}
		if analysis.InEmphasis(start, end) {
			t.EmphasisLevel = 1.0
		}
		t.VolumeLevel = volumeLevel(analysis, start, end)

		timings = append(timings, t)
		lastStart = start

		cursor = end
		if i < len(segments)-1 {
			if pause := math.Min(maxInterPause, duration-cursor); pause > 0 {
				cursor += pause
			}
		}
	}

	if s.logger != nil {
		s.logger.Debug("subtitle sync complete",
			"segments", len(segments),
			"sync_accuracy", SyncAccuracy(timings, duration))
	}
	return timings
}

// avoidSilence places the window [cursor, cursor+d) around detected silence:
// a cue that would run into a silent stretch is compressed to end before it,
// and a cue that would start inside silence jumps to just after it. The
// minimum viable duration wins over compression.
func (s *Synchronizer) avoidSilence(analysis *audio.Result, cursor, d float64) (float64, float64) {
	start := cursor
	end := start + d

	for range analysis.Silences {
		iv, hit := analysis.InSilence(start, end)
		if !hit {
			break
		}
		if iv.Start <= start {
			// Starts inside silence: jump past it.
			start = iv.End
			end = start + d
			continue
		}
		if iv.Start-start >= minViableDuration {
			// Silence begins mid-cue: compress to end before it.
			end = iv.Start
			break
		}
		// Too little room before the silence; jump past it instead.
		start = iv.End
		end = start + d
	}
	return start, end
}

// evenDivision spreads segments uniformly over the duration. Used when the
// analysis cannot be trusted.
func (s *Synchronizer) evenDivision(segments []string, duration float64) []Timing {
	slice := duration / float64(len(segments))
	timings := make([]Timing, 0, len(segments))
	for i, seg := range segments {
		words := wordCount(seg)
		start := float64(i) * slice
		end := start + slice
		timings = append(timings, Timing{
			Text:       seg,
			Start:      start,
			End:        end,
			Confidence: fallbackConfidence,
			SpeechRate: float64(words) / slice,
		})
	}
	if s.logger != nil {
		s.logger.Warn("subtitle sync fell back to even division", "segments", len(segments))
	}
	return timings
}

// analysisDuration picks a usable total duration for the fallback path. With
// no trustworthy audio duration the word count at a moderate pace stands in.
func analysisDuration(segments []string, analysis *audio.Result) float64 {
	if analysis != nil && analysis.Duration > 0 {
		return analysis.Duration
	}
	total := 0
	for _, seg := range segments {
		total += wordCount(seg)
	}
	d := float64(total) / 2.0
	if d < 1.0 {
		d = 1.0
	}
	return d
}

func cueConfidence(base float64, words int) float64 {
	if words > confidenceSaturationWords {
		words = confidenceSaturationWords
	}
	return base * float64(words) / float64(confidenceSaturationWords)
}

func pitchLevel(pitchMean float64) float64 {
	if pitchMean <= 0 {
		return 0
	}
	level := (pitchMean - 60) / (400 - 60)
	return math.Max(0, math.Min(1, level))
}

// volumeLevel is the cue window's mean energy relative to the whole signal,
// with 1.0 meaning average loudness.
func volumeLevel(analysis *audio.Result, start, end float64) float64 {
	if len(analysis.Energy) == 0 || analysis.HopSeconds <= 0 {
		return 0
	}
	var overall float64
	for _, e := range analysis.Energy {
		overall += e
	}
	overall /= float64(len(analysis.Energy))
	if overall <= 0 {
		return 0
	}

	lo := int(start / analysis.HopSeconds)
	hi := int(end / analysis.HopSeconds)
	if lo < 0 {
		lo = 0
	}
	if hi > len(analysis.Energy) {
		hi = len(analysis.Energy)
	}
	if hi <= lo {
		return 0
	}
	var window float64
	for _, e := range analysis.Energy[lo:hi] {
		window += e
	}
	window /= float64(hi - lo)
	return window / overall
}

func wordCount(s string) int {
	n := len(strings.Fields(s))
	if n == 0 {
		return 1
	}
	return n
}

func isConnector(seg string, words int) bool {
	if words > 2 {
		return false
	}
	for _, w := range strings.Fields(seg) {
		w = strings.ToLower(strings.Trim(w, ".,!?;:"))
		if !connectorWords[w] {
			return false
		}
	}
	return true
}
