package subtitle

import (
	"math"
	"testing"

	"github.com/vidforge/vidforge-agent/internal/audio"
)

func uniformAnalysis(duration, rate, confidence float64) *audio.Result {
	return &audio.Result{
		Duration:   duration,
		SpeechRate: rate,
		Confidence: confidence,
		Tempo:      120,
	}
}

func assertWellFormed(t *testing.T, timings []Timing, duration float64) {
	t.Helper()
	last := -1.0
	for i, cue := range timings {
		if cue.Start < last {
			t.Errorf("cue %d start %f before previous start %f", i, cue.Start, last)
		}
		if cue.End <= cue.Start {
			t.Errorf("cue %d has non-positive duration [%f, %f]", i, cue.Start, cue.End)
		}
		if cue.End > duration+1e-9 {
			t.Errorf("cue %d end %f exceeds audio duration %f", i, cue.End, duration)
		}
		last = cue.Start
	}
}

func TestSynchronize_EmptyInput(t *testing.T) {
	s := NewSynchronizer(nil)
	if got := s.Synchronize(nil, uniformAnalysis(9, 2.5, 0.8), nil); len(got) != 0 {
		t.Fatalf("expected empty output, got %d cues", len(got))
	}
}

func TestSynchronize_ThreeSegmentNarration(t *testing.T) {
	s := NewSynchronizer(nil)
	segments := []string{"Hello world", "This is a test", "Goodbye"}

	timings := s.Synchronize(segments, uniformAnalysis(9, 2.5, 0.8), nil)
	if len(timings) != 3 {
		t.Fatalf("cues = %d, want 3", len(timings))
	}
	assertWellFormed(t, timings, 9)

	if timings[0].Start != 0 {
		t.Errorf("first cue start = %f, want 0", timings[0].Start)
	}
	// 2 words at 2.5 wps.
	if math.Abs(timings[0].Duration()-0.8) > 0.01 {
		t.Errorf("first cue duration = %f, want ~0.8", timings[0].Duration())
	}
	// Micro-pause before the second cue, capped at 100 ms.
	gap := timings[1].Start - timings[0].End
	if gap < 0 || gap > maxInterPause+1e-9 {
		t.Errorf("inter-cue gap = %f, want within [0, %f]", gap, maxInterPause)
	}
	// 4 words at 2.5 wps.
	if math.Abs(timings[1].Duration()-1.6) > 0.01 {
		t.Errorf("second cue duration = %f, want ~1.6", timings[1].Duration())
	}
}

func TestSynchronize_Monotonicity(t *testing.T) {
	s := NewSynchronizer(nil)

	tests := []struct {
		name     string
		segments []string
		analysis *audio.Result
		paces    []float64
	}{
		{
			name:     "more text than audio",
			segments: []string{"one two three", "four five six", "seven eight nine", "ten eleven twelve", "closing words here"},
			analysis: uniformAnalysis(2.0, 1.0, 0.9),
		},
		{
			name:     "silences throughout",
			segments: []string{"alpha beta", "gamma delta", "epsilon"},
			analysis: &audio.Result{
				Duration:   6,
				SpeechRate: 2.0,
				Confidence: 0.7,
				Silences:   []audio.Interval{{Start: 1.0, End: 1.8}, {Start: 3.5, End: 4.2}},
			},
		},
		{
			name:     "pace factors",
			segments: []string{"steady start", "slow middle part", "quick end"},
			analysis: uniformAnalysis(12, 2.0, 0.8),
			paces:    []float64{1.0, 0.6, 1.4},
		},
		{
			name:     "single long segment",
			segments: []string{"a very long sentence with many many words in a row to place"},
			analysis: uniformAnalysis(3.0, 3.0, 0.6),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			timings := s.Synchronize(tc.segments, tc.analysis, tc.paces)
			if len(timings) != len(tc.segments) {
				t.Fatalf("cues = %d, want %d", len(timings), len(tc.segments))
			}
			assertWellFormed(t, timings, tc.analysis.Duration)
		})
	}
}

func TestSynchronize_DegradedFallsBackToEvenDivision(t *testing.T) {
	s := NewSynchronizer(nil)
	segments := []string{"one", "two", "three", "four"}
	analysis := &audio.Result{Duration: 10, Degraded: true, Confidence: 0.4}

	timings := s.Synchronize(segments, analysis, nil)
	if len(timings) != 4 {
		t.Fatalf("cues = %d, want 4", len(timings))
	}
	for i, cue := range timings {
		if math.Abs(cue.Duration()-2.5) > 1e-9 {
			t.Errorf("cue %d duration = %f, want 2.5", i, cue.Duration())
		}
		if cue.Confidence != fallbackConfidence {
			t.Errorf("cue %d confidence = %f, want %f", i, cue.Confidence, fallbackConfidence)
		}
	}
	assertWellFormed(t, timings, 10)
}

func TestSynchronize_NilAnalysisIsTotal(t *testing.T) {
	s := NewSynchronizer(nil)
	timings := s.Synchronize([]string{"still works", "without analysis"}, nil, nil)
	if len(timings) != 2 {
		t.Fatalf("cues = %d, want 2", len(timings))
	}
	for _, cue := range timings {
		if cue.End <= cue.Start {
			t.Errorf("cue [%f, %f] has non-positive duration", cue.Start, cue.End)
		}
	}
}

func TestSynchronize_JumpsPastSilence(t *testing.T) {
	s := NewSynchronizer(nil)
	analysis := &audio.Result{
		Duration:   5,
		SpeechRate: 2.0,
		Confidence: 0.8,
		Silences:   []audio.Interval{{Start: 1.0, End: 2.0}},
	}

	timings := s.Synchronize([]string{"first cue", "second cue"}, analysis, nil)
	if len(timings) != 2 {
		t.Fatalf("cues = %d, want 2", len(timings))
	}
	// The second cue would start inside the silent second; it must jump to
	// just after it.
	if math.Abs(timings[1].Start-2.0) > 1e-9 {
		t.Errorf("second cue start = %f, want 2.0", timings[1].Start)
	}
	assertWellFormed(t, timings, 5)
}

func TestSynchronize_CompressesBeforeSilence(t *testing.T) {
	s := NewSynchronizer(nil)
	analysis := &audio.Result{
		Duration:   6,
		SpeechRate: 1.0,
		Confidence: 0.8,
		Silences:   []audio.Interval{{Start: 2.0, End: 3.0}},
	}

	// 3 words at 1 wps would run to 3.0, into the silence; the cue gets
	// compressed to end where the silence begins.
	timings := s.Synchronize([]string{"one two three"}, analysis, nil)
	if math.Abs(timings[0].End-2.0) > 1e-9 {
		t.Errorf("cue end = %f, want compressed to 2.0", timings[0].End)
	}
}

func TestSynchronize_ConnectorSegmentIsFaster(t *testing.T) {
	s := NewSynchronizer(nil)
	analysis := uniformAnalysis(10, 2.0, 0.8)

	timings := s.Synchronize([]string{"So", "a normal segment"}, analysis, nil)
	want := minViableDuration * connectorFactor
	if math.Abs(timings[0].Duration()-want) > 1e-9 {
		t.Errorf("connector cue duration = %f, want %f", timings[0].Duration(), want)
	}
}

func TestSynchronize_QuestionDoesNotStretch(t *testing.T) {
	s := NewSynchronizer(nil)
	analysis := uniformAnalysis(10, 2.0, 0.8)

	plain := s.Synchronize([]string{"is this working", "closing line"}, analysis, nil)
	asked := s.Synchronize([]string{"is this working?", "closing line"}, analysis, nil)

	if plain[0].Duration() != asked[0].Duration() {
		t.Errorf("question cue duration %f differs from plain %f",
			asked[0].Duration(), plain[0].Duration())
	}
}

func TestSynchronize_EmphasisFlaggedWithoutStretch(t *testing.T) {
	s := NewSynchronizer(nil)
	flat := uniformAnalysis(10, 2.0, 0.8)
	emphatic := uniformAnalysis(10, 2.0, 0.8)
	emphatic.Emphases = []audio.Interval{{Start: 0, End: 1.5}}

	plain := s.Synchronize([]string{"hello world"}, flat, nil)
	stressed := s.Synchronize([]string{"hello world"}, emphatic, nil)

	if stressed[0].EmphasisLevel != 1.0 {
		t.Errorf("emphasis level = %f, want 1.0", stressed[0].EmphasisLevel)
	}
	if plain[0].Duration() != stressed[0].Duration() {
		t.Errorf("emphasis changed duration: %f vs %f",
			stressed[0].Duration(), plain[0].Duration())
	}
}

func TestCueConfidence_SaturatesAtFiveWords(t *testing.T) {
	if got := cueConfidence(0.8, 10); math.Abs(got-0.8) > 1e-9 {
		t.Errorf("confidence for long cue = %f, want 0.8", got)
	}
	if got := cueConfidence(0.8, 1); math.Abs(got-0.16) > 1e-9 {
		t.Errorf("confidence for one word = %f, want 0.16", got)
	}
}

func TestSyncAccuracy(t *testing.T) {
	timings := []Timing{{Start: 0, End: 4}, {Start: 4, End: 8.5}}
	if got := SyncAccuracy(timings, 10); math.Abs(got-0.85) > 1e-9 {
		t.Errorf("sync accuracy = %f, want 0.85", got)
	}
	if got := SyncAccuracy(nil, 10); got != 0 {
		t.Errorf("sync accuracy of empty = %f, want 0", got)
	}
}
