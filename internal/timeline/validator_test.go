package timeline

import (
	"math"
	"strings"
	"sync"
	"testing"
)

func TestAnalyzeAlignment_PerfectAlignmentIsClean(t *testing.T) {
	v := NewValidator()
	v.AddAudioEvent(0, 0, 3, "a0.wav")
	v.AddSubtitleEvent(0, 0, 3, "first line")
	v.AddAudioEvent(1, 3, 6, "a1.wav")
	v.AddSubtitleEvent(1, 3, 6, "second line")

	report := v.AnalyzeAlignment(6)
	if !report.OK() {
		t.Fatalf("issues = %v, want none", report.Issues)
	}
	if len(report.Warnings) != 0 {
		t.Fatalf("warnings = %v, want none", report.Warnings)
	}
	if math.Abs(report.Stats.AudioCoverage-1.0) > 1e-9 {
		t.Errorf("audio coverage = %f, want 1.0", report.Stats.AudioCoverage)
	}
}

func TestAnalyzeAlignment_ShiftedAudioFlagged(t *testing.T) {
	v := NewValidator()
	// Audio shifted 0.2s relative to its subtitle.
	v.AddSubtitleEvent(0, 0, 3, "line")
	v.AddAudioEvent(0, 0.2, 3.2, "a0.wav")

	report := v.AnalyzeAlignment(3.2)

	var starts, ends int
	for _, issue := range report.Issues {
		switch issue.Kind {
		case "start_misalignment":
			starts++
			if issue.Index != 0 {
				t.Errorf("issue index = %d, want 0", issue.Index)
			}
			if math.Abs(issue.Delta-0.2) > 1e-9 {
				t.Errorf("delta = %f, want 0.2", issue.Delta)
			}
		case "end_misalignment":
			ends++
		}
	}
	if starts != 1 || ends != 1 {
		t.Errorf("misalignment issues = %d start / %d end, want 1 / 1", starts, ends)
	}
}

func TestAnalyzeAlignment_WithinToleranceIgnored(t *testing.T) {
	v := NewValidator()
	v.AddSubtitleEvent(0, 0, 3, "line")
	v.AddAudioEvent(0, 0.05, 3.05, "a0.wav")

	if report := v.AnalyzeAlignment(3.05); !report.OK() {
		t.Fatalf("issues = %v, want none within 0.1s tolerance", report.Issues)
	}
}

func TestAnalyzeAlignment_MissingAudioWarns(t *testing.T) {
	v := NewValidator()
	v.AddSubtitleEvent(0, 0, 2, "orphan")

	report := v.AnalyzeAlignment(2)
	if len(report.Warnings) != 1 || report.Warnings[0].Kind != "missing_audio" {
		t.Fatalf("warnings = %v, want one missing_audio", report.Warnings)
	}
	if !report.OK() {
		t.Errorf("missing audio should warn, not fail: %v", report.Issues)
	}
}

func TestAnalyzeAlignment_AudioGapWarns(t *testing.T) {
	v := NewValidator()
	v.AddAudioEvent(0, 0, 2, "a0.wav")
	v.AddAudioEvent(1, 3, 5, "a1.wav")

	report := v.AnalyzeAlignment(5)
	if len(report.Warnings) != 1 || report.Warnings[0].Kind != "audio_gap" {
		t.Fatalf("warnings = %v, want one audio_gap", report.Warnings)
	}
	if math.Abs(report.Warnings[0].Delta-1.0) > 1e-9 {
		t.Errorf("gap = %f, want 1.0", report.Warnings[0].Delta)
	}
}

func TestAnalyzeAlignment_MissingTrailingAudio(t *testing.T) {
	v := NewValidator()
	v.AddAudioEvent(0, 0, 5, "a0.wav")

	report := v.AnalyzeAlignment(8)

	var found *Issue
	for i := range report.Issues {
		if report.Issues[i].Kind == "missing_audio_at_end" {
			found = &report.Issues[i]
		}
	}
	if found == nil {
		t.Fatalf("issues = %v, want missing_audio_at_end", report.Issues)
	}
	if math.Abs(found.Delta-3.0) > 1e-9 {
		t.Errorf("missing duration = %f, want 3.0", found.Delta)
	}
	if math.Abs(report.Stats.AudioCoverage-5.0/8.0) > 1e-9 {
		t.Errorf("coverage = %f, want 0.625", report.Stats.AudioCoverage)
	}
}

func TestAnalyzeAlignment_ResortsOutOfOrderEvents(t *testing.T) {
	v := NewValidator()
	// Added out of start order; gap detection must still see them sorted.
	v.AddAudioEvent(1, 3, 5, "a1.wav")
	v.AddAudioEvent(0, 0, 3, "a0.wav")

	report := v.AnalyzeAlignment(5)
	for _, w := range report.Warnings {
		if w.Kind == "audio_gap" {
			t.Fatalf("false gap from unsorted input: %v", w)
		}
	}
}

func TestAnalyzeAlignment_RepeatableAndIncremental(t *testing.T) {
	v := NewValidator()
	v.AddAudioEvent(0, 0, 4, "a0.wav")

	first := v.AnalyzeAlignment(4)
	second := v.AnalyzeAlignment(4)
	if first.Stats.AudioCoverage != second.Stats.AudioCoverage {
		t.Error("repeated analysis disagrees")
	}

	v.AddSubtitleEvent(0, 0, 4, "line")
	third := v.AnalyzeAlignment(4)
	if third.Stats.EventCounts[EventSubtitle] != 1 {
		t.Errorf("subtitle count = %d, want 1 after incremental add", third.Stats.EventCounts[EventSubtitle])
	}
}

func TestValidator_ConcurrentRecording(t *testing.T) {
	v := NewValidator()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				v.AddOverlayEvent(i*10+j, float64(j), float64(j+1), "overlay")
			}
		}(i)
	}
	wg.Wait()

	if got := len(v.Events()); got != 80 {
		t.Errorf("events = %d, want 80", got)
	}
}

func TestRenderASCII(t *testing.T) {
	events := []Event{
		{Type: EventAudio, Index: 0, Start: 0, End: 5},
		{Type: EventSubtitle, Index: 0, Start: 0, End: 2.5},
	}

	out := RenderASCII(events, 10)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("lines = %d, want header plus four tracks", len(lines))
	}
	if !strings.Contains(lines[1], "audio") || !strings.Contains(lines[1], "1 events") {
		t.Errorf("audio track line = %q", lines[1])
	}
	// First half of the audio track covered, second half empty.
	if !strings.Contains(lines[1], "#") || !strings.Contains(lines[1], ".") {
		t.Errorf("audio track should be partially covered: %q", lines[1])
	}

	if got := RenderASCII(nil, 0); got != "(no timeline data)\n" {
		t.Errorf("empty render = %q", got)
	}
}

func TestRenderMarkdown(t *testing.T) {
	v := NewValidator()
	v.AddAudioEvent(0, 0, 2, "a0.wav")
	v.AddSubtitleEvent(0, 0.5, 2, "late line")

	report := v.AnalyzeAlignment(2)
	md := RenderMarkdown(report, v.Events())

	for _, want := range []string{
		"# Timeline Alignment Report",
		"start_misalignment",
		"Audio coverage: 100.0%",
		"- audio: 1",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}
