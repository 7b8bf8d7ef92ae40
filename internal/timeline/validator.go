// Package timeline cross-checks the event streams recorded during generation
// (subtitles, audio, overlays, video clips) and reports drift before the
// final composite is rendered.
package timeline

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

type EventType string

const (
	EventSubtitle  EventType = "subtitle"
	EventAudio     EventType = "audio"
	EventOverlay   EventType = "overlay"
	EventVideoClip EventType = "video_clip"
)

// Event is one recorded timeline entry. Events are append-only and never
// mutated after being added.
type Event struct {
	Type     EventType      `json:"type"`
	Index    int            `json:"index"`
	Start    float64        `json:"start"`
	End      float64        `json:"end"`
	Content  string         `json:"content,omitempty"`
	FilePath string         `json:"file_path,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Duration returns the event length in seconds.
func (e Event) Duration() float64 { return e.End - e.Start }

// Issue is a detected timing inconsistency. Severity distinguishes fatal
// issues from advisory warnings.
type Issue struct {
	Kind   string  `json:"kind"`
	Index  int     `json:"index"`
	Detail string  `json:"detail"`
	Delta  float64 `json:"delta,omitempty"`
}

// Stats aggregates the event streams for one analysis pass.
type Stats struct {
	EventCounts   map[EventType]int `json:"event_counts"`
	AudioCoverage float64           `json:"audio_coverage"`
	VideoDuration float64           `json:"video_duration"`
}

// Report is the outcome of one alignment analysis.
type Report struct {
	Issues   []Issue `json:"issues"`
	Warnings []Issue `json:"warnings"`
	Stats    Stats   `json:"stats"`
}

// OK reports whether the analysis found no fatal issues.
func (r *Report) OK() bool { return len(r.Issues) == 0 }

// Alignment thresholds: subtitle and audio must agree within 100 ms, audio
// gaps over 500 ms are suspicious, and trailing silence over 500 ms before
// the declared video end is fatal.
const (
	misalignmentTolerance  = 0.1
	audioGapThreshold      = 0.5
	trailingAudioTolerance = 0.5
)

// Validator accumulates timeline events for one video. Recording is
// thread-safe; AnalyzeAlignment is a pure query over the current events and
// can be called repeatedly as more events arrive.
type Validator struct {
	mu     sync.Mutex
	events []Event
}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) AddSubtitleEvent(index int, start, end float64, text string) {
	v.add(Event{Type: EventSubtitle, Index: index, Start: start, End: end, Content: text})
}

func (v *Validator) AddAudioEvent(index int, start, end float64, filePath string) {
	v.add(Event{Type: EventAudio, Index: index, Start: start, End: end, FilePath: filePath})
}

func (v *Validator) AddOverlayEvent(index int, start, end float64, content string) {
	v.add(Event{Type: EventOverlay, Index: index, Start: start, End: end, Content: content})
}

func (v *Validator) AddVideoClipEvent(index int, start, end float64, filePath string) {
	v.add(Event{Type: EventVideoClip, Index: index, Start: start, End: end, FilePath: filePath})
}

func (v *Validator) add(e Event) {
	v.mu.Lock()
	v.events = append(v.events, e)
	v.mu.Unlock()
}

// Events returns a snapshot of all recorded events in insertion order.
func (v *Validator) Events() []Event {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Event, len(v.events))
	copy(out, v.events)
	return out
}

// AnalyzeAlignment checks the recorded streams against each other and the
// declared video duration. Callers are expected to add events in start-time
// order, but the analysis re-sorts its working copies so a violated
// convention cannot corrupt the results.
func (v *Validator) AnalyzeAlignment(videoDuration float64) *Report {
	events := v.Events()

	byType := make(map[EventType][]Event)
	for _, e := range events {
		byType[e.Type] = append(byType[e.Type], e)
	}
	for _, list := range byType {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Start < list[j].Start })
	}

	report := &Report{
		Issues:   []Issue{},
		Warnings: []Issue{},
		Stats: Stats{
			EventCounts:   map[EventType]int{},
			VideoDuration: videoDuration,
		},
	}
	for t, list := range byType {
		report.Stats.EventCounts[t] = len(list)
	}

	audioByIndex := make(map[int]Event, len(byType[EventAudio]))
	for _, a := range byType[EventAudio] {
		audioByIndex[a.Index] = a
	}

	for _, sub := range byType[EventSubtitle] {
		a, ok := audioByIndex[sub.Index]
		if !ok {
			report.Warnings = append(report.Warnings, Issue{
				Kind:   "missing_audio",
				Index:  sub.Index,
				Detail: fmt.Sprintf("subtitle %d has no matching audio event", sub.Index),
			})
			continue
		}
		if d := math.Abs(sub.Start - a.Start); d > misalignmentTolerance {
			report.Issues = append(report.Issues, Issue{
				Kind:   "start_misalignment",
				Index:  sub.Index,
				Delta:  d,
				Detail: fmt.Sprintf("subtitle %d starts %.3fs away from its audio", sub.Index, d),
			})
		}
		if d := math.Abs(sub.End - a.End); d > misalignmentTolerance {
			report.Issues = append(report.Issues, Issue{
				Kind:   "end_misalignment",
				Index:  sub.Index,
				Delta:  d,
				Detail: fmt.Sprintf("subtitle %d ends %.3fs away from its audio", sub.Index, d),
			})
		}
	}

	audio := byType[EventAudio]
	for i := 1; i < len(audio); i++ {
		gap := audio[i].Start - audio[i-1].End
		if gap > audioGapThreshold {
			report.Warnings = append(report.Warnings, Issue{
				Kind:  "audio_gap",
				Index: audio[i].Index,
				Delta: gap,
				Detail: fmt.Sprintf("%.3fs of silence between audio ending at %.3fs and audio starting at %.3fs",
					gap, audio[i-1].End, audio[i].Start),
			})
		}
	}

	if len(audio) > 0 && videoDuration > 0 {
		lastEnd := audio[len(audio)-1].End
		if missing := videoDuration - lastEnd; missing > trailingAudioTolerance {
			report.Issues = append(report.Issues, Issue{
				Kind:   "missing_audio_at_end",
				Index:  audio[len(audio)-1].Index,
				Delta:  missing,
				Detail: fmt.Sprintf("audio ends %.3fs before the video does", missing),
			})
		}
		report.Stats.AudioCoverage = lastEnd / videoDuration
	}

	return report
}
