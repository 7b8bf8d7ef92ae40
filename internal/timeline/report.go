package timeline

import (
	"fmt"
	"strings"
)

const asciiTrackWidth = 60

// renderOrder fixes the row order so output is deterministic.
var renderOrder = []EventType{EventAudio, EventSubtitle, EventOverlay, EventVideoClip}

// RenderASCII draws one track per event type, '#' marking covered time,
// scaled to the video duration.
func RenderASCII(events []Event, videoDuration float64) string {
	scale := videoDuration
	if scale <= 0 {
		for _, e := range events {
			if e.End > scale {
				scale = e.End
			}
		}
	}
	if scale <= 0 {
		return "(no timeline data)\n"
	}

	byType := make(map[EventType][]Event)
	for _, e := range events {
		byType[e.Type] = append(byType[e.Type], e)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "timeline 0s .. %.1fs\n", scale)
	for _, t := range renderOrder {
		track := make([]byte, asciiTrackWidth)
		for i := range track {
			track[i] = '.'
		}
		for _, e := range byType[t] {
			lo := int(e.Start / scale * asciiTrackWidth)
			hi := int(e.End / scale * asciiTrackWidth)
			if hi > asciiTrackWidth {
				hi = asciiTrackWidth
			}
			if hi <= lo && lo < asciiTrackWidth {
				hi = lo + 1
			}
			for i := lo; i < hi && i >= 0; i++ {
				track[i] = '#'
			}
		}
		fmt.Fprintf(&b, "%-10s |%s| %d events\n", t, track, len(byType[t]))
	}
	return b.String()
}

// RenderMarkdown produces the human-readable alignment report.
func RenderMarkdown(report *Report, events []Event) string {
	var b strings.Builder
	b.WriteString("# Timeline Alignment Report\n\n")

	fmt.Fprintf(&b, "Video duration: %.2fs\n", report.Stats.VideoDuration)
	fmt.Fprintf(&b, "Audio coverage: %.1f%%\n\n", report.Stats.AudioCoverage*100)

	b.WriteString("## Events\n\n")
	for _, t := range renderOrder {
		fmt.Fprintf(&b, "- %s: %d\n", t, report.Stats.EventCounts[t])
	}
	b.WriteString("\n")

	b.WriteString("## Issues\n\n")
	if len(report.Issues) == 0 {
		b.WriteString("none\n")
	}
	for _, issue := range report.Issues {
		fmt.Fprintf(&b, "- **%s** (index %d): %s\n", issue.Kind, issue.Index, issue.Detail)
	}
	b.WriteString("\n## Warnings\n\n")
	if len(report.Warnings) == 0 {
		b.WriteString("none\n")
	}
	for _, w := range report.Warnings {
		fmt.Fprintf(&b, "- %s (index %d): %s\n", w.Kind, w.Index, w.Detail)
	}

	b.WriteString("\n## Timeline\n\n```\n")
	b.WriteString(RenderASCII(events, report.Stats.VideoDuration))
	b.WriteString("```\n")
	return b.String()
}
