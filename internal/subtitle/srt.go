package subtitle

import (
	"fmt"
	"math"
	"strings"
)

// RenderSRT serializes the cue sequence as SubRip text.
func RenderSRT(timings []Timing) string {
	var b strings.Builder
	for i, t := range timings {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", secondsToSRTTimecode(t.Start), secondsToSRTTimecode(t.End))
		b.WriteString(t.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

func secondsToSRTTimecode(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMs := int(math.Round(seconds * 1000))
	ms := totalMs % 1000
	totalSeconds := totalMs / 1000
	secs := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, ms)
}
