// Package subtitle assigns time intervals to script segments so the rendered
// captions track the narration audio instead of a naive equal division.
package subtitle

// Timing is one subtitle cue with its derived delivery attributes.
type Timing struct {
	Text          string  `json:"text"`
	Start         float64 `json:"start"`
	End           float64 `json:"end"`
	Confidence    float64 `json:"confidence"`
	SpeechRate    float64 `json:"speech_rate"`
	EmphasisLevel float64 `json:"emphasis_level"`
	VolumeLevel   float64 `json:"volume_level"`
	PitchLevel    float64 `json:"pitch_level"`
}

// Duration returns the cue length in seconds.
func (t Timing) Duration() float64 { return t.End - t.Start }

// SyncAccuracy reports how much of the audio the cue sequence covers, as a
// ratio of the last cue's end time to the audio duration. Diagnostic only.
func SyncAccuracy(timings []Timing, audioDuration float64) float64 {
	if len(timings) == 0 || audioDuration <= 0 {
		return 0
	}
	return timings[len(timings)-1].End / audioDuration
}
