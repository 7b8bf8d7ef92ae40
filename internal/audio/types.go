// Package audio extracts the timing-relevant structure of a speech recording:
// energy envelope, silence and emphasis intervals, pitch statistics, tempo,
// and an estimated speech rate. Analysis is total: when decoding or the DSP
// toolchain is unavailable it degrades to defaults with low confidence
// instead of failing.
package audio

// Interval is a [Start, End) time range in seconds.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Length returns the interval duration in seconds.
func (iv Interval) Length() float64 { return iv.End - iv.Start }

// Overlaps reports whether the interval intersects [start, end).
func (iv Interval) Overlaps(start, end float64) bool {
	return start < iv.End && end > iv.Start
}

// SpectralSummary carries coarse spectral shape statistics of the signal.
type SpectralSummary struct {
	ZCRMean    float64 `json:"zcr_mean"`
	ZCRStddev  float64 `json:"zcr_stddev"`
	FluxMean   float64 `json:"flux_mean"`
	EnergyMean float64 `json:"energy_mean"`
}

// Result is the immutable outcome of analyzing one audio file.
type Result struct {
	Duration    float64         `json:"duration_s"`
	Tempo       float64         `json:"tempo_bpm"`
	PitchMean   float64         `json:"pitch_mean_hz"`
	PitchStddev float64         `json:"pitch_stddev_hz"`
	Energy      []float64       `json:"energy"`
	HopSeconds  float64         `json:"hop_seconds"`
	SpeechRate  float64         `json:"speech_rate_wps"`
	Silences    []Interval      `json:"silences"`
	Emphases    []Interval      `json:"emphases"`
	Spectral    SpectralSummary `json:"spectral"`
	Confidence  float64         `json:"confidence"`
	Degraded    bool            `json:"degraded"`
}

// SilenceTotal returns the summed length of all silence intervals.
func (r *Result) SilenceTotal() float64 {
	var total float64
	for _, iv := range r.Silences {
		total += iv.Length()
	}
	return total
}

// SpeakingDuration returns the non-silent portion of the signal.
func (r *Result) SpeakingDuration() float64 {
	d := r.Duration - r.SilenceTotal()
	if d < 0 {
		return 0
	}
	return d
}

// InSilence reports whether the window [start, end) intersects any detected
// silence interval.
func (r *Result) InSilence(start, end float64) (Interval, bool) {
	for _, iv := range r.Silences {
		if iv.Overlaps(start, end) {
			return iv, true
		}
	}
	return Interval{}, false
}

// InEmphasis reports whether the window [start, end) intersects any detected
// emphasis interval.
func (r *Result) InEmphasis(start, end float64) bool {
	for _, iv := range r.Emphases {
		if iv.Overlaps(start, end) {
			return true
		}
	}
	return false
}
