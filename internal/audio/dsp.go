package audio

import (
	"math"
	"sort"
)

// Frame geometry at the analysis sample rate.
const (
	frameSize = 512
	hopSize   = 256
)

// Detection thresholds from the timing model: silence below the 20th energy
// percentile, emphasis above the 80th, intervals shorter than 100 ms dropped
// as noise.
const (
	silencePercentile  = 0.20
	emphasisPercentile = 0.80
	minIntervalSeconds = 0.1
)

// Pitch search range for human speech fundamentals.
const (
	pitchMinHz        = 60.0
	pitchMaxHz        = 400.0
	pitchClarityFloor = 0.6
)

// rmsEnvelope computes the per-hop RMS energy of the signal.
func rmsEnvelope(samples []float64, frame, hop int) []float64 {
	if len(samples) < frame {
		if len(samples) == 0 {
			return nil
		}
		frame = len(samples)
	}

	var env []float64
	for start := 0; start+frame <= len(samples); start += hop {
		var sum float64
		for _, s := range samples[start : start+frame] {
			sum += s * s
		}
		env = append(env, math.Sqrt(sum/float64(frame)))
	}
	return env
}

// percentile returns the p-quantile (0..1) of values by nearest-rank.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

// thresholdIntervals merges consecutive frames selected by keep into time
// intervals, dropping intervals shorter than minLen seconds.
func thresholdIntervals(env []float64, hopSeconds float64, keep func(float64) bool, minLen float64) []Interval {
	var out []Interval
	start := -1

	flush := func(endFrame int) {
		if start < 0 {
			return
		}
		iv := Interval{
			Start: float64(start) * hopSeconds,
			End:   float64(endFrame) * hopSeconds,
		}
		if iv.Length() >= minLen {
			out = append(out, iv)
		}
		start = -1
	}

	for i, e := range env {
		if keep(e) {
			if start < 0 {
				start = i
			}
		} else {
			flush(i)
		}
	}
	flush(len(env))
	return out
}

// detectOnsets finds energy-rise events: frames whose positive energy flux
// exceeds one standard deviation above the mean flux, with a 100 ms
// refractory window so one syllable is not counted twice.
func detectOnsets(env []float64, hopSeconds float64, floor float64) []float64 {
	if len(env) < 2 {
		return nil
	}

	flux := make([]float64, len(env))
	for i := 1; i < len(env); i++ {
		if d := env[i] - env[i-1]; d > 0 {
			flux[i] = d
		}
	}

	mean, stddev := meanStddev(flux)
	threshold := mean + stddev

	var onsets []float64
	lastOnset := -1.0
	refractory := 0.1
	for i := 1; i < len(env); i++ {
		t := float64(i) * hopSeconds
		if flux[i] > threshold && env[i] > floor && t-lastOnset >= refractory {
			onsets = append(onsets, t)
			lastOnset = t
		}
	}
	return onsets
}

// estimateTempo derives a BPM estimate from the median inter-onset interval.
func estimateTempo(onsets []float64) float64 {
	if len(onsets) < 2 {
		return 0
	}
	intervals := make([]float64, 0, len(onsets)-1)
	for i := 1; i < len(onsets); i++ {
		intervals = append(intervals, onsets[i]-onsets[i-1])
	}
	sort.Float64s(intervals)
	median := intervals[len(intervals)/2]
	if median <= 0 {
		return 0
	}
	return 60.0 / median
}

// trackPitch estimates per-frame fundamentals via normalized autocorrelation,
// keeping only frames with a confident peak and audible energy.
func trackPitch(samples []float64, sampleRate int, env []float64, floor float64) []float64 {
	minLag := int(float64(sampleRate) / pitchMaxHz)
	maxLag := int(float64(sampleRate) / pitchMinHz)
	if maxLag >= frameSize {
		maxLag = frameSize - 1
	}
	if minLag < 1 {
		minLag = 1
	}

	var pitches []float64
	frameIdx := 0
	for start := 0; start+frameSize <= len(samples); start += hopSize {
		if frameIdx < len(env) && env[frameIdx] <= floor {
			frameIdx++
			continue
		}
		frameIdx++

		frame := samples[start : start+frameSize]
		var energy float64
		for _, s := range frame {
			energy += s * s
		}
		if energy == 0 {
			continue
		}

		bestLag, bestCorr := 0, 0.0
		for lag := minLag; lag <= maxLag; lag++ {
			var corr float64
			for i := 0; i+lag < frameSize; i++ {
				corr += frame[i] * frame[i+lag]
			}
			corr /= energy
			if corr > bestCorr {
				bestCorr = corr
				bestLag = lag
			}
		}

		if bestLag > 0 && bestCorr >= pitchClarityFloor {
			pitches = append(pitches, float64(sampleRate)/float64(bestLag))
		}
	}
	return pitches
}

// zeroCrossingRates computes the per-frame zero-crossing rate.
func zeroCrossingRates(samples []float64, frame, hop int) []float64 {
	if len(samples) < frame {
		return nil
	}
	var rates []float64
	for start := 0; start+frame <= len(samples); start += hop {
		crossings := 0
		for i := start + 1; i < start+frame; i++ {
			if (samples[i] >= 0) != (samples[i-1] >= 0) {
				crossings++
			}
		}
		rates = append(rates, float64(crossings)/float64(frame))
	}
	return rates
}

func meanStddev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
