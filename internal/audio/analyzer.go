package audio

import (
	"context"
	"log/slog"

	"github.com/vidforge/vidforge-agent/internal/logging"
	"github.com/vidforge/vidforge-agent/internal/media"
)

// Fallback values used when a recording cannot be decoded. Downstream timing
// still works with these, just with low confidence.
const (
	degradedConfidence = 0.4
	defaultTempoBPM    = 120.0
	defaultSpeechRate  = 2.0
)

// Speech-rate model: onsets approximate syllables, English averages about
// 1.7 syllables per word, and plausible narration sits between 1 and 4
// words per second.
const (
	syllablesPerWord = 1.7
	speechRateMin    = 1.0
	speechRateMax    = 4.0
)

// Analyzer derives timing features from narration audio. All methods are
// safe for concurrent use.
type Analyzer struct {
	decoder media.Decoder
	prober  media.Prober
	doctor  *media.CachedDoctor
	logger  *slog.Logger
}

func NewAnalyzer(decoder media.Decoder, prober media.Prober, doctor *media.CachedDoctor, logger *slog.Logger) *Analyzer {
	return &Analyzer{decoder: decoder, prober: prober, doctor: doctor, logger: logger}
}

// Analyze extracts the timing profile of the audio file at path. It never
// fails: when the file cannot be decoded the returned Result carries
// fallback values with Degraded set and a low confidence score.
func (a *Analyzer) Analyze(ctx context.Context, path string) *Result {
	if a.doctor != nil {
		if caps, err := a.doctor.Get(ctx); err == nil && !caps.CanDecode() {
			if a.logger != nil {
				a.logger.Warn("audio analysis degraded: decoder unavailable", "path", logging.SanitizePath(path))
			}
			return a.degraded(ctx, path)
		}
	}

	wave, err := a.decoder.Decode(ctx, path)
	if err != nil {
		if a.logger != nil {
			a.logger.Warn("audio analysis degraded: decode failed",
				"path", logging.SanitizePath(path), "error", err)
		}
		return a.degraded(ctx, path)
	}
	if len(wave.Samples) == 0 || wave.SampleRate <= 0 {
		return a.degraded(ctx, path)
	}

	return a.analyzeWaveform(wave)
}

func (a *Analyzer) analyzeWaveform(wave *media.Waveform) *Result {
	duration := wave.Duration()
	hopSeconds := float64(hopSize) / float64(wave.SampleRate)

	env := rmsEnvelope(wave.Samples, frameSize, hopSize)
	if len(env) == 0 {
		return &Result{
			Duration:   duration,
			Tempo:      defaultTempoBPM,
			SpeechRate: defaultSpeechRate,
			HopSeconds: hopSeconds,
			Confidence: degradedConfidence,
			Degraded:   true,
		}
	}

	silenceFloor := percentile(env, silencePercentile)
	emphasisCeil := percentile(env, emphasisPercentile)

	silences := thresholdIntervals(env, hopSeconds, func(e float64) bool {
		return e <= silenceFloor
	}, minIntervalSeconds)
	emphases := thresholdIntervals(env, hopSeconds, func(e float64) bool {
		return e >= emphasisCeil
	}, minIntervalSeconds)

	onsets := detectOnsets(env, hopSeconds, silenceFloor)
	tempo := estimateTempo(onsets)
	if tempo == 0 {
		tempo = defaultTempoBPM
	}

	pitches := trackPitch(wave.Samples, wave.SampleRate, env, silenceFloor)
	pitchMean, pitchStddev := meanStddev(pitches)

	result := &Result{
		Duration:    duration,
		Tempo:       tempo,
		PitchMean:   pitchMean,
		PitchStddev: pitchStddev,
		Energy:      env,
		HopSeconds:  hopSeconds,
		Silences:    silences,
		Emphases:    emphases,
		Spectral:    spectralSummary(wave.Samples, env),
	}
	result.SpeechRate = speechRate(result, onsets)
	result.Confidence = confidence(result, pitches)
	return result
}

// degraded produces the fallback profile. The prober, when available, still
// gives an accurate duration so subtitle timing stays anchored.
func (a *Analyzer) degraded(ctx context.Context, path string) *Result {
	var duration float64
	if a.prober != nil {
		if probe, err := a.prober.Probe(ctx, path); err == nil {
			duration = probe.Duration
		}
	}
	return &Result{
		Duration:   duration,
		Tempo:      defaultTempoBPM,
		SpeechRate: defaultSpeechRate,
		Confidence: degradedConfidence,
		Degraded:   true,
	}
}

// speechRate counts onsets that land outside silence as syllables and
// converts to words per second over the speaking portion of the signal.
func speechRate(r *Result, onsets []float64) float64 {
	speaking := r.SpeakingDuration()
	if speaking <= 0 {
		return defaultSpeechRate
	}

	syllables := 0
	for _, t := range onsets {
		if _, inSilence := r.InSilence(t, t); !inSilence {
			syllables++
		}
	}
	if syllables == 0 {
		return defaultSpeechRate
	}

	words := float64(syllables) / syllablesPerWord
	return clamp(words/speaking, speechRateMin, speechRateMax)
}

func spectralSummary(samples []float64, env []float64) SpectralSummary {
	zcr := zeroCrossingRates(samples, frameSize, hopSize)
	zcrMean, zcrStddev := meanStddev(zcr)

	var flux []float64
	for i := 1; i < len(env); i++ {
		if d := env[i] - env[i-1]; d > 0 {
			flux = append(flux, d)
		}
	}
	fluxMean, _ := meanStddev(flux)
	energyMean, _ := meanStddev(env)

	return SpectralSummary{
		ZCRMean:    zcrMean,
		ZCRStddev:  zcrStddev,
		FluxMean:   fluxMean,
		EnergyMean: energyMean,
	}
}

// confidence blends three signal-quality cues: how steady the energy
// envelope is, how steady the tracked pitch is, and whether the tempo lands
// in the plausible speech range.
func confidence(r *Result, pitches []float64) float64 {
	energyMean, energyStddev := meanStddev(r.Energy)
	energyStability := 0.0
	if energyMean > 0 {
		energyStability = 1 - clamp(energyStddev/energyMean, 0, 1)
	}

	pitchStability := 0.3
	if len(pitches) > 0 && r.PitchMean > 0 {
		pitchStability = 1 - clamp(r.PitchStddev/r.PitchMean, 0, 1)
	}

	tempoPlausible := 0.5
	if r.Tempo >= 60 && r.Tempo <= 200 {
		tempoPlausible = 1.0
	}

	score := 0.4*energyStability + 0.3*pitchStability + 0.3*tempoPlausible
	return clamp(score, 0, 1)
}
