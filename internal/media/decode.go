package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-audio/wav"
)

// AnalysisSampleRate is the fixed rate every waveform is decoded to before
// analysis. 16 kHz mono is plenty for energy/pitch/onset work and keeps
// buffers small.
const AnalysisSampleRate = 16000

// Waveform is a decoded mono audio signal.
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the signal length in seconds.
func (w *Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Decoder turns a media file into a mono waveform at a fixed sample rate.
type Decoder interface {
	Decode(ctx context.Context, path string) (*Waveform, error)
}

// FFmpegDecoder decodes arbitrary audio containers by resampling through
// ffmpeg into a temporary WAV, then parsing the WAV with go-audio.
// Plain WAV inputs at the analysis rate skip the subprocess entirely.
type FFmpegDecoder struct {
	bin     string
	timeout time.Duration
	logger  *slog.Logger
}

// NewFFmpegDecoder resolves the ffmpeg binary. preferred may be empty.
// A positive timeout bounds each decode subprocess.
func NewFFmpegDecoder(preferred string, timeout time.Duration, logger *slog.Logger) (*FFmpegDecoder, error) {
	bin, err := resolveBinary(preferred, "ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("cannot locate ffmpeg: %w", err)
	}
	return &FFmpegDecoder{bin: bin, timeout: timeout, logger: logger}, nil
}

func (d *FFmpegDecoder) Decode(ctx context.Context, path string) (*Waveform, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		if w, err := DecodeWAVFile(path); err == nil && w.SampleRate == AnalysisSampleRate {
			return w, nil
		}
		// Wrong rate or unreadable RIFF: fall through to ffmpeg.
	}

	tmp, err := os.CreateTemp("", "vidforge-decode-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create decode temp: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	result := runTool(ctx, d.bin,
		"-y",
		"-i", path,
		"-ac", "1",
		"-ar", strconv.Itoa(AnalysisSampleRate),
		"-f", "wav",
		tmpPath,
	)
	if !result.IsSuccess() {
		return nil, fmt.Errorf("ffmpeg decode exited %d: %s", result.ExitCode, truncate(result.StderrTail, 512))
	}

	w, err := DecodeWAVFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("parse decoded wav: %w", err)
	}

	if d.logger != nil {
		d.logger.Debug("decoded waveform",
			"source", path, "samples", len(w.Samples), "duration_s", w.Duration())
	}
	return w, nil
}

// WAVDecoder decodes plain WAV files without ffmpeg. Inputs at other sample
// rates are rejected rather than resampled; it serves as the fallback when
// ffmpeg is not installed but the TTS service already returns WAV.
type WAVDecoder struct{}

func (WAVDecoder) Decode(ctx context.Context, path string) (*Waveform, error) {
	w, err := DecodeWAVFile(path)
	if err != nil {
		return nil, err
	}
	if w.SampleRate != AnalysisSampleRate {
		return nil, fmt.Errorf("wav sample rate %d, need %d (install ffmpeg for resampling)", w.SampleRate, AnalysisSampleRate)
	}
	return w, nil
}

// DecodeWAVFile parses a RIFF/WAV file into a mono float64 waveform in
// [-1, 1]. Multi-channel input is mixed down by averaging.
func DecodeWAVFile(path string) (*Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("not a valid wav file: %s", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read pcm: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 {
		return nil, fmt.Errorf("wav missing format info: %s", path)
	}

	channels := buf.Format.NumChannels
	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(dec.BitDepth)
	}
	scale := float64(int64(1) << (bitDepth - 1))

	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		samples[i] = sum / float64(channels) / scale
	}

	return &Waveform{Samples: samples, SampleRate: buf.Format.SampleRate}, nil
}
