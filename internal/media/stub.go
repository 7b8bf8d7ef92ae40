package media

import (
	"context"
	"fmt"
	"log/slog"
)

// StubProber returns a fixed probe result without touching ffprobe.
type StubProber struct {
	Result ProbeResult
	Err    error
	logger *slog.Logger
}

func NewStubProber(logger *slog.Logger) *StubProber {
	return &StubProber{logger: logger}
}

func (p *StubProber) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	if p.logger != nil {
		p.logger.Info("prober stub: probe requested", "path", path)
	}
	if p.Err != nil {
		return nil, p.Err
	}
	r := p.Result
	return &r, nil
}

// StubDecoder returns a fixed waveform without touching ffmpeg.
type StubDecoder struct {
	Wave   *Waveform
	Err    error
	logger *slog.Logger
}

func NewStubDecoder(logger *slog.Logger) *StubDecoder {
	return &StubDecoder{logger: logger}
}

func (d *StubDecoder) Decode(ctx context.Context, path string) (*Waveform, error) {
	if d.logger != nil {
		d.logger.Info("decoder stub: decode requested", "path", path)
	}
	if d.Err != nil {
		return nil, d.Err
	}
	if d.Wave == nil {
		return nil, fmt.Errorf("decoder stub: no waveform configured")
	}
	return d.Wave, nil
}

// StubDoctor reports fixed capabilities.
type StubDoctor struct {
	Caps Capabilities
}

func (d *StubDoctor) Probe(ctx context.Context) (*Capabilities, error) {
	c := d.Caps
	return &c, nil
}
