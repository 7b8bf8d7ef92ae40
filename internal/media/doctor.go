package media

import (
	"context"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

const defaultCacheTTL = 5 * time.Minute

// Capabilities reports which external tools are usable. Absence of the DSP
// toolchain is not an error: the audio analyzer degrades instead.
type Capabilities struct {
	HasFFmpeg   bool
	HasFFprobe  bool
	FFmpegPath  string
	FFprobePath string
	ProbedAt    time.Time
}

// CanDecode reports whether full waveform analysis is possible.
func (c *Capabilities) CanDecode() bool { return c.HasFFmpeg }

// CanProbe reports whether the lightweight duration probe is possible.
func (c *Capabilities) CanProbe() bool { return c.HasFFprobe }

// Doctor probes tool availability.
type Doctor interface {
	Probe(ctx context.Context) (*Capabilities, error)
}

// PathDoctor checks the configured or PATH-resolved binaries.
type PathDoctor struct {
	ffmpegPreferred  string
	ffprobePreferred string
	logger           *slog.Logger
}

func NewPathDoctor(ffmpegPath, ffprobePath string, logger *slog.Logger) *PathDoctor {
	return &PathDoctor{ffmpegPreferred: ffmpegPath, ffprobePreferred: ffprobePath, logger: logger}
}

func (d *PathDoctor) Probe(ctx context.Context) (*Capabilities, error) {
	caps := &Capabilities{ProbedAt: time.Now()}

	if p, err := lookup(d.ffmpegPreferred, "ffmpeg"); err == nil {
		caps.HasFFmpeg = true
		caps.FFmpegPath = p
	}
	if p, err := lookup(d.ffprobePreferred, "ffprobe"); err == nil {
		caps.HasFFprobe = true
		caps.FFprobePath = p
	}

	if d.logger != nil {
		d.logger.Info("media doctor probe complete",
			"ffmpeg", caps.HasFFmpeg, "ffprobe", caps.HasFFprobe)
	}
	return caps, nil
}

func lookup(preferred, fallback string) (string, error) {
	if preferred != "" {
		return exec.LookPath(preferred)
	}
	return exec.LookPath(fallback)
}

// CachedDoctor wraps a Doctor to cache probe results with a TTL, avoiding a
// PATH scan per analysis call.
type CachedDoctor struct {
	doctor Doctor
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

func NewCachedDoctor(doctor Doctor, logger *slog.Logger) *CachedDoctor {
	return &CachedDoctor{
		doctor: doctor,
		ttl:    defaultCacheTTL,
		logger: logger,
	}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (d *CachedDoctor) Get(ctx context.Context) (*Capabilities, error) {
	d.mu.RLock()
	if d.cached != nil && time.Since(d.cached.ProbedAt) < d.ttl {
		caps := d.cached
		d.mu.RUnlock()
		return caps, nil
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

// Refresh forces a new probe regardless of cache freshness.
func (d *CachedDoctor) Refresh(ctx context.Context) (*Capabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	caps, err := d.doctor.Probe(ctx)
	if err != nil {
		if d.logger != nil {
			d.logger.Warn("doctor probe failed", "error", err)
		}
		// Return stale cache if available
		if d.cached != nil {
			return d.cached, nil
		}
		return nil, err
	}

	d.cached = caps
	return caps, nil
}

// Invalidate clears the cached capabilities.
func (d *CachedDoctor) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}
