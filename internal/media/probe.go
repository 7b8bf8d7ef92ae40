package media

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
)

// Prober returns container metadata for a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (*ProbeResult, error)
}

// ProbeResult holds the subset of ffprobe output the pipeline consumes.
type ProbeResult struct {
	Duration   float64
	FormatName string
	Bitrate    int64
	SampleRate int
	Channels   int
	AudioCodec string
	VideoCodec string
	Width      int
	Height     int
	FrameRate  float64
}

// FFprobe is the production Prober backed by the ffprobe binary.
type FFprobe struct {
	bin    string
	logger *slog.Logger
}

// NewFFprobe resolves the ffprobe binary. preferred may be empty to search PATH.
func NewFFprobe(preferred string, logger *slog.Logger) (*FFprobe, error) {
	bin, err := resolveBinary(preferred, "ffprobe")
	if err != nil {
		return nil, fmt.Errorf("cannot locate ffprobe: %w", err)
	}
	return &FFprobe{bin: bin, logger: logger}, nil
}

type ffprobeDoc struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
}

func (p *FFprobe) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	result := runTool(ctx, p.bin,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if !result.IsSuccess() {
		return nil, fmt.Errorf("ffprobe exited %d: %s", result.ExitCode, truncate(result.StderrTail, 512))
	}

	var doc ffprobeDoc
	if err := json.Unmarshal(result.StdoutData, &doc); err != nil {
		return nil, fmt.Errorf("cannot parse ffprobe JSON: %w", err)
	}

	pr := &ProbeResult{FormatName: doc.Format.FormatName}
	pr.Duration, _ = strconv.ParseFloat(doc.Format.Duration, 64)
	pr.Bitrate, _ = strconv.ParseInt(doc.Format.BitRate, 10, 64)

	for _, s := range doc.Streams {
		switch s.CodecType {
		case "audio":
			pr.AudioCodec = s.CodecName
			pr.Channels = s.Channels
			pr.SampleRate, _ = strconv.Atoi(s.SampleRate)
		case "video":
			pr.VideoCodec = s.CodecName
			pr.Width = s.Width
			pr.Height = s.Height
			pr.FrameRate = parseFrameRate(s.RFrameRate)
		}
	}

	if p.logger != nil {
		p.logger.Debug("probed media file",
			"format", pr.FormatName, "duration_s", pr.Duration, "sample_rate", pr.SampleRate)
	}
	return pr, nil
}

// parseFrameRate converts ffprobe's rational "num/den" frame rate notation.
func parseFrameRate(s string) float64 {
	var num, den float64
	if _, err := fmt.Sscanf(s, "%f/%f", &num, &den); err != nil || den == 0 {
		return 0
	}
	return num / den
}
