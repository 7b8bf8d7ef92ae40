package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// QualityPreset describes the render parameters a generation run targets.
// All fields are explicit; absent YAML keys keep the zero value and are
// replaced by DefaultPresets values at load time.
type QualityPreset struct {
	Name         string  `yaml:"name"`
	Width        int     `yaml:"width"`
	Height       int     `yaml:"height"`
	FrameRate    float64 `yaml:"frame_rate"`
	VideoBitrate string  `yaml:"video_bitrate"`
	AudioBitrate string  `yaml:"audio_bitrate"`
}

// Theme carries optional visual styling consumed by the composition stage.
// Disabled features stay nil/empty rather than being probed for presence.
type Theme struct {
	Name         string `yaml:"name"`
	FontName     string `yaml:"font_name"`
	FontSize     int    `yaml:"font_size"`
	SubtitleTint string `yaml:"subtitle_tint"`
	Watermark    string `yaml:"watermark"`  // empty = no watermark
	IntroClip    string `yaml:"intro_clip"` // empty = no intro
	OutroClip    string `yaml:"outro_clip"` // empty = no outro
	MarginBottom int    `yaml:"margin_bottom"`
}

// Presets is the static quality/theme table the core consumes verbatim.
type Presets struct {
	Default  string          `yaml:"default"`
	Quality  []QualityPreset `yaml:"quality"`
	Themes   []Theme         `yaml:"themes"`
	Language string          `yaml:"language"`
}

// DefaultPresets returns the built-in table used when no presets file is configured.
func DefaultPresets() *Presets {
	return &Presets{
		Default:  "shorts_1080",
		Language: "en",
		Quality: []QualityPreset{
			{Name: "shorts_1080", Width: 1080, Height: 1920, FrameRate: 30, VideoBitrate: "6M", AudioBitrate: "192k"},
			{Name: "shorts_720", Width: 720, Height: 1280, FrameRate: 30, VideoBitrate: "3M", AudioBitrate: "128k"},
		},
		Themes: []Theme{
			{Name: "plain", FontName: "Arial", FontSize: 48, SubtitleTint: "#FFFFFF", MarginBottom: 120},
		},
	}
}

// LoadPresets reads the YAML preset table at path. A missing file is not an
// error: the built-in defaults are returned so the agent can always start.
func LoadPresets(path string) (*Presets, error) {
	if path == "" {
		return DefaultPresets(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultPresets(), nil
		}
		return nil, fmt.Errorf("read presets file: %w", err)
	}

	var p Presets
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse presets file: %w", err)
	}

	defaults := DefaultPresets()
	if p.Default == "" {
		p.Default = defaults.Default
	}
	if p.Language == "" {
		p.Language = defaults.Language
	}
	if len(p.Quality) == 0 {
		p.Quality = defaults.Quality
	}
	if len(p.Themes) == 0 {
		p.Themes = defaults.Themes
	}
	return &p, nil
}

// Quality returns the preset with the given name, falling back to the default.
func (p *Presets) QualityByName(name string) QualityPreset {
	for _, q := range p.Quality {
		if q.Name == name {
			return q
		}
	}
	for _, q := range p.Quality {
		if q.Name == p.Default {
			return q
		}
	}
	return p.Quality[0]
}
