// Package config provides configuration management for the Vidforge Agent.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultPort     = 8686
	DefaultLogLevel = "info"
	DefaultDataDir  = ".vidforge"

	// Environment variable names
	EnvPort     = "VIDFORGE_PORT"
	EnvLogLevel = "VIDFORGE_LOG_LEVEL"
	EnvDataDir  = "VIDFORGE_DATA_DIR"
	EnvPresets  = "VIDFORGE_PRESETS_FILE"

	// Media tool environment variable names
	EnvFFmpegPath  = "VIDFORGE_FFMPEG"
	EnvFFprobePath = "VIDFORGE_FFPROBE"

	// Collaborator backend environment variable names
	EnvVideoBaseURL = "VIDFORGE_VIDEO_API_URL"
	EnvVideoToken   = "VIDFORGE_VIDEO_API_TOKEN"
	EnvTTSBaseURL   = "VIDFORGE_TTS_API_URL"
	EnvTTSToken     = "VIDFORGE_TTS_API_TOKEN"

	// Database filename
	DBFilename = "vidforge.db"

	// Media tool defaults
	DefaultProbeTimeout  = 15  // seconds
	DefaultDecodeTimeout = 120 // seconds

	// Session retention default for stale cleanup
	DefaultRetention = 72 * time.Hour
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	SessionsDir() string
	ExportsDir() string
	PresetsPath() string
	FFmpegPath() string
	FFprobePath() string
	ProbeTimeout() time.Duration
	DecodeTimeout() time.Duration
	VideoBaseURL() string
	VideoToken() string
	TTSBaseURL() string
	TTSToken() string
	Retention() time.Duration
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string
	presets  string

	ffmpegPath  string
	ffprobePath string

	videoBaseURL string
	videoToken   string
	ttsBaseURL   string
	ttsToken     string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:     DefaultPort,
		logLevel: DefaultLogLevel,
		dataDir:  defaultDataDir(),
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	// Override log level from environment
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	// Override data directory from environment
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	cfg.presets = os.Getenv(EnvPresets)
	cfg.ffmpegPath = os.Getenv(EnvFFmpegPath)
	cfg.ffprobePath = os.Getenv(EnvFFprobePath)

	cfg.videoBaseURL = os.Getenv(EnvVideoBaseURL)
	cfg.videoToken = os.Getenv(EnvVideoToken)
	cfg.ttsBaseURL = os.Getenv(EnvTTSBaseURL)
	cfg.ttsToken = os.Getenv(EnvTTSToken)

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// SessionsDir returns the base directory under which session trees are created
func (c *EnvConfig) SessionsDir() string {
	return filepath.Join(c.dataDir, "sessions")
}

// ExportsDir returns the directory retained final outputs are moved to on cleanup
func (c *EnvConfig) ExportsDir() string {
	return filepath.Join(c.dataDir, "exports")
}

// PresetsPath returns the quality preset/theme YAML path, empty when unset
func (c *EnvConfig) PresetsPath() string {
	return c.presets
}

func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

func (c *EnvConfig) FFprobePath() string {
	return c.ffprobePath
}

func (c *EnvConfig) ProbeTimeout() time.Duration {
	return time.Duration(DefaultProbeTimeout) * time.Second
}

func (c *EnvConfig) DecodeTimeout() time.Duration {
	return time.Duration(DefaultDecodeTimeout) * time.Second
}

func (c *EnvConfig) VideoBaseURL() string { return c.videoBaseURL }
func (c *EnvConfig) VideoToken() string   { return c.videoToken }
func (c *EnvConfig) TTSBaseURL() string   { return c.ttsBaseURL }
func (c *EnvConfig) TTSToken() string     { return c.ttsToken }

func (c *EnvConfig) Retention() time.Duration {
	return DefaultRetention
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
