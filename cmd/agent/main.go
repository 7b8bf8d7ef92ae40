package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vidforge/vidforge-agent/internal/api"
	"github.com/vidforge/vidforge-agent/internal/audio"
	"github.com/vidforge/vidforge-agent/internal/config"
	"github.com/vidforge/vidforge-agent/internal/genai"
	"github.com/vidforge/vidforge-agent/internal/generate"
	"github.com/vidforge/vidforge-agent/internal/logging"
	"github.com/vidforge/vidforge-agent/internal/media"
	"github.com/vidforge/vidforge-agent/internal/playback"
	"github.com/vidforge/vidforge-agent/internal/session"
	"github.com/vidforge/vidforge-agent/internal/store"
	"github.com/vidforge/vidforge-agent/internal/subtitle"
)

// staleSweepInterval is how often abandoned sessions are garbage collected.
const staleSweepInterval = time.Hour

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	// A local .env is optional; real deployments set the environment directly.
	godotenv.Load()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	for _, dir := range []string{cfg.DataDir(), cfg.SessionsDir(), cfg.ExportsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting vidforge agent", "version", config.Version, "data_dir", cfg.DataDir())

	presets, err := config.LoadPresets(cfg.PresetsPath())
	if err != nil {
		logger.Warn("presets file unreadable, using defaults", "error", err)
		presets = config.DefaultPresets()
	}
	quality := presets.QualityByName(presets.Default)

	database, err := store.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := store.NewRepository(database.Conn())

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Printf("  vidforge agent v%s\n", config.Version)
	fmt.Printf("  API URL:    http://127.0.0.1:%d\n", cfg.Port())
	fmt.Printf("  Auth Token: %s\n", authToken)
	fmt.Println()

	sessions := session.NewManager(cfg.SessionsDir(), cfg.ExportsDir(), repo, logger)

	doctor := media.NewCachedDoctor(
		media.NewPathDoctor(cfg.FFmpegPath(), cfg.FFprobePath(), logger), logger)

	initCtx, initCancel := context.WithTimeout(context.Background(), cfg.ProbeTimeout())
	caps, err := doctor.Refresh(initCtx)
	initCancel()
	if err != nil {
		logger.Warn("initial media probe failed", "error", err)
		caps = &media.Capabilities{}
	}

	var decoder media.Decoder = media.WAVDecoder{}
	if caps.CanDecode() {
		if d, err := media.NewFFmpegDecoder(cfg.FFmpegPath(), cfg.DecodeTimeout(), logger); err == nil {
			decoder = d
		}
	} else {
		logger.Warn("ffmpeg not found, audio analysis limited to 16 kHz wav input")
	}

	var prober media.Prober = &media.StubProber{}
	if caps.CanProbe() {
		if p, err := media.NewFFprobe(cfg.FFprobePath(), logger); err == nil {
			prober = p
		}
	}

	var clips genai.ClipGenerator
	if cfg.VideoBaseURL() != "" && cfg.VideoToken() != "" {
		clips = genai.NewVideoHTTPClient(cfg.VideoBaseURL(), cfg.VideoToken(), logger)
		logger.Info("video generation enabled", "base_url", cfg.VideoBaseURL())
	} else {
		clips = genai.NewStubClipGenerator(logger)
		logger.Info("video generation running in stub mode")
	}

	var speech genai.SpeechSynthesizer
	if cfg.TTSBaseURL() != "" && cfg.TTSToken() != "" {
		speech = genai.NewSpeechHTTPClient(cfg.TTSBaseURL(), cfg.TTSToken(), logger)
		logger.Info("speech synthesis enabled", "base_url", cfg.TTSBaseURL())
	} else {
		speech = genai.NewStubSpeechSynthesizer(logger)
		logger.Info("speech synthesis running in stub mode")
	}

	analyzer := audio.NewAnalyzer(decoder, prober, doctor, logging.WithComponent(logger, "audio"))
	syncer := subtitle.NewSynchronizer(logging.WithComponent(logger, "subtitle"))

	orchestrator := generate.NewOrchestrator(sessions, clips, speech, analyzer, syncer,
		logging.WithComponent(logger, "generate"))
	orchestrator.SetClipSize(quality.Width, quality.Height)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sweepStaleSessions(ctx, sessions, cfg.Retention(), logger)

	apiServer := api.NewServer(api.ServerConfig{
		Port:         cfg.Port(),
		Sessions:     sessions,
		Repository:   repo,
		Orchestrator: orchestrator,
		Doctor:       doctor,
		Playback:     playback.NewServer(sessions, cfg.ExportsDir(), logger),
		Logger:       logging.WithComponent(logger, "api"),
		StartTime:    startTime,
		Version:      config.Version,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig)

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// sweepStaleSessions periodically removes abandoned session trees past the
// retention window.
func sweepStaleSessions(ctx context.Context, sessions *session.Manager, retention time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(staleSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.CleanupStale(ctx, retention); n > 0 {
				logger.Info("removed stale sessions", "count", n)
			}
		}
	}
}

func ensureAuthToken(repo store.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}
	return token, nil
}
