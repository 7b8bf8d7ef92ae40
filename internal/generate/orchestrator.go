// Package generate drives one video generation run end to end: narration
// synthesis and clip generation in parallel, audio analysis, subtitle
// synchronization, timeline validation, and session finalization. All file
// placement goes through the session manager.
package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vidforge/vidforge-agent/internal/audio"
	"github.com/vidforge/vidforge-agent/internal/genai"
	"github.com/vidforge/vidforge-agent/internal/session"
	"github.com/vidforge/vidforge-agent/internal/subtitle"
	"github.com/vidforge/vidforge-agent/internal/timeline"
)

// maxParallelClips bounds concurrent video API calls.
const maxParallelClips = 3

// Mission is one generation request.
type Mission struct {
	Topic     string   `json:"topic"`
	Platform  string   `json:"platform"`
	DurationS int      `json:"duration_s"`
	Category  string   `json:"category"`
	Script    []string `json:"script"`
	Voice     string   `json:"voice,omitempty"`
	Style     string   `json:"style,omitempty"`
}

// Outcome summarizes a completed (possibly partially failed) run.
type Outcome struct {
	SessionID    string            `json:"session_id"`
	SummaryPath  string            `json:"summary_path"`
	Timings      []subtitle.Timing `json:"timings"`
	Report       *timeline.Report  `json:"report"`
	SyncAccuracy float64           `json:"sync_accuracy"`
	ClipPaths    []string          `json:"clip_paths"`
	AudioPath    string            `json:"audio_path"`
}

// Orchestrator coordinates the generation collaborators for one agent.
type Orchestrator struct {
	sessions *session.Manager
	clips    genai.ClipGenerator
	speech   genai.SpeechSynthesizer
	analyzer *audio.Analyzer
	syncer   *subtitle.Synchronizer
	logger   *slog.Logger

	clipWidth  int
	clipHeight int
}

func NewOrchestrator(
	sessions *session.Manager,
	clips genai.ClipGenerator,
	speech genai.SpeechSynthesizer,
	analyzer *audio.Analyzer,
	syncer *subtitle.Synchronizer,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		sessions: sessions,
		clips:    clips,
		speech:   speech,
		analyzer: analyzer,
		syncer:   syncer,
		logger:   logger,
	}
}

// SetClipSize fixes the resolution requested from the video API.
func (o *Orchestrator) SetClipSize(width, height int) {
	o.clipWidth = width
	o.clipHeight = height
}

// Run executes the full pipeline for one mission. The session is always
// finalized, even when a stage fails, so partial artifacts stay inspectable.
func (o *Orchestrator) Run(ctx context.Context, mission Mission) (*Outcome, error) {
	segments := mission.Script
	if len(segments) == 0 {
		segments = []string{mission.Topic}
	}

	sess, err := o.sessions.Create(ctx, session.Meta{
		Topic:    mission.Topic,
		Platform: mission.Platform,
		Duration: mission.DurationS,
		Category: mission.Category,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	log := o.logger.With("session_id", sess.ID())

	outcome := &Outcome{SessionID: sess.ID()}

	if err := o.writeScript(ctx, sess, segments); err != nil {
		log.Warn("script tracking failed", "error", err)
	}

	audioPath, clipPaths, speechErr := o.generateAssets(ctx, sess, segments, mission)
	outcome.ClipPaths = clipPaths

	if speechErr != nil {
		sess.LogStep(ctx, "synthesize_speech", session.StepFailed, map[string]any{"error": speechErr.Error()})
		o.finalize(ctx, sess, outcome)
		return outcome, fmt.Errorf("speech synthesis: %w", speechErr)
	}
	outcome.AudioPath = audioPath

	sess.LogStep(ctx, "analyze_audio", session.StepStarted, nil)
	analysis := o.analyzer.Analyze(ctx, audioPath)
	sess.LogStep(ctx, "analyze_audio", session.StepCompleted, map[string]any{
		"duration_s": analysis.Duration,
		"degraded":   analysis.Degraded,
		"confidence": analysis.Confidence,
	})

	timings := o.syncer.Synchronize(segments, analysis, nil)
	outcome.Timings = timings
	outcome.SyncAccuracy = subtitle.SyncAccuracy(timings, analysis.Duration)
	sess.LogStep(ctx, "synchronize_subtitles", session.StepCompleted, map[string]any{
		"cues":          len(timings),
		"sync_accuracy": outcome.SyncAccuracy,
	})

	if err := o.writeSubtitles(ctx, sess, timings); err != nil {
		log.Warn("subtitle tracking failed", "error", err)
	}

	outcome.Report = o.validate(ctx, sess, timings, clipPaths, audioPath, analysis, mission)

	if err := o.compose(ctx, sess, outcome, analysis); err != nil {
		log.Warn("compose plan failed", "error", err)
	}

	o.finalize(ctx, sess, outcome)
	return outcome, nil
}

// generateAssets runs narration synthesis and clip generation concurrently.
// Clip failures are logged per clip and do not abort the run; a narration
// failure does.
func (o *Orchestrator) generateAssets(ctx context.Context, sess *session.Session, segments []string, mission Mission) (string, []string, error) {
	type speechResult struct {
		path string
		err  error
	}
	speechCh := make(chan speechResult, 1)

	sess.LogStep(ctx, "synthesize_speech", session.StepStarted, map[string]any{"segments": len(segments)})
	go func() {
		local, err := o.speech.Synthesize(ctx, genai.SpeechRequest{
			Text:  strings.Join(segments, " "),
			Voice: mission.Voice,
		})
		if err != nil {
			speechCh <- speechResult{err: err}
			return
		}

		staged, cleanup, err := stageAs(local, "narration"+filepath.Ext(local))
		if err != nil {
			os.Remove(local)
			speechCh <- speechResult{err: err}
			return
		}
		defer cleanup()

		tracked, err := sess.TrackFile(ctx, staged, session.FileTypeAudio, "tts")
		speechCh <- speechResult{path: tracked, err: err}
	}()

	sess.LogStep(ctx, "generate_clips", session.StepStarted, map[string]any{"count": len(segments)})
	clipPaths := make([]string, len(segments))
	clipErrs := make([]error, len(segments))
	sem := make(chan struct{}, maxParallelClips)
	done := make(chan int, len(segments))

	perClip := 0.0
	if mission.DurationS > 0 {
		perClip = float64(mission.DurationS) / float64(len(segments))
	}
	for i, seg := range segments {
		go func(i int, seg string) {
			sem <- struct{}{}
			defer func() { <-sem; done <- i }()

			local, err := o.clips.GenerateClip(ctx, genai.ClipRequest{
				Prompt:    seg,
				Style:     mission.Style,
				DurationS: perClip,
				Width:     o.clipWidth,
				Height:    o.clipHeight,
			})
			if err != nil {
				clipErrs[i] = err
				return
			}

			staged, cleanup, err := stageAs(local, fmt.Sprintf("clip_%02d%s", i, filepath.Ext(local)))
			if err != nil {
				os.Remove(local)
				clipErrs[i] = err
				return
			}
			defer cleanup()
			clipPaths[i], clipErrs[i] = sess.TrackFile(ctx, staged, session.FileTypeVideoClip, "video")
		}(i, seg)
	}
	for range segments {
		<-done
	}

	failed := 0
	var kept []string
	for i, err := range clipErrs {
		if err != nil {
			failed++
			o.logger.Warn("clip generation failed", "session_id", sess.ID(), "index", i, "error", err)
			continue
		}
		kept = append(kept, clipPaths[i])
	}
	status := session.StepCompleted
	if failed == len(segments) && len(segments) > 0 {
		status = session.StepFailed
	}
	sess.LogStep(ctx, "generate_clips", status, map[string]any{"generated": len(kept), "failed": failed})

	speech := <-speechCh
	if speech.err != nil {
		return "", kept, speech.err
	}
	sess.LogStep(ctx, "synthesize_speech", session.StepCompleted, map[string]any{"path": filepath.Base(speech.path)})
	return speech.path, kept, nil
}

// validate records the run's timeline events and reports drift.
func (o *Orchestrator) validate(ctx context.Context, sess *session.Session, timings []subtitle.Timing, clipPaths []string, audioPath string, analysis *audio.Result, mission Mission) *timeline.Report {
	v := timeline.NewValidator()

	for i, cue := range timings {
		v.AddSubtitleEvent(i, cue.Start, cue.End, cue.Text)
		// Narration is one continuous track; each cue window is the slice of
		// it that carries this segment's speech.
		v.AddAudioEvent(i, cue.Start, cue.End, audioPath)
	}
	for i, clip := range clipPaths {
		if i < len(timings) {
			v.AddVideoClipEvent(i, timings[i].Start, timings[i].End, clip)
		}
	}

	videoDuration := analysis.Duration
	if mission.DurationS > 0 {
		videoDuration = float64(mission.DurationS)
	}
	report := v.AnalyzeAlignment(videoDuration)

	status := session.StepCompleted
	if !report.OK() {
		status = session.StepFailed
	}
	sess.LogStep(ctx, "validate_timeline", status, map[string]any{
		"issues":         len(report.Issues),
		"warnings":       len(report.Warnings),
		"audio_coverage": report.Stats.AudioCoverage,
	})

	if err := o.trackText(ctx, sess, timeline.RenderMarkdown(report, v.Events()),
		"timeline_report.md", session.FileTypeMetadata); err != nil {
		o.logger.Warn("timeline report tracking failed", "session_id", sess.ID(), "error", err)
	}
	return report
}

// compose writes the composition plan into final_output. Actual video
// rendering happens in a separate compositor stage; the plan pins down
// exactly which artifact goes where on the timeline.
func (o *Orchestrator) compose(ctx context.Context, sess *session.Session, outcome *Outcome, analysis *audio.Result) error {
	plan := map[string]any{
		"session_id": sess.ID(),
		"audio":      outcome.AudioPath,
		"clips":      outcome.ClipPaths,
		"cues":       outcome.Timings,
		"duration_s": analysis.Duration,
	}
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal compose plan: %w", err)
	}

	dir, err := sess.Path("final_output")
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "compose_plan.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write compose plan: %w", err)
	}

	sess.LogStep(ctx, "compose", session.StepCompleted, map[string]any{"plan": "compose_plan.json"})
	return nil
}

func (o *Orchestrator) writeScript(ctx context.Context, sess *session.Session, segments []string) error {
	return o.trackText(ctx, sess, strings.Join(segments, "\n"), "script.txt", session.FileTypeScript)
}

func (o *Orchestrator) writeSubtitles(ctx context.Context, sess *session.Session, timings []subtitle.Timing) error {
	return o.trackText(ctx, sess, subtitle.RenderSRT(timings), "subtitles.srt", session.FileTypeScript)
}

// trackText routes a generated text artifact through file tracking. The file
// is staged under its intended basename; TrackFile derives the tracked name
// from it.
func (o *Orchestrator) trackText(ctx context.Context, sess *session.Session, content, name string, t session.FileType) error {
	dir, err := os.MkdirTemp("", "vidforge-artifact-")
	if err != nil {
		return fmt.Errorf("create artifact temp: %w", err)
	}
	defer os.RemoveAll(dir)

	staged := filepath.Join(dir, name)
	if err := os.WriteFile(staged, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}

	_, err = sess.TrackFile(ctx, staged, t, "orchestrator")
	return err
}

// stageAs moves a temp artifact into a private temp directory under the
// basename it should be tracked as. The caller removes the directory after
// tracking.
func stageAs(localPath, name string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "vidforge-stage-")
	if err != nil {
		return "", nil, fmt.Errorf("create staging dir: %w", err)
	}
	staged := filepath.Join(dir, name)
	if err := os.Rename(localPath, staged); err != nil {
		os.RemoveAll(dir)
		return "", nil, fmt.Errorf("stage %s: %w", name, err)
	}
	return staged, func() { os.RemoveAll(dir) }, nil
}

func (o *Orchestrator) finalize(ctx context.Context, sess *session.Session, outcome *Outcome) {
	summaryPath, err := sess.Finalize(ctx)
	if err != nil {
		o.logger.Warn("session finalize failed", "session_id", sess.ID(), "error", err)
		return
	}
	outcome.SummaryPath = summaryPath
}
