package generate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vidforge/vidforge-agent/internal/audio"
	"github.com/vidforge/vidforge-agent/internal/genai"
	"github.com/vidforge/vidforge-agent/internal/media"
	"github.com/vidforge/vidforge-agent/internal/session"
	"github.com/vidforge/vidforge-agent/internal/subtitle"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestOrchestrator(t *testing.T, clips genai.ClipGenerator, speech genai.SpeechSynthesizer) (*Orchestrator, *session.Manager) {
	t.Helper()
	base := t.TempDir()
	mgr := session.NewManager(filepath.Join(base, "sessions"), filepath.Join(base, "exports"), nil, testLogger())

	analyzer := audio.NewAnalyzer(media.WAVDecoder{}, &media.StubProber{}, nil, testLogger())
	syncer := subtitle.NewSynchronizer(testLogger())
	return NewOrchestrator(mgr, clips, speech, analyzer, syncer, testLogger()), mgr
}

func TestRun_FullPipeline(t *testing.T) {
	o, _ := newTestOrchestrator(t,
		genai.NewStubClipGenerator(testLogger()),
		genai.NewStubSpeechSynthesizer(testLogger()))

	mission := Mission{
		Topic:     "ocean currents",
		Platform:  "shorts",
		DurationS: 0,
		Script:    []string{"The ocean never sits still", "Currents move heat around the planet", "That shapes every climate on earth"},
	}

	outcome, err := o.Run(context.Background(), mission)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(outcome.Timings) != 3 {
		t.Fatalf("timings = %d, want 3", len(outcome.Timings))
	}
	last := -1.0
	for i, cue := range outcome.Timings {
		if cue.Start < last {
			t.Errorf("cue %d out of order", i)
		}
		if cue.End <= cue.Start {
			t.Errorf("cue %d has non-positive duration", i)
		}
		last = cue.Start
	}

	if outcome.Report == nil {
		t.Fatal("no timeline report")
	}
	if !outcome.Report.OK() {
		t.Errorf("report issues = %v, want none from self-consistent run", outcome.Report.Issues)
	}
	if len(outcome.ClipPaths) != 3 {
		t.Errorf("clips = %d, want 3", len(outcome.ClipPaths))
	}
	if outcome.SyncAccuracy <= 0 {
		t.Errorf("sync accuracy = %f, want > 0", outcome.SyncAccuracy)
	}

	if outcome.SummaryPath == "" {
		t.Fatal("session not finalized")
	}
	if _, err := os.Stat(outcome.SummaryPath); err != nil {
		t.Errorf("summary missing: %v", err)
	}

	// Artifacts live inside the session tree.
	for _, p := range append(outcome.ClipPaths, outcome.AudioPath) {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("tracked artifact missing: %v", err)
		}
	}
}

func TestRun_TracksExpectedArtifacts(t *testing.T) {
	o, mgr := newTestOrchestrator(t,
		genai.NewStubClipGenerator(testLogger()),
		genai.NewStubSpeechSynthesizer(testLogger()))

	outcome, err := o.Run(context.Background(), Mission{
		Topic:  "a tiny test",
		Script: []string{"only one segment"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	sess, ok := mgr.Get(outcome.SessionID)
	if !ok {
		t.Fatal("session not registered")
	}

	byType := map[session.FileType]int{}
	var names []string
	for _, f := range sess.Files() {
		byType[f.Type]++
		names = append(names, filepath.Base(f.Path))

		// Source names the producing component, never a filename.
		switch f.Source {
		case "tts", "video", "orchestrator":
		default:
			t.Errorf("file %s has source %q, want a component name", filepath.Base(f.Path), f.Source)
		}
	}

	// Tracked files carry their intended basenames, not temp-file noise.
	for _, want := range []string{"narration.wav", "clip_00.mp4", "script.txt", "subtitles.srt", "timeline_report.md"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
			}
		}
		if !found {
			t.Errorf("tracked names %v missing %s", names, want)
		}
	}
	if byType[session.FileTypeAudio] != 1 {
		t.Errorf("audio artifacts = %d, want 1", byType[session.FileTypeAudio])
	}
	if byType[session.FileTypeVideoClip] != 1 {
		t.Errorf("clip artifacts = %d, want 1", byType[session.FileTypeVideoClip])
	}
	// Script and subtitles both land in the scripts directory.
	if byType[session.FileTypeScript] != 2 {
		t.Errorf("script artifacts = %d (%v), want 2", byType[session.FileTypeScript], names)
	}
	if byType[session.FileTypeMetadata] != 1 {
		t.Errorf("metadata artifacts = %d, want timeline report", byType[session.FileTypeMetadata])
	}

	joined := strings.Join(names, " ")
	if !strings.Contains(joined, "subtitles") {
		t.Errorf("no subtitle artifact in %v", names)
	}

	plan := filepath.Join(sess.Root(), "final_output", "compose_plan.json")
	if _, err := os.Stat(plan); err != nil {
		t.Errorf("compose plan missing: %v", err)
	}
}

func TestRun_SpeechFailureStillFinalizes(t *testing.T) {
	speech := genai.NewStubSpeechSynthesizer(testLogger())
	speech.Err = fmt.Errorf("tts service down")

	o, mgr := newTestOrchestrator(t, genai.NewStubClipGenerator(testLogger()), speech)

	outcome, err := o.Run(context.Background(), Mission{
		Topic:  "doomed run",
		Script: []string{"this will not be spoken"},
	})
	if err == nil {
		t.Fatal("expected error from failed synthesis")
	}
	if outcome == nil || outcome.SessionID == "" {
		t.Fatal("outcome missing session id")
	}

	sess, ok := mgr.Get(outcome.SessionID)
	if !ok {
		t.Fatal("session not registered")
	}
	if sess.State() != session.StateFinalized {
		t.Errorf("session state = %q, want finalized after failure", sess.State())
	}

	var failedStep bool
	for _, step := range sess.Steps() {
		if step.Name == "synthesize_speech" && step.Status == session.StepFailed {
			failedStep = true
		}
	}
	if !failedStep {
		t.Error("failed synthesis not recorded in step log")
	}
}

func TestRun_ClipFailuresAreNonFatal(t *testing.T) {
	clips := genai.NewStubClipGenerator(testLogger())
	clips.Err = fmt.Errorf("video api quota exceeded")

	o, _ := newTestOrchestrator(t, clips, genai.NewStubSpeechSynthesizer(testLogger()))

	outcome, err := o.Run(context.Background(), Mission{
		Topic:  "audio only",
		Script: []string{"narration still works", "without any clips"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v, clip failure should be non-fatal", err)
	}
	if len(outcome.ClipPaths) != 0 {
		t.Errorf("clips = %v, want none", outcome.ClipPaths)
	}
	if len(outcome.Timings) != 2 {
		t.Errorf("timings = %d, want 2", len(outcome.Timings))
	}
}

func TestRun_EmptyScriptFallsBackToTopic(t *testing.T) {
	o, _ := newTestOrchestrator(t,
		genai.NewStubClipGenerator(testLogger()),
		genai.NewStubSpeechSynthesizer(testLogger()))

	outcome, err := o.Run(context.Background(), Mission{Topic: "just a topic line"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(outcome.Timings) != 1 {
		t.Fatalf("timings = %d, want 1 from topic fallback", len(outcome.Timings))
	}
	if outcome.Timings[0].Text != "just a topic line" {
		t.Errorf("cue text = %q", outcome.Timings[0].Text)
	}
}
