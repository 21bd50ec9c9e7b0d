// Command synergy-voice runs one Synergy voice session on the local
// microphone and speaker: the HR assistant for a demo user, or a mock
// interview that is scored when it ends.
//
//	synergy-voice -mode interviewer -job "Go Developer" -tone formal
//	synergy-voice -mode assistant -role Manager
//
// Press Ctrl+C to end the session.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/MrWong99/synergy/internal/app"
	"github.com/MrWong99/synergy/internal/config"
	"github.com/MrWong99/synergy/internal/hr"
	"github.com/MrWong99/synergy/internal/screening"
	"github.com/MrWong99/synergy/internal/session"
	"github.com/MrWong99/synergy/pkg/audio/miniaudio"
	"github.com/MrWong99/synergy/pkg/provider/s2s"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	envPath := flag.String("env", ".env", "dotenv file loaded before the config; missing files are ignored")
	mode := flag.String("mode", "assistant", "session kind: assistant or interviewer")
	role := flag.String("role", string(hr.RoleEmployee), "demo user role for the assistant")
	jobRole := flag.String("job", "", "job role to interview for; defaults to the configured one")
	tone := flag.String("tone", "", "interviewer tone; defaults to the configured one")
	guidance := flag.String("guidance", "", "extra interviewer guidance")
	flag.Parse()

	if err := config.LoadDotEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "synergy-voice: %v\n", err)
		return 1
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "synergy-voice: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: app.SlogLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	app.RegisterBuiltinProviders(reg)
	providers, err := app.BuildProviders(ctx, cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	if providers.Live == nil {
		slog.Error("no live provider available, set providers.live.api_key or GEMINI_API_KEY")
		return 1
	}

	var analyzer app.Analyzer
	if providers.Analysis != nil {
		svc, err := screening.New(providers.Analysis,
			screening.WithLogger(logger),
			screening.WithProviderName(cfg.Providers.Analysis.Name),
			screening.WithTemperature(cfg.Analysis.Temperature),
		)
		if err != nil {
			slog.Error("failed to create analysis service", "err", err)
			return 1
		}
		analyzer = svc
	}

	store, err := app.NewStore(cfg)
	if err != nil {
		slog.Error("failed to create store", "err", err)
		return 1
	}

	// ── Audio devices ─────────────────────────────────────────────────────────
	actx, err := miniaudio.NewContext(logger)
	if err != nil {
		slog.Error("audio backend unavailable", "err", err)
		return 1
	}
	defer actx.Close()

	speaker, err := actx.NewSpeaker(s2s.OutputSampleRate)
	if err != nil {
		slog.Error("speaker unavailable", "err", err)
		return 1
	}
	defer speaker.Close()

	// ── Session ───────────────────────────────────────────────────────────────
	ended := make(chan struct{})
	var endOnce sync.Once
	out := &transcriptPrinter{}

	sm := app.NewSessionManager(app.SessionManagerConfig{
		Provider: providers.Live,
		Source:   actx.NewMicrophone(cfg.Audio.CaptureRate),
		Device:   speaker,
		Store:    store,
		Analyzer: analyzer,
		Settings: app.VoiceSettings(cfg),
		Logger:   logger,
		OnStatus: func(st session.Status) {
			slog.Debug("status", "status", st)
			if st == session.StatusIdle || st == session.StatusError {
				endOnce.Do(func() { close(ended) })
			}
		},
		OnTranscript: out.update,
		OnNavigate: func(view string) {
			fmt.Printf("→ navigate to %s\n", view)
		},
	})
	defer sm.Close()

	switch *mode {
	case "assistant":
		err = sm.StartAssistant(ctx, hr.Role(*role))
	case "interviewer":
		err = sm.StartInterview(ctx, *jobRole, *tone, *guidance)
	default:
		err = fmt.Errorf("unknown mode %q, want assistant or interviewer", *mode)
	}
	if err != nil {
		var perr *session.PermissionError
		if errors.As(err, &perr) {
			slog.Error("microphone unavailable, check the input device and its permissions", "err", err)
		} else {
			slog.Error("failed to start session", "err", err)
		}
		return 1
	}
	info, _ := sm.Info()
	fmt.Printf("Session %s started (%s). Press Ctrl+C to end.\n", info.SessionID, info.Profile)

	select {
	case <-ctx.Done():
	case <-ended:
		if sm.Status() == session.StatusError {
			slog.Warn("session ended with an error")
		}
	}
	turns := sm.Transcript()
	out.flush(turns)

	if *mode != "interviewer" {
		if err := sm.Stop(); err != nil && !errors.Is(err, app.ErrNoSession) {
			slog.Warn("stop session", "err", err)
		}
		return 0
	}

	analysisCtx, cancel := context.WithTimeout(context.Background(), cfg.Analysis.Timeout)
	defer cancel()
	res, err := sm.EndInterview(analysisCtx)
	if errors.Is(err, app.ErrNoSession) && analyzer != nil && len(turns) > 1 {
		// The model hung up first; the transcript is still worth scoring.
		var r screening.InterviewResult
		r, err = analyzer.AnalyzeInterview(analysisCtx, screening.InterviewRequest{JobRole: info.JobRole, Transcript: turns})
		res = &r
	}
	switch {
	case errors.Is(err, app.ErrNoSession):
		fmt.Println("Session already ended, no analysis.")
	case err != nil:
		slog.Error("interview analysis failed", "err", err)
		return 1
	case res == nil:
		fmt.Println("Not enough conversation to analyse.")
	default:
		b, _ := json.MarshalIndent(res, "", "  ")
		fmt.Printf("Interview analysis:\n%s\n", b)
	}
	return 0
}

// transcriptPrinter prints each turn once it is complete: a turn is final
// when a later one starts.
type transcriptPrinter struct {
	mu      sync.Mutex
	printed int
}

func (p *transcriptPrinter) update(turns []session.Turn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ; p.printed < len(turns)-1; p.printed++ {
		printTurn(turns[p.printed])
	}
}

func (p *transcriptPrinter) flush(turns []session.Turn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ; p.printed < len(turns); p.printed++ {
		printTurn(turns[p.printed])
	}
}

func printTurn(t session.Turn) {
	who := "You"
	if t.Speaker == session.SpeakerModel {
		who = "Synergy"
	}
	fmt.Printf("%s: %s\n", who, t.Text)
}
