package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-go/vai-wingman/pkg/core/audio"
	"github.com/vango-go/vai-wingman/pkg/core/live"
	"github.com/vango-go/vai-wingman/pkg/core/providers/gemini"
	"github.com/vango-go/vai-wingman/pkg/core/suggest"
	"github.com/vango-go/vai-wingman/pkg/core/summary"
	"github.com/vango-go/vai-wingman/pkg/core/voice/emotion"
	"github.com/vango-go/vai-wingman/pkg/core/voice/stt"
	"github.com/vango-go/vai-wingman/pkg/lifecycle"
	"github.com/vango-go/vai-wingman/pkg/persist"
	"github.com/vango-go/vai-wingman/pkg/present"
	"github.com/vango-go/vai-wingman/pkg/telemetry"
)

type listenOptions struct {
	input       string
	rate        int
	channels    int
	realtime    bool
	interim     bool
	overlayAddr string
}

func newListenCmd(a *app) *cobra.Command {
	var opts listenOptions
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Run a live session over an audio stream",
		Long: `Run one session over WAV or raw PCM16 audio read from a file or stdin.

The session ends when the input ends, on SIGINT or SIGTERM (a requested stop)
or on SIGHUP (the capture surface went away). Either way the summary and
persistence steps finish before the command exits; a second signal aborts the
wait.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("overlay") {
				opts.overlayAddr = a.cfg.Overlay.Addr
			}
			return a.runListen(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.input, "input", "i", "-", `audio input path, or "-" for stdin`)
	cmd.Flags().IntVar(&opts.rate, "rate", 16000, "sample rate of raw PCM input")
	cmd.Flags().IntVar(&opts.channels, "channels", 1, "channel count of raw PCM input")
	cmd.Flags().BoolVar(&opts.realtime, "realtime", true, "pace input reads to the audio clock")
	cmd.Flags().BoolVar(&opts.interim, "interim", false, "print interim transcript previews")
	cmd.Flags().StringVar(&opts.overlayAddr, "overlay", "", `overlay listen address (default from config, "" disables)`)
	return cmd
}

// listenRuntime is everything a listen session wires together.
type listenRuntime struct {
	orch    *live.Orchestrator
	life    *lifecycle.Lifecycle
	events  *present.Broadcaster
	end     *sessionEnd
	closers []func() error
}

func (rt *listenRuntime) close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *app) runListen(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, opts listenOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := a.logger

	if a.cfg.Telemetry.Enabled {
		flush, err := telemetry.InitTracer("wingman", stderr, logger)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		defer func() {
			fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := flush(fctx); err != nil {
				logger.Warn("tracer shutdown failed", "error", err)
			}
		}()
	}

	rt, err := a.wireListen(ctx, stdin, stdout, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.close(); err != nil {
			logger.Warn("release session resources", "error", err)
		}
	}()

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	overlayErr := make(chan error, 1)
	if opts.overlayAddr != "" {
		ov := present.NewOverlay(present.OverlayConfig{Addr: opts.overlayAddr}, rt.events, rt.orch, logger)
		go func() { overlayErr <- ov.ListenAndServe(runCtx) }()
	}

	sigCh := make(chan os.Signal, 2)
	a.deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer a.deps.signalStop(sigCh)

	surface := newInputSurface(opts.input)
	id, err := rt.orch.Start(ctx, surface)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	fmt.Fprintln(stdout, headerStyle.Render("Listening")+timeStyle.Render(" session "+id+" on "+surface.ID()))

	select {
	case <-rt.end.Done():
	case sig := <-sigCh:
		logger.Info("signal received", "signal", sig.String())
		if sig == syscall.SIGHUP {
			surface.vanish()
		} else {
			rt.orch.Stop(ctx)
		}
	case err := <-overlayErr:
		logger.Error("overlay failed", "error", err)
		rt.orch.Stop(ctx)
	case <-ctx.Done():
		rt.orch.Stop(context.WithoutCancel(ctx))
	}

	rt.life.SetDraining(true)
	grace := a.cfg.Shutdown.SummaryTimeout + a.cfg.Shutdown.PersistTimeout + 10*time.Second
	waitCtx, cancelWait := context.WithTimeout(context.WithoutCancel(ctx), grace)
	defer cancelWait()
	go func() {
		select {
		case sig := <-sigCh:
			logger.Warn("second signal; abandoning shutdown", "signal", sig.String())
			cancelWait()
		case <-waitCtx.Done():
		}
	}()

	// The shutdown obligation is registered before the terminal event is sent,
	// so waiting for the event first makes the lifecycle wait meaningful.
	select {
	case <-rt.end.Done():
	case <-waitCtx.Done():
	}
	if !rt.life.Wait(waitCtx) {
		return fmt.Errorf("session shutdown did not finish: pending %v", rt.life.Pending())
	}
	return nil
}

// wireListen builds the orchestrator and its collaborators from config.
func (a *app) wireListen(ctx context.Context, stdin io.Reader, stdout io.Writer, opts listenOptions) (*listenRuntime, error) {
	cfg := a.cfg
	logger := a.logger
	rt := &listenRuntime{life: &lifecycle.Lifecycle{}}
	wired := false
	defer func() {
		if !wired {
			_ = rt.close()
		}
	}()

	db, err := a.deps.openStore(ctx, cfg.Store.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	rt.closers = append(rt.closers, db.Close)

	prefs, release, err := a.openSettings(ctx, db, true)
	if err != nil {
		return nil, fmt.Errorf("open settings: %w", err)
	}
	rt.closers = append(rt.closers, release)

	sttDialer, err := stt.NewDeepgram(stt.Options{
		APIKey:         cfg.STT.APIKey,
		URL:            cfg.STT.URL,
		Model:          cfg.STT.Model,
		Language:       cfg.STT.Language,
		SampleRate:     cfg.Audio.SampleRate,
		Channels:       cfg.Audio.Channels,
		Diarize:        true,
		EndpointingMs:  cfg.STT.EndpointingMs,
		UtteranceEndMs: cfg.STT.UtteranceEndMs,
		KeepAlive:      5 * time.Second,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}
	emotionDialer, err := emotion.NewHume(emotion.Options{
		APIKey: cfg.Emotion.APIKey,
		URL:    cfg.Emotion.URL,
		Window: time.Duration(cfg.Emotion.WindowMs) * time.Millisecond,
		Format: cfg.Format(),
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	completion, err := gemini.New(ctx, cfg.Completion.APIKey,
		gemini.WithModel(cfg.Completion.Model), gemini.WithBaseURL(cfg.Completion.BaseURL))
	if err != nil {
		return nil, err
	}
	pipeline, err := suggest.NewPipeline(suggest.Config{
		ContextTurns:   cfg.Suggest.ContextTurns,
		RetrievalLimit: cfg.Suggest.RetrievalLimit,
	}, suggest.Dependencies{
		Retriever: db,
		Completer: &suggest.GeminiCompleter{
			Provider:    completion,
			Model:       cfg.Completion.Model,
			MaxTokens:   int32(cfg.Completion.MaxTokens),
			Temperature: float32(cfg.Completion.Temperature),
		},
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	summarizer, err := a.newSummarizer(ctx, completion)
	if err != nil {
		return nil, err
	}

	router := persist.NewRouter(persist.Options{Logger: logger})
	rt.closers = append(rt.closers, router.Close)

	rt.events = present.NewBroadcaster(64)
	rt.end = newSessionEnd()
	orch, err := live.NewOrchestrator(cfg.Live(), live.Dependencies{
		Capture: &captureOpener{
			input: opts.input,
			stdin: stdin,
			pcm: audio.PCMReaderOptions{
				SampleRate: opts.rate,
				Channels:   opts.channels,
				Realtime:   opts.realtime,
			},
			cfg: audio.CaptureConfig{Format: cfg.Format(), FrameBytes: cfg.Audio.FrameBytes, Logger: logger},
		},
		STT:         sttDialer,
		Emotion:     emotionDialer,
		Suggester:   pipeline,
		Summarizer:  summarizer,
		Settings:    prefs,
		Persister:   router,
		Presenter:   present.Fanout{newConsole(stdout, opts.interim), rt.events, rt.end},
		Credentials: cfg,
		Obligations: rt.life,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	rt.orch = orch
	wired = true
	return rt, nil
}

// newSummarizer reuses the completion client unless the summary has its own
// key.
func (a *app) newSummarizer(ctx context.Context, completion *gemini.Provider) (*summary.Summarizer, error) {
	cfg := a.cfg
	gen := completion
	if cfg.Summary.APIKey != "" && cfg.Summary.APIKey != cfg.Completion.APIKey {
		p, err := gemini.New(ctx, cfg.Summary.APIKey, gemini.WithBaseURL(cfg.Completion.BaseURL))
		if err != nil {
			return nil, err
		}
		gen = p
	}
	return summary.NewSummarizer(gen, cfg.Summary.Model), nil
}
