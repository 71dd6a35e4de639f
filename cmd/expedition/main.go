package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	slackapi "github.com/slack-go/slack"

	"github.com/expedition-ai/expedition/internal/config"
	"github.com/expedition-ai/expedition/internal/engine"
	"github.com/expedition-ai/expedition/internal/event"
	"github.com/expedition-ai/expedition/internal/health"
	"github.com/expedition-ai/expedition/internal/journey"
	"github.com/expedition-ai/expedition/internal/llm"
	"github.com/expedition-ai/expedition/internal/metrics"
	"github.com/expedition-ai/expedition/internal/notify"
	"github.com/expedition-ai/expedition/internal/ops"
	"github.com/expedition-ai/expedition/internal/retry"
	"github.com/expedition-ai/expedition/internal/stage"
	"github.com/expedition-ai/expedition/internal/store"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log.Logger = logger

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	question := strings.TrimSpace(strings.Join(os.Args[1:], " "))
	if question == "" {
		fmt.Fprintln(os.Stderr, "usage: expedition <question to explore>")
		os.Exit(2)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("provider", cfg.Provider).
		Str("model", cfg.Model).
		Int("max_depth", cfg.MaxDepth).
		Bool("slack_enabled", cfg.SlackEnabled()).
		Msg("starting expedition")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	st, err := store.New(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	m := metrics.New()

	// Providers. The primary must answer a connection test; a fallback is
	// wired in when configured.
	providers := []llm.Provider{buildProvider(cfg.Provider, cfg, logger)}
	if cfg.FallbackProvider != "" {
		providers = append(providers, buildProvider(cfg.FallbackProvider, cfg, logger))
	}
	registry := llm.NewRegistry(providers...)

	primary, err := registry.Get(cfg.Provider)
	if err != nil {
		logger.Fatal().Err(err).Msg("primary provider missing")
	}
	pingCtx, pingCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := primary.TestConnection(pingCtx); err != nil {
		logger.Fatal().Err(err).Str("provider", primary.ID()).Msg("provider connection test failed")
	}
	pingCancel()
	logger.Info().Str("provider", primary.ID()).Msg("provider connection verified")

	var secondary llm.Provider
	if cfg.FallbackProvider != "" {
		secondary, _ = registry.Get(cfg.FallbackProvider)
	}
	retryCfg := retry.DefaultConfig()
	retryCfg.OnRetry = func(int, error) { m.RetriesTotal.Inc() }
	client := llm.NewFailoverClient(primary, secondary, retryCfg, logger)

	templates, err := loadTemplates(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load stage templates")
	}

	observers := []event.Observer{&consoleObserver{}}
	if cfg.SlackEnabled() {
		observers = append(observers,
			notify.NewSlackNotifier(slackapi.New(cfg.SlackBotToken), cfg.SlackChannel, logger))
		logger.Info().Str("channel", cfg.SlackChannel).Msg("slack notifications enabled")
	}

	checker := health.NewChecker(logger)
	checker.Register("store", func(ctx context.Context) health.Status {
		if err := st.Ping(ctx); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})
	checker.Register("provider", func(ctx context.Context) health.Status {
		if err := primary.TestConnection(ctx); err != nil {
			return health.StatusDegraded
		}
		return health.StatusOK
	})

	eng := engine.New(client, st, templates, event.NewMulti(observers...), m, engine.Config{
		ModelID:            cfg.Model,
		MaxTokens:          cfg.MaxTokens,
		Temperature:        cfg.Temperature,
		ExtendedReasoning:  cfg.ExtendedReasoning,
		ReasoningBudget:    cfg.ReasoningBudget,
		MaxDepth:           cfg.MaxDepth,
		SaveArtifacts:      cfg.SaveArtifacts,
		ContinueOnFailure:  cfg.ContinueOnFailure,
		EnableSynthesis:    cfg.EnableSynthesis,
		SynthesisInterval:  cfg.SynthesisInterval,
		SynthesisModelID:   cfg.EffectiveSynthesisModel(),
		SynthesisMaxTokens: cfg.SynthesisMaxTokens,
	}, logger)

	opsServer := ops.New(cfg.OpsListenAddr, eng, checker, m, logger)
	go func() {
		if err := opsServer.Start(); err != nil {
			logger.Error().Err(err).Msg("ops server error")
		}
	}()

	j, err := eng.Start(ctx, question)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start journey")
	}
	done, _ := eng.Done(j.ID)

	// First signal requests a graceful stop at the next stage boundary;
	// a second one aborts outright.
	go func() {
		<-sigCh
		logger.Info().Msg("stop requested, finishing current stage")
		if err := eng.Stop(j.ID); err != nil {
			logger.Warn().Err(err).Msg("stop request rejected")
		}
		<-sigCh
		logger.Warn().Msg("forced shutdown")
		cancel()
	}()

	<-done

	final, err := eng.Journey(j.ID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load final journey state")
	} else {
		printSummary(final)
	}

	if err := opsServer.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("ops server shutdown error")
	}
	logger.Info().Str("journey_id", j.ID).Msg("expedition stopped")
}

func buildProvider(id string, cfg *config.Config, logger zerolog.Logger) llm.Provider {
	if id == llm.ProviderVendor {
		return llm.NewVendorProvider(cfg.VendorEndpoint, cfg.VendorAPIKey, logger,
			llm.WithVendorTimeout(cfg.RequestTimeout))
	}
	return llm.NewGatewayProvider(cfg.GatewayEndpoint, cfg.GatewayAPIKey, logger,
		llm.WithGatewayTimeout(cfg.RequestTimeout))
}

func loadTemplates(cfg *config.Config) (*stage.TemplateSet, error) {
	if cfg.TemplateFile != "" {
		return stage.LoadTemplateSet(cfg.TemplateFile)
	}
	return stage.NewTemplateSet()
}

func printSummary(j *journey.Journey) {
	fmt.Printf("\n=== journey %s (%s) ===\n", j.ID, j.Status)
	fmt.Printf("stages: %d  insights: %d  syntheses: %d\n", len(j.Stages), len(j.Insights), j.SynthesisCount)
	for _, in := range j.Insights {
		if in.Category == journey.CategorySynthesis {
			fmt.Printf("  synthesis #%d: %s\n", in.Ordinal, in.Text)
		}
	}
}

// consoleObserver streams stage output to stdout.
type consoleObserver struct{}

func (consoleObserver) OnChunk(journeyID, text, reasoning string, isComplete bool) {
	if text != "" {
		fmt.Print(text)
	}
	if isComplete {
		fmt.Println()
	}
}

func (consoleObserver) OnStageComplete(st journey.Stage) {
	fmt.Printf("\n--- stage %d (%s) %s ---\n", st.Seq, st.Type, st.Status)
}

func (consoleObserver) OnSynthesisComplete(journeyID string, report journey.SynthesisReport) {
	fmt.Printf("\n=== synthesis (score %.1f) ===\n%s\n", report.Score, report.Summary)
}

func (consoleObserver) OnJourneyStatusChange(journeyID string, status journey.JourneyStatus) {
	fmt.Printf("\n[journey %s]\n", status)
}

func (consoleObserver) OnError(journeyID string, err error, isFatal bool) {
	fmt.Fprintf(os.Stderr, "error: %v (fatal=%v)\n", err, isFatal)
}
