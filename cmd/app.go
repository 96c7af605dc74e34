package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/abhisek/codequiz/internal/config"
	"github.com/abhisek/codequiz/internal/llm"
	"github.com/abhisek/codequiz/internal/logging"
	"github.com/abhisek/codequiz/internal/metrics"
	"github.com/abhisek/codequiz/internal/orchestrator"
	"github.com/abhisek/codequiz/internal/plugin"
	"github.com/abhisek/codequiz/internal/quality"
	"github.com/abhisek/codequiz/internal/store"
)

// app holds everything a generating command needs.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	router   *quality.Router
	orch     *orchestrator.Orchestrator
}

// loadConfig reads configuration and applies the persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	return cfg, logging.New(cfg.Logging()), nil
}

// newApp wires config, store, providers, plugins, quality gate and
// orchestrator. disableQuality forces the gate off regardless of config.
func newApp(cmd *cobra.Command, disableQuality bool) (*app, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	st, err := openStore(cmd, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, store: st}
	a.registry, a.metrics = metrics.NewRegistry()

	genCfg, ok := cfg.GenerationLLM()
	if !ok {
		st.Close()
		return nil, fmt.Errorf("LLM provider not configured: %w", genCfg.Validate())
	}
	ctx := cmd.Context()
	genProvider, err := llm.NewProvider(ctx, genCfg, st.EventRepo(), logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	pcfg := plugin.DefaultConfig()
	pcfg.Logger = logger
	plugins, err := plugin.DefaultRegistry(genProvider, pcfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	qualityOn := cfg.Quality.Enabled && !disableQuality
	rateProvider := genProvider
	if qualityOn && (cfg.Quality.Provider != "" || cfg.Quality.Model != "") {
		qCfg, ok := cfg.QualityLLM()
		if !ok {
			st.Close()
			return nil, fmt.Errorf("quality provider not configured: %w", qCfg.Validate())
		}
		rateProvider, err = llm.NewProvider(ctx, qCfg, st.EventRepo(), logger)
		if err != nil {
			st.Close()
			return nil, err
		}
	}
	if !qualityOn {
		logger.Warn("quality gate disabled, every valid candidate is accepted")
	}
	a.router = quality.NewRouter(
		quality.NewRater(rateProvider, quality.DefaultRaterConfig()),
		quality.Options{Disabled: !qualityOn, Metrics: a.metrics, Logger: logger},
	)

	a.orch = orchestrator.New(plugins, a.router,
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(a.metrics),
		orchestrator.WithRunRepo(st.RunRepo()),
	)
	return a, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "warning: close store:", err)
	}
}
