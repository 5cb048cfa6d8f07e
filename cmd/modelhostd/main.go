package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"modelhostd/internal/backend"
	"modelhostd/internal/catalog"
	"modelhostd/internal/common/fsutil"
	"modelhostd/internal/config"
	"modelhostd/internal/health"
	"modelhostd/internal/httpapi"
	"modelhostd/internal/lifecycle"
	"modelhostd/internal/telemetry"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:           "modelhostd",
		Short:         "Local model lifecycle, telemetry and health daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, cfgPath)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	// Flags with environment variable defaults; an explicit config file
	// fills in whatever the command line leaves untouched.
	cmd.Flags().StringVar(&cfgPath, "config", os.Getenv("MODELHOSTD_CONFIG"), "Path to a yaml/json/toml config file")
	cmd.Flags().String("addr", envStr("MODELHOSTD_ADDR", ":8080"), "HTTP listen address, e.g. :8080")
	cmd.Flags().String("models-dir", envStr("MODELHOSTD_MODELS_DIR", "~/models/hosted"), "Directory holding downloaded model artifacts")
	cmd.Flags().String("catalog", envStr("MODELHOSTD_CATALOG", "models.json"), "Catalog file (written with defaults when absent)")
	cmd.Flags().String("artifact-source", envStr("MODELHOSTD_ARTIFACT_SOURCE", ""), "Base URL or directory models are fetched from")
	cmd.Flags().String("backend", envStr("MODELHOSTD_BACKEND", "local"), "Model backend: local|llama")
	cmd.Flags().Int("llama-ctx", envInt("MODELHOSTD_LLAMA_CTX", 2048), "Context size for the llama backend")
	cmd.Flags().Int("sample-interval", envInt("MODELHOSTD_SAMPLE_INTERVAL", 5), "Telemetry sampling interval in seconds")
	cmd.Flags().Int("history-size", envInt("MODELHOSTD_HISTORY_SIZE", telemetry.DefaultCapacity), "Telemetry samples retained")
	cmd.Flags().Int("health-history-size", envInt("MODELHOSTD_HEALTH_HISTORY_SIZE", health.DefaultHistorySize), "Health reports retained")
	cmd.Flags().Int("op-timeout", envInt("MODELHOSTD_OP_TIMEOUT", 600), "Download/load timeout in seconds (0 = default)")
	cmd.Flags().String("log-level", envStr("MODELHOSTD_LOG_LEVEL", "info"), "Log level: trace|debug|info|warn|error")
	cmd.Flags().Bool("cors", envStr("MODELHOSTD_CORS", "") == "1", "Enable CORS")
	cmd.Flags().StringSlice("cors-origin", nil, "Allowed CORS origins (repeatable)")
	return cmd
}

// resolveConfig layers a config file under the flags: a flag changed on
// the command line always wins, the file fills the rest, and the flag
// defaults back everything else.
func resolveConfig(cmd *cobra.Command, cfgPath string) (config.Config, error) {
	var fileCfg config.Config
	if cfgPath != "" {
		c, err := config.Load(cfgPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("load config %s: %w", cfgPath, err)
		}
		fileCfg = c
	}

	flags := cmd.Flags()
	pickStr := func(name, fileVal string) string {
		v, _ := flags.GetString(name)
		if !flags.Changed(name) && fileVal != "" {
			return fileVal
		}
		return v
	}
	pickInt := func(name string, fileVal int) int {
		v, _ := flags.GetInt(name)
		if !flags.Changed(name) && fileVal != 0 {
			return fileVal
		}
		return v
	}

	cfg := config.Config{
		Addr:              pickStr("addr", fileCfg.Addr),
		ModelsDir:         pickStr("models-dir", fileCfg.ModelsDir),
		CatalogPath:       pickStr("catalog", fileCfg.CatalogPath),
		ArtifactSource:    pickStr("artifact-source", fileCfg.ArtifactSource),
		Backend:           pickStr("backend", fileCfg.Backend),
		LlamaCtx:          pickInt("llama-ctx", fileCfg.LlamaCtx),
		SampleIntervalSec: pickInt("sample-interval", fileCfg.SampleIntervalSec),
		HistorySize:       pickInt("history-size", fileCfg.HistorySize),
		HealthHistorySize: pickInt("health-history-size", fileCfg.HealthHistorySize),
		OpTimeoutSec:      pickInt("op-timeout", fileCfg.OpTimeoutSec),
		LogLevel:          pickStr("log-level", fileCfg.LogLevel),
		CORSEnabled:       fileCfg.CORSEnabled,
		CORSOrigins:       fileCfg.CORSOrigins,
	}
	if flags.Changed("cors") {
		cfg.CORSEnabled, _ = flags.GetBool("cors")
	}
	if flags.Changed("cors-origin") {
		cfg.CORSOrigins, _ = flags.GetStringSlice("cors-origin")
	}
	return cfg, nil
}

func run(cfg config.Config) error {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	modelsDir, err := fsutil.ExpandHome(cfg.ModelsDir)
	if err != nil {
		return fmt.Errorf("resolve models dir: %w", err)
	}
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		return fmt.Errorf("create models dir: %w", err)
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	log.Info().Int("resources", cat.Len()).Str("catalog", cfg.CatalogPath).Msg("catalog loaded")

	var be backend.Backend
	switch cfg.Backend {
	case "", "local":
		be = backend.NewLocal(cfg.ArtifactSource, log)
	case "llama":
		be = backend.NewLlama(cfg.ArtifactSource, cfg.LlamaCtx, log)
	default:
		return fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	probe := telemetry.SysfsProbe{}
	sampler := telemetry.NewSampler(probe, "/", log)
	store := telemetry.NewStore(cfg.HistorySize)
	monitor := telemetry.NewMonitor(sampler, store, time.Duration(cfg.SampleIntervalSec)*time.Second, log)

	mgr := lifecycle.New(lifecycle.ManagerConfig{
		Catalog:   cat,
		Backend:   be,
		ModelsDir: modelsDir,
		Probe:     probe,
		OpTimeout: time.Duration(cfg.OpTimeoutSec) * time.Second,
		Logger:    log,
	})

	checker := health.NewChecker(health.CheckerConfig{
		Lifecycle:   mgr,
		Metrics:     sampler,
		HistorySize: cfg.HealthHistorySize,
		Logger:      log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpapi.SetLogger(log)
	httpapi.SetBaseContext(ctx)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins,
		[]string{"GET", "POST", "OPTIONS"}, []string{"Accept", "Content-Type"})

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.NewMux(httpapi.Services{
			Lifecycle: mgr,
			Store:     store,
			Sampler:   sampler,
			Health:    checker,
		}),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return monitor.Run(gctx) })
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Str("models_dir", modelsDir).Msg("modelhostd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			log.Warn().Err(err).Msg("graceful shutdown error")
		}
		if err := mgr.CleanupAll(shCtx); err != nil {
			log.Warn().Err(err).Msg("cleanup error")
		}
		return nil
	})
	return g.Wait()
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
