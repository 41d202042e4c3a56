package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"vramd/internal/config"
	"vramd/internal/httpapi"
	"vramd/internal/lockd"
	"vramd/internal/registry"
	"vramd/internal/runtime"
	"vramd/internal/scheduler"
)

var flags struct {
	configPath     string
	addr           string
	ollamaHost     string
	redisURL       string
	registryPath   string
	vramCapacityMB int64
	sweepInterval  time.Duration
	logJSON        bool
	logLevel       string
}

func main() {
	root := &cobra.Command{
		Use:   "vramd",
		Short: "VRAM-aware model admission and eviction scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
		SilenceUsage: true,
	}
	root.Flags().StringVar(&flags.configPath, "config", "", "Config file (yaml/json/toml); flags override it")
	root.Flags().StringVar(&flags.addr, "addr", ":8080", "HTTP listen address")
	root.Flags().StringVar(&flags.ollamaHost, "ollama-host", "http://localhost:11434", "Ollama server URL")
	root.Flags().StringVar(&flags.redisURL, "redis-url", "", "Redis URL for the shared lock store (empty = in-memory)")
	root.Flags().StringVar(&flags.registryPath, "registry", "", "Optional model registry file with footprint hints")
	root.Flags().Int64Var(&flags.vramCapacityMB, "vram-capacity-mb", 0, "VRAM capacity in MB shared by all models")
	root.Flags().DurationVar(&flags.sweepInterval, "sweep-interval", 0, "Staleness sweep cadence (0 = config/default)")
	root.Flags().BoolVar(&flags.logJSON, "log-json", false, "Emit JSON logs instead of console output")
	root.Flags().StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.VRAMCapacityMB <= 0 {
		return fmt.Errorf("vram capacity must be set (--vram-capacity-mb or config)")
	}

	logger := newLogger(cfg)

	store, closeStore, err := newStore(cfg)
	if err != nil {
		return fmt.Errorf("lock store: %w", err)
	}
	defer closeStore()
	locks := lockd.New(store)

	var rt scheduler.Runtime = runtime.NewOllama(cfg.OllamaHost)
	if cfg.RegistryPath != "" {
		models, err := registry.LoadFile(cfg.RegistryPath)
		if err != nil {
			return fmt.Errorf("registry: %w", err)
		}
		rt = runtime.WithFootprints(rt, registry.Footprints(models))
		logger.Info().Int("models", len(models)).Str("path", cfg.RegistryPath).Msg("loaded model registry")
	}

	sched := scheduler.New(scheduler.Config{
		CapacityBytes:      cfg.VRAMCapacityMB << 20,
		LockTTL:            seconds(cfg.LockTTLSeconds),
		AdmissionWait:      seconds(cfg.AdmissionWaitSeconds),
		ReservationTimeout: seconds(cfg.ReservationTimeoutSeconds),
		ActiveTimeout:      seconds(cfg.ActiveTimeoutSeconds),
		IdleThreshold:      seconds(cfg.IdleThresholdSeconds),
		Logger:             &logger,
	}, rt, locks)

	httpapi.SetLogger(logger)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSAllowedOrigins)
	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(sched)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The scheduler only exposes Sweep; the daemon owns the timer.
	sweepEvery := seconds(cfg.SweepIntervalSeconds)
	if flags.sweepInterval > 0 {
		sweepEvery = flags.sweepInterval
	}
	if sweepEvery <= 0 {
		sweepEvery = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sched.Sweep(ctx)
			}
		}
	}()

	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("ollama", cfg.OllamaHost).Msg("vramd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

// loadConfig merges the optional config file with flag values; flags that
// were set explicitly win.
func loadConfig() (config.Config, error) {
	var cfg config.Config
	if flags.configPath != "" {
		var err error
		cfg, err = config.Load(flags.configPath)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
	}
	if cfg.Addr == "" || flags.addr != ":8080" {
		cfg.Addr = flags.addr
	}
	if cfg.OllamaHost == "" || flags.ollamaHost != "http://localhost:11434" {
		cfg.OllamaHost = flags.ollamaHost
	}
	if flags.redisURL != "" {
		cfg.RedisURL = flags.redisURL
	}
	if flags.registryPath != "" {
		cfg.RegistryPath = flags.registryPath
	}
	if flags.vramCapacityMB > 0 {
		cfg.VRAMCapacityMB = flags.vramCapacityMB
	}
	if flags.logJSON {
		cfg.LogJSON = true
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = flags.logLevel
	}
	return cfg, nil
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.LogJSON {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func newStore(cfg config.Config) (lockd.Store, func(), error) {
	if cfg.RedisURL == "" {
		return lockd.NewMemoryStore(), func() {}, nil
	}
	rs, err := lockd.NewRedisStore(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return rs, func() { _ = rs.Close() }, nil
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
