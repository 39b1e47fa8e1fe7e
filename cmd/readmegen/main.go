package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/readmegen/internal/config"
	apperrors "git.home.luguber.info/inful/readmegen/internal/errors"
	"git.home.luguber.info/inful/readmegen/internal/events"
	"git.home.luguber.info/inful/readmegen/internal/gemini"
	"git.home.luguber.info/inful/readmegen/internal/generator"
	"git.home.luguber.info/inful/readmegen/internal/github"
	"git.home.luguber.info/inful/readmegen/internal/identity"
	"git.home.luguber.info/inful/readmegen/internal/jobs"
	"git.home.luguber.info/inful/readmegen/internal/localrepo"
	"git.home.luguber.info/inful/readmegen/internal/retry"
	"git.home.luguber.info/inful/readmegen/internal/server"
	"git.home.luguber.info/inful/readmegen/internal/storage"
	"git.home.luguber.info/inful/readmegen/internal/watcher"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"config.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Serve struct {
		Port int `short:"p" help:"Override the configured HTTP port"`
	} `cmd:"" help:"Run the README generation HTTP service"`

	Generate struct {
		URL     string `arg:"" help:"GitHub repository URL, or a local path with --local"`
		Local   bool   `help:"Read the repository from the local filesystem instead of GitHub"`
		Output  string `short:"o" help:"Output file" default:"README.md"`
		Stdout  bool   `help:"Write the document to stdout instead of a file"`
		Style   string `help:"Content style: professional, casual or technical"`
		Length  string `help:"Content length: minimal, standard or comprehensive"`
		Retries int    `help:"Retry attempts for transient failures" default:"2"`
	} `cmd:"" help:"Generate a README for one repository"`
}

func main() {
	ctx := kong.Parse(&CLI)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	setupLogging(cfg)

	switch ctx.Command() {
	case "serve":
		if CLI.Serve.Port != 0 {
			cfg.Server.Port = CLI.Serve.Port
		}
		if err := runServe(cfg); err != nil {
			slog.Error("Serve failed", "error", err)
			os.Exit(1)
		}
	case "generate <url>":
		if err := runGenerate(cfg); err != nil {
			slog.Error("Generation failed", "error", err)
			os.Exit(1)
		}
	}
}

func setupLogging(cfg *config.Config) {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if CLI.Verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func newStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return storage.NewMemoryStore(), nil
	case config.BackendRedis:
		r := cfg.Storage.Redis
		return storage.NewRedisStore(ctx, r.Addr, r.Username, r.Password, r.Database)
	default:
		return storage.NewSQLiteStore(cfg.Storage.Path)
	}
}

func newSynthesizer(cfg *config.Config) *gemini.Client {
	return gemini.NewClient(cfg.Gemini.APIURL, cfg.Gemini.APIKey,
		cfg.Gemini.TextModel, cfg.Gemini.StructuredModel)
}

func runServe(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := newStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	inspectorFor := func(token string) generator.Inspector {
		return github.NewClient(cfg.GitHub.APIURL, token)
	}
	gen := generator.New(inspectorFor, newSynthesizer(cfg))

	var publisher *events.Publisher
	if cfg.Events != nil {
		publisher, err = events.NewPublisher(cfg.Events.URL, cfg.Events.Subject)
		if err != nil {
			slog.Warn("Event publisher unavailable, continuing without events", "error", err)
		}
	}
	defer publisher.Close()

	srv := server.New(cfg, server.Options{
		Store:         store,
		Identity:      identity.NewService(store, cfg.GitHub.OAuth, cfg.GitHub.APIURL),
		Generator:     gen,
		Publisher:     publisher,
		InspectorFor:  inspectorFor,
		FallbackToken: cfg.GitHub.Token,
	})

	if err := srv.Start(ctx); err != nil {
		return err
	}

	// Generation defaults follow the config file; other settings need a
	// restart.
	cw, err := watcher.NewConfigWatcher(CLI.Config, func(next *config.Config) {
		srv.ApplyDefaults(next.Defaults)
	})
	if err != nil {
		slog.Warn("Config watcher unavailable", "error", err)
	} else if err := cw.Start(ctx); err != nil {
		slog.Warn("Config watcher failed to start", "error", err)
	} else {
		defer cw.Stop()
	}

	heartbeat, err := jobs.NewHeartbeat(store, cfg.Heartbeat)
	if err != nil {
		slog.Warn("Heartbeat unavailable", "error", err)
	} else if err := heartbeat.Start(ctx); err != nil {
		slog.Warn("Heartbeat failed to start", "error", err)
	} else {
		defer func() {
			if err := heartbeat.Stop(); err != nil {
				slog.Warn("Heartbeat shutdown error", "error", err)
			}
		}()
	}

	slog.Info("Service started, waiting for shutdown signal")
	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	return srv.Stop(stopCtx)
}

func runGenerate(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	inspectorFor := func(token string) generator.Inspector {
		if CLI.Generate.Local {
			return localrepo.NewInspector(CLI.Generate.URL)
		}
		return github.NewClient(cfg.GitHub.APIURL, token)
	}
	gen := generator.New(inspectorFor, newSynthesizer(cfg))

	settings := cfg.Defaults
	patch := &config.SettingsPatch{}
	if CLI.Generate.Style != "" {
		patch.Style = &CLI.Generate.Style
	}
	if CLI.Generate.Length != "" {
		patch.Length = &CLI.Generate.Length
	}
	settings = config.ApplyPatch(settings, patch)

	sink := generator.ProgressFunc(func(steps []generator.Step) {
		for _, step := range steps {
			if step.Status == generator.StepProcessing {
				slog.Info(step.Name)
			}
			if step.Status == generator.StepFailed {
				slog.Error(step.Name, "error", step.Message)
			}
		}
	})

	policy := retry.NewPolicy(retry.BackoffLinear, 0, 0, CLI.Generate.Retries)

	var result *generator.Result
	var err error
	for attempt := 0; ; attempt++ {
		result, err = gen.Run(ctx, CLI.Generate.URL, settings, cfg.GitHub.Token, sink)
		if err == nil {
			break
		}
		if attempt >= policy.MaxRetries || !apperrors.IsRetryable(err) {
			return err
		}
		delay := policy.Delay(attempt + 1)
		slog.Warn("Transient failure, retrying", "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	if CLI.Generate.Stdout {
		fmt.Print(result.Markdown)
		return nil
	}
	if err := os.WriteFile(CLI.Generate.Output, []byte(result.Markdown), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", CLI.Generate.Output, err)
	}
	slog.Info("README written", "path", CLI.Generate.Output, "repository", result.Profile.FullName)
	return nil
}
