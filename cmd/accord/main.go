// Command accord runs the hub core: scheduler, dispatcher, worker pool,
// and directive coordinator over one hub directory. Modeled loosely on
// cmd/maestro/main.go's construct-then-start-then-await-shutdown shape,
// trimmed of all TUI/bootstrap/webui wiring — Accord has no interactive
// setup flow beyond an optional one-time credential prompt.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"accord/internal/adapter"
	"accord/internal/coordinator"
	"accord/internal/dispatch"
	"accord/internal/eventbus"
	"accord/internal/historylog"
	"accord/internal/hubconfig"
	"accord/internal/model"
	"accord/internal/scheduler"
	"accord/internal/session"
	"accord/internal/syncer"
	"accord/internal/worker"
	"accord/pkg/logx"
	"accord/pkg/metrics"
)

var logger = logx.NewLogger("main")

// defaultMaxTurns matches spec.md's documented adapter invocation default.
const defaultMaxTurns = 50

func main() {
	hubDir := flag.String("hub", ".", "hub directory containing config.yaml")
	flag.Parse()

	if err := run(*hubDir); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run(hubDir string) error {
	if err := hubconfig.Load(hubDir); err != nil {
		return fmt.Errorf("load hub config: %w", err)
	}
	cfg, err := hubconfig.Get()
	if err != nil {
		return err
	}

	services := make([]string, 0, len(cfg.Services))
	serviceConfigs := make(map[string]worker.ServiceConfig, len(cfg.Services))
	creds := credentialsFromEnv()

	for _, svc := range cfg.Services {
		ad, err := buildAdapter(svc, creds, cfg.SessionPolicy)
		if err != nil {
			return fmt.Errorf("service %s: %w", svc.Name, err)
		}
		services = append(services, svc.Name)
		serviceConfigs[svc.Name] = worker.ServiceConfig{
			WorkingDir: svc.WorkingDir,
			Adapter:    ad,
			Model:      svc.Model,
		}
	}

	bus := eventbus.New()
	rec := metrics.NewRecorder()

	history, err := historylog.NewWriter(hubDir)
	if err != nil {
		return fmt.Errorf("open history log: %w", err)
	}
	defer history.Close()

	sessions := session.NewManager(hubDir, cfg.SessionPolicy)
	sessions.LoadFromDisk(hubDir)
	defer sessions.SaveToDisk(hubDir)

	var sync *syncer.Syncer
	if cfg.GitRemote != "" {
		sync = syncer.New(hubDir)
	}

	workerCfg := worker.Config{
		AccordDir:      hubDir,
		Services:       services,
		ServiceConfigs: serviceConfigs,
		Sessions:       sessions,
		History:        history,
		Bus:            bus,
		Sync:           sync,
		MaxAttempts:    cfg.MaxAttempts,
		RequestTimeout: cfg.RequestTimeout,
		MaxBudgetUSD:   cfg.MaxBudgetUSD,
		MaxTurns:       defaultMaxTurns,
		Metrics:        rec,
	}

	d := dispatch.New(cfg.Workers, workerCfg, sync, bus)
	s := scheduler.New(hubDir, services, cfg.TickInterval, d, sync, bus)
	c := coordinator.New(hubDir, services, cfg.TestAgentService, bus, rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopCoordinator := c.Start()
	defer stopCoordinator()

	s.Start(ctx)

	logger.Info("accord started: hub=%s services=%d", hubDir, len(services))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received, stopping")

	s.Stop()
	d.Shutdown()
	cancel()
	return nil
}

// credentialsFromEnv reads provider API keys from the environment. If
// ANTHROPIC_API_KEY is unset and stdin is a terminal, prompts for it
// interactively rather than failing every oneshot/persistent backend at
// first use.
func credentialsFromEnv() adapter.Credentials {
	creds := adapter.Credentials{
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		GoogleAPIKey:    os.Getenv("GOOGLE_API_KEY"),
		OllamaHostURL:   os.Getenv("OLLAMA_HOST"),
	}

	if creds.AnthropicAPIKey == "" && term.IsTerminal(int(syscall.Stdin)) {
		fmt.Print("ANTHROPIC_API_KEY not set. Enter it now (input hidden), or press enter to skip: ")
		key, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			creds.AnthropicAPIKey = string(key)
		}
	}

	return creds
}

func buildAdapter(svc hubconfig.Service, creds adapter.Credentials, policy model.RotationPolicy) (adapter.Adapter, error) {
	switch svc.Backend {
	case "shell":
		if len(svc.ShellCmd) == 0 {
			return nil, fmt.Errorf("backend shell requires shell_cmd")
		}
		return adapter.NewShell(svc.ShellCmd), nil
	case "persistent":
		return adapter.NewPersistent(adapter.NewOneShot(creds), policy), nil
	case "oneshot", "":
		return adapter.NewOneShot(creds), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", svc.Backend)
	}
}
