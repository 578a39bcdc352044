package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mharlan/paramserver"
	"github.com/mharlan/paramserver/internal/logging"
)

// sessionConfig is the orchestrator's own bootstrap file format: a list of
// server targets and worker targets to dial, each carrying its spec. This
// is outside the core wire protocol (spec.md scopes Control(CreateServer)/
// Control(CreateWorker) payloads, not how the orchestrator obtains them).
type sessionConfig struct {
	Servers []paramserver.ServerTarget `json:"servers"`
	Workers []paramserver.WorkerTarget `json:"workers"`
}

func main() {
	var (
		configPath = flag.String("config", "", "path to a JSON session config ({servers:[...], workers:[...]})")
		verbose    = flag.Bool("v", false, "verbose output")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	if *configPath == "" {
		log.Fatal("-config is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	sess := paramserver.NewSession(logger)

	runDone := make(chan error, 1)
	go func() {
		runDone <- sess.Run(ctx, cfg.Servers, cfg.Workers)
	}()

	for ev := range sess.Events() {
		switch ev.Kind {
		case paramserver.EventLoss:
			logger.Info("loss reported", "worker_id", ev.WorkerID, "losses", ev.Losses)
		case paramserver.EventWorkerDone:
			logger.Info("worker done", "worker_id", ev.WorkerID)
		case paramserver.EventComplete:
			logger.Info("training complete", "final_params_len", len(ev.FinalParams))
		case paramserver.EventError:
			logger.Error("session error", "error", ev.Err)
		}
	}

	if err := <-runDone; err != nil {
		logger.Error("session run failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (sessionConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return sessionConfig{}, err
	}
	defer f.Close()

	var cfg sessionConfig
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return sessionConfig{}, err
	}
	return cfg, nil
}
