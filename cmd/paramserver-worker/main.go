package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/mharlan/paramserver"
	"github.com/mharlan/paramserver/internal/kernel"
	"github.com/mharlan/paramserver/internal/logging"
	"github.com/mharlan/paramserver/internal/specs"
	"github.com/mharlan/paramserver/worker"
)

func main() {
	var (
		addr    = flag.String("addr", envOr("PARAMSERVER_WORKER_LISTEN_ADDR", ":9100"), "address to listen on for the orchestrator's Control(CreateWorker) connection")
		verbose = flag.Bool("v", false, "verbose output")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("failed to listen on %s: %v", *addr, err)
	}
	defer ln.Close()
	logger.Info("waiting for orchestrator connection", "addr", ln.Addr().String())

	orchConn, err := ln.Accept()
	if err != nil {
		logger.Error("accept failed", "error", err)
		os.Exit(1)
	}
	defer orchConn.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	w := worker.New(0, kernel.NewMock(1), logger)

	spec, ok, err := w.Bootstrap(orchConn)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	if !ok {
		logger.Info("orchestrator disconnected before bootstrap, exiting cleanly")
		return
	}

	k, err := buildKernel(spec.Kernel)
	if err != nil {
		logger.Error("failed to build kernel", "error", err)
		os.Exit(1)
	}
	w = worker.New(spec.WorkerID, k, logger)

	psParams, err := specs.ValidateAlgorithm(spec.Algorithm)
	if err != nil {
		logger.Error("unsupported algorithm", "error", err)
		os.Exit(1)
	}
	if len(psParams.ServerAddrs) == 0 {
		logger.Error("worker spec carries no server addresses")
		os.Exit(1)
	}

	serverConn, err := net.DialTimeout("tcp", psParams.ServerAddrs[0], paramserver.DefaultDialTimeout)
	if err != nil {
		logger.Error("failed to dial parameter server", "addr", psParams.ServerAddrs[0], "error", err)
		os.Exit(1)
	}
	defer serverConn.Close()

	logger.Info("connected to parameter server", "addr", psParams.ServerAddrs[0], "worker_id", spec.WorkerID)

	result := w.Run(ctx, serverConn, orchConn)
	if result.Err != nil {
		logger.Error("worker run ended with error", "error", result.Err)
		os.Exit(1)
	}
	logger.Info("worker finished", "losses_reported", len(result.Losses))
}

// buildKernel resolves a KernelSpec's opaque name to a concrete
// kernel.Kernel. Only "mock" is wired up here; a real deployment would
// register additional kernels (e.g. "linear_regression") by name.
func buildKernel(spec specs.KernelSpec) (kernel.Kernel, error) {
	switch spec.Name {
	case "", "mock":
		scale := float32(2)
		return kernel.NewMock(scale), nil
	default:
		return nil, fmt.Errorf("unknown kernel %q", spec.Name)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
