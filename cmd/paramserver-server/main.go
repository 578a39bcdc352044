package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/mharlan/paramserver"
	"github.com/mharlan/paramserver/internal/logging"
	"github.com/mharlan/paramserver/internal/specs"
	"github.com/mharlan/paramserver/internal/wire"
	"github.com/mharlan/paramserver/server"
)

func main() {
	var (
		bootstrapAddr = flag.String("bootstrap-addr", envOr("PARAMSERVER_BOOTSTRAP_ADDR", ":9000"), "address to listen on for the orchestrator's Control(CreateServer) connection")
		workerAddr    = flag.String("worker-addr", envOr("PARAMSERVER_WORKER_ADDR", ":9001"), "address to listen on for worker connections")
		verbose       = flag.Bool("v", false, "verbose output")
		maxEpochs     = flag.Int("max-epochs", 1<<20, "per-worker epoch bound")
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

	bootstrapLn, err := net.Listen("tcp", *bootstrapAddr)
	if err != nil {
		log.Fatalf("failed to listen on %s: %v", *bootstrapAddr, err)
	}
	defer bootstrapLn.Close()
	logger.Info("waiting for orchestrator bootstrap connection", "addr", bootstrapLn.Addr().String())

	orchConn, spec, err := bootstrap(bootstrapLn, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer orchConn.Close()

	workerLn, err := net.Listen("tcp", *workerAddr)
	if err != nil {
		log.Fatalf("failed to listen on %s: %v", *workerAddr, err)
	}
	defer workerLn.Close()

	srv, err := server.New(spec, *maxEpochs, logger)
	if err != nil {
		logger.Error("failed to build server from spec", "error", err)
		os.Exit(1)
	}

	metrics := paramserver.NewMetrics()
	srv.SetObserver(paramserver.NewMetricsObserver(metrics))

	logger.Info("serving workers", "addr", workerLn.Addr().String(), "nworkers", spec.NWorkers)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	final, results, err := srv.ServeAll(ctx, workerLn)
	metrics.Stop()
	if err != nil {
		logger.Error("serve failed", "error", err)
		os.Exit(1)
	}
	for _, r := range results {
		if r.Err != nil {
			logger.Warn("worker task ended with error", "worker_id", r.WorkerID, "error", r.Err)
		}
	}
	snap := metrics.Snapshot()
	logger.Info("training complete", "final_params_len", len(final), "epochs_completed", snap.EpochsCompleted,
		"updates_dropped", snap.UpdatesDropped, "avg_latency_ns", snap.AvgLatencyNs, "workers_done", snap.WorkersDone)

	if err := wire.NewWriter(orchConn).Send(wire.Parameters(final)); err != nil {
		logger.Error("failed to send final parameters to orchestrator", "error", err)
		os.Exit(1)
	}
}

// bootstrap accepts the orchestrator's Control(CreateServer(spec))
// connection and decodes the spec. The connection is kept open for the
// whole session so the final Data(Parameters) can be sent back on it
// (spec.md §4.7: "the server sends a final Data(Parameters(w)) to the
// orchestrator channel and exits").
func bootstrap(ln net.Listener, logger *logging.Logger) (net.Conn, specs.ServerSpec, error) {
	conn, err := ln.Accept()
	if err != nil {
		return nil, specs.ServerSpec{}, err
	}

	r := wire.NewReader(conn)
	msg, err := r.Recv()
	if err != nil {
		conn.Close()
		if err == io.EOF {
			return nil, specs.ServerSpec{}, fmt.Errorf("orchestrator disconnected before sending CreateServer")
		}
		return nil, specs.ServerSpec{}, err
	}
	if msg.Kind != wire.KindControl || msg.Command != wire.CmdCreateServer {
		conn.Close()
		return nil, specs.ServerSpec{}, fmt.Errorf("expected Control(CreateServer), got %v", msg)
	}

	spec, err := specs.UnmarshalServerSpec(msg.SpecJSON)
	if err != nil {
		conn.Close()
		return nil, specs.ServerSpec{}, err
	}
	logger.Info("received server spec", "nworkers", spec.NWorkers, "store_kind", spec.Store.Kind, "synchronizer_kind", spec.Synchronizer.Kind)
	return conn, spec, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
