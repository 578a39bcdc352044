// Package server implements the parameter server runtime (spec.md §4.7):
// on startup it builds a store and a synchronizer from a ServerSpec, then
// runs one task per accepted worker connection through the
// pull-send-recv-step loop until every worker disconnects, at which point
// it emits the final parameters.
//
// Grounded on the teacher's former cmd/ublk-mem/main.go for the logging
// conventions (structured key-value Logger calls, signal-driven shutdown)
// and on the teacher's sharded-backend design, which this module carries
// forward through internal/store's shard.go/store.go rather than here.
package server

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/mharlan/paramserver"
	"github.com/mharlan/paramserver/internal/logging"
	"github.com/mharlan/paramserver/internal/specs"
	"github.com/mharlan/paramserver/internal/store"
	"github.com/mharlan/paramserver/internal/syncer"
	"github.com/mharlan/paramserver/internal/wire"
)

// State is a worker connection's position in the Connected -> Streaming ->
// Draining -> Done state machine (spec.md §4.7).
type State int32

const (
	StateConnected State = iota
	StateStreaming
	StateDraining
	StateDone
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Server owns one ServerSpec-built store/synchronizer pair and runs one
// task per worker connection against them.
type Server struct {
	spec   specs.ServerSpec
	store  store.Store
	sync   syncer.Synchronizer
	logger *logging.Logger

	maxEpochs int

	// Observer receives per-step, per-error, and per-worker-lifecycle
	// notifications. Defaults to a no-op; set it (via SetObserver, which
	// also threads it through to the underlying store) to collect Metrics.
	Observer paramserver.Observer
}

// New builds the store and synchronizer described by spec. maxEpochs
// bounds every worker task's epoch loop (spec.md §4.7's "for epoch in 0 ..
// max_epochs").
func New(spec specs.ServerSpec, maxEpochs int, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.Default()
	}
	st, err := specs.BuildStore(spec)
	if err != nil {
		return nil, err
	}
	sy, err := specs.BuildSynchronizer(spec.Synchronizer, st, spec.NWorkers)
	if err != nil {
		return nil, err
	}
	return &Server{
		spec:      spec,
		store:     st,
		sync:      sy,
		logger:    logger,
		maxEpochs: maxEpochs,
		Observer:  paramserver.NoOpObserver{},
	}, nil
}

// SetObserver installs o as the server's metrics observer, and, if the
// underlying store exposes one (currently only *store.Blocking, whose
// Update can lose the CAS race), wires it there too so UpdatesDropped is
// tracked in the same Metrics instance.
func (s *Server) SetObserver(o paramserver.Observer) {
	s.Observer = o
	if b, ok := s.store.(*store.Blocking); ok {
		b.Observer = o
	}
}

// WorkerResult is what ServeWorker returns for one connection: the final
// local parameter snapshot this worker task observed, or an error if the
// task aborted.
type WorkerResult struct {
	WorkerID int
	Params   []float32
	Err      error
}

// ServeWorker runs the per-worker-connection task described in spec.md
// §4.7 to completion, driving conn through its whole state machine.
func (s *Server) ServeWorker(ctx context.Context, workerID int, conn net.Conn) WorkerResult {
	state := StateConnected
	r := wire.NewReader(conn)
	w := wire.NewWriter(conn)

	p := s.store.Len()
	local := make([]float32, p)
	if err := s.store.Pull(local); err != nil {
		s.Observer.ObserveError(paramserver.KindInternal)
		return WorkerResult{WorkerID: workerID, Err: paramserver.WrapError("server.ServeWorker.initial_pull", paramserver.KindInternal, err)}
	}

	for epoch := 0; epoch < s.maxEpochs; epoch++ {
		select {
		case <-ctx.Done():
			return WorkerResult{WorkerID: workerID, Params: local, Err: ctx.Err()}
		default:
		}

		stepStart := time.Now()

		if err := w.Send(wire.Parameters(local)); err != nil {
			s.Observer.ObserveError(paramserver.KindTransport)
			return WorkerResult{WorkerID: workerID, Params: local, Err: paramserver.NewWorkerError("server.ServeWorker.send_parameters", workerID, paramserver.KindTransport, err.Error())}
		}
		state = StateStreaming

		msg, err := r.Recv()
		if err != nil {
			if err == io.EOF {
				s.Observer.ObserveError(paramserver.KindTransport)
				return WorkerResult{WorkerID: workerID, Params: local, Err: paramserver.NewWorkerError("server.ServeWorker.recv", workerID, paramserver.KindTransport, "unexpected EOF before draining")}
			}
			s.Observer.ObserveError(paramserver.KindFraming)
			return WorkerResult{WorkerID: workerID, Params: local, Err: paramserver.NewWorkerError("server.ServeWorker.recv", workerID, paramserver.KindFraming, err.Error())}
		}

		switch {
		case msg.Kind == wire.KindData && msg.Payload == wire.PayloadGradient:
			if len(msg.Floats) != p {
				s.Observer.ObserveError(paramserver.KindSizeMismatch)
				return WorkerResult{WorkerID: workerID, Params: local, Err: paramserver.NewWorkerError("server.ServeWorker.gradient", workerID, paramserver.KindSizeMismatch, "gradient length does not match parameter count")}
			}
			if err := s.sync.Step(msg.Floats, local); err != nil {
				s.Observer.ObserveError(paramserver.KindInternal)
				return WorkerResult{WorkerID: workerID, Params: local, Err: paramserver.WrapError("server.ServeWorker.step", paramserver.KindInternal, err)}
			}
			latencyNs := time.Since(stepStart).Nanoseconds()
			s.Observer.ObserveStep(uint64(len(msg.Floats)*4), uint64(len(local)*4), uint64(latencyNs), true)
		case msg.Kind == wire.KindControl && msg.Command == wire.CmdDisconnect:
			state = StateDraining
			goto drain
		default:
			s.Observer.ObserveError(paramserver.KindProtocol)
			return WorkerResult{WorkerID: workerID, Params: local, Err: paramserver.NewWorkerError("server.ServeWorker.unexpected_message", workerID, paramserver.KindProtocol, "expected Gradient or Disconnect")}
		}
	}
	state = StateDraining

drain:
	if err := w.Send(wire.Disconnect()); err != nil {
		s.Observer.ObserveError(paramserver.KindTransport)
		return WorkerResult{WorkerID: workerID, Params: local, Err: paramserver.NewWorkerError("server.ServeWorker.send_disconnect", workerID, paramserver.KindTransport, err.Error())}
	}

	for {
		msg, err := r.Recv()
		if err != nil {
			if err == io.EOF {
				break
			}
			s.Observer.ObserveError(paramserver.KindFraming)
			return WorkerResult{WorkerID: workerID, Params: local, Err: paramserver.NewWorkerError("server.ServeWorker.drain", workerID, paramserver.KindFraming, err.Error())}
		}
		if msg.Kind == wire.KindControl && msg.Command == wire.CmdDisconnect {
			break
		}
	}
	state = StateDone
	_ = state

	return WorkerResult{WorkerID: workerID, Params: local}
}

// ServeAll accepts exactly spec.NWorkers connections from ln, runs one
// ServeWorker task per connection concurrently, and returns the final
// parameters (pulled once more after every task completes) along with any
// per-worker errors — spec.md §4.7: "After all worker tasks complete, the
// server sends a final Data(Parameters(w)) to the orchestrator channel."
func (s *Server) ServeAll(ctx context.Context, ln net.Listener) ([]float32, []WorkerResult, error) {
	results := make([]WorkerResult, s.spec.NWorkers)
	var wg sync.WaitGroup

	for i := 0; i < s.spec.NWorkers; i++ {
		conn, err := ln.Accept()
		if err != nil {
			s.Observer.ObserveError(paramserver.KindTransport)
			return nil, nil, paramserver.WrapError("server.ServeAll.accept", paramserver.KindTransport, err)
		}
		s.Observer.ObserveWorkerConnected()
		wg.Add(1)
		go func(i int, conn net.Conn) {
			defer wg.Done()
			defer conn.Close()
			defer s.Observer.ObserveWorkerDone()
			results[i] = s.ServeWorker(ctx, i, conn)
		}(i, conn)
	}
	wg.Wait()

	final := make([]float32, s.store.Len())
	if err := s.store.Pull(final); err != nil {
		return nil, results, paramserver.WrapError("server.ServeAll.final_pull", paramserver.KindInternal, err)
	}
	return final, results, nil
}
