// Package worker implements the worker runtime (spec.md §4.8): accept an
// orchestrator connection and block for Control(CreateWorker), then dial
// the assigned parameter server and loop recv-Parameters -> compute a
// gradient via a Kernel -> send-Gradient until the server signals
// Disconnect.
//
// Grounded on the teacher's cmd/ublk-mem/main.go for the connect/retry and
// logging idiom, generalized from a single device connection to the
// worker's pair of orchestrator/server connections.
package worker

import (
	"context"
	"io"

	"github.com/mharlan/paramserver"
	"github.com/mharlan/paramserver/internal/kernel"
	"github.com/mharlan/paramserver/internal/logging"
	"github.com/mharlan/paramserver/internal/specs"
	"github.com/mharlan/paramserver/internal/wire"
)

// Conn is the minimal transport worker needs from a connection; satisfied
// by net.Conn, and by net.Pipe() ends in tests.
type Conn interface {
	io.Reader
	io.Writer
}

// Worker runs one worker's bootstrap and steady-state training loop using
// a Kernel to turn parameters into gradients.
type Worker struct {
	id     int
	kernel kernel.Kernel
	logger *logging.Logger
}

func New(id int, k kernel.Kernel, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{id: id, kernel: k, logger: logger}
}

// Result summarizes how a Run call ended: the last parameters observed,
// and the losses reported along the way (if the kernel implements
// LossReporter), or an error if the loop aborted.
type Result struct {
	FinalParams []float32
	Losses      []float32
	Err         error
}

// LossReporter is an optional Kernel capability: kernels that can evaluate
// their own loss get it included in Control(ReportLoss) messages sent to
// the orchestrator, purely for telemetry (SPEC_FULL.md §9 "Supplemented
// features" — no effect on training correctness).
type LossReporter interface {
	Loss(params []float32) float32
}

// Bootstrap waits on orchConn for Control(CreateWorker(spec)) per spec.md
// §4.8: any other Control message before bootstrap is ignored with a
// warning, except Disconnect, which causes a clean early exit (ok=false,
// err=nil).
func (w *Worker) Bootstrap(orchConn Conn) (spec specs.WorkerSpec, ok bool, err error) {
	r := wire.NewReader(orchConn)
	for {
		msg, rerr := r.Recv()
		if rerr != nil {
			if rerr == io.EOF {
				return specs.WorkerSpec{}, false, nil
			}
			return specs.WorkerSpec{}, false, paramserver.NewWorkerError("worker.Bootstrap.recv", w.id, paramserver.KindFraming, rerr.Error())
		}

		if msg.Kind == wire.KindControl && msg.Command == wire.CmdCreateWorker {
			spec, err := specs.UnmarshalWorkerSpec(msg.SpecJSON)
			if err != nil {
				return specs.WorkerSpec{}, false, paramserver.NewWorkerError("worker.Bootstrap.unmarshal", w.id, paramserver.KindConfiguration, err.Error())
			}
			return spec, true, nil
		}
		if msg.Kind == wire.KindControl && msg.Command == wire.CmdDisconnect {
			return specs.WorkerSpec{}, false, nil
		}
		w.logger.Warn("ignoring message before bootstrap", "worker_id", w.id, "message", msg.String())
	}
}

// Run drives the worker's side of spec.md §4.8's steady-state loop against
// serverConn until the server disconnects or a fatal error occurs,
// optionally reporting loss to orchConn (nil disables reporting).
func (w *Worker) Run(ctx context.Context, serverConn, orchConn Conn) Result {
	r := wire.NewReader(serverConn)
	sw := wire.NewWriter(serverConn)
	var ow *wire.Writer
	if orchConn != nil {
		ow = wire.NewWriter(orchConn)
	}

	var losses []float32
	var last []float32 // most recent Parameters received

	for {
		select {
		case <-ctx.Done():
			return Result{FinalParams: last, Losses: losses, Err: ctx.Err()}
		default:
		}

		msg, err := r.Recv()
		if err != nil {
			if err == io.EOF {
				return Result{FinalParams: last, Losses: losses, Err: paramserver.NewWorkerError("worker.Run.recv", w.id, paramserver.KindTransport, "unexpected EOF while streaming")}
			}
			return Result{FinalParams: last, Losses: losses, Err: paramserver.NewWorkerError("worker.Run.recv", w.id, paramserver.KindFraming, err.Error())}
		}

		switch {
		case msg.Kind == wire.KindControl && msg.Command == wire.CmdDisconnect:
			res := w.drain(r, sw, ow, losses)
			res.FinalParams = last
			return res
		case msg.Kind == wire.KindData && msg.Payload == wire.PayloadParameters:
			params := append([]float32(nil), msg.Floats...)
			last = params
			grad := w.kernel.Compute(params)
			if len(grad) != len(params) {
				return Result{FinalParams: params, Losses: losses, Err: paramserver.NewWorkerError("worker.Run.compute", w.id, paramserver.KindSizeMismatch, "kernel gradient length does not match parameter count")}
			}
			if lr, ok := w.kernel.(LossReporter); ok && ow != nil {
				loss := lr.Loss(params)
				losses = append(losses, loss)
				if err := ow.Send(wire.ReportLossMsg(uint64(w.id), []float32{loss})); err != nil {
					return Result{FinalParams: params, Losses: losses, Err: paramserver.NewWorkerError("worker.Run.report_loss", w.id, paramserver.KindTransport, err.Error())}
				}
			}
			if err := sw.Send(wire.Gradient(grad)); err != nil {
				return Result{FinalParams: params, Losses: losses, Err: paramserver.NewWorkerError("worker.Run.send_gradient", w.id, paramserver.KindTransport, err.Error())}
			}
		default:
			return Result{FinalParams: last, Losses: losses, Err: paramserver.NewWorkerError("worker.Run.unexpected_message", w.id, paramserver.KindProtocol, "expected Parameters or Disconnect")}
		}
	}
}

// drain completes the clean-shutdown handshake (spec.md §4.8 / §8
// scenario S6): echo Disconnect to the server and the orchestrator, then
// stop without reading further — the server drains until it observes our
// Disconnect or EOF.
func (w *Worker) drain(r *wire.Reader, sw *wire.Writer, ow *wire.Writer, losses []float32) Result {
	if err := sw.Send(wire.Disconnect()); err != nil {
		return Result{Losses: losses, Err: paramserver.NewWorkerError("worker.drain.send_disconnect", w.id, paramserver.KindTransport, err.Error())}
	}
	if ow != nil {
		if err := ow.Send(wire.Disconnect()); err != nil {
			return Result{Losses: losses, Err: paramserver.NewWorkerError("worker.drain.send_orchestrator_disconnect", w.id, paramserver.KindTransport, err.Error())}
		}
	}
	_ = r
	return Result{Losses: losses}
}
