package paramserver

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/mharlan/paramserver/internal/logging"
	"github.com/mharlan/paramserver/internal/specs"
	"github.com/mharlan/paramserver/internal/wire"
)

// EventKind discriminates Event variants (spec.md §4.9).
type EventKind int

const (
	EventLoss EventKind = iota
	EventWorkerDone
	EventComplete
	EventError
)

// Event is one item in the orchestrator's event stream. Exactly the field
// relevant to Kind is populated.
type Event struct {
	Kind EventKind

	WorkerID int       // Loss, WorkerDone
	Losses   []float32 // Loss

	FinalParams []float32 // Complete

	Err error // Error
}

// ServerTarget pairs a dial address with the spec to send it.
type ServerTarget struct {
	Addr string           `json:"addr"`
	Spec specs.ServerSpec `json:"spec"`
}

// WorkerTarget pairs a dial address with the spec to send it.
type WorkerTarget struct {
	Addr string           `json:"addr"`
	Spec specs.WorkerSpec `json:"spec"`
}

// Session is the orchestrator runtime described in spec.md §4.9: it dials
// every worker and server, hands each its spec, and relays ReportLoss,
// worker Disconnect, and the servers' final Parameters as a bounded event
// stream. The session is cancelled through Run's ctx: the channel has
// capacity DefaultEventChannelCapacity and producers block (never drop)
// once it fills, per spec.md §6, so a consumer that stops reading Events
// without cancelling ctx leaves them blocked.
type Session struct {
	id     string
	events chan Event
	logger *logging.Logger

	wg sync.WaitGroup
}

// NewSession creates a session with the default bounded event channel. Each
// session gets a random id (github.com/google/uuid) used only to correlate
// its log lines — it has no role in the wire protocol itself.
func NewSession(logger *logging.Logger) *Session {
	if logger == nil {
		logger = logging.Default()
	}
	return &Session{
		id:     uuid.NewString(),
		events: make(chan Event, DefaultEventChannelCapacity),
		logger: logger,
	}
}

// Events returns the session's event stream. Closing happens automatically
// once every worker and server connection has finished; callers should
// range over this channel until it closes.
func (s *Session) Events() <-chan Event {
	return s.events
}

func (s *Session) emit(ctx context.Context, ev Event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

// Run dials every server and worker target, sends their bootstrap specs,
// and relays events until all connections finish or ctx is cancelled. Run
// closes the event channel before returning.
func (s *Session) Run(ctx context.Context, servers []ServerTarget, workers []WorkerTarget) error {
	defer close(s.events)
	s.logger.Info("starting session", "session_id", s.id, "nservers", len(servers), "nworkers", len(workers))

	dialer := net.Dialer{}

	for _, srv := range servers {
		conn, err := dialer.DialContext(ctx, "tcp", srv.Addr)
		if err != nil {
			s.emit(ctx, Event{Kind: EventError, Err: err})
			continue
		}
		payload, err := specs.MarshalServerSpec(srv.Spec)
		if err != nil {
			conn.Close()
			s.emit(ctx, Event{Kind: EventError, Err: err})
			continue
		}
		w := wire.NewWriter(conn)
		if err := w.Send(wire.CreateServer(payload)); err != nil {
			conn.Close()
			s.emit(ctx, Event{Kind: EventError, Err: err})
			continue
		}
		s.wg.Add(1)
		go s.watchServer(ctx, conn)
	}

	for _, wk := range workers {
		conn, err := dialer.DialContext(ctx, "tcp", wk.Addr)
		if err != nil {
			s.emit(ctx, Event{Kind: EventError, Err: err})
			continue
		}
		payload, err := specs.MarshalWorkerSpec(wk.Spec)
		if err != nil {
			conn.Close()
			s.emit(ctx, Event{Kind: EventError, Err: err})
			continue
		}
		w := wire.NewWriter(conn)
		if err := w.Send(wire.CreateWorker(payload)); err != nil {
			conn.Close()
			s.emit(ctx, Event{Kind: EventError, Err: err})
			continue
		}
		s.wg.Add(1)
		go s.watchWorker(ctx, wk.Spec.WorkerID, conn)
	}

	s.wg.Wait()
	return nil
}

// watchServer relays a server's final Data(Parameters(w)) as Complete,
// then closes the connection (spec.md §4.9: "Complete is emitted after
// all workers have disconnected and the server has sent the final
// Parameters").
func (s *Session) watchServer(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	r := wire.NewReader(conn)
	msg, err := r.Recv()
	if err != nil {
		if err != io.EOF {
			s.emit(ctx, Event{Kind: EventError, Err: err})
		}
		return
	}
	if msg.Kind == wire.KindData && msg.Payload == wire.PayloadParameters {
		s.emit(ctx, Event{Kind: EventComplete, FinalParams: append([]float32(nil), msg.Floats...)})
		return
	}
	s.emit(ctx, Event{Kind: EventError, Err: NewError("session.watchServer", KindProtocol, "expected final Parameters from server")})
}

// watchWorker relays a worker's Control(ReportLoss) messages as Loss events
// until it observes Disconnect or EOF, then emits WorkerDone.
func (s *Session) watchWorker(ctx context.Context, workerID int, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	r := wire.NewReader(conn)
	for {
		msg, err := r.Recv()
		if err != nil {
			if err != io.EOF {
				s.emit(ctx, Event{Kind: EventError, Err: err})
			}
			s.emit(ctx, Event{Kind: EventWorkerDone, WorkerID: workerID})
			return
		}

		switch {
		case msg.Kind == wire.KindControl && msg.Command == wire.CmdReportLoss:
			s.emit(ctx, Event{Kind: EventLoss, WorkerID: int(msg.ReportLoss.WorkerID), Losses: append([]float32(nil), msg.ReportLoss.Losses...)})
		case msg.Kind == wire.KindControl && msg.Command == wire.CmdDisconnect:
			s.emit(ctx, Event{Kind: EventWorkerDone, WorkerID: workerID})
			return
		default:
			s.emit(ctx, Event{Kind: EventError, Err: NewWorkerError("session.watchWorker", workerID, KindProtocol, "expected ReportLoss or Disconnect")})
		}
	}
}
