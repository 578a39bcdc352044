package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mharlan/paramserver/internal/specs"
	"github.com/mharlan/paramserver/internal/wire"
)

func nonBlockingSpec(nworkers int) specs.ServerSpec {
	return specs.ServerSpec{
		NWorkers: nworkers,
		ParamGen: specs.InitializerSpec{
			Kind:  specs.InitConst,
			Const: &specs.ConstSpec{Value: 0, Limit: 2},
		},
		Optimizer: specs.OptimizerSpec{
			Kind:            specs.OptGradientDescent,
			GradientDescent: &specs.GradientDescentParams{LearningRate: 1},
		},
		Synchronizer: specs.SynchronizerSpec{Kind: specs.SyncNonBlocking},
		Store:        specs.StoreSpec{Kind: specs.StoreBlocking, Blocking: &specs.ShardSizeParams{ShardSize: 2}},
	}
}

// TestServeWorkerSingleEpochGradientStep drives one worker task through a
// net.Pipe, mimicking a worker that sends back one gradient then
// disconnects, and checks the observed parameter trajectory (spec.md §4.7).
func TestServeWorkerSingleEpochGradientStep(t *testing.T) {
	srv, err := New(nonBlockingSpec(1), 10, nil)
	require.NoError(t, err)

	serverConn, workerConn := net.Pipe()
	defer serverConn.Close()
	defer workerConn.Close()

	done := make(chan WorkerResult, 1)
	go func() {
		done <- srv.ServeWorker(context.Background(), 0, serverConn)
	}()

	r := wire.NewReader(workerConn)
	w := wire.NewWriter(workerConn)

	msg, err := r.Recv()
	require.NoError(t, err)
	require.Equal(t, wire.KindData, msg.Kind)
	require.Equal(t, wire.PayloadParameters, msg.Payload)
	require.Equal(t, []float32{0, 0}, msg.Floats)

	require.NoError(t, w.Send(wire.Gradient([]float32{1, 1})))

	msg, err = r.Recv()
	require.NoError(t, err)
	require.Equal(t, wire.KindData, msg.Kind)
	require.Equal(t, wire.PayloadParameters, msg.Payload)
	require.Equal(t, []float32{-1, -1}, msg.Floats)

	require.NoError(t, w.Send(wire.Disconnect()))
	// net.Pipe is unbuffered: read the server's Disconnect reply before
	// sending the closing Disconnect it drains for.
	msg, err = r.Recv()
	require.NoError(t, err)
	require.Equal(t, wire.CmdDisconnect, msg.Command)
	require.NoError(t, w.Send(wire.Disconnect()))

	select {
	case res := <-done:
		require.NoError(t, res.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("ServeWorker did not complete")
	}
}

// TestServeWorkerSizeMismatchAborts matches spec.md's fatal-condition
// handling: a worker that sends back a wrong-length gradient aborts the
// task with a SizeMismatch error rather than silently truncating.
func TestServeWorkerSizeMismatchAborts(t *testing.T) {
	srv, err := New(nonBlockingSpec(1), 10, nil)
	require.NoError(t, err)

	serverConn, workerConn := net.Pipe()
	defer serverConn.Close()
	defer workerConn.Close()

	done := make(chan WorkerResult, 1)
	go func() {
		done <- srv.ServeWorker(context.Background(), 0, serverConn)
	}()

	r := wire.NewReader(workerConn)
	w := wire.NewWriter(workerConn)

	_, err = r.Recv()
	require.NoError(t, err)
	require.NoError(t, w.Send(wire.Gradient([]float32{1})))

	select {
	case res := <-done:
		require.Error(t, res.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("ServeWorker did not complete")
	}
}

// TestServeWorkerUnexpectedMessageAborts matches spec.md scenario S5: a
// worker that sends a non-Gradient, non-Disconnect message causes a
// Protocol error and the task aborts without hanging.
func TestServeWorkerUnexpectedMessageAborts(t *testing.T) {
	srv, err := New(nonBlockingSpec(1), 10, nil)
	require.NoError(t, err)

	serverConn, workerConn := net.Pipe()
	defer serverConn.Close()
	defer workerConn.Close()

	done := make(chan WorkerResult, 1)
	go func() {
		done <- srv.ServeWorker(context.Background(), 0, serverConn)
	}()

	r := wire.NewReader(workerConn)
	w := wire.NewWriter(workerConn)

	_, err = r.Recv()
	require.NoError(t, err)
	require.NoError(t, w.Send(wire.CreateServer([]byte("{}"))))

	select {
	case res := <-done:
		require.Error(t, res.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("ServeWorker did not complete")
	}
}

// TestServeAllTwoWorkersNonBlocking exercises ServeAll end to end with two
// simultaneous worker connections under the non-blocking synchronizer.
func TestServeAllTwoWorkersNonBlocking(t *testing.T) {
	srv, err := New(nonBlockingSpec(2), 1, nil)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	resultCh := make(chan struct {
		params []float32
		err    error
	}, 1)
	go func() {
		params, _, err := srv.ServeAll(context.Background(), ln)
		resultCh <- struct {
			params []float32
			err    error
		}{params, err}
	}()

	for i := 0; i < 2; i++ {
		conn, err := net.Dial("tcp", ln.Addr().String())
		require.NoError(t, err)
		defer conn.Close()
		r := wire.NewReader(conn)
		w := wire.NewWriter(conn)

		_, err = r.Recv()
		require.NoError(t, err)
		require.NoError(t, w.Send(wire.Disconnect()))
		require.NoError(t, w.Send(wire.Disconnect()))
	}

	select {
	case res := <-resultCh:
		require.NoError(t, res.err)
		require.Equal(t, 2, len(res.params))
	case <-time.After(2 * time.Second):
		t.Fatal("ServeAll did not complete")
	}
}
