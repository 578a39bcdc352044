package wire

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, msg Message) Message {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Send(msg))

	r := NewReader(&buf)
	got, err := r.Recv()
	require.NoError(t, err)
	return got
}

func TestRoundTripDisconnect(t *testing.T) {
	got := roundTrip(t, Disconnect())
	assert.Equal(t, KindControl, got.Kind)
	assert.Equal(t, CmdDisconnect, got.Command)
}

func TestRoundTripCreateServer(t *testing.T) {
	payload := []byte(`{"nworkers":3}`)
	got := roundTrip(t, CreateServer(payload))
	assert.Equal(t, CmdCreateServer, got.Command)
	assert.Equal(t, payload, got.SpecJSON)
}

func TestRoundTripCreateWorker(t *testing.T) {
	payload := []byte(`{"worker_id":1}`)
	got := roundTrip(t, CreateWorker(payload))
	assert.Equal(t, CmdCreateWorker, got.Command)
	assert.Equal(t, payload, got.SpecJSON)
}

func TestRoundTripReportLoss(t *testing.T) {
	losses := []float32{0.5, 0.25, 0.125}
	got := roundTrip(t, ReportLossMsg(7, losses))
	assert.Equal(t, CmdReportLoss, got.Command)
	assert.EqualValues(t, 7, got.ReportLoss.WorkerID)
	assert.Equal(t, losses, got.ReportLoss.Losses)
}

func TestRoundTripParameters(t *testing.T) {
	params := []float32{1, 2, 3, 4, 5}
	got := roundTrip(t, Parameters(params))
	assert.Equal(t, KindData, got.Kind)
	assert.Equal(t, PayloadParameters, got.Payload)
	assert.Equal(t, params, got.Floats)
}

func TestRoundTripGradient(t *testing.T) {
	grad := []float32{-1.5, 2.25}
	got := roundTrip(t, Gradient(grad))
	assert.Equal(t, PayloadGradient, got.Payload)
	assert.Equal(t, grad, got.Floats)
}

func TestRoundTripErr(t *testing.T) {
	got := roundTrip(t, Err("boom"))
	assert.Equal(t, KindErr, got.Kind)
	assert.Equal(t, "boom", got.ErrText)
}

func TestRoundTripEmptyFloatSlice(t *testing.T) {
	got := roundTrip(t, Parameters(nil))
	assert.Equal(t, PayloadParameters, got.Payload)
	assert.Len(t, got.Floats, 0)
}

func TestRecvEOF(t *testing.T) {
	r := NewReader(bytes.NewReader(nil))
	_, err := r.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestRecvTruncatedHeader(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0, 0, 0}))
	_, err := r.Recv()
	assert.ErrorIs(t, err, ErrFraming)
}

func TestRecvBadTag(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0, 0, 0, 0, 1}) // length = 1
	buf.WriteByte(0x42)                       // unknown tag
	r := NewReader(&buf)
	_, err := r.Recv()
	assert.ErrorIs(t, err, ErrBadTag)
}

func TestRecvZeroLengthFrame(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0, 0, 0, 0, 0})
	r := NewReader(&buf)
	_, err := r.Recv()
	assert.ErrorIs(t, err, ErrFraming)
}

func TestReaderBufferRetainedAcrossCalls(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Send(Parameters([]float32{1, 2, 3})))
	require.NoError(t, w.Send(Gradient([]float32{4, 5})))

	r := NewReader(&buf)
	m1, err := r.Recv()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, m1.Floats)

	m2, err := r.Recv()
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 5}, m2.Floats)
}

func TestMultipleMessagesOnOneStream(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	msgs := []Message{
		CreateServer([]byte(`{}`)),
		Parameters([]float32{1, 2}),
		Gradient([]float32{3, 4}),
		Disconnect(),
	}
	for _, m := range msgs {
		require.NoError(t, w.Send(m))
	}

	r := NewReader(&buf)
	for _, want := range msgs {
		got, err := r.Recv()
		require.NoError(t, err)
		assert.Equal(t, want.Kind, got.Kind)
	}
	_, err := r.Recv()
	assert.ErrorIs(t, err, io.EOF)
}
