package paramserver

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds.
// Buckets cover from 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks performance and operational statistics for one parameter
// server session. All fields are safe for concurrent use from any worker
// task or the synchronizer.
type Metrics struct {
	// Epoch-level counters
	EpochsCompleted atomic.Uint64 // total (worker, epoch) steps completed
	GradientsRecv   atomic.Uint64 // gradient payloads received from workers
	ParametersSent  atomic.Uint64 // parameter payloads sent to workers
	StoreUpdates    atomic.Uint64 // accepted store.update() applications
	UpdatesDropped  atomic.Uint64 // store.update() calls that lost the CAS race

	// Byte counters
	GradientBytes atomic.Uint64
	ParameterBytes atomic.Uint64

	// Error counters
	TransportErrors atomic.Uint64
	ProtocolErrors  atomic.Uint64
	SizeMismatches  atomic.Uint64

	// Worker lifecycle
	WorkersConnected atomic.Uint32
	WorkersActive    atomic.Int32
	WorkersDone      atomic.Uint32

	// Performance tracking (per synchronizer step)
	TotalLatencyNs atomic.Uint64
	StepCount      atomic.Uint64

	// Latency histogram buckets (cumulative counts)
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	// Session lifecycle
	StartTime atomic.Int64 // UnixNano
	StopTime  atomic.Int64 // UnixNano
}

// NewMetrics creates a new metrics instance with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordStep records one synchronizer step (accumulate+maybe-update+pull)
// for a single worker, including its end-to-end latency.
func (m *Metrics) RecordStep(gradBytes, paramBytes uint64, latencyNs uint64, updated bool) {
	m.EpochsCompleted.Add(1)
	m.GradientsRecv.Add(1)
	m.ParametersSent.Add(1)
	m.GradientBytes.Add(gradBytes)
	m.ParameterBytes.Add(paramBytes)
	if updated {
		m.StoreUpdates.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordUpdateDropped records a store.update() call that lost the CAS race.
func (m *Metrics) RecordUpdateDropped() {
	m.UpdatesDropped.Add(1)
}

// RecordError records a taxonomy-classified failure.
func (m *Metrics) RecordError(kind Kind) {
	switch kind {
	case KindTransport:
		m.TransportErrors.Add(1)
	case KindProtocol:
		m.ProtocolErrors.Add(1)
	case KindSizeMismatch:
		m.SizeMismatches.Add(1)
	}
}

// RecordWorkerConnected increments worker connect/active counters.
func (m *Metrics) RecordWorkerConnected() {
	m.WorkersConnected.Add(1)
	m.WorkersActive.Add(1)
}

// RecordWorkerDone decrements the active count and increments done.
func (m *Metrics) RecordWorkerDone() {
	m.WorkersActive.Add(-1)
	m.WorkersDone.Add(1)
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.StepCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the session as stopped.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time snapshot of Metrics.
type MetricsSnapshot struct {
	EpochsCompleted uint64
	GradientsRecv   uint64
	ParametersSent  uint64
	StoreUpdates    uint64
	UpdatesDropped  uint64

	GradientBytes  uint64
	ParameterBytes uint64

	TransportErrors uint64
	ProtocolErrors  uint64
	SizeMismatches  uint64

	WorkersConnected uint32
	WorkersActive    int32
	WorkersDone      uint32

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	StepsPerSecond float64
}

// Snapshot creates a point-in-time snapshot of the metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		EpochsCompleted:  m.EpochsCompleted.Load(),
		GradientsRecv:    m.GradientsRecv.Load(),
		ParametersSent:   m.ParametersSent.Load(),
		StoreUpdates:     m.StoreUpdates.Load(),
		UpdatesDropped:   m.UpdatesDropped.Load(),
		GradientBytes:    m.GradientBytes.Load(),
		ParameterBytes:   m.ParameterBytes.Load(),
		TransportErrors:  m.TransportErrors.Load(),
		ProtocolErrors:   m.ProtocolErrors.Load(),
		SizeMismatches:   m.SizeMismatches.Load(),
		WorkersConnected: m.WorkersConnected.Load(),
		WorkersActive:    m.WorkersActive.Load(),
		WorkersDone:      m.WorkersDone.Load(),
	}

	totalLatencyNs := m.TotalLatencyNs.Load()
	stepCount := m.StepCount.Load()
	if stepCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / stepCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.UptimeNs > 0 {
		uptimeSeconds := float64(snap.UptimeNs) / 1e9
		snap.StepsPerSecond = float64(snap.EpochsCompleted) / uptimeSeconds
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if stepCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile (0.0-1.0)
// using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	total := m.StepCount.Load()
	if total == 0 {
		return 0
	}

	targetCount := uint64(float64(total) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Observer allows pluggable metrics collection for synchronizer steps.
// Implementations must be thread-safe: methods are called concurrently
// from every worker task.
type Observer interface {
	ObserveStep(gradBytes, paramBytes uint64, latencyNs uint64, updated bool)
	ObserveError(kind Kind)
	ObserveWorkerConnected()
	ObserveWorkerDone()
	ObserveUpdateDropped()
}

// NoOpObserver is a no-op implementation of Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveStep(uint64, uint64, uint64, bool) {}
func (NoOpObserver) ObserveError(Kind)                        {}
func (NoOpObserver) ObserveWorkerConnected()                  {}
func (NoOpObserver) ObserveWorkerDone()                       {}
func (NoOpObserver) ObserveUpdateDropped()                    {}

// MetricsObserver implements Observer by recording into a Metrics instance.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveStep(gradBytes, paramBytes uint64, latencyNs uint64, updated bool) {
	o.metrics.RecordStep(gradBytes, paramBytes, latencyNs, updated)
}

func (o *MetricsObserver) ObserveError(kind Kind) {
	o.metrics.RecordError(kind)
}

func (o *MetricsObserver) ObserveWorkerConnected() {
	o.metrics.RecordWorkerConnected()
}

func (o *MetricsObserver) ObserveWorkerDone() {
	o.metrics.RecordWorkerDone()
}

func (o *MetricsObserver) ObserveUpdateDropped() {
	o.metrics.RecordUpdateDropped()
}

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
