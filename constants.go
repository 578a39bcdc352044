package paramserver

import "time"

// Package-level default constants — grounded on the teacher's root constants.go,
// which re-exports its internal/constants package the same way.
const (
	// DefaultShardSize is a default shard size. internal/specs.BuildStore
	// does not fall back to it: a store spec whose shard_size is missing or
	// non-positive is rejected with a Configuration error.
	DefaultShardSize = 1 << 16

	// DefaultEventChannelCapacity bounds the orchestrator's event channel
	// (spec.md §5): a slow consumer can fall behind by this many events
	// before the session blocks producing more.
	DefaultEventChannelCapacity = 256

	// DefaultMaxEpochs is a default per-connection epoch bound. No code in
	// this module reads it: worker.Run has no epoch bound of its own (it
	// ignores WorkerSpec.MaxEpochs and loops until the server sends
	// Disconnect), and the server binary's -max-epochs flag sets its own
	// default.
	DefaultMaxEpochs = 1 << 20

	// DefaultDialTimeout bounds how long a worker waits to connect to a
	// parameter server before giving up.
	DefaultDialTimeout = 10 * time.Second
)
