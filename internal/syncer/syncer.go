package syncer

import (
	"sync"

	"github.com/mharlan/paramserver/internal/store"
)

// Synchronizer drives one worker's per-epoch step against a shared store:
// given an incoming gradient, it produces the next parameter snapshot for
// that worker. One instance is constructed per parameter server and shared
// by every worker task connected to it (spec.md §4.7).
type Synchronizer interface {
	Step(grad, out []float32) error
}

// BarrierSynchronizer is the bulk-synchronous variant (spec.md §4.6):
// accumulate, wait for the full cohort, let exactly one waiter apply the
// update, wait again, then every waiter pulls the shared post-update
// weights. All B workers therefore observe identical weights each epoch
// and none starts epoch k+1 before all B finish epoch k.
type BarrierSynchronizer struct {
	st store.Store
	b  *Barrier

	errMu sync.Mutex
	err   error
}

func NewBarrierSynchronizer(st store.Store, cohortSize int) *BarrierSynchronizer {
	return &BarrierSynchronizer{st: st, b: NewBarrier(cohortSize)}
}

func (s *BarrierSynchronizer) Step(grad, out []float32) error {
	if err := s.st.Accumulate(grad); err != nil {
		return err
	}

	isLeader := s.b.Wait()
	if isLeader {
		if err := s.st.Update(); err != nil {
			s.setErr(err)
		}
	}
	s.b.Wait()

	if err := s.getErr(); err != nil {
		return err
	}
	return s.st.Pull(out)
}

func (s *BarrierSynchronizer) setErr(err error) {
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
}

func (s *BarrierSynchronizer) getErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// NonBlocking performs accumulate/update/pull in sequence for each worker
// independently: multiple workers interleave freely and a worker's pulled
// weights may reflect gradients other workers applied in the same
// wall-clock interval (spec.md §4.6).
type NonBlocking struct {
	st store.Store
}

func NewNonBlocking(st store.Store) *NonBlocking {
	return &NonBlocking{st: st}
}

func (s *NonBlocking) Step(grad, out []float32) error {
	if err := s.st.Accumulate(grad); err != nil {
		return err
	}
	if err := s.st.Update(); err != nil {
		return err
	}
	return s.st.Pull(out)
}

var (
	_ Synchronizer = (*BarrierSynchronizer)(nil)
	_ Synchronizer = (*NonBlocking)(nil)
)
