// Package contact turns raw device samples reported from any goroutine into
// Touch events delivered on the loop goroutine.
package contact

import (
	"sync"
	"time"

	"github.com/phuslu/log"

	"go.yuchanns.xyz/touchloop"
	"go.yuchanns.xyz/touchloop/internal/ring"
)

const DefaultQueue = 1024

// Sample is one device report with normalized coordinates.
type Sample struct {
	Kind   touchloop.EventKind
	ID     int64
	SX, SY float64
}

// Source buffers samples behind its own lock and replays them as touches
// when the loop polls it. Touch objects are only created and mutated by
// Update, on the loop goroutine.
type Source struct {
	// Debounce releases touches not updated for that long; zero disables.
	Debounce time.Duration

	device  string
	mu      sync.Mutex
	pending *ring.Ring[Sample]
	touches map[int64]*touchloop.Touch
	order   []int64
	now     func() time.Time
}

func NewSource(device string, queue int) *Source {
	if queue <= 0 {
		queue = DefaultQueue
	}
	return &Source{
		device:  device,
		pending: ring.New[Sample](queue),
		touches: map[int64]*touchloop.Touch{},
		now:     time.Now,
	}
}

func (s *Source) Device() string {
	return s.device
}

// Report queues a sample. It is safe for concurrent use. It returns false
// when the queue is full and the sample was dropped.
func (s *Source) Report(kind touchloop.EventKind, id int64, sx, sy float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return false
	}
	return s.pending.Push(Sample{Kind: kind, ID: id, SX: sx, SY: sy})
}

// Live is the number of contacts currently down.
func (s *Source) Live() int {
	return len(s.touches)
}

// Update replays the queued samples through dispatch. A begin for an id
// already down is treated as a move.
func (s *Source) Update(dispatch touchloop.DispatchFunc) {
	s.mu.Lock()
	var samples []Sample
	if s.pending != nil {
		s.pending.Drain(func(sm Sample) {
			samples = append(samples, sm)
		})
	}
	s.mu.Unlock()

	for _, sm := range samples {
		s.apply(sm, dispatch)
	}
	if s.Debounce > 0 {
		s.debounce(dispatch)
	}
}

func (s *Source) apply(sm Sample, dispatch touchloop.DispatchFunc) {
	t, live := s.touches[sm.ID]
	switch sm.Kind {
	case touchloop.TouchDown:
		if live {
			t.Move(sm.SX, sm.SY)
			dispatch(touchloop.TouchMove, t)
			return
		}
		t = touchloop.NewTouch(s.device, sm.ID, sm.SX, sm.SY)
		s.touches[sm.ID] = t
		s.order = append(s.order, sm.ID)
		dispatch(touchloop.TouchDown, t)
	case touchloop.TouchMove:
		if !live {
			log.Debug().Msgf("%s: move for unknown contact %d", s.device, sm.ID)
			return
		}
		t.Move(sm.SX, sm.SY)
		dispatch(touchloop.TouchMove, t)
	case touchloop.TouchUp:
		if !live {
			log.Debug().Msgf("%s: up for unknown contact %d", s.device, sm.ID)
			return
		}
		if sm.SX >= 0 && sm.SY >= 0 {
			t.Move(sm.SX, sm.SY)
		}
		s.release(sm.ID)
		dispatch(touchloop.TouchUp, t)
	}
}

func (s *Source) release(id int64) {
	delete(s.touches, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Source) debounce(dispatch touchloop.DispatchFunc) {
	now := s.now()
	for _, id := range append([]int64(nil), s.order...) {
		t := s.touches[id]
		if now.Sub(t.TimeUpdate) < s.Debounce {
			continue
		}
		log.Debug().Msgf("%s: releasing stale contact %d", s.device, id)
		s.release(id)
		dispatch(touchloop.TouchUp, t)
	}
}

// ReleaseAll dispatches an up for every live contact.
func (s *Source) ReleaseAll(dispatch touchloop.DispatchFunc) {
	for _, id := range append([]int64(nil), s.order...) {
		t := s.touches[id]
		s.release(id)
		dispatch(touchloop.TouchUp, t)
	}
}

// Close frees the queue. Reports after Close are dropped.
func (s *Source) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		s.pending.Free()
		s.pending = nil
	}
}
