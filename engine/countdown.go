package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

// CountdownTick is emitted while a price round's response window runs down.
// The final tick of a round has Expired set and Remaining zero.
type CountdownTick struct {
	RoomID    string
	Price     float64
	Remaining time.Duration
	Expired   bool
}

// Scheduler runs at most one countdown per room. It never touches session
// state; it only reports progress to onTick, which must not call back into
// the scheduler.
//
// Every start or cancel carries a round number from NextRound. A request
// older than the last one seen for its room is dropped, so callers that
// take the number under the session lock get countdowns in lock order.
type Scheduler struct {
	duration time.Duration
	step     time.Duration
	onTick   func(CountdownTick)
	seq      atomic.Uint64

	mu     sync.Mutex
	rounds map[string]*round
	latest map[string]uint64
}

type round struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// stop cancels the round and waits for its goroutine to exit.
func (r *round) stop() {
	r.cancel()
	<-r.done
}

func NewScheduler(duration, step time.Duration, onTick func(CountdownTick)) *Scheduler {
	if step <= 0 || step > duration {
		step = duration
	}
	if onTick == nil {
		onTick = func(CountdownTick) {}
	}
	return &Scheduler{
		duration: duration,
		step:     step,
		onTick:   onTick,
		rounds:   make(map[string]*round),
		latest:   make(map[string]uint64),
	}
}

// NextRound hands out the number ordering the next StartRound or CancelRound.
func (s *Scheduler) NextRound() uint64 {
	return s.seq.Add(1)
}

// Start supersedes any countdown already running for the room. Once Start
// returns, the previous round will emit nothing further.
func (s *Scheduler) Start(roomID string, price float64) {
	s.StartRound(roomID, s.NextRound(), price)
}

// StartRound is Start for a round number taken earlier with NextRound. It
// does nothing when a newer round has already started or been cancelled.
func (s *Scheduler) StartRound(roomID string, seq uint64, price float64) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &round{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	if seq < s.latest[roomID] {
		s.mu.Unlock()
		cancel()
		return
	}
	s.latest[roomID] = seq
	prev := s.rounds[roomID]
	s.rounds[roomID] = r
	s.mu.Unlock()

	// The displaced round finishes before this one may tick.
	if prev != nil {
		prev.stop()
	}
	go s.run(ctx, roomID, price, r)
}

// Cancel stops the room's countdown and waits for its goroutine to exit.
func (s *Scheduler) Cancel(roomID string) {
	s.CancelRound(roomID, s.NextRound())
}

// CancelRound is Cancel for a round number taken earlier with NextRound.
func (s *Scheduler) CancelRound(roomID string, seq uint64) {
	s.mu.Lock()
	if seq < s.latest[roomID] {
		s.mu.Unlock()
		return
	}
	s.latest[roomID] = seq
	r, ok := s.rounds[roomID]
	delete(s.rounds, roomID)
	s.mu.Unlock()

	if ok {
		r.stop()
	}
}

// Active reports whether a countdown is running for the room.
func (s *Scheduler) Active(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rounds[roomID]
	return ok
}

// Stop cancels every running countdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	rooms := make([]string, 0, len(s.rounds))
	for id := range s.rounds {
		rooms = append(rooms, id)
	}
	s.mu.Unlock()

	for _, id := range rooms {
		s.Cancel(id)
	}
}

func (s *Scheduler) run(ctx context.Context, roomID string, price float64, r *round) {
	defer close(r.done)

	remaining := s.duration
	timer := time.NewTimer(min(s.step, remaining))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return
		}

		remaining -= min(s.step, remaining)
		if remaining > 0 {
			s.onTick(CountdownTick{RoomID: roomID, Price: price, Remaining: remaining})
			timer.Reset(min(s.step, remaining))
			continue
		}

		s.onTick(CountdownTick{RoomID: roomID, Price: price, Expired: true})

		s.mu.Lock()
		if s.rounds[roomID] == r {
			delete(s.rounds, roomID)
		}
		s.mu.Unlock()

		logx.Infof("⏱️ Countdown finished in room %s at %.2f", roomID, price)
		return
	}
}
