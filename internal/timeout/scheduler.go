package timeout

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler arms one cancellable deadline per distribution. Firing hands
// the distribution id to the callback, which re-checks current state; a
// disarmed timer never fires, so resolution and cancellation paths can
// deterministically retire a pending deadline.
type Scheduler struct {
	timers map[string]*time.Timer // distribution id -> pending deadline
	mu     sync.Mutex
	fire   func(distID string)
	logger zerolog.Logger
}

// New creates a scheduler delivering expiries to fire
func New(fire func(distID string), logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		timers: make(map[string]*time.Timer),
		fire:   fire,
		logger: logger.With().Str("component", "timeout").Logger(),
	}
}

// Arm schedules a deadline for the distribution, replacing any pending one
func (s *Scheduler) Arm(distID string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[distID]; ok {
		existing.Stop()
	}

	s.timers[distID] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, distID)
		s.mu.Unlock()

		s.logger.Debug().Str("distribution_id", distID).Msg("response deadline fired")
		s.fire(distID)
	})
}

// Disarm cancels the pending deadline for the distribution. It reports
// whether a timer was still pending.
func (s *Scheduler) Disarm(distID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.timers[distID]
	if !ok {
		return false
	}
	delete(s.timers, distID)
	return timer.Stop()
}

// Pending returns the number of armed deadlines
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop disarms every pending deadline
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}
