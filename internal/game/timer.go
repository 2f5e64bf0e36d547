package game

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/scythe504/hotseat-backend/internal"
)

// =============================================================================
// ROUND TIMER
// =============================================================================

// roundTimer drives the once-per-second tick of a single running round.
type roundTimer struct {
	roundID  uuid.UUID
	done     chan struct{}
	stopOnce sync.Once
}

// startRoundTimer arms a ticker and calls onTick from its own goroutine until
// stop is called. The ticker is created before returning, so clock advances
// made after this call are observed.
func startRoundTimer(clock clockwork.Clock, wg *sync.WaitGroup, roundID uuid.UUID, onTick func(uuid.UUID)) *roundTimer {
	t := &roundTimer{
		roundID: roundID,
		done:    make(chan struct{}),
	}
	ticker := clock.NewTicker(internal.TickInterval)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-t.done:
				return
			case <-ticker.Chan():
				onTick(roundID)
			}
		}
	}()
	return t
}

// stop never waits for the goroutine; it is safe to call from inside onTick.
func (t *roundTimer) stop() {
	t.stopOnce.Do(func() { close(t.done) })
}
