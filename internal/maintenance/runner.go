package maintenance

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Run executes both sweeps on the given cron schedule until ctx is
// cancelled. Sweep errors are logged and the loop continues; an unhealthy
// store on one tick must not stop maintenance for good.
func (s *Sweeper) Run(ctx context.Context, schedule string) error {
	sched, err := cronParser.Parse(schedule)
	if err != nil {
		return fmt.Errorf("maintenance: parse schedule %q: %w", schedule, err)
	}

	for {
		wait := sweepWait(sched, s.now())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		s.Sweep(ctx)
	}
}

// sweepWait returns how long to sleep until the schedule's next tick,
// measured against the same clock the tick was computed from.
func sweepWait(sched cron.Schedule, now time.Time) time.Duration {
	wait := sched.Next(now).Sub(now)
	if wait < 0 {
		wait = 0
	}
	return wait
}

// Sweep runs one maintenance pass: expiry first so stale tours cancel before
// the empty-tour pass prunes whatever they left behind.
func (s *Sweeper) Sweep(ctx context.Context) {
	if err := s.ProcessExpiredTours(ctx); err != nil {
		log.Printf("maintenance: expired sweep: %v", err)
	}
	if err := s.RemoveEmptyTours(ctx); err != nil {
		log.Printf("maintenance: empty sweep: %v", err)
	}
}
