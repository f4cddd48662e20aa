package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sourcegraph/conc/panics"
)

// Supervisor restarts non-critical consumers with exponential backoff and
// converts panics in critical stages into errors instead of crashing the
// process, spec.md §9: "panics are treated as invariant breaches and
// trigger halt" for critical stages, while a non-critical consumer (a
// telemetry drainer, for instance) is simply restarted.
type Supervisor struct{}

// NewSupervisor returns a ready-to-use Supervisor. It holds no state: both
// methods are pure functions of their arguments.
func NewSupervisor() *Supervisor { return &Supervisor{} }

// RunCritical executes fn, recovering any panic into an error via
// sourcegraph/conc's panic catcher rather than letting it unwind the
// goroutine.
func (s *Supervisor) RunCritical(fn func() error) (err error) {
	var pc panics.Catcher
	pc.Try(func() {
		err = fn()
	})
	if r := pc.Recovered(); r != nil {
		return fmt.Errorf("critical stage panicked: %v", r.AsError())
	}
	return err
}

// RunNonCritical restarts fn forever with exponential backoff (base
// 100ms, cap 5s, jitter ±20%) whenever it returns a non-nil error,
// stopping only when ctx is cancelled or fn returns nil.
func (s *Supervisor) RunNonCritical(ctx context.Context, fn func(context.Context) error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.RandomizationFactor = 0.2
	bo.MaxElapsedTime = 0

	for {
		if ctx.Err() != nil {
			return
		}
		err := fn(ctx)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		wait := bo.NextBackOff()
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}
