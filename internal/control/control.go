// Package control implements the run controller lifecycle state machine
// described in spec.md §4.9: Idle/Running/Paused/Stopped with a terminal
// Halted state, plus per-tick pacing. Risk, portfolio, and settings state
// are held by internal/lab, not by this package.
package control

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// State is one node of the run lifecycle state machine, spec.md §4.9.
type State string

const (
	StateIdle    State = "Idle"
	StateRunning State = "Running"
	StatePaused  State = "Paused"
	StateStopped State = "Stopped"
	StateHalted  State = "Halted"
)

// transitions enumerates the legal edges of the state machine. Halted is
// terminal: spec.md §4.5 "stays Halted until an explicit reset", so its
// only edge is Halted -> Idle, taken by Reset. Rebuilding risk/portfolio
// state before that edge is the caller's job (see Lab.Reset).
var transitions = map[State]map[State]bool{
	StateIdle:    {StateRunning: true},
	StateRunning: {StatePaused: true, StateStopped: true, StateHalted: true},
	StatePaused:  {StateRunning: true, StateStopped: true, StateHalted: true},
	StateStopped: {StateIdle: true},
	StateHalted:  {StateIdle: true},
}

// Controller is the single-writer lifecycle owner. It does not itself
// know how to run a tick; Lab runs each tick itself after pacing it
// through WaitTick.
type Controller struct {
	mu    sync.Mutex
	state State

	limiter *rate.Limiter
}

// New builds an Idle controller paced at one tick per decisionInterval.
func New(decisionInterval time.Duration) *Controller {
	var limiter *rate.Limiter
	if decisionInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(decisionInterval), 1)
	}
	return &Controller{state: StateIdle, limiter: limiter}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) transition(to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !transitions[c.state][to] {
		return fmt.Errorf("illegal transition %s -> %s", c.state, to)
	}
	c.state = to
	return nil
}

// Start moves Idle -> Running.
func (c *Controller) Start() error { return c.transition(StateRunning) }

// Pause moves Running -> Paused.
func (c *Controller) Pause() error { return c.transition(StatePaused) }

// Resume moves Paused -> Running.
func (c *Controller) Resume() error { return c.transition(StateRunning) }

// Stop moves Running or Paused -> Stopped.
func (c *Controller) Stop() error { return c.transition(StateStopped) }

// Halt moves Running or Paused -> Halted. It is also reachable from the
// risk engine's daily-loss kill-switch and from a recovered critical-stage
// panic, spec.md §4.5 and §9.
func (c *Controller) Halt() error { return c.transition(StateHalted) }

// Reset moves Stopped or Halted back to Idle. Callers are responsible for
// rebuilding risk/portfolio state before calling Reset, mirroring
// spec.md §4.9's "reset clears halt and zeroes accumulators" ordering.
func (c *Controller) Reset() error { return c.transition(StateIdle) }

// Running reports whether ticks should currently be processed.
func (c *Controller) Running() bool {
	return c.State() == StateRunning
}

// WaitTick blocks until the pacing limiter admits the next tick or ctx is
// cancelled, spec.md §4.9's per-tick pacing note. With no limiter
// configured it returns immediately.
func (c *Controller) WaitTick(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}
