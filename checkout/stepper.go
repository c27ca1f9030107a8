package checkout

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrInvalidTransition is returned when a trigger is not allowed in the current phase.
	ErrInvalidTransition = errors.New("invalid checkout transition")
	// ErrCloseLocked is returned when closing while a simulated confirmation is pending.
	ErrCloseLocked = errors.New("checkout cannot be closed while a confirmation is pending")
)

// Phase is a step of the simulated two-step payment.
type Phase int

const (
	Initial Phase = iota
	Approving
	Approved
	Confirming
	Complete
)

var phaseNames = [...]string{"initial", "approving", "approved", "confirming", "complete"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	for i, name := range phaseNames {
		if name == string(text) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown checkout phase %q", text)
}

// Pending reports whether the phase is waiting on a timer.
func (p Phase) Pending() bool {
	return p == Approving || p == Confirming
}

// Delays are the fixed waits standing in for wallet confirmations.
type Delays struct {
	Approval     time.Duration
	Confirmation time.Duration
}

// DefaultDelays match the storefront's simulated wallet prompts.
var DefaultDelays = Delays{
	Approval:     2 * time.Second,
	Confirmation: 3 * time.Second,
}

// Controls describe which checkout controls are enabled in a phase.
type Controls struct {
	Approve bool `json:"approve"`
	Confirm bool `json:"confirm"`
	Close   bool `json:"close"`
}

// ControlsFor derives control enablement from a phase.
func ControlsFor(p Phase) Controls {
	switch p {
	case Initial:
		return Controls{Approve: true, Close: true}
	case Approved:
		return Controls{Confirm: true, Close: true}
	case Complete:
		return Controls{Close: true}
	default:
		return Controls{}
	}
}

// Stepper is the checkout state machine:
//
//	initial -> approving -> approved -> confirming -> complete
//
// approving and confirming advance on their own once the clock fires.
type Stepper struct {
	mu         sync.Mutex
	clock      Clock
	delays     Delays
	phase      Phase
	gen        uint64
	pending    Timer
	onComplete func()
	observer   func(from, to Phase)
}

// NewStepper returns a stepper in the initial phase. onComplete runs once per
// completed checkout, after the stepper has entered Complete.
func NewStepper(clock Clock, delays Delays, onComplete func()) *Stepper {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Stepper{clock: clock, delays: delays, onComplete: onComplete}
}

// Observe registers fn to be called on every phase change. fn runs with the
// stepper locked and must not call back into it.
func (s *Stepper) Observe(fn func(from, to Phase)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = fn
}

// Phase returns the current phase.
func (s *Stepper) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Controls returns the control enablement for the current phase.
func (s *Stepper) Controls() Controls {
	return ControlsFor(s.Phase())
}

// Reset returns to Initial, discarding any prior phase and any pending timer.
func (s *Stepper) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// Approve starts the simulated spend approval.
func (s *Stepper) Approve() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != Initial {
		return fmt.Errorf("%w: approve in %s", ErrInvalidTransition, s.phase)
	}
	s.setLocked(Approving)
	gen := s.gen
	s.pending = s.clock.AfterFunc(s.delays.Approval, func() {
		s.advance(gen, Approving, Approved, nil)
	})
	return nil
}

// Confirm starts the simulated purchase confirmation. Only valid once the
// spend has been approved.
func (s *Stepper) Confirm() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != Approved {
		return fmt.Errorf("%w: confirm in %s", ErrInvalidTransition, s.phase)
	}
	s.setLocked(Confirming)
	gen := s.gen
	s.pending = s.clock.AfterFunc(s.delays.Confirmation, func() {
		s.advance(gen, Confirming, Complete, s.onComplete)
	})
	return nil
}

// Close discards the machine. It is refused while a timer is pending.
func (s *Stepper) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase.Pending() {
		return fmt.Errorf("%w (%s)", ErrCloseLocked, s.phase)
	}
	s.resetLocked()
	return nil
}

func (s *Stepper) advance(gen uint64, from, to Phase, done func()) {
	s.mu.Lock()
	if gen != s.gen || s.phase != from {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.setLocked(to)
	s.mu.Unlock()

	if done != nil {
		done()
	}
}

func (s *Stepper) resetLocked() {
	s.gen++
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.setLocked(Initial)
}

func (s *Stepper) setLocked(to Phase) {
	from := s.phase
	if from == to {
		return
	}
	s.phase = to
	if s.observer != nil {
		s.observer(from, to)
	}
}
