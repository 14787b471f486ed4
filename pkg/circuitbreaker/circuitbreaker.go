package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned without invoking the wrapped call while the
// breaker is cooling down.
var ErrOpen = errors.New("circuit breaker open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

type Options struct {
	Name string
	// Threshold is the number of consecutive failures that trips the
	// breaker open.
	Threshold int
	// Cooldown is how long the breaker stays open before allowing a
	// probe call through.
	Cooldown time.Duration
}

// Breaker guards a downstream dependency. After Threshold consecutive
// failures it rejects calls for Cooldown, then lets a single probe
// through; the probe's outcome decides whether it closes again.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
}

func New(opts Options) *Breaker {
	if opts.Threshold <= 0 {
		opts.Threshold = 5
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 30 * time.Second
	}
	return &Breaker{
		name:      opts.Name,
		threshold: opts.Threshold,
		cooldown:  opts.Cooldown,
		state:     StateClosed,
	}
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Do runs fn unless the breaker is open. Errors from fn count against
// the failure threshold; a success in any state closes the breaker.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	if b.state == StateOpen {
		if time.Since(b.openedAt) < b.cooldown {
			b.mu.Unlock()
			return ErrOpen
		}
		b.state = StateHalfOpen
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.threshold {
			b.state = StateOpen
			b.openedAt = time.Now()
		}
		return err
	}

	b.state = StateClosed
	b.failures = 0
	return nil
}
