package breaker

import (
	"errors"
	"time"

	cb "github.com/sony/gobreaker"
)

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = errors.New("circuit open")

type Settings struct {
	Name        string
	MaxFailures uint32
	Interval    time.Duration
	Timeout     time.Duration
	// OnStateChange is called with the new state name ("closed", "half-open", "open").
	OnStateChange func(name, from, to string)
}

// Breaker guards calls to a flaky dependency.
type Breaker struct{ cb *cb.CircuitBreaker }

func New(s Settings) *Breaker {
	st := cb.Settings{Name: s.Name, Interval: s.Interval, Timeout: s.Timeout}
	limit := s.MaxFailures
	if limit == 0 {
		limit = 3
	}
	st.ReadyToTrip = func(counts cb.Counts) bool {
		return counts.ConsecutiveFailures >= limit
	}
	if s.OnStateChange != nil {
		st.OnStateChange = func(name string, from, to cb.State) {
			s.OnStateChange(name, from.String(), to.String())
		}
	}
	return &Breaker{cb: cb.NewCircuitBreaker(st)}
}

// Execute runs fn unless the breaker is open.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	out, err := b.cb.Execute(fn)
	if errors.Is(err, cb.ErrOpenState) || errors.Is(err, cb.ErrTooManyRequests) {
		return nil, ErrOpen
	}
	return out, err
}

func (b *Breaker) State() string { return b.cb.State().String() }
