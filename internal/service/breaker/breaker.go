package breaker

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// State — состояние circuit breaker'а.
type State int

const (
	// StateClosed — вызовы проходят к зависимости.
	StateClosed State = iota
	// StateOpen — вызовы немедленно замыкаются на fallback без обращения к сети.
	StateOpen
	// StateHalfOpen — разрешён один пробный вызов для решения о закрытии.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Options настраивает поведение breaker'а.
type Options struct {
	// MaxFailures — число подряд идущих ошибок до размыкания.
	MaxFailures int
	// ResetTimeout — пауза перед переходом open → half-open.
	ResetTimeout time.Duration
	// Trip решает, считать ли ошибку отказом зависимости. Ошибки бизнес-уровня
	// (например, not found от живого сервиса) размыкать breaker не должны.
	Trip   func(error) bool
	Logger *log.Entry
}

// Breaker защищает одну операцию внешнего сервиса.
// Fallback вызывается на каждое короткое замыкание и возвращает типизированную
// ошибку уровня домена.
type Breaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	trip         func(error) bool
	fallback     func() error
	logger       *log.Entry

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	state       State
	trialActive bool
}

// New создаёт breaker для операции name с fallback-функцией.
func New(name string, fallback func() error, opts Options) *Breaker {
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = 5
	}
	if opts.ResetTimeout <= 0 {
		opts.ResetTimeout = 30 * time.Second
	}
	if opts.Trip == nil {
		opts.Trip = func(err error) bool { return err != nil }
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "circuit-breaker")
	}

	return &Breaker{
		name:         name,
		maxFailures:  opts.MaxFailures,
		resetTimeout: opts.ResetTimeout,
		trip:         opts.Trip,
		fallback:     fallback,
		logger:       logger.WithField("operation", name),
	}
}

// Execute выполняет операцию через breaker. В состоянии open (и пока идёт
// чужой пробный вызов в half-open) сеть не трогается — сразу fallback.
func (b *Breaker) Execute(fn func() error) error {
	if !b.allow() {
		return b.fallback()
	}

	err := fn()
	b.record(err)
	return err
}

// State возвращает текущее состояние breaker'а.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.lastFailure) > b.resetTimeout {
			b.state = StateHalfOpen
			b.trialActive = true
			b.logger.Info("circuit breaker half-open, allowing trial call")
			return true
		}
		return false
	case StateHalfOpen:
		// Пробный вызов уже в полёте — остальные замыкаются.
		if b.trialActive {
			return false
		}
		b.trialActive = true
		return true
	default:
		return true
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.trialActive = false
	}

	if err != nil && b.trip(err) {
		b.failures++
		b.lastFailure = time.Now()

		if b.state == StateHalfOpen || b.failures >= b.maxFailures {
			if b.state != StateOpen {
				b.logger.WithField("failures", b.failures).Warn("circuit breaker opened")
			}
			b.state = StateOpen
		}
		return
	}

	if b.state != StateClosed {
		b.logger.Info("circuit breaker closed")
	}
	b.state = StateClosed
	b.failures = 0
}
