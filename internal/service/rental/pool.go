package rental

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
)

const defaultPoolSize = 8

// ErrPoolClosed возвращается при отправке работы в закрытый пул.
var ErrPoolClosed = errors.New("worker pool is closed")

// Pool ограничивает число одновременно выполняемых операций жизненного
// цикла: HTTP-слой прогоняет каждый вызов через пул, чтобы задержки
// storage и внешних сервисов не занимали accept path.
type Pool struct {
	sem    chan struct{}
	logger *log.Entry

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool создаёт пул с size одновременными слотами.
func NewPool(size int, logger *log.Entry) *Pool {
	if size <= 0 {
		size = defaultPoolSize
	}
	if logger == nil {
		logger = log.New().WithField("component", "rental-pool")
	}
	return &Pool{
		sem:    make(chan struct{}, size),
		logger: logger,
	}
}

// Execute выполняет fn в пределах слота пула, блокируясь до освобождения
// слота либо отмены ctx. Результат fn возвращается вызывающему.
func (p *Pool) Execute(ctx context.Context, fn func() error) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()
	defer p.wg.Done()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.sem <- struct{}{}:
	}
	defer func() { <-p.sem }()

	return fn()
}

// Submit запускает fn асинхронно; ошибки логируются, не возвращаются.
func (p *Pool) Submit(ctx context.Context, fn func() error) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()

		select {
		case <-ctx.Done():
			return
		case p.sem <- struct{}{}:
		}
		defer func() { <-p.sem }()

		if err := fn(); err != nil {
			p.logger.WithError(err).Warn("async rental operation failed")
		}
	}()

	return nil
}

// Close запрещает новую работу и дожидается завершения текущей.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
}
