package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

const defaultQueueDepth = 256

// Executor runs posted closures one at a time, in order.
type Executor interface {
	Post(func())
}

// Dispatcher is the production Executor: a goroutine draining a channel.
// Posts made before Run starts are buffered; posts after Run returns are
// dropped.
type Dispatcher struct {
	ch   chan func()
	done chan struct{}
	once sync.Once
	log  zerolog.Logger
}

// NewDispatcher builds a dispatcher with the given queue depth.
func NewDispatcher(depth int, log zerolog.Logger) *Dispatcher {
	if depth <= 0 {
		depth = defaultQueueDepth
	}
	return &Dispatcher{ch: make(chan func(), depth), done: make(chan struct{}), log: log}
}

func (d *Dispatcher) Post(f func()) {
	select {
	case <-d.done:
		return
	default:
	}
	select {
	case d.ch <- f:
	case <-d.done:
	}
}

// Done is closed once Run has returned. Closures posted after that never run.
func (d *Dispatcher) Done() <-chan struct{} { return d.done }

// Run drains the queue until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.once.Do(func() { close(d.done) })
	for {
		select {
		case <-ctx.Done():
			return nil
		case f := <-d.ch:
			d.exec(f)
		}
	}
}

func (d *Dispatcher) exec(f func()) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Str("event", "handler_panic").Err(fmt.Errorf("%v", r)).Msg("session handler panicked")
		}
	}()
	f()
}
