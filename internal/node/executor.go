package node

import "sync"

// executor is the node's single logical event loop: all I/O completions,
// timer expirations and API calls post work here, and each posted task runs
// to completion before the next.
type executor struct {
	ch   chan func()
	quit chan struct{}
	once sync.Once
	done chan struct{}
}

func newExecutor(backlog int) *executor {
	e := &executor{
		ch:   make(chan func(), backlog),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *executor) run() {
	defer close(e.done)
	for {
		select {
		case <-e.quit:
			// Drain what was already queued, then exit.
			for {
				select {
				case f := <-e.ch:
					f()
				default:
					return
				}
			}
		case f := <-e.ch:
			f()
		}
	}
}

// post enqueues f. If the backlog is full the enqueue moves to a goroutine
// rather than block the caller. After stop, posts are dropped.
func (e *executor) post(f func()) {
	select {
	case <-e.quit:
		return
	case e.ch <- f:
		return
	default:
	}
	go func() {
		select {
		case <-e.quit:
		case e.ch <- f:
		}
	}()
}

func (e *executor) stop() {
	e.once.Do(func() { close(e.quit) })
	<-e.done
}
