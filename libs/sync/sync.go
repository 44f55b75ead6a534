package sync

/*
// For detecting deadlock situations

import deadlock "github.com/sasha-s/go-deadlock"
import "sync"

type Mutex struct {
	deadlock.Mutex
}

type RWMutex struct {
	deadlock.RWMutex
}

type WaitGroup struct {
	sync.WaitGroup
}
*/

import "sync"

type Mutex struct {
	sync.Mutex
}

type RWMutex struct {
	sync.RWMutex
}
type WaitGroup struct {
	sync.WaitGroup
}

// Closer is a one-shot broadcast close signal: any number of goroutines can
// select on Done(), and any number of callers can call Close(), but the
// channel only ever closes once, so several callers can signal the same
// event without racing to close an already-closed channel.
type Closer struct {
	once sync.Once
	done chan struct{}
}

func NewCloser() *Closer {
	return &Closer{done: make(chan struct{})}
}

func (c *Closer) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Closer) Done() <-chan struct{} {
	return c.done
}
