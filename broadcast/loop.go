package broadcast

import (
	"log/slog"
	"sync"
)

const loopBufferSize = 256

// homeLoop is the single goroutine that owns all subscriber queues. Every
// queue mutation either happens on this goroutine or is marshaled onto it
// via Post, so no two enqueues ever race.
//
// A loop handle has three observable states: absent (no handle recorded in
// the registry yet), active, and stopped (done is closed). Post reports
// false once the loop has stopped.
type homeLoop struct {
	cmdCh    chan func()
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newHomeLoop() *homeLoop {
	l := &homeLoop{
		cmdCh: make(chan func(), loopBufferSize),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *homeLoop) run() {
	defer close(l.done)
	for {
		select {
		case fn := <-l.cmdCh:
			l.invoke(fn)
		case <-l.quit:
			// Drain work already posted before the stop, so queued close
			// sentinels still reach their streams.
			for {
				select {
				case fn := <-l.cmdCh:
					l.invoke(fn)
				default:
					return
				}
			}
		}
	}
}

func (l *homeLoop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Home loop task panic recovered", "panic", r)
		}
	}()
	fn()
}

// Post schedules fn to run exactly once, later, on the loop goroutine.
// It is safe from any goroutine and reports false if the loop has stopped.
func (l *homeLoop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.cmdCh <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Stop shuts the loop down after draining already-posted work.
func (l *homeLoop) Stop() {
	l.stopOnce.Do(func() {
		close(l.quit)
	})
	<-l.done
}

func (l *homeLoop) stopped() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}
