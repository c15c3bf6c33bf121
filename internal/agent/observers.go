package agent

import (
	"sync"
	"sync/atomic"
)

// observer is one registered callback. active is cleared on unsubscribe so
// a notification already in progress skips it.
type observer struct {
	fn     func()
	active atomic.Bool
}

// observers is a list of callbacks invoked synchronously after each
// committed state transition.
type observers struct {
	mu   sync.RWMutex
	list []*observer
}

// add registers fn and returns an idempotent unsubscribe function.
func (o *observers) add(fn func()) func() {
	ob := &observer{fn: fn}
	ob.active.Store(true)

	o.mu.Lock()
	o.list = append(o.list, ob)
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			ob.active.Store(false)
			o.mu.Lock()
			defer o.mu.Unlock()
			for i, cur := range o.list {
				if cur == ob {
					o.list = append(o.list[:i:i], o.list[i+1:]...)
					break
				}
			}
		})
	}
}

// notify calls every active observer. It iterates over a copy, so callbacks
// may subscribe or unsubscribe freely.
func (o *observers) notify() {
	o.mu.RLock()
	list := make([]*observer, len(o.list))
	copy(list, o.list)
	o.mu.RUnlock()

	for _, ob := range list {
		if ob.active.Load() {
			ob.fn()
		}
	}
}

func (o *observers) len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.list)
}
