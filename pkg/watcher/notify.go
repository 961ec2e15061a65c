package watcher

import (
	"sync"

	"github.com/rjeczalik/notify"
)

// notifyBackend watches directories with rjeczalik/notify. Every directory
// gets its own watch point so it can be stopped on its own.
type notifyBackend struct {
	out  chan<- rawEvent
	stop <-chan struct{}

	mu     sync.Mutex
	points map[string]*watchPoint
}

type watchPoint struct {
	ch   chan notify.EventInfo
	done chan struct{}
}

func newNotifyBackend(out chan<- rawEvent, stop <-chan struct{}) *notifyBackend {
	return &notifyBackend{
		out:    out,
		stop:   stop,
		points: make(map[string]*watchPoint),
	}
}

func (b *notifyBackend) add(dir string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.points[dir]; ok {
		return nil
	}

	wp := &watchPoint{
		ch:   make(chan notify.EventInfo, 1<<10),
		done: make(chan struct{}),
	}
	if err := notify.Watch(dir, wp.ch, notify.All); err != nil {
		return err
	}

	go b.forward(wp)
	b.points[dir] = wp
	return nil
}

func (b *notifyBackend) forward(wp *watchPoint) {
	for {
		select {
		case <-wp.done:
			return
		case <-b.stop:
			return
		case ei := <-wp.ch:
			op, ok := fromNotify(ei.Event())
			if !ok {
				continue
			}

			select {
			case b.out <- rawEvent{path: ei.Path(), op: op}:
			case <-wp.done:
				return
			case <-b.stop:
				return
			}
		}
	}
}

func (b *notifyBackend) remove(dir string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	wp, ok := b.points[dir]
	if !ok {
		return nil
	}

	notify.Stop(wp.ch)
	close(wp.done)
	delete(b.points, dir)
	return nil
}

func (b *notifyBackend) close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for dir, wp := range b.points {
		notify.Stop(wp.ch)
		close(wp.done)
		delete(b.points, dir)
	}
	return nil
}

// fromNotify converts a notify event to our Op type.
func fromNotify(e notify.Event) (Op, bool) {
	switch {
	case e&notify.Create != 0:
		return OpCreate, true
	case e&notify.Write != 0:
		return OpWrite, true
	case e&notify.Remove != 0:
		return OpRemove, true
	case e&notify.Rename != 0:
		return OpRename, true
	default:
		return 0, false
	}
}
