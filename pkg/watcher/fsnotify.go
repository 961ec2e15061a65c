package watcher

import (
	"github.com/fsnotify/fsnotify"
)

// fsnotifyBackend watches directories with fsnotify.
type fsnotifyBackend struct {
	fsw *fsnotify.Watcher
}

func newFSNotifyBackend(out chan<- rawEvent, errs chan<- error, stop <-chan struct{}) (*fsnotifyBackend, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	b := &fsnotifyBackend{fsw: fsw}
	go b.run(out, errs, stop)

	return b, nil
}

func (b *fsnotifyBackend) run(out chan<- rawEvent, errs chan<- error, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return

		case event, ok := <-b.fsw.Events:
			if !ok {
				return
			}

			op, ok := fromFSNotify(event.Op)
			if !ok {
				continue
			}

			select {
			case out <- rawEvent{path: event.Name, op: op}:
			case <-stop:
				return
			}

		case err, ok := <-b.fsw.Errors:
			if !ok {
				return
			}

			select {
			case errs <- err:
			case <-stop:
				return
			}
		}
	}
}

func (b *fsnotifyBackend) add(dir string) error {
	return b.fsw.Add(dir)
}

func (b *fsnotifyBackend) remove(dir string) error {
	return b.fsw.Remove(dir)
}

func (b *fsnotifyBackend) close() error {
	return b.fsw.Close()
}

// fromFSNotify converts an fsnotify op to our Op type.
func fromFSNotify(op fsnotify.Op) (Op, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate, true
	case op.Has(fsnotify.Write):
		return OpWrite, true
	case op.Has(fsnotify.Remove):
		return OpRemove, true
	case op.Has(fsnotify.Rename):
		return OpRename, true
	case op.Has(fsnotify.Chmod):
		return OpChmod, true
	default:
		return 0, false
	}
}
