package board

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/board3d/board3d/log"
	"github.com/fsnotify/fsnotify"
)

// The default delay used to coalesce bursts of file events.
const DefaultDebounce = 200 * time.Millisecond

// Watcher monitors a board file and invokes a callback after it changes.
//
// The parent directory is watched instead of the file itself so that editors
// that replace files through a rename are handled too.
type Watcher struct {
	logger   log.Logger
	watcher  *fsnotify.Watcher
	file     string
	debounce time.Duration
	onChange func(path string)

	mutex sync.Mutex
	timer *time.Timer
	done  chan struct{}
	wg    sync.WaitGroup
}

// Start watching path. The onChange callback is invoked from a background
// goroutine once no further events arrive for the debounce interval.
func Watch(path string, debounce time.Duration, onChange func(path string)) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err = fw.Add(filepath.Dir(absPath)); err != nil {
		fw.Close()
		return nil, err
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		logger:   log.New("board watcher"),
		watcher:  fw,
		file:     absPath,
		debounce: debounce,
		onChange: onChange,
		done:     make(chan struct{}),
	}

	w.wg.Add(1)
	go w.loop()

	w.logger.Infof("watching %s for changes", absPath)
	return w, nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.file {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debugf("%s: %s", event.Op, event.Name)
			w.schedule()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warningf("watch error: %v", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) schedule() {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.done:
			return
		default:
		}
		w.onChange(w.file)
	})
}

// Stop watching and release the underlying watcher.
func (w *Watcher) Close() error {
	w.mutex.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mutex.Unlock()

	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
