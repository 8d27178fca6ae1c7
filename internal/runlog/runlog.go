// Package runlog implements the optional run logger (§4.11): an
// append-only JSONL sink that subscribes to the event bus and writes one
// line per event to {dir}/{session}/{run}.jsonl, demonstrating the
// crash-resilient observability story that the distilled spec only
// implies via "structured log events".
//
// Grounded on original_source/crates/ryvos-agent/src/run_log.rs.
package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Ryvos/ryvos-sub000/internal/eventbus"
	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

// Logger subscribes to an eventbus.Bus and appends every event it sees as
// one JSON line to a per-run file. Call Close to flush and stop.
type Logger struct {
	dir  string
	sub  *eventbus.Subscription
	done chan struct{}

	mu    sync.Mutex
	files map[string]*os.File // keyed by session/run
}

// Open creates a Logger writing under baseDir, and starts draining sub in
// a background goroutine until Close is called.
func Open(baseDir string, sub *eventbus.Subscription) *Logger {
	l := &Logger{
		dir:   baseDir,
		sub:   sub,
		done:  make(chan struct{}),
		files: make(map[string]*os.File),
	}
	go l.run()
	return l
}

func (l *Logger) run() {
	for ev := range l.sub.Events() {
		if err := l.write(ev); err != nil {
			// A single bad event must not take down the logger; the next
			// event still gets a chance to be written.
			continue
		}
	}
	close(l.done)
}

func (l *Logger) write(ev models.AgentEvent) error {
	f, err := l.fileFor(ev.SessionID, ev.RunID)
	if err != nil {
		return err
	}
	line, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = f.Write(append(line, '\n'))
	return err
}

func (l *Logger) fileFor(sessionID, runID string) (*os.File, error) {
	key := sessionID + "/" + runID
	l.mu.Lock()
	defer l.mu.Unlock()

	if f, ok := l.files[key]; ok {
		return f, nil
	}

	dir := filepath.Join(l.dir, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("runlog: creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, runID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("runlog: opening %s: %w", path, err)
	}
	l.files[key] = f
	return f, nil
}

// Close unsubscribes from the bus, waits for the drain goroutine to
// finish, and closes every open file.
func (l *Logger) Close() error {
	l.sub.Unsubscribe()
	<-l.done

	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
