package query

import (
	"errors"
	"io/fs"
	"sync"

	"go.uber.org/zap"

	"trupharma/backend/pkg/logger"
)

// LoadState tracks whether the loader has tried to open the graph file
// and what it found
type LoadState int

const (
	// StateNotAttempted means no open has been tried yet
	StateNotAttempted LoadState = iota
	// StateLoaded means the engine is open and cached
	StateLoaded
	// StateAbsent means the graph file was confirmed missing; Get will
	// not retry
	StateAbsent
)

// ErrGraphAbsent is returned by Get once the graph file has been confirmed
// missing
var ErrGraphAbsent = errors.New("knowledge graph database not found")

// Loader is a lazy, cached handle to the query engine. The open is
// attempted at most once: a missing file is remembered as absent rather
// than re-checked on every request, and a successful open is shared by all
// callers.
type Loader struct {
	path string

	mu     sync.Mutex
	state  LoadState
	engine *Engine
	log    *zap.Logger
}

// NewLoader creates a loader for a graph file path. Nothing is opened
// until the first Get.
func NewLoader(path string) *Loader {
	return &Loader{path: path, log: logger.Get()}
}

// State returns the current load state
func (l *Loader) State() LoadState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Get returns the shared engine, opening it on first use. Returns
// ErrGraphAbsent when the graph file does not exist; that outcome is
// cached and Get will keep returning it without touching the filesystem
// again.
func (l *Loader) Get() (*Engine, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateLoaded:
		return l.engine, nil
	case StateAbsent:
		return nil, ErrGraphAbsent
	}

	engine, err := Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.state = StateAbsent
			l.log.Warn("knowledge graph file missing",
				zap.String("path", l.path),
			)
			return nil, ErrGraphAbsent
		}
		// Transient failure: stay NotAttempted so a later Get can retry
		return nil, err
	}

	l.state = StateLoaded
	l.engine = engine
	l.log.Info("knowledge graph loaded", zap.String("path", l.path))
	return engine, nil
}

// Close releases the cached engine, if any, and resets the loader
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.engine != nil {
		err := l.engine.Close()
		l.engine = nil
		l.state = StateNotAttempted
		return err
	}
	l.state = StateNotAttempted
	return nil
}
