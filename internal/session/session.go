package session

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/duskfetch/dlengine/internal/model"
)

// entry is the engine's private bookkeeping for one handle. Every mutable
// field is guarded by mu; the retry driver goroutine and the public
// Pause/Resume/Stop methods both reach into it concurrently.
type entry struct {
	mu sync.Mutex

	handle     model.Handle
	request    model.Request
	resolution model.StorageResolution
	cfg        model.Config
	autoNamed  bool

	reason      model.SessionReason
	cancel      context.CancelFunc
	file        *os.File
	totalBytes  int64
	chunkStates map[uint32]model.ChunkState
	completed   uint64
	started     bool

	scheduledTimer *time.Timer
	done           chan struct{}
}

func newEntry(handle model.Handle, req model.Request, cfg model.Config) *entry {
	return &entry{
		handle:      handle,
		request:     req,
		cfg:         cfg,
		reason:      model.ReasonRunning,
		chunkStates: make(map[uint32]model.ChunkState),
		done:        make(chan struct{}),
	}
}

func (e *entry) setReason(r model.SessionReason) {
	e.mu.Lock()
	e.reason = r
	e.mu.Unlock()
}

func (e *entry) getReason() model.SessionReason {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reason
}

// markStarted reports whether this is the first time the handle has ever
// begun running, so onStarted fires at most once across an entire
// pause/resume lifecycle rather than once per resume.
func (e *entry) markStarted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return false
	}
	e.started = true
	return true
}

// snapshotChunkStates copies the current chunk state table for persistence.
func (e *entry) snapshotChunkStates() []model.ChunkState {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.ChunkState, 0, len(e.chunkStates))
	for _, st := range e.chunkStates {
		out = append(out, st)
	}
	return out
}

func (e *entry) recordState(st model.ChunkState) {
	e.mu.Lock()
	prev, existed := e.chunkStates[st.Index]
	e.chunkStates[st.Index] = st
	if existed {
		e.completed += st.CompletedBytes() - prev.CompletedBytes()
	} else {
		e.completed += st.CompletedBytes()
	}
	e.mu.Unlock()
}

// resumeOffset returns the byte a fresh attempt should resume from when
// the resource's total length is unknown, where the chunk planner can't
// slice ranges and instead needs a single starting point: the least
// progress recorded across all chunks (there's only ever one, index 0, in
// that case, but this stays correct if that ever changes).
func (e *entry) resumeOffset() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	var min *uint64
	for _, st := range e.chunkStates {
		v := st.NextOffset
		if min == nil || v < *min {
			min = &v
		}
	}
	if min == nil {
		return 0
	}
	return *min
}
