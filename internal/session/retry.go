package session

import (
	"context"
	"os"
	"time"

	"github.com/duskfetch/dlengine/internal/fetch"
	"github.com/duskfetch/dlengine/internal/integrity"
	"github.com/duskfetch/dlengine/internal/model"
	"github.com/duskfetch/dlengine/internal/planner"
	"github.com/duskfetch/dlengine/internal/progress"
	"github.com/duskfetch/dlengine/internal/storage"
	"github.com/duskfetch/dlengine/internal/utils"
)

const checkpointFlushInterval = 100 * time.Millisecond

// run is the retry/backoff state machine described in the component
// design: it repeats attempts until success, a terminal error kind, or a
// pause/stop request, backing off between network retries and restarting
// from byte zero after an integrity failure.
func (m *Manager) run(ctx context.Context, e *entry) {
	log := utils.GetLogger("session")
	defer close(e.done)

	if e.markStarted() {
		m.bc.started(e.handle)
	}

	attempt := 0
	delay := time.Duration(e.cfg.Retry.InitialDelayMs) * time.Millisecond
	const minDelay = time.Second

	for {
		attempt++
		err := m.runAttempt(ctx, e)
		if err == nil {
			m.finishCompleted(e)
			return
		}

		reason := e.getReason()
		if reason == model.ReasonPauseRequested {
			m.finishPaused(e)
			return
		}
		if reason == model.ReasonStopRequested {
			m.finishCancelled(e)
			return
		}

		derr, ok := err.(*model.DownloadError)
		if !ok {
			derr = model.NewPermanentError(err.Error(), err)
		}

		switch derr.Kind {
		case model.KindNetwork:
			if attempt >= e.cfg.Retry.MaxAttempts {
				m.finishFailed(e, derr)
				return
			}
			m.bc.retry(e.handle, attempt, derr)
			log.Debug().Str("handle", e.handle.ID).Int("attempt", attempt).Dur("delay", delay).Msg("retrying after network error")
			if !sleepOrCancelled(ctx, delay) {
				m.finishCancelled(e)
				return
			}
			delay = time.Duration(float64(delay) * e.cfg.Retry.BackoffMultiplier)
			if delay < minDelay {
				delay = minDelay
			}

		case model.KindIntegrity:
			if attempt >= e.cfg.Retry.MaxAttempts {
				m.finishFailed(e, derr)
				return
			}
			m.bc.retry(e.handle, attempt, derr)
			log.Debug().Str("handle", e.handle.ID).Int("attempt", attempt).Msg("restarting from zero after integrity failure")
			if rmErr := os.Remove(e.resolution.File); rmErr != nil && !os.IsNotExist(rmErr) {
				log.Warn().Err(rmErr).Str("file", e.resolution.File).Msg("failed to delete corrupt file before retry")
			}
			e.mu.Lock()
			e.chunkStates = make(map[uint32]model.ChunkState)
			e.completed = 0
			e.mu.Unlock()
			if !sleepOrCancelled(ctx, delay) {
				m.finishCancelled(e)
				return
			}
			delay = time.Duration(float64(delay) * e.cfg.Retry.BackoffMultiplier)
			if delay < minDelay {
				delay = minDelay
			}

		default: // Storage, Permanent, Cancelled
			m.finishFailed(e, derr)
			return
		}
	}
}

func sleepOrCancelled(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// runAttempt runs one full pass: probe length, plan chunks, fetch them all,
// and verify integrity. A cancelled context during fetch surfaces as a
// Cancelled error which run() interprets using the reason flag set before
// cancellation was requested.
func (m *Manager) runAttempt(ctx context.Context, e *entry) error {
	log := utils.GetLogger("session")

	head, err := m.adapter.Head(ctx, e.request.URL, e.request.Headers)
	if err != nil {
		return err
	}

	if e.autoNamed && len(e.snapshotChunkStates()) == 0 {
		if better := filenameFromContentDisposition(head.Headers.Get("Content-Disposition")); better != "" && better != e.request.FileName {
			renamed := e.request
			renamed.FileName = better
			if resolution, err := storage.Resolve(e.cfg.Storage, renamed, false); err == nil {
				e.request = renamed
				e.resolution = resolution
			}
		}
	}

	var totalBytes int64 = -1
	if head.Length != nil {
		totalBytes = int64(*head.Length)
		if e.cfg.Storage.ValidateFreeSpace {
			storage.Preallocate(e.resolution.File, totalBytes)
		}
	}
	e.mu.Lock()
	e.totalBytes = totalBytes
	e.mu.Unlock()

	file, err := os.OpenFile(e.resolution.File, os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return model.NewStorageError("failed to open destination file: " + err.Error())
	}
	e.file = file
	defer file.Close()

	priorStates := e.snapshotChunkStates()
	var priorPtr []model.ChunkState
	if len(priorStates) > 0 {
		priorPtr = priorStates
	}
	plans := planner.Plan(totalBytes, e.cfg.Chunking, e.resumeOffset(), priorPtr)
	log.Debug().Str("handle", e.handle.ID).Int("chunks", len(plans)).Msg("planned chunks for attempt")

	agg := progress.NewAggregator(e.completed, func(p model.Progress) {
		m.bc.progress(e.handle, p)
	})
	if totalBytes > 0 {
		agg.SetTotalBytes(uint64(totalBytes))
	}

	stopFlush := m.startCheckpointFlusher(e)
	defer stopFlush()

	err = fetch.RunAll(ctx, m.adapter, file, agg, e.recordState, e.request.URL, e.request.Headers, plans, e.cfg.Chunking)
	if err != nil {
		return err
	}

	if totalBytes <= 0 {
		if discovered := agg.TotalBytes(); discovered != nil {
			totalBytes = int64(*discovered)
			e.mu.Lock()
			e.totalBytes = totalBytes
			e.mu.Unlock()
		}
	}

	if syncErr := file.Sync(); syncErr != nil {
		return model.NewStorageError("failed to flush destination file: " + syncErr.Error())
	}
	file.Close()

	result := m.verify(e)
	if !result.OK {
		return model.NewIntegrityError(result.Errors)
	}
	return nil
}

func (m *Manager) verify(e *entry) integrity.Result {
	opts := integrity.Options{
		RequireSignature:  e.cfg.Integrity.VerifySignature,
		CheckArchiveShape: e.cfg.Integrity.VerifyArchiveStructure,
	}
	if e.cfg.Integrity.VerifyFileSize && e.totalBytes > 0 {
		t := uint64(e.totalBytes)
		opts.ExpectedSize = &t
	}
	if e.cfg.Integrity.VerifyChecksum && e.request.ExpectedChecksum != "" {
		opts.ExpectedChecksum = e.request.ExpectedChecksum
		opts.ChecksumAlgo = e.request.ChecksumAlgorithm
	}
	if e.cfg.Integrity.VerifyContentType && e.request.ExpectedMediaType != "" {
		opts.ExpectedMediaType = e.request.ExpectedMediaType
	}
	return integrity.Verify(e.resolution.File, opts)
}

// startCheckpointFlusher runs a background loop that coalesces chunk-state
// updates into a paused snapshot write at most every checkpointFlushInterval,
// so a crash loses at most that much resume progress.
func (m *Manager) startCheckpointFlusher(e *entry) func() {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(checkpointFlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.store.SavePausedSnapshot(e.snapshotFor())
			case <-stop:
				return
			}
		}
	}()
	return func() { close(stop) }
}

func (e *entry) snapshotFor() model.PausedSnapshot {
	return model.PausedSnapshot{
		HandleID:       e.handle.ID,
		Request:        e.request,
		Resolution:     e.resolution,
		CompletedBytes: e.completed,
		ChunkStates:    e.snapshotChunkStates(),
	}
}

func (m *Manager) finishCompleted(e *entry) {
	m.store.RemovePausedSnapshot(e.handle.ID)
	m.forget(e.handle.ID)
	m.bc.completed(e.handle, e.resolution.File)
}

func (m *Manager) finishFailed(e *entry, derr *model.DownloadError) {
	m.store.RemovePausedSnapshot(e.handle.ID)
	m.forget(e.handle.ID)
	m.bc.failed(e.handle, derr)
}

func (m *Manager) finishCancelled(e *entry) {
	m.store.RemovePausedSnapshot(e.handle.ID)
	m.forget(e.handle.ID)
	m.bc.cancelled(e.handle)
}

func (m *Manager) finishPaused(e *entry) {
	m.store.SavePausedSnapshot(e.snapshotFor())
	m.forget(e.handle.ID)
	m.bc.paused(e.handle)
}
