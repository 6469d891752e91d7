// Package session is the engine's orchestrator: it owns every in-flight
// download's lifecycle, drives the retry/backoff state machine described
// in the component design, coalesces chunk progress into checkpoint
// writes, and fans lifecycle events out to registered listeners.
package session

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/duskfetch/dlengine/internal/checkpoint"
	"github.com/duskfetch/dlengine/internal/model"
	"github.com/duskfetch/dlengine/internal/storage"
	"github.com/duskfetch/dlengine/internal/transport"
	"github.com/duskfetch/dlengine/internal/utils"
)

var filenameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_\-\. ]+`)

// Manager is the concrete engine: the single object a caller constructs to
// enqueue, pause, resume, stop, and schedule downloads.
type Manager struct {
	mu       sync.Mutex
	cfg      model.Config
	store    *checkpoint.Store
	adapter  transport.Adapter
	bc       *broadcaster
	sessions map[string]*entry
}

// NewManager builds an engine around a shared transport adapter and
// checkpoint store, using cfg (normalized) as the configuration for every
// request it runs.
func NewManager(cfg model.Config, adapter transport.Adapter, store *checkpoint.Store) *Manager {
	m := &Manager{
		cfg:      cfg.Normalize(),
		store:    store,
		adapter:  adapter,
		bc:       &broadcaster{},
		sessions: make(map[string]*entry),
	}
	store.SaveConfig(m.cfg)
	log := utils.GetLogger("session")
	log.Debug().Int("chunkCount", m.cfg.Chunking.ChunkCount).Msg("engine initialized")
	return m
}

// AddListener registers a lifecycle observer. It may be called while
// downloads are in flight, but a listener only sees events fired after it
// was added; register listeners before the first Enqueue to see every
// event from the start.
func (m *Manager) AddListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bc.add(l)
}

// PreviewDestination resolves where a request would land without touching
// the filesystem, so a caller can show the user a path before committing.
func (m *Manager) PreviewDestination(req model.Request) (model.StorageResolution, error) {
	req = normalizeRequest(req)
	return storage.Resolve(m.cfg.Storage, req, true)
}

// Enqueue admits a new download, resolves its destination immediately (so
// a storage failure surfaces synchronously), and starts the retry driver
// in the background.
func (m *Manager) Enqueue(req model.Request) (model.Handle, error) {
	autoNamed := req.FileName == ""
	req = normalizeRequest(req)
	handle := model.Handle{ID: req.ID, SourceURL: req.URL}

	m.bc.queued(handle)

	resolution, err := storage.Resolve(m.cfg.Storage, req, false)
	if err != nil {
		m.bc.failed(handle, asDownloadError(err))
		return model.Handle{}, err
	}

	e := newEntry(handle, req, m.cfg)
	e.resolution = resolution
	e.autoNamed = autoNamed

	m.mu.Lock()
	m.sessions[handle.ID] = e
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	go m.run(ctx, e)

	return handle, nil
}

// Schedule delays Enqueue's storage resolution and start until at, useful
// for a batch of downloads a caller wants staggered. CancelScheduled can
// abort it before it fires.
func (m *Manager) Schedule(req model.Request, at time.Time) model.Handle {
	req = normalizeRequest(req)
	handle := model.Handle{ID: req.ID, SourceURL: req.URL}
	e := newEntry(handle, req, m.cfg)

	m.mu.Lock()
	m.sessions[handle.ID] = e
	m.mu.Unlock()

	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}
	e.scheduledTimer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		if _, ok := m.sessions[handle.ID]; !ok {
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()
		// Enqueue already notifies listeners of a resolver failure itself;
		// this call site only needs to drop the placeholder session entry
		// registered above so it doesn't linger as an unstoppable handle.
		if _, err := m.Enqueue(req); err != nil {
			m.forget(handle.ID)
		}
	})
	return handle
}

// CancelScheduled aborts a Schedule call that hasn't fired yet. It is a
// no-op if the handle already started or doesn't exist.
func (m *Manager) CancelScheduled(handleID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[handleID]
	if ok && e.scheduledTimer != nil && e.scheduledTimer.Stop() {
		delete(m.sessions, handleID)
	}
}

// Pause requests a session stop its in-flight work and persist a resumable
// snapshot. It returns an error for a handle with no in-memory session
// (never enqueued, already finished, or already paused).
func (m *Manager) Pause(handleID string) error {
	e, ok := m.lookup(handleID)
	if !ok {
		return fmt.Errorf("no such handle: %s", handleID)
	}
	e.setReason(model.ReasonPauseRequested)
	if e.cancel != nil {
		e.cancel()
	}
	return nil
}

// Resume restarts a paused (or crash-recovered) handle from its last
// checkpoint.
func (m *Manager) Resume(handleID string) error {
	snap, ok := m.store.LoadPausedSnapshot(handleID)
	if !ok {
		return fmt.Errorf("no paused snapshot for handle: %s", handleID)
	}

	e := newEntry(model.Handle{ID: snap.HandleID, SourceURL: snap.Request.URL}, snap.Request, m.cfg)
	e.resolution = snap.Resolution
	// A paused snapshot only exists for a handle that has already run, so
	// onStarted has already fired for it.
	e.started = true
	for _, st := range snap.ChunkStates {
		e.chunkStates[st.Index] = st
	}
	e.completed = snap.CompletedBytes

	m.mu.Lock()
	m.sessions[e.handle.ID] = e
	listeners := m.bc
	m.mu.Unlock()

	listeners.resumed(e.handle)
	m.store.RemovePausedSnapshot(handleID)

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	go m.run(ctx, e)
	return nil
}

// Stop permanently cancels a handle; unlike Pause it does not leave a
// resumable checkpoint that Resume will pick up automatically. A handle
// that is currently paused (and so has no in-memory entry) is stopped by
// discarding its checkpoint snapshot directly.
func (m *Manager) Stop(handleID string) error {
	e, ok := m.lookup(handleID)
	if !ok {
		if _, found := m.store.LoadPausedSnapshot(handleID); !found {
			return fmt.Errorf("no such handle: %s", handleID)
		}
		m.store.RemovePausedSnapshot(handleID)
		return nil
	}
	e.setReason(model.ReasonStopRequested)
	if e.cancel != nil {
		e.cancel()
	}
	return nil
}

// ListPaused returns every handle currently paused on disk.
func (m *Manager) ListPaused() []model.PausedSnapshot {
	return m.store.LoadAllPausedSnapshots()
}

func (m *Manager) lookup(handleID string) (*entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[handleID]
	return e, ok
}

func (m *Manager) forget(handleID string) {
	m.mu.Lock()
	delete(m.sessions, handleID)
	m.mu.Unlock()
}

// asDownloadError passes an already-classified error through to listeners
// unchanged, only wrapping it as a generic storage error when it isn't one
// of ours (e.g. os.MkdirAll failing outside the resolver's own checks).
// storage.Resolve already returns *model.DownloadError for every failure
// it detects, so re-wrapping unconditionally would double the "kind:
// message" prefix listeners see in OnFailed.
func asDownloadError(err error) *model.DownloadError {
	var derr *model.DownloadError
	if errors.As(err, &derr) {
		return derr
	}
	return model.NewStorageError(err.Error())
}

// normalizeRequest fills a blank FileName from the URL path, the way a
// download manager derives one when the caller doesn't supply it.
func normalizeRequest(req model.Request) model.Request {
	req = model.NewRequest(req)
	if req.FileName == "" {
		req.FileName = deriveFileName(req.URL)
	}
	return req
}

func deriveFileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "download"
	}
	base := path.Base(u.Path)
	if base == "" || base == "." || base == "/" {
		return "download"
	}
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	return filenameSanitizer.ReplaceAllString(base, "_")
}

// filenameFromContentDisposition mirrors the header-driven filename
// detection a HEAD probe can use to override a URL-derived name.
func filenameFromContentDisposition(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	if fn, ok := params["filename"]; ok && fn != "" {
		return filenameSanitizer.ReplaceAllString(fn, "_")
	}
	if fn, ok := params["filename*"]; ok && fn != "" {
		if rest, found := strings.CutPrefix(fn, "UTF-8''"); found {
			if unescaped, err := url.PathUnescape(rest); err == nil {
				return filenameSanitizer.ReplaceAllString(unescaped, "_")
			}
		}
	}
	return ""
}
