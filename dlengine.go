// Package dlengine is the resumable, chunked HTTP download engine's public
// surface: create an Engine, enqueue requests against it, and observe their
// lifecycle through a Listener. Everything else lives under internal/ and
// is reachable only through this facade.
package dlengine

import (
	"time"

	"github.com/duskfetch/dlengine/internal/checkpoint"
	"github.com/duskfetch/dlengine/internal/model"
	"github.com/duskfetch/dlengine/internal/session"
	"github.com/duskfetch/dlengine/internal/transport"
)

// Domain types re-exported so callers never import internal/model
// directly. Aliases keep this a zero-cost facade.
type (
	Request            = model.Request
	Config             = model.Config
	Chunking           = model.Chunking
	RetryPolicy        = model.RetryPolicy
	StorageConfig      = model.StorageConfig
	IntegrityConfig    = model.IntegrityConfig
	Destination        = model.Destination
	Handle             = model.Handle
	StorageResolution  = model.StorageResolution
	Progress           = model.Progress
	Status             = model.Status
	StatusKind         = model.StatusKind
	DownloadError      = model.DownloadError
	ErrorKind          = model.ErrorKind
	ChecksumAlgorithm  = model.ChecksumAlgorithm
	Listener           = session.Listener
	NoopListener       = session.NoopListener
)

// Status kind and error kind constants, re-exported for callers matching
// on them without importing internal/model.
const (
	StatusQueued    = model.StatusQueued
	StatusRunning   = model.StatusRunning
	StatusCompleted = model.StatusCompleted
	StatusFailed    = model.StatusFailed
	StatusCancelled = model.StatusCancelled

	KindNetwork   = model.KindNetwork
	KindIntegrity = model.KindIntegrity
	KindStorage   = model.KindStorage
	KindPermanent = model.KindPermanent
	KindCancelled = model.KindCancelled

	ChecksumMD5    = model.ChecksumMD5
	ChecksumSHA256 = model.ChecksumSHA256
	ChecksumSHA512 = model.ChecksumSHA512
)

// Destination constructors, re-exported unchanged.
var (
	AutoDestination   = model.AutoDestination
	CustomDestination = model.CustomDestination
	ScopedDestination = model.ScopedDestination
)

// DefaultConfig returns the engine's out-of-the-box configuration.
func DefaultConfig() Config {
	return model.DefaultConfig()
}

// httpTimeout bounds every request the engine's default transport issues,
// including the body of a chunk's GET, not just connection setup.
const httpTimeout = 10 * time.Minute

// Engine is the entry point: construct one with New, then Enqueue,
// Schedule, Pause, Resume, and Stop downloads against it.
type Engine struct {
	m *session.Manager
}

// New builds an Engine backed by a real HTTP transport and a checkpoint
// store rooted at stateDir. stateDir is created if it doesn't exist.
func New(cfg Config, stateDir string) *Engine {
	adapter := transport.NewHTTPAdapter(httpTimeout)
	store := checkpoint.NewStore(stateDir)
	return &Engine{m: session.NewManager(cfg, adapter, store)}
}

// AddListener registers a lifecycle observer. Call this before the first
// Enqueue/Resume if the listener must not miss early events.
func (e *Engine) AddListener(l Listener) {
	e.m.AddListener(l)
}

// PreviewDestination resolves where a request would be saved without
// creating or overwriting anything on disk.
func (e *Engine) PreviewDestination(req Request) (StorageResolution, error) {
	return e.m.PreviewDestination(req)
}

// Enqueue admits a request and starts downloading it immediately.
func (e *Engine) Enqueue(req Request) (Handle, error) {
	return e.m.Enqueue(req)
}

// Schedule admits a request that starts at the given time.
func (e *Engine) Schedule(req Request, at time.Time) Handle {
	return e.m.Schedule(req, at)
}

// CancelScheduled aborts a Schedule call that hasn't started yet.
func (e *Engine) CancelScheduled(handleID string) {
	e.m.CancelScheduled(handleID)
}

// Pause stops a running download and persists a snapshot Resume can pick
// back up.
func (e *Engine) Pause(handleID string) error {
	return e.m.Pause(handleID)
}

// Resume restarts a handle from its last paused snapshot.
func (e *Engine) Resume(handleID string) error {
	return e.m.Resume(handleID)
}

// Stop permanently cancels a running or paused download.
func (e *Engine) Stop(handleID string) error {
	return e.m.Stop(handleID)
}

// PausedDownload is a durable, resumable snapshot of one handle's progress.
type PausedDownload = model.PausedSnapshot

// ListPaused returns every handle currently paused on disk.
func (e *Engine) ListPaused() []PausedDownload {
	return e.m.ListPaused()
}
