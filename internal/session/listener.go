package session

import (
	"sync"

	"github.com/duskfetch/dlengine/internal/model"
	"github.com/duskfetch/dlengine/internal/utils"
)

// Listener receives lifecycle notifications for every handle the engine
// manages. Every method is optional to implement meaningfully; embed
// NoopListener to only override the events a caller cares about.
type Listener interface {
	OnQueued(handle model.Handle)
	OnStarted(handle model.Handle)
	OnProgress(handle model.Handle, progress model.Progress)
	OnPaused(handle model.Handle)
	OnResumed(handle model.Handle)
	OnRetry(handle model.Handle, attempt int, err *model.DownloadError)
	OnCompleted(handle model.Handle, path string)
	OnFailed(handle model.Handle, err *model.DownloadError)
	OnCancelled(handle model.Handle)
}

// NoopListener implements Listener with every method a no-op, so callers
// can embed it and override only the events they need.
type NoopListener struct{}

func (NoopListener) OnQueued(model.Handle)                                {}
func (NoopListener) OnStarted(model.Handle)                               {}
func (NoopListener) OnProgress(model.Handle, model.Progress)              {}
func (NoopListener) OnPaused(model.Handle)                                {}
func (NoopListener) OnResumed(model.Handle)                               {}
func (NoopListener) OnRetry(model.Handle, int, *model.DownloadError)      {}
func (NoopListener) OnCompleted(model.Handle, string)                     {}
func (NoopListener) OnFailed(model.Handle, *model.DownloadError)          {}
func (NoopListener) OnCancelled(model.Handle)                             {}

// broadcaster fans one event out to every registered listener. Listeners
// can be added while events are in flight from other goroutines (a
// download's retry driver runs independently of the caller adding more
// listeners), so every access goes through mu rather than relying on the
// caller to serialize AddListener against Enqueue.
type broadcaster struct {
	mu        sync.RWMutex
	listeners []Listener
}

func (b *broadcaster) add(l Listener) {
	b.mu.Lock()
	b.listeners = append(b.listeners, l)
	b.mu.Unlock()
}

func (b *broadcaster) snapshot() []Listener {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Listener, len(b.listeners))
	copy(out, b.listeners)
	return out
}

// safeguard runs fn and swallows any panic it raises, logging it instead of
// letting it unwind into the retry driver's goroutine. One misbehaving
// listener must not take every other in-flight download down with it.
func safeguard(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log := utils.GetLogger("session")
			log.Error().Interface("panic", r).Msg("listener panicked, ignoring")
		}
	}()
	fn()
}

func (b *broadcaster) queued(h model.Handle) {
	for _, l := range b.snapshot() {
		safeguard(func() { l.OnQueued(h) })
	}
}
func (b *broadcaster) started(h model.Handle) {
	for _, l := range b.snapshot() {
		safeguard(func() { l.OnStarted(h) })
	}
}
func (b *broadcaster) progress(h model.Handle, p model.Progress) {
	for _, l := range b.snapshot() {
		safeguard(func() { l.OnProgress(h, p) })
	}
}
func (b *broadcaster) paused(h model.Handle) {
	for _, l := range b.snapshot() {
		safeguard(func() { l.OnPaused(h) })
	}
}
func (b *broadcaster) resumed(h model.Handle) {
	for _, l := range b.snapshot() {
		safeguard(func() { l.OnResumed(h) })
	}
}
func (b *broadcaster) retry(h model.Handle, attempt int, err *model.DownloadError) {
	for _, l := range b.snapshot() {
		safeguard(func() { l.OnRetry(h, attempt, err) })
	}
}
func (b *broadcaster) completed(h model.Handle, path string) {
	for _, l := range b.snapshot() {
		safeguard(func() { l.OnCompleted(h, path) })
	}
}
func (b *broadcaster) failed(h model.Handle, err *model.DownloadError) {
	for _, l := range b.snapshot() {
		safeguard(func() { l.OnFailed(h, err) })
	}
}
func (b *broadcaster) cancelled(h model.Handle) {
	for _, l := range b.snapshot() {
		safeguard(func() { l.OnCancelled(h) })
	}
}
