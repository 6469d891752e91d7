// Package output renders a live, redrawing terminal view of every handle
// the CLI has enqueued: one line per download, grouped by lifecycle state,
// refreshed on a ticker the way a multi-job progress display works.
package output

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/duskfetch/dlengine/internal/model"
)

// entry is one handle's latest known state, updated by whichever Listener
// callback last fired for it.
type entry struct {
	handle      model.Handle
	name        string
	status      string // "queued", "running", "paused", "success", "error", "cancelled"
	message     string
	percent     float64
	bytesPerSec float64
	haveTotal   bool
	startTime   time.Time
	lastUpdated time.Time
	index       int
}

// Manager owns the live display and doubles as a session.Listener, so a
// CLI command can register it directly with the engine.
type Manager struct {
	mu       sync.RWMutex
	handles  map[string]*entry
	order    int
	numLines int
	doneCh   chan struct{}
	wg       sync.WaitGroup
	tick     time.Duration
}

// NewManager builds a display manager. Call StartDisplay to begin
// redrawing and StopDisplay to print the final summary and stop.
func NewManager() *Manager {
	return &Manager{
		handles: make(map[string]*entry),
		tick:    200 * time.Millisecond,
		doneCh:  make(chan struct{}),
	}
}

func (m *Manager) register(handle model.Handle) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.handles[handle.ID]; ok {
		return e
	}
	m.order++
	e := &entry{handle: handle, name: handle.SourceURL, status: "queued", startTime: time.Now(), lastUpdated: time.Now(), index: m.order}
	m.handles[handle.ID] = e
	return e
}

func (m *Manager) update(handleID string, fn func(*entry)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.handles[handleID]; ok {
		fn(e)
		e.lastUpdated = time.Now()
	}
}

// OnQueued implements session.Listener.
func (m *Manager) OnQueued(h model.Handle) { m.register(h) }

// OnStarted implements session.Listener.
func (m *Manager) OnStarted(h model.Handle) {
	m.register(h)
	m.update(h.ID, func(e *entry) { e.status = "running"; e.message = "starting" })
}

// OnProgress implements session.Listener.
func (m *Manager) OnProgress(h model.Handle, p model.Progress) {
	m.update(h.ID, func(e *entry) {
		e.status = "running"
		if p.BytesPerSecond != nil {
			e.bytesPerSec = *p.BytesPerSecond
		}
		if p.Percent != nil {
			e.percent = *p.Percent
			e.haveTotal = true
			e.message = fmt.Sprintf("%s downloaded", FormatBytes(p.BytesDownloaded))
		} else {
			e.haveTotal = false
			e.message = fmt.Sprintf("%s downloaded (size unknown)", FormatBytes(p.BytesDownloaded))
		}
	})
}

// OnPaused implements session.Listener.
func (m *Manager) OnPaused(h model.Handle) {
	m.update(h.ID, func(e *entry) { e.status = "paused"; e.message = "paused" })
}

// OnResumed implements session.Listener.
func (m *Manager) OnResumed(h model.Handle) {
	m.update(h.ID, func(e *entry) { e.status = "running"; e.message = "resumed" })
}

// OnRetry implements session.Listener.
func (m *Manager) OnRetry(h model.Handle, attempt int, err *model.DownloadError) {
	m.update(h.ID, func(e *entry) { e.message = fmt.Sprintf("retry %d after %s", attempt, err.Kind) })
}

// OnCompleted implements session.Listener.
func (m *Manager) OnCompleted(h model.Handle, path string) {
	m.update(h.ID, func(e *entry) {
		e.status = "success"
		e.percent = 100
		e.message = fmt.Sprintf("saved to %s", path)
	})
}

// OnFailed implements session.Listener.
func (m *Manager) OnFailed(h model.Handle, err *model.DownloadError) {
	m.update(h.ID, func(e *entry) { e.status = "error"; e.message = err.Error() })
}

// OnCancelled implements session.Listener.
func (m *Manager) OnCancelled(h model.Handle) {
	m.update(h.ID, func(e *entry) { e.status = "cancelled"; e.message = "stopped" })
}

func (m *Manager) statusIndicator(status string) string {
	switch status {
	case "success":
		return successStyle.Render(StyleSymbols["pass"])
	case "error":
		return errorStyle.Render(StyleSymbols["fail"])
	case "cancelled":
		return warningStyle.Render(StyleSymbols["warning"])
	case "paused":
		return pendingStyle.Render(StyleSymbols["pending"])
	case "queued":
		return pendingStyle.Render(StyleSymbols["dot"])
	default:
		return infoStyle.Render(StyleSymbols["bullet"])
	}
}

func (m *Manager) sortedEntries() []*entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*entry, 0, len(m.handles))
	for _, e := range m.handles {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].index < out[j].index })
	return out
}

func (m *Manager) redraw() {
	entries := m.sortedEntries()
	availableLines := getTerminalHeight() - 3

	if m.numLines > 0 {
		fmt.Printf("\033[%dA\033[J", m.numLines)
	}

	lineCount := 0
	for _, e := range entries {
		if lineCount >= availableLines {
			break
		}
		indicator := m.statusIndicator(e.status)
		elapsed := e.lastUpdated.Sub(e.startTime).Round(time.Second)
		name := e.name
		if len(name) > 50 {
			name = name[:47] + "..."
		}

		var line string
		switch {
		case e.status == "running" && e.haveTotal:
			line = fmt.Sprintf("  %s %s %s %s (%s)", indicator, name, ProgressBar(e.percent, 24), FormatSpeed(e.bytesPerSec), debugStyle.Render(elapsed.String()))
		case e.status == "running":
			line = fmt.Sprintf("  %s %s %s %s", indicator, name, e.message, debugStyle.Render(elapsed.String()))
		default:
			line = fmt.Sprintf("  %s %s %s", indicator, name, m.styledMessage(e))
		}
		fmt.Println(line)
		lineCount++
	}
	m.numLines = lineCount
}

func (m *Manager) styledMessage(e *entry) string {
	switch e.status {
	case "success":
		return successStyle.Render(e.message)
	case "error":
		return errorStyle.Render(e.message)
	case "cancelled":
		return warningStyle.Render(e.message)
	default:
		return pendingStyle.Render(e.message)
	}
}

// StartDisplay begins the redraw loop in the background.
func (m *Manager) StartDisplay() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.tick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.redraw()
			case <-m.doneCh:
				m.redraw()
				m.showSummary()
				return
			}
		}
	}()
}

// StopDisplay stops the redraw loop and prints a final summary line.
func (m *Manager) StopDisplay() {
	close(m.doneCh)
	m.wg.Wait()
}

func (m *Manager) showSummary() {
	entries := m.sortedEntries()
	var success, failed int
	for _, e := range entries {
		switch e.status {
		case "success":
			success++
		case "error":
			failed++
		}
	}
	fmt.Println()
	fmt.Println(success2Style.Render(fmt.Sprintf("Completed %d of %d", success, len(entries))))
	if failed > 0 {
		fmt.Println(errorStyle.Render(fmt.Sprintf("Failed %d of %d", failed, len(entries))))
	}
}
