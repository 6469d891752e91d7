// Package progress merges per-chunk byte deltas into a smoothed rate,
// percent-complete, and remaining-bytes estimate, throttling how often
// listeners actually get notified.
package progress

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/duskfetch/dlengine/internal/model"
)

const (
	minEmissionInterval = 200 * time.Millisecond
	minBytesStep        = 24 * 1024
	ewmaAlpha           = 0.6
)

// Aggregator owns the running byte counter for one session and decides
// when a Progress value is worth publishing.
type Aggregator struct {
	downloaded    atomic.Uint64
	totalBytes    atomic.Pointer[uint64]
	onEmit        func(model.Progress)
	mu            sync.Mutex
	lastEmission  time.Time
	lastBytes     uint64
	lastRateTime  time.Time
	smoothedRate  float64
	haveRate      bool
}

// NewAggregator seeds the accumulator with bytes already completed before
// this attempt started (from a resumed checkpoint) and wires the callback
// invoked whenever a Progress value should be published to listeners.
func NewAggregator(startOffset uint64, onEmit func(model.Progress)) *Aggregator {
	a := &Aggregator{onEmit: onEmit}
	a.downloaded.Store(startOffset)
	return a
}

// SetTotalBytes publishes the resource's total length exactly once; later
// calls are ignored (double-checked so concurrent fetchers racing to
// discover the length from Content-Range/Content-Length don't clobber
// each other).
func (a *Aggregator) SetTotalBytes(total uint64) {
	if a.totalBytes.Load() != nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.totalBytes.Load() != nil {
		return
	}
	a.totalBytes.Store(&total)
}

// TotalBytes returns the resource length if it has been published yet, or
// nil if it's still unknown.
func (a *Aggregator) TotalBytes() *uint64 {
	return a.totalBytes.Load()
}

// AddBytes records a chunk's byte delta and, if the throttle allows it,
// emits a fresh Progress value.
func (a *Aggregator) AddBytes(chunkIndex uint32, n uint64) {
	downloaded := a.downloaded.Add(n)
	a.maybeEmit(chunkIndex, downloaded, false)
}

// Flush forces an emission regardless of the throttle, used when a chunk
// or the whole download completes.
func (a *Aggregator) Flush(chunkIndex uint32) {
	a.maybeEmit(chunkIndex, a.downloaded.Load(), true)
}

func (a *Aggregator) maybeEmit(chunkIndex uint32, downloaded uint64, force bool) {
	total := a.totalBytes.Load()

	a.mu.Lock()
	now := time.Now()
	elapsedSinceEmit := now.Sub(a.lastEmission)
	bytesSinceEmit := downloaded - a.lastBytes
	percentDone := total != nil && *total > 0 && downloaded*100/(*total) >= 100

	shouldEmit := force ||
		total == nil ||
		elapsedSinceEmit >= minEmissionInterval ||
		bytesSinceEmit >= minBytesStep ||
		percentDone

	if !shouldEmit {
		a.mu.Unlock()
		return
	}

	rate := a.updateRateLocked(now, downloaded)
	a.lastEmission = now
	a.lastBytes = downloaded
	a.mu.Unlock()

	a.onEmit(buildProgress(chunkIndex, downloaded, total, rate))
}

// updateRateLocked computes the EWMA-smoothed byte rate; caller holds a.mu.
func (a *Aggregator) updateRateLocked(now time.Time, downloaded uint64) *float64 {
	if a.lastRateTime.IsZero() {
		a.lastRateTime = now
		return nil
	}
	elapsed := now.Sub(a.lastRateTime).Seconds()
	if elapsed <= 0 {
		if a.haveRate {
			r := a.smoothedRate
			return &r
		}
		return nil
	}
	sample := float64(downloaded-a.lastBytes) / elapsed
	if !a.haveRate {
		a.smoothedRate = sample
		a.haveRate = true
	} else {
		a.smoothedRate = ewmaAlpha*sample + (1-ewmaAlpha)*a.smoothedRate
	}
	a.lastRateTime = now
	r := a.smoothedRate
	return &r
}

func buildProgress(chunkIndex uint32, downloaded uint64, total *uint64, rate *float64) model.Progress {
	p := model.Progress{
		BytesDownloaded: downloaded,
		ChunkIndex:      chunkIndex,
		BytesPerSecond:  rate,
	}
	if total != nil {
		t := *total
		p.TotalBytes = &t
		var remaining uint64
		if downloaded < t {
			remaining = t - downloaded
		}
		p.RemainingBytes = &remaining
		percent := float64(downloaded) * 100 / float64(t)
		if percent > 100 {
			percent = 100
		}
		if percent < 0 {
			percent = 0
		}
		p.Percent = &percent
	}
	return p
}
