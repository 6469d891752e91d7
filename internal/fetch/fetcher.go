// Package fetch runs one chunk's HTTP range request to completion,
// streaming the response body into the shared destination file at the
// chunk's byte offset and reporting progress and checkpoint updates as it
// goes.
package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/duskfetch/dlengine/internal/model"
	"github.com/duskfetch/dlengine/internal/progress"
	"github.com/duskfetch/dlengine/internal/transport"
	"github.com/duskfetch/dlengine/internal/utils"
)

const streamBufferSize = 16 * 1024

// StateSink receives a chunk's updated durable state after every write, so
// the session manager can coalesce it into a checkpoint flush.
type StateSink func(model.ChunkState)

// Fetcher runs a single chunk against an Adapter and a shared file handle.
type Fetcher struct {
	adapter    transport.Adapter
	file       *os.File
	aggregator *progress.Aggregator
	onState    StateSink
}

// NewFetcher builds a Fetcher that writes into file, reports byte deltas to
// aggregator, and calls onState after every successful write.
func NewFetcher(adapter transport.Adapter, file *os.File, aggregator *progress.Aggregator, onState StateSink) *Fetcher {
	return &Fetcher{adapter: adapter, file: file, aggregator: aggregator, onState: onState}
}

// Run drives one chunk plan to completion or a classified error. It detects
// a server that ignored the Range header (200 instead of 206) and restarts
// the chunk from its own start offset by discarding bytes up to the chunk's
// Start before writing; any progress already recorded for the chunk is
// reset to Start.
func (f *Fetcher) Run(ctx context.Context, url string, headers map[string]string, plan model.ChunkPlan) error {
	state := plan.ToState()
	offset := plan.ResumeOffset

	byteRange := &transport.Range{Start: offset, End: plan.EndInclusive}
	resp, err := f.adapter.Get(ctx, url, headers, byteRange)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if plan.Start == 0 && f.aggregator.TotalBytes() == nil {
		if total, ok := totalFromResponse(resp); ok {
			f.aggregator.SetTotalBytes(total)
		}
	}

	body := resp.Body
	writeAt := offset

	if resp.StatusCode == http.StatusOK && (plan.Bounded() || offset > 0) {
		// Server ignored our Range header and is sending the whole
		// resource from byte zero. If we already had progress on this
		// chunk we must restart it: skip forward to our own start so we
		// don't re-download bytes another chunk already owns, then keep
		// going until this chunk's own end.
		if offset > plan.Start {
			state.NextOffset = plan.Start
			if f.onState != nil {
				f.onState(state)
			}
		}
		if _, err := io.CopyN(io.Discard, body, int64(plan.Start)); err != nil {
			return model.NewNetworkError("failed discarding leading bytes on ignored range", err)
		}
		writeAt = plan.Start
		offset = plan.Start
	}

	buf := make([]byte, streamBufferSize)
	remaining := int64(-1)
	if plan.Bounded() {
		remaining = int64(*plan.EndInclusive) - int64(offset) + 1
	}

	for {
		if ctx.Err() != nil {
			return model.NewCancelledError()
		}
		readLen := len(buf)
		if remaining >= 0 && int64(readLen) > remaining {
			readLen = int(remaining)
		}
		if readLen == 0 {
			break
		}
		n, readErr := body.Read(buf[:readLen])
		if n > 0 {
			if _, werr := f.file.WriteAt(buf[:n], int64(writeAt)); werr != nil {
				return model.NewStorageError("write failed: " + werr.Error())
			}
			writeAt += uint64(n)
			offset += uint64(n)
			if remaining >= 0 {
				remaining -= int64(n)
			}
			state.NextOffset = offset
			if f.onState != nil {
				f.onState(state)
			}
			f.aggregator.AddBytes(plan.Index, uint64(n))
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return model.NewNetworkError("stream read failed", readErr)
		}
	}

	f.aggregator.Flush(plan.Index)
	return nil
}

// totalFromResponse recovers the resource's full length from a GET response
// when it wasn't already known from HEAD: a 206's Content-Range carries it
// after the slash, a 200's Content-Length is the length outright.
func totalFromResponse(resp *http.Response) (uint64, bool) {
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		if idx := strings.LastIndex(cr, "/"); idx != -1 {
			if totalStr := cr[idx+1:]; totalStr != "*" {
				if v, err := strconv.ParseUint(totalStr, 10, 64); err == nil {
					return v, true
				}
			}
		}
	}
	if resp.StatusCode == http.StatusOK {
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			if v, err := strconv.ParseUint(cl, 10, 64); err == nil {
				return v, true
			}
		}
	}
	return 0, false
}

// RunAll fans a set of chunk plans out over a pool of goroutines gated by
// chunking.PreferParallel: when true and there is more than one plan, up to
// min(chunking.ChunkCount, len(plans)) run concurrently; otherwise plans run
// one at a time. It returns the first error observed (others are still
// allowed to finish so partial progress isn't lost).
func RunAll(ctx context.Context, adapter transport.Adapter, file *os.File, aggregator *progress.Aggregator, onState StateSink, url string, headers map[string]string, plans []model.ChunkPlan, chunking model.Chunking) error {
	log := utils.GetLogger("fetch")
	if len(plans) == 0 {
		return nil
	}

	permits := 1
	if chunking.PreferParallel && len(plans) > 1 {
		permits = chunking.ChunkCount
		if permits <= 0 || permits > len(plans) {
			permits = len(plans)
		}
	}

	sem := make(chan struct{}, permits)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, plan := range plans {
		wg.Add(1)
		sem <- struct{}{}
		go func(plan model.ChunkPlan) {
			defer wg.Done()
			defer func() { <-sem }()

			fetcher := NewFetcher(adapter, file, aggregator, onState)
			if err := fetcher.Run(ctx, url, headers, plan); err != nil {
				log.Debug().Err(err).Uint32("chunk", plan.Index).Msg("chunk fetch failed")
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(plan)
	}

	wg.Wait()
	return firstErr
}
