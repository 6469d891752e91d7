// Package transport is the thin HTTP boundary the rest of the engine talks
// through: HEAD for length probing and GET with an optional byte range.
// Every call takes a context, so a session's cancellation propagates
// straight into the underlying socket without any transport-level
// bookkeeping.
package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/duskfetch/dlengine/internal/model"
)

// HeadResult is what a length probe reports back. Length is nil when the
// server declined to answer (405/501) or omitted Content-Length.
type HeadResult struct {
	Status  int
	Length  *uint64
	Headers http.Header
}

// Adapter is the interface the rest of the engine depends on, so tests can
// substitute a fake transport without spinning up real sockets.
type Adapter interface {
	Head(ctx context.Context, url string, headers map[string]string) (HeadResult, error)
	Get(ctx context.Context, url string, headers map[string]string, byteRange *Range) (*http.Response, error)
}

// Range is an RFC 7233 byte range; End is nil for an open-ended range.
type Range struct {
	Start uint64
	End   *uint64
}

func (r Range) header() string {
	if r.End != nil {
		return fmt.Sprintf("bytes=%d-%d", r.Start, *r.End)
	}
	return fmt.Sprintf("bytes=%d-", r.Start)
}

// HTTPAdapter is the production Adapter, built around a single tuned
// *http.Client shared by every fetcher in the engine.
type HTTPAdapter struct {
	client *http.Client
}

// NewHTTPAdapter builds an Adapter with a connection pool tuned for many
// concurrent range requests against the same origin.
func NewHTTPAdapter(timeout time.Duration) *HTTPAdapter {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	return &HTTPAdapter{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

func (a *HTTPAdapter) Head(ctx context.Context, url string, headers map[string]string) (HeadResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return HeadResult{}, model.NewPermanentError("malformed URL", err)
	}
	applyHeaders(req, headers)
	resp, err := a.client.Do(req)
	if err != nil {
		return HeadResult{}, model.NewNetworkError("HEAD request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		return HeadResult{Status: resp.StatusCode, Headers: resp.Header}, nil
	}
	if resp.StatusCode >= 400 {
		return HeadResult{}, classifyStatus(resp.StatusCode)
	}
	result := HeadResult{Status: resp.StatusCode, Headers: resp.Header}
	if raw := resp.Header.Get("Content-Length"); raw != "" {
		if n, err := strconv.ParseUint(raw, 10, 64); err == nil {
			result.Length = &n
		}
	}
	return result, nil
}

func (a *HTTPAdapter) Get(ctx context.Context, url string, headers map[string]string, byteRange *Range) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, model.NewPermanentError("malformed URL", err)
	}
	applyHeaders(req, headers)
	if byteRange != nil {
		req.Header.Set("Range", byteRange.header())
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, model.NewNetworkError("GET request failed", err)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, classifyStatus(resp.StatusCode)
	}
	return resp, nil
}

func applyHeaders(req *http.Request, headers map[string]string) {
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}

// classifyStatus maps an HTTP status code onto the error taxonomy: 5xx,
// 408, and 429 are retryable Network failures; the rest of the 4xx range
// is terminal per the error handling design table.
func classifyStatus(status int) *model.DownloadError {
	if status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500 {
		return model.NewNetworkError(fmt.Sprintf("unexpected status code: %d", status), nil)
	}
	return model.NewPermanentError(fmt.Sprintf("unexpected status code: %d", status), nil)
}
