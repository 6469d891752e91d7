package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/duskfetch/dlengine/internal/model"
)

func TestHeadReportsContentLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "12345")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewHTTPAdapter(5 * time.Second)
	res, err := a.Head(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Length == nil || *res.Length != 12345 {
		t.Fatalf("expected length 12345, got %v", res.Length)
	}
}

func TestHeadMethodNotAllowedReturnsNilLengthWithoutError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	a := NewHTTPAdapter(5 * time.Second)
	res, err := a.Head(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("expected 405 to be reported as an unknown length, not an error: %v", err)
	}
	if res.Length != nil {
		t.Errorf("expected nil length on 405")
	}
}

func TestHeadServerErrorClassifiedAsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewHTTPAdapter(5 * time.Second)
	_, err := a.Head(context.Background(), srv.URL, nil)
	derr, ok := err.(*model.DownloadError)
	if !ok {
		t.Fatalf("expected a *model.DownloadError, got %T", err)
	}
	if derr.Kind != model.KindNetwork {
		t.Errorf("expected KindNetwork for a 500, got %s", derr.Kind)
	}
}

func TestHeadNotFoundClassifiedAsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a := NewHTTPAdapter(5 * time.Second)
	_, err := a.Head(context.Background(), srv.URL, nil)
	derr, ok := err.(*model.DownloadError)
	if !ok {
		t.Fatalf("expected a *model.DownloadError, got %T", err)
	}
	if derr.Kind != model.KindPermanent {
		t.Errorf("expected KindPermanent for a 404, got %s", derr.Kind)
	}
}

func TestGetSendsRangeHeader(t *testing.T) {
	var gotRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("chunk-body"))
	}))
	defer srv.Close()

	a := NewHTTPAdapter(5 * time.Second)
	end := uint64(999)
	resp, err := a.Get(context.Background(), srv.URL, nil, &Range{Start: 500, End: &end})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if gotRange != "bytes=500-999" {
		t.Errorf("expected Range header bytes=500-999, got %q", gotRange)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "chunk-body" {
		t.Errorf("unexpected body: %q", body)
	}
}

func TestGetAppliesCustomHeaders(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewHTTPAdapter(5 * time.Second)
	resp, err := a.Get(context.Background(), srv.URL, map[string]string{"Authorization": "Bearer token"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if gotAuth != "Bearer token" {
		t.Errorf("expected custom header to be applied, got %q", gotAuth)
	}
}

func TestGetContextCancellationAbortsRequest(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	a := NewHTTPAdapter(5 * time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := a.Get(ctx, srv.URL, nil, nil)
	if err == nil {
		t.Fatalf("expected cancellation to surface as an error")
	}
}

func TestRangeHeaderFormatting(t *testing.T) {
	end := uint64(1023)
	bounded := Range{Start: 0, End: &end}
	if got := bounded.header(); got != "bytes=0-1023" {
		t.Errorf("unexpected bounded header: %q", got)
	}

	open := Range{Start: 2048}
	if got := open.header(); got != "bytes=2048-" {
		t.Errorf("unexpected open-ended header: %q", got)
	}
}
