package dlengine

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func TestEngineEnqueueAndCompletion(t *testing.T) {
	body := []byte("facade-level smoke test payload")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "31")
		w.Write(body)
	}))
	defer srv.Close()

	stateDir := t.TempDir()
	destDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Storage.Destinations = []Destination{CustomDestination(destDir)}
	engine := New(cfg, stateDir)

	done := make(chan string, 1)
	failed := make(chan *DownloadError, 1)
	listener := &facadeListener{done: done, failed: failed}
	engine.AddListener(listener)

	if _, err := engine.Enqueue(Request{URL: srv.URL, FileName: "smoke.bin"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case path := <-done:
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("reading completed file: %v", err)
		}
		if len(got) != len(body) {
			t.Errorf("expected %d bytes, got %d", len(body), len(got))
		}
	case err := <-failed:
		t.Fatalf("expected completion, got failure: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for download to complete")
	}
}

func TestDefaultConfigIsUsable(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Chunking.ChunkCount <= 0 {
		t.Errorf("expected a positive default chunk count")
	}
	if cfg.Retry.MaxAttempts <= 0 {
		t.Errorf("expected a positive default retry attempt count")
	}
}

type facadeListener struct {
	NoopListener
	done   chan string
	failed chan *DownloadError
}

func (l *facadeListener) OnCompleted(h Handle, path string)     { l.done <- path }
func (l *facadeListener) OnFailed(h Handle, err *DownloadError) { l.failed <- err }
