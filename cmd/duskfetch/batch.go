package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/duskfetch/dlengine"
	"github.com/duskfetch/dlengine/internal/output"
)

// batchTracker watches one handle within a batch run and reports its
// terminal outcome without touching the shared display, which already
// listens to every handle directly. The broadcaster fans every event to
// every registered listener regardless of handle, so each tracker must
// filter by handleID itself.
type batchTracker struct {
	dlengine.NoopListener
	handleID string
	urlID    string
	done     chan struct{}

	mu      sync.Mutex
	closed  bool
	failure *dlengine.DownloadError
}

func (t *batchTracker) OnCompleted(h dlengine.Handle, path string) {
	if h.ID == t.handleID {
		t.finish(nil)
	}
}

func (t *batchTracker) OnCancelled(h dlengine.Handle) {
	if h.ID == t.handleID {
		t.finish(nil)
	}
}

func (t *batchTracker) OnFailed(h dlengine.Handle, err *dlengine.DownloadError) {
	if h.ID == t.handleID {
		t.finish(err)
	}
}

func (t *batchTracker) finish(err *dlengine.DownloadError) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.failure = err
	close(t.done)
}

// batchManifest is the YAML shape the batch subcommand's manifest file is
// unmarshalled into: a
// flat list of URLs, each optionally paired with an output name and an
// expected checksum.
type batchManifest struct {
	Items []batchItem `yaml:"items"`
}

type batchItem struct {
	URL              string `yaml:"url"`
	Output           string `yaml:"output,omitempty"`
	ExpectedChecksum string `yaml:"checksum,omitempty"`
	ChecksumAlgo     string `yaml:"checksumAlgo,omitempty"`
}

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [manifest.yaml]",
		Short: "Download every URL listed in a YAML manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogging()

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading manifest: %w", err)
			}
			var manifest batchManifest
			if err := yaml.Unmarshal(raw, &manifest); err != nil {
				return fmt.Errorf("parsing manifest: %w", err)
			}
			if len(manifest.Items) == 0 {
				return fmt.Errorf("manifest has no items")
			}

			cfg := dlengine.DefaultConfig()
			cfg.Chunking.ChunkCount = connections
			engine := dlengine.New(cfg, stateDir)
			display := output.NewManager()
			engine.AddListener(display)

			display.StartDisplay()

			var wg sync.WaitGroup
			failures := make([]string, 0)
			var mu sync.Mutex

			for _, item := range manifest.Items {
				req := dlengine.Request{
					URL:               item.URL,
					FileName:          item.Output,
					ExpectedChecksum:  item.ExpectedChecksum,
					ChecksumAlgorithm: dlengine.ChecksumAlgorithm(item.ChecksumAlgo),
				}

				handle, err := engine.Enqueue(req)
				if err != nil {
					mu.Lock()
					failures = append(failures, fmt.Sprintf("%s: %v", item.URL, err))
					mu.Unlock()
					continue
				}

				tracker := &batchTracker{handleID: handle.ID, urlID: item.URL, done: make(chan struct{})}
				engine.AddListener(tracker)

				wg.Add(1)
				go func(t *batchTracker) {
					defer wg.Done()
					<-t.done
					t.mu.Lock()
					failure := t.failure
					t.mu.Unlock()
					if failure != nil {
						mu.Lock()
						failures = append(failures, fmt.Sprintf("%s: %v", t.urlID, failure))
						mu.Unlock()
					}
				}(tracker)
			}

			wg.Wait()
			display.StopDisplay()

			if len(failures) > 0 {
				return fmt.Errorf("%d of %d downloads failed: %v", len(failures), len(manifest.Items), failures)
			}
			return nil
		},
	}
	return cmd
}
