package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/duskfetch/dlengine"
	"github.com/duskfetch/dlengine/internal/output"
	"github.com/duskfetch/dlengine/internal/utils"
)

func newGetCmd() *cobra.Command {
	var outputPath string
	var checksum string
	var checksumAlgo string

	cmd := &cobra.Command{
		Use:   "get [URL]",
		Short: "Download a single file over HTTP/HTTPS",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogging()
			url := args[0]

			cfg := dlengine.DefaultConfig()
			cfg.Chunking.ChunkCount = connections
			if outputPath != "" {
				cfg.Storage.Destinations = []dlengine.Destination{dlengine.CustomDestination(outputPath)}
			}

			req := dlengine.Request{
				URL:               url,
				Headers:           utils.ParseHeaderArgs(headers),
				ExpectedChecksum:  checksum,
				ChecksumAlgorithm: dlengine.ChecksumAlgorithm(checksumAlgo),
			}

			engine := dlengine.New(cfg, stateDir)
			display := output.NewManager()
			listener := &cliListener{display: display, done: make(chan struct{})}
			engine.AddListener(listener)

			display.StartDisplay()
			if _, err := engine.Enqueue(req); err != nil {
				display.StopDisplay()
				return fmt.Errorf("enqueue failed: %w", err)
			}

			<-listener.done
			display.StopDisplay()
			if listener.failure != nil {
				return fmt.Errorf("download failed: %w", listener.failure)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "destination file path (auto-detected if omitted)")
	cmd.Flags().StringVar(&checksum, "checksum", "", "expected digest to verify against")
	cmd.Flags().StringVar(&checksumAlgo, "checksum-algo", "SHA256", "digest algorithm: MD5, SHA256, or SHA512")
	return cmd
}

// cliListener bridges engine lifecycle events into the live display and
// signals done once the single handle it's watching reaches a terminal
// state.
type cliListener struct {
	display *output.Manager
	done    chan struct{}
	closed  bool
	failure *dlengine.DownloadError
}

func (l *cliListener) OnQueued(h dlengine.Handle)  { l.display.OnQueued(h) }
func (l *cliListener) OnStarted(h dlengine.Handle) { l.display.OnStarted(h) }
func (l *cliListener) OnProgress(h dlengine.Handle, p dlengine.Progress) {
	l.display.OnProgress(h, p)
}
func (l *cliListener) OnPaused(h dlengine.Handle)  { l.display.OnPaused(h) }
func (l *cliListener) OnResumed(h dlengine.Handle) { l.display.OnResumed(h) }
func (l *cliListener) OnRetry(h dlengine.Handle, attempt int, err *dlengine.DownloadError) {
	l.display.OnRetry(h, attempt, err)
}
func (l *cliListener) OnCompleted(h dlengine.Handle, path string) {
	l.display.OnCompleted(h, path)
	l.finish()
}
func (l *cliListener) OnFailed(h dlengine.Handle, err *dlengine.DownloadError) {
	l.display.OnFailed(h, err)
	l.failure = err
	l.finish()
}
func (l *cliListener) OnCancelled(h dlengine.Handle) {
	l.display.OnCancelled(h)
	l.finish()
}

func (l *cliListener) finish() {
	if !l.closed {
		l.closed = true
		close(l.done)
	}
}
