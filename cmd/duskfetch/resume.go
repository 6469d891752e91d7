package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/duskfetch/dlengine"
	"github.com/duskfetch/dlengine/internal/output"
)

func newResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume [handle-id]",
		Short: "Resume a paused download from its last checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogging()
			handleID := args[0]

			cfg := dlengine.DefaultConfig()
			engine := dlengine.New(cfg, stateDir)
			display := output.NewManager()
			listener := &cliListener{display: display, done: make(chan struct{})}
			engine.AddListener(listener)

			display.StartDisplay()
			if err := engine.Resume(handleID); err != nil {
				display.StopDisplay()
				return fmt.Errorf("resume failed: %w", err)
			}

			<-listener.done
			display.StopDisplay()
			if listener.failure != nil {
				return fmt.Errorf("download failed: %w", listener.failure)
			}
			return nil
		},
	}
	return cmd
}
