package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/duskfetch/dlengine"
	"github.com/duskfetch/dlengine/internal/output"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List paused downloads that can be resumed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogging()
			engine := dlengine.New(dlengine.DefaultConfig(), stateDir)
			paused := engine.ListPaused()
			if len(paused) == 0 {
				fmt.Println("no paused downloads")
				return nil
			}
			for _, p := range paused {
				fmt.Printf("%s  %s  %s\n", p.HandleID, output.FormatBytes(p.CompletedBytes), p.Request.URL)
			}
			return nil
		},
	}
	return cmd
}
