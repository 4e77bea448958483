package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tanq16/segdl/internal/output"
	"github.com/tanq16/segdl/internal/utils"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [OUTPUT_FILE]",
		Short: "Remove leftover segment files (.partN) of an interrupted download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := utils.CleanParts(args[0])
			if err != nil {
				return fmt.Errorf("error cleaning up temporary files: %w", err)
			}
			output.PrintSuccess(fmt.Sprintf("Removed %d temporary files", removed))
			return nil
		},
	}
}
