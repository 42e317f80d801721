package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"secfile/internal/core/domain"
	"secfile/internal/encryption/chunking"
)

// NewPlanCommand creates the plan subcommand, which shows how a file would be
// segmented without writing anything.
func NewPlanCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "plan file",
		Short: "Show the segments a file would be divided into",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return domain.ErrNoFile
			}
			info, err := os.Stat(args[0])
			if err != nil {
				return fmt.Errorf("%w: %w", domain.ErrIO, err)
			}
			if info.Size() == 0 && !e.cfg.AllowEmpty {
				return domain.ErrEmptyInput
			}

			sizes := chunking.Plan(info.Size(), e.cfg.ChunkSize)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s in %s segments of up to %s (%s)\n",
				info.Name(),
				humanize.IBytes(uint64(info.Size())),
				humanize.Comma(int64(len(sizes))),
				humanize.IBytes(uint64(e.cfg.ChunkSize)),
				e.cfg.Algorithm,
			)
			for i, size := range sizes {
				fmt.Fprintf(out, "  %s  %s\n", chunking.SegmentName(i), humanize.IBytes(uint64(size)))
			}
			return nil
		},
	}
}
