package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"secfile/internal/app"
)

// NewRemoteCommand groups the commands that manage runs stored in S3. Uploads
// and downloads live in their own binaries.
func NewRemoteCommand(e *env) *cobra.Command {
	remote := &cobra.Command{
		Use:   "remote",
		Short: "Inspect ciphertext runs stored in S3",
	}

	remote.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := app.NewStore(cmd.Context(), e.cfg)
			if err != nil {
				return err
			}
			runs, err := store.ListRuns(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintf(out, "No runs in bucket %s\n", store.GetConfig().BucketName)
				return nil
			}
			for _, run := range runs {
				fmt.Fprintf(out, "%s  %3d objects  %10s  %s\n",
					run.RunID, run.Objects, humanize.IBytes(uint64(run.Size)), humanize.Time(run.UpdatedAt))
			}
			return nil
		},
	})

	remote.AddCommand(&cobra.Command{
		Use:   "delete run-id",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id: %w", err)
			}
			store, err := app.NewStore(cmd.Context(), e.cfg)
			if err != nil {
				return err
			}
			if err := store.DeleteRun(cmd.Context(), runID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", runID)
			return nil
		},
	})

	return remote
}
