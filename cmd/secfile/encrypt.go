package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"secfile/internal/app"
	"secfile/internal/core/domain"
	"secfile/internal/fileutil"
)

// NewEncryptCommand creates the encrypt subcommand.
func NewEncryptCommand(e *env) *cobra.Command {
	var (
		keyOut       string
		allowEmpty   bool
		deleteSource bool
	)

	cmd := &cobra.Command{
		Use:     "encrypt [flags] file",
		Aliases: []string{"enc"},
		Short:   "Split and encrypt a file, writing a credential",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return domain.ErrNoFile
			}
			if cmd.Flags().Changed("allow-empty") {
				e.cfg.AllowEmpty = allowEmpty
			}
			if cmd.Flags().Changed("delete-source") {
				e.cfg.DeleteSource = deleteSource
			}

			keyPath := filepath.Join(keyOut, domain.CredentialDownloadName)
			if _, err := os.Stat(keyPath); err == nil {
				return fmt.Errorf("%w: %s already exists, choose another --key-out", domain.ErrIO, keyPath)
			} else if !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("%w: %w", domain.ErrIO, err)
			}

			p, err := app.NewPipeline(e.cfg, e.log)
			if err != nil {
				return err
			}

			start := time.Now()
			result, err := p.Protect(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			duration := time.Since(start)

			cred, err := os.ReadFile(result.CredentialPath)
			if err != nil {
				return fmt.Errorf("%w: read credential: %w", domain.ErrIO, err)
			}
			if err := fileutil.WriteFileExclusive(keyPath, cred, 0o600); err != nil {
				return fmt.Errorf("%w: save credential: %w", domain.ErrIO, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Protected %s (%s) in %v\n", result.FileName, humanize.IBytes(uint64(result.OriginalSize)), duration.Round(time.Millisecond))
			fmt.Fprintf(out, "Processing rate: %s/s\n", humanize.IBytes(rate(result.OriginalSize, duration)))
			fmt.Fprintf(out, "Run:        %s\n", result.RunID)
			fmt.Fprintf(out, "Segments:   %s\n", humanize.Comma(int64(result.Segments)))
			fmt.Fprintf(out, "Ciphertext: %s (%s)\n", result.CiphertextDir, humanize.IBytes(uint64(result.EncryptedSize)))
			fmt.Fprintf(out, "Credential: %s\n", keyPath)
			fmt.Fprintln(out, "\nKeep the credential safe: it is the only way to decrypt this run.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&keyOut, "key-out", "k", ".", "Directory to save "+domain.CredentialDownloadName+" in")
	cmd.Flags().BoolVar(&allowEmpty, "allow-empty", true, "Accept zero-length files")
	cmd.Flags().BoolVarP(&deleteSource, "delete-source", "d", false, "Delete the source file after successful encryption")

	return cmd
}

func rate(bytes int64, d time.Duration) uint64 {
	if d <= 0 || bytes <= 0 {
		return 0
	}
	return uint64(float64(bytes) / d.Seconds())
}
