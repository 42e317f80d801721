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

// NewDecryptCommand creates the decrypt subcommand.
func NewDecryptCommand(e *env) *cobra.Command {
	var (
		ciphertextDir string
		keyPath       string
		outDir        string
	)

	cmd := &cobra.Command{
		Use:     "decrypt --ciphertext DIR --key FILE [--out DIR]",
		Aliases: []string{"dec"},
		Short:   "Decrypt a run and restore the original file",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := app.NewPipeline(e.cfg, e.log)
			if err != nil {
				return err
			}

			start := time.Now()
			result, err := p.Recover(cmd.Context(), ciphertextDir, keyPath)
			if err != nil {
				return err
			}
			duration := time.Since(start)

			restored := result.File.Path
			if outDir != "" {
				if restored, err = moveOut(result.File.Path, outDir, result.File.FileName); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Restored %s (%s) in %v\n", result.File.FileName, humanize.IBytes(uint64(result.File.Size)), duration.Round(time.Millisecond))
			fmt.Fprintf(out, "Processing rate: %s/s\n", humanize.IBytes(rate(result.File.Size, duration)))
			fmt.Fprintf(out, "Run:      %s\n", result.RunID)
			fmt.Fprintf(out, "SHA-256:  %s\n", result.File.Checksum)
			fmt.Fprintf(out, "Saved to: %s\n", restored)
			return nil
		},
	}

	cmd.Flags().StringVar(&ciphertextDir, "ciphertext", "", "Directory with the sealed segments and manifest")
	cmd.Flags().StringVar(&keyPath, "key", "", "Credential file ("+domain.CredentialExtension+")")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Directory to move the restored file into")
	_ = cmd.MarkFlagRequired("ciphertext")
	_ = cmd.MarkFlagRequired("key")

	return cmd
}

// moveOut moves the restored file into dir without overwriting anything there.
func moveOut(src, dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("%w: create output dir: %w", domain.ErrIO, err)
	}
	dst := filepath.Join(dir, name)
	if err := fileutil.MoveExclusive(src, dst); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s already exists", domain.ErrIO, dst)
		}
		return "", fmt.Errorf("%w: move restored file: %w", domain.ErrIO, err)
	}
	return dst, nil
}
