package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"secfile/internal/app"
	"secfile/internal/config"
)

// env is filled in by the root command before any subcommand runs.
type env struct {
	cfg config.Config
	log *logrus.Logger
}

type globalFlags struct {
	envFile   string
	workDir   string
	chunkSize string
	algorithm string
	workers   int
	logLevel  string
	logFormat string
}

// NewRootCommand creates the root command with common configuration.
func NewRootCommand() *cobra.Command {
	var (
		flags globalFlags
		e     env
	)

	root := &cobra.Command{
		Use:   "secfile [flags] command [flags]",
		Short: "Split, encrypt and restore files",
		Long: `secfile splits a file into fixed-size segments, seals every segment with a
fresh per-run key and hands out a credential file. The same credential later
decrypts the segments and restores the original file.

Settings are read from an optional .env file, then SECFILE_* environment
variables, then flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := app.Setup(flags.envFile, flags.overrides(cmd))
			if err != nil {
				return err
			}
			e.cfg, e.log = cfg, log
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.envFile, "env-file", ".env", "Optional dotenv file to load")
	pf.StringVarP(&flags.workDir, "work-dir", "w", "", "Directory holding per-run workspaces")
	pf.StringVarP(&flags.chunkSize, "chunk-size", "c", "", "Segment size, e.g. 1MiB (64KiB to 8MiB)")
	pf.StringVarP(&flags.algorithm, "algorithm", "a", "", "AEAD for new runs: aes or xchacha")
	pf.IntVarP(&flags.workers, "workers", "j", 0, "Segments processed concurrently, 0 sizes from the host")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	pf.StringVar(&flags.logFormat, "log-format", "", "Log format (text or json)")

	root.AddCommand(
		NewEncryptCommand(&e),
		NewDecryptCommand(&e),
		NewPlanCommand(&e),
		NewRemoteCommand(&e),
	)

	return root
}

// overrides applies the flags the user actually set on top of the loaded
// configuration.
func (f *globalFlags) overrides(cmd *cobra.Command) func(*config.Config) error {
	return func(c *config.Config) error {
		changed := cmd.Flags().Changed

		if changed("work-dir") {
			c.WorkDir = f.workDir
		}
		if changed("chunk-size") {
			size, err := config.ParseSize(f.chunkSize)
			if err != nil {
				return fmt.Errorf("--chunk-size: %w", err)
			}
			c.ChunkSize = size
		}
		if changed("algorithm") {
			c.Algorithm = config.NormalizeAlgorithm(f.algorithm)
		}
		if changed("workers") {
			c.Workers = f.workers
		}
		if changed("log-level") {
			c.LogLevel = f.logLevel
		}
		if changed("log-format") {
			c.LogFormat = f.logFormat
		}
		return nil
	}
}
