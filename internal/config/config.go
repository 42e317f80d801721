package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"secfile/internal/core/domain"
	"secfile/internal/encryption/chunking"
)

const envPrefix = "SECFILE_"

type Config struct {
	WorkDir      string `validate:"required"`
	ChunkSize    int    `validate:"min=65536,max=8388608"`
	Algorithm    string `validate:"oneof=AES-256-GCM XCHACHA20-POLY1305"`
	Workers      int    `validate:"min=0,max=1024"` // 0 sizes the pool from host resources
	AllowEmpty   bool
	DeleteSource bool
	LogLevel     string `validate:"oneof=trace debug info warn warning error fatal panic"`
	LogFormat    string `validate:"oneof=text json"`

	// Remote storage, used by the upload and download commands only.
	Bucket    string
	Region    string
	RunPrefix string
}

func Default() Config {
	return Config{
		WorkDir:    "secfile-data",
		ChunkSize:  chunking.DefaultChunkSize,
		Algorithm:  string(domain.AlgorithmAES256GCM),
		AllowEmpty: true,
		LogLevel:   "info",
		LogFormat:  "text",
		Region:     "us-east-1",
		RunPrefix:  "runs/",
	}
}

// Load returns the defaults overlaid with the given .env files and the
// process environment. Missing .env files are skipped; variables already set
// in the environment win over .env entries.
func Load(envFiles ...string) (Config, error) {
	var present []string
	for _, file := range envFiles {
		if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		present = append(present, file)
	}
	if len(present) > 0 {
		if err := godotenv.Load(present...); err != nil {
			return Config{}, fmt.Errorf("loading env files: %w", err)
		}
	}

	cfg := Default()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from SECFILE_* variables returned by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(envPrefix + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	if v, ok := get("WORK_DIR"); ok {
		c.WorkDir = v
	}
	if v, ok := get("CHUNK_SIZE"); ok {
		size, err := ParseSize(v)
		if err != nil {
			return fmt.Errorf("%sCHUNK_SIZE: %w", envPrefix, err)
		}
		c.ChunkSize = size
	}
	if v, ok := get("ALGORITHM"); ok {
		c.Algorithm = NormalizeAlgorithm(v)
	}
	if v, ok := get("WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sWORKERS: %w", envPrefix, err)
		}
		c.Workers = n
	}
	if v, ok := get("ALLOW_EMPTY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sALLOW_EMPTY: %w", envPrefix, err)
		}
		c.AllowEmpty = b
	}
	if v, ok := get("DELETE_SOURCE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sDELETE_SOURCE: %w", envPrefix, err)
		}
		c.DeleteSource = b
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = strings.ToLower(v)
	}
	if v, ok := get("LOG_FORMAT"); ok {
		c.LogFormat = strings.ToLower(v)
	}

	// AWS_* names are what the storage commands have always read.
	if v, ok := get("BUCKET"); ok {
		c.Bucket = v
	} else if v, ok := lookup("AWS_BUCKET_NAME"); ok && v != "" {
		c.Bucket = v
	}
	if v, ok := get("REGION"); ok {
		c.Region = v
	} else if v, ok := lookup("AWS_REGION"); ok && v != "" {
		c.Region = v
	}
	if v, ok := get("RUN_PREFIX"); ok {
		c.RunPrefix = v
	}
	return nil
}

// Validate validates the configuration against the struct tags
func (c Config) Validate() error {
	validate := validator.New()

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validating configuration: %w", err)
	}
	return nil
}

// ParseSize accepts plain byte counts as well as sizes like "1MiB" or "512 KB".
func ParseSize(s string) (int, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n > uint64(chunking.MaxChunkSize) {
		return 0, fmt.Errorf("size %s exceeds %s", humanize.IBytes(n), humanize.IBytes(uint64(chunking.MaxChunkSize)))
	}
	return int(n), nil
}

// NormalizeAlgorithm maps short names to the canonical algorithm name.
// Unknown names are returned upper-cased so validation reports them.
func NormalizeAlgorithm(name string) string {
	switch upper := strings.ToUpper(strings.TrimSpace(name)); upper {
	case "AES", "AES-GCM", "AES256", "AES-256-GCM":
		return string(domain.AlgorithmAES256GCM)
	case "CHACHA", "XCHACHA", "XCHACHA20", "XCHACHA20-POLY1305":
		return string(domain.AlgorithmXChaCha20Poly1305)
	default:
		return upper
	}
}
