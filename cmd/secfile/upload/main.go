package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"secfile/internal/app"
	"secfile/internal/workspace"
)

func main() {
	cfg, _, err := app.Setup(".env")
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if len(os.Args) < 2 {
		runs, err := workspace.List(cfg.WorkDir)
		if err != nil {
			log.Fatalf("Failed to list local runs: %v", err)
		}
		fmt.Println("Usage: upload <run-id>")
		fmt.Printf("\nLocal runs in %s:\n", cfg.WorkDir)
		for _, id := range runs {
			fmt.Printf("- %s\n", id)
		}
		os.Exit(1)
	}
	runID, err := uuid.Parse(os.Args[1])
	if err != nil {
		log.Fatalf("Invalid run id: %v", err)
	}

	ws, err := workspace.Open(cfg.WorkDir, runID)
	if err != nil {
		log.Fatalf("Failed to open run: %v", err)
	}

	ctx := context.Background()

	store, err := app.NewStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create storage client: %v", err)
	}

	fmt.Printf("Uploading run %s...\n", runID)
	start := time.Now()

	info, err := store.PutRun(ctx, runID, ws.Ciphertext())
	if err != nil {
		log.Fatalf("Failed to upload run: %v", err)
	}

	duration := time.Since(start)
	fmt.Println("\nUpload completed successfully!")
	fmt.Printf("Time taken: %v\n", duration.Round(time.Millisecond))
	fmt.Printf("Objects: %d (%s)\n", info.Objects, humanize.IBytes(uint64(info.Size)))
	if secs := duration.Seconds(); secs > 0 {
		fmt.Printf("Average speed: %s/s\n", humanize.IBytes(uint64(float64(info.Size)/secs)))
	}
	fmt.Printf("Bucket: %s\n", cfg.Bucket)
	fmt.Println("The credential was not uploaded; keep it to decrypt this run.")
}
