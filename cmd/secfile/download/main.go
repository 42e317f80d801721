package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"secfile/internal/app"
)

func main() {
	cfg, _, err := app.Setup(".env")
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if len(os.Args) < 3 {
		log.Fatal("Usage: download <run-id> <output-dir>")
	}
	runID, err := uuid.Parse(os.Args[1])
	if err != nil {
		log.Fatalf("Invalid run id: %v", err)
	}
	outputDir := os.Args[2]

	ctx := context.Background()

	store, err := app.NewStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create storage client: %v", err)
	}

	fmt.Printf("Downloading run %s...\n", runID)
	info, err := store.GetRun(ctx, runID, outputDir)
	if err != nil {
		log.Fatalf("Failed to download run: %v", err)
	}

	fmt.Println("\nDownload completed successfully!")
	fmt.Printf("Objects: %d (%s), last updated %s\n", info.Objects, humanize.IBytes(uint64(info.Size)), humanize.Time(info.UpdatedAt))
	fmt.Printf("Ciphertext saved to: %s\n", outputDir)
	fmt.Printf("\nDecrypt with: secfile decrypt --ciphertext %s --key <%s>\n", outputDir, "My_Key.pem")
}
