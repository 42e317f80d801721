package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"secfile/internal/core/domain"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n  %v\n", domain.Describe(err), err)
		stop()
		os.Exit(1)
	}
}
