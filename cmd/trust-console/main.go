package main

import (
	"context"
	"fmt"
	"os"

	"trust-console/internal/config"
)

func main() {
	cfg := config.Load()
	if err := rootCommand(cfg).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
