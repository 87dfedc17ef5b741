package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dosanma1/xcforge/internal/cmd"
	"github.com/dosanma1/xcforge/internal/domain"
)

func main() {
	if err := cmd.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(domain.ExitCode(err))
	}
}
