package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pos/backend/internal/domain/shared"
	"github.com/pos/backend/internal/interfaces/cli"
)

func main() {
	// A .env file next to the binary is optional; POS_* variables may also
	// come from the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: .env not loaded: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx, cli.Options{}, os.Args[1:])
	stop()

	if err != nil {
		var de *shared.DomainError
		if errors.As(err, &de) {
			fmt.Fprintf(os.Stderr, "error: %s: %s\n", de.Code, de.Message)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}
