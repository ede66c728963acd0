package main

import (
	"context"
	"errors"
	"os"

	"github.com/finradar/finradar/cmd/finradar/commands"
	"github.com/finradar/finradar/internal/config"
	"github.com/finradar/finradar/internal/orchestrator"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode maps failures to the documented codes: 1 configuration,
// 2 fatal source failure, 130 interrupted.
func exitCode(err error) int {
	var cfgErr *config.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		return 1
	case errors.Is(err, orchestrator.ErrFatalSource):
		return 2
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}
