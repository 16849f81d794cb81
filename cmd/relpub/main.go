package main

import (
	"os"

	"github.com/Iron-Ham/relpub/internal/cmd"
	"github.com/Iron-Ham/relpub/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(errors.ExitCode(err))
	}
}
