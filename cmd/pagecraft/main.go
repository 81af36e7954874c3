package main

import (
	"os"

	"github.com/pagecraft-dev/pagecraft/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
