package main

import (
	"os"

	"github.com/lazypower/affect/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
