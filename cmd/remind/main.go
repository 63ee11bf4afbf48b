package main

import (
	"os"

	"github.com/circle97/remind/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
