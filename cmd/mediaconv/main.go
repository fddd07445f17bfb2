package main

import (
	"os"

	"github.com/psantana5/mediaconv/cmd/mediaconv/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
