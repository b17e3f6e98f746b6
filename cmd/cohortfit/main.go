package main

import (
	"os"

	"github.com/cohortfit/cohortfit/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
