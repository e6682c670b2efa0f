// Package main is the entry point for the pointingd daemon.
package main

import (
	"os"

	"github.com/dsa110/dsa110-pointing/cmd/pointingd/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
