// Package main is the entry point for the wiresentry network intrusion detector.
package main

import (
	"errors"
	"fmt"
	"os"

	"firestige.xyz/wiresentry/cmd"
	"firestige.xyz/wiresentry/internal/daemon"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var exitErr *daemon.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
