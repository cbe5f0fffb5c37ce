// Package main is the entry point for the configurator's operator CLI:
// validating an Applicability Table before rollout, and inspecting
// archived sessions for support.
package main

import (
	"fmt"
	"os"

	"github.com/weldcfg/configurator/cmd/admin/cmd"
)

var version = "dev"

func main() {
	cmd.SetVersion(version)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
