package main

import (
	"fmt"
	"os"

	"github.com/jarrodldavis/npm-version-scripts/cmd/cli"
)

const (
	exitErrorTemplateConstant = "%v\n"
)

// main executes the version-scripts command-line application.
func main() {
	if executionError := cli.Execute(); executionError != nil {
		fmt.Fprintf(os.Stderr, exitErrorTemplateConstant, executionError)
		os.Exit(1)
	}
}
