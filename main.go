// The main package for the docfetch executable.
package main

import (
	"github.com/docfetch/docfetch/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
