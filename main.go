// The main package for the tagrelay executable.
package main

import (
	"github.com/pixelfall/tagrelay/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
