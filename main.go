// The main package for the crawler executable.
package main

import (
	"github.com/FlorianSp2000/tuebingen-search-engine/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
