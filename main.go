// The main package for the tournament-scraper executable.
package main

import (
	"github.com/JakeFAU/tournament-scraper/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
