// Newsdesk researches a news topic across several providers, enriches the
// results and keeps a searchable history.
//
// Usage:
//
//	newsdesk serve              # REST API plus the daily scheduler
//	newsdesk research <topic>   # one research run from the terminal
//	newsdesk tasks              # list stored tasks
package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
