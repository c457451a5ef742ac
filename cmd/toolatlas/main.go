// Command toolatlas explores the media-tool catalog: it serves the explorer
// JSON API and prints summaries and drill targets from the command line.
package main

import (
	"fmt"
	"os"
)

var exitFunc = os.Exit

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "toolatlas:", err)
		exitFunc(1)
	}
}
