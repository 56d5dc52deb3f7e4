// Command logoctl drives a logoforge server from the terminal.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRoot(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
