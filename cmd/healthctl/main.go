// Command healthctl records and queries health measurements from the shell.
// It shares the data directory and accounts with the desktop app.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
