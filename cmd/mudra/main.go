// Command mudra runs the Mudra sign-to-text daemon and manages its history.
//
// Usage:
//
//	mudra [flags] <command> [subcommand] [args]
//
// Commands:
//
//	serve     - Run the camera loop, translation pipeline and HTTP API
//	history   - List, show, delete or clear saved translations
//	version   - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/ayusman/mudra/cmd/mudra/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
