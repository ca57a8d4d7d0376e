// Command hikari runs the assistant bot and its maintenance subcommands.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
