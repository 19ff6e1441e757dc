// Package main provides the pawdcast CLI.
//
// Usage:
//
//	pawdcast [flags] <command> [args]
//
// Commands:
//
//	analyze  - show where a recording switches between skit lines
//	render   - render a skit video (audio, skit or article mode)
//	serve    - run the HTTP API
//	voices   - list TTS voices
//	config   - inspect configuration
package main

import (
	"os"

	"github.com/pawdcast/pawdcast/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
