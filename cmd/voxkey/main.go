// Command voxkey is the speech-to-text dictation tool.
//
// Usage:
//
//	voxkey [--config voxkey.yaml] <command>
//
// Commands:
//
//	serve   - WebSocket dictation server with health and metrics endpoints
//	listen  - dictate one utterance from the local microphone
//	models  - list known model variants and whether their files are present
package main

import (
	"fmt"
	"os"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "voxkey:", err)
		os.Exit(1)
	}
}
