// main is the entry point for the cipette CLI.
package main

import (
	"github.com/huangsam/cipette/cmd"
	"github.com/huangsam/cipette/internal/contract"
)

func main() {
	if err := cmd.Execute(); err != nil {
		contract.LogFatal("Cannot run cipette", err)
	}
}
