// Package outwriter has output and writer logic.
package outwriter

import (
	"os"

	"github.com/huangsam/cipette/internal/contract"
	"golang.org/x/term"
)

const (
	minNameWidth = 12
	maxNameWidth = 40
)

// getTerminalWidth returns the width override, the detected terminal width,
// or a conservative default when neither is available.
func getTerminalWidth(cfg *contract.Config) int {
	// Check for absolute width override from flag/env
	if cfg.Width > 0 {
		return cfg.Width
	}
	detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || detectedWidth <= 0 {
		return 80 // Conservative default for narrow terminals and CI
	}
	return detectedWidth
}

// getMaxTableNameWidth calculates the width available to each of the two
// name columns (repository and workflow) once the fixed columns are reserved.
func getMaxTableNameWidth(cfg *contract.Config, fixedWidth int) int {
	available := (getTerminalWidth(cfg) - fixedWidth) / 2
	if available < minNameWidth {
		return minNameWidth
	}
	if available > maxNameWidth {
		return maxNameWidth
	}
	return available
}
