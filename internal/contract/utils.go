package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/huangsam/cipette/schema"
)

// Color variables for console output.
var (
	ExcellentColor = color.New(color.FgGreen, color.Bold) // ExcellentColor represents a healthy workflow.
	GoodColor      = color.New(color.FgCyan)              // GoodColor represents minor issues.
	FairColor      = color.New(color.FgYellow)            // FairColor represents standard caution, not bold.
	PoorColor      = color.New(color.FgRed, color.Bold)   // PoorColor represents standard danger.
	UnknownColor   = color.New(color.FgHiBlack)           // UnknownColor represents missing data.
)

// GetHealthClass maps an overall score to a health class using thresholds.
func GetHealthClass(score float64, t HealthThresholds) schema.HealthClass {
	switch {
	case score >= t.Excellent:
		return schema.HealthExcellent
	case score >= t.Good:
		return schema.HealthGood
	case score >= t.Fair:
		return schema.HealthFair
	default:
		return schema.HealthPoor
	}
}

// GetPlainHealthLabel returns the display text for a health class.
func GetPlainHealthLabel(class schema.HealthClass) string {
	if class == "" {
		return strings.ToUpper(string(schema.HealthUnknown[:1])) + string(schema.HealthUnknown[1:])
	}
	return strings.ToUpper(string(class[:1])) + string(class[1:])
}

// GetColorHealthLabel returns a colored health label for console output (table).
// It uses GetPlainHealthLabel to determine the string, and then applies the appropriate color.
func GetColorHealthLabel(class schema.HealthClass) string {
	text := GetPlainHealthLabel(class)

	switch class {
	case schema.HealthExcellent:
		return ExcellentColor.Sprint(text)
	case schema.HealthGood:
		return GoodColor.Sprint(text)
	case schema.HealthFair:
		return FairColor.Sprint(text)
	case schema.HealthPoor:
		return PoorColor.Sprint(text)
	default:
		return UnknownColor.Sprint(text)
	}
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. It returns os.Stdout when no path is given.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Warn %s: %v\n", msg, err)
}

// GetDBFilePath returns the path to the default SQLite DB file.
func GetDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".cipette.db"
	}
	return filepath.Join(homeDir, ".cipette.db")
}

// TruncateText truncates text to a maximum width with an ellipsis suffix.
// Requires maxWidth > 3 so there is room for "..." and at least one character.
func TruncateText(text string, maxWidth int) string {
	runes := []rune(text)
	if len(runes) > maxWidth && maxWidth > 3 {
		return string(runes[:maxWidth-3]) + "..."
	}
	return text
}

// FormatSeconds renders a nullable number of seconds as a compact duration.
func FormatSeconds(seconds *float64) string {
	if seconds == nil {
		return "-"
	}
	return (time.Duration(*seconds * float64(time.Second))).Round(time.Second).String()
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
