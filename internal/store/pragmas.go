package store

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// allowedPragmas maps each settable pragma to its accepted values.
// A nil slice means any non-negative integer (optionally negative for cache_size).
var allowedPragmas = map[string][]string{
	"journal_mode": {"DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF"},
	"synchronous":  {"OFF", "NORMAL", "FULL", "EXTRA", "0", "1", "2", "3"},
	"temp_store":   {"DEFAULT", "FILE", "MEMORY", "0", "1", "2"},
	"foreign_keys": {"ON", "OFF", "1", "0", "TRUE", "FALSE"},
	"busy_timeout": nil,
	"cache_size":   nil,
}

var integerPragma = regexp.MustCompile(`^-?[0-9]{1,10}$`)

// validatePragma checks a pragma name and value against the whitelist.
func validatePragma(name, value string) error {
	allowed, ok := allowedPragmas[name]
	if !ok {
		return fmt.Errorf("unsupported sqlite pragma %q", name)
	}
	if allowed == nil {
		if !integerPragma.MatchString(value) || (name == "busy_timeout" && strings.HasPrefix(value, "-")) {
			return fmt.Errorf("invalid value %q for sqlite pragma %s", value, name)
		}
		return nil
	}
	if !slices.Contains(allowed, strings.ToUpper(value)) {
		return fmt.Errorf("invalid value %q for sqlite pragma %s (expected one of %s)", value, name, strings.Join(allowed, ", "))
	}
	return nil
}

// sqliteDSN attaches validated pragmas to a SQLite path so every pooled
// connection is configured the same way. busy_timeout goes first so lock
// waits apply while the remaining pragmas run.
func sqliteDSN(path string, pragmas map[string]string) (string, error) {
	names := make([]string, 0, len(pragmas))
	for name := range pragmas {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		switch {
		case a == b:
			return 0
		case a == "busy_timeout":
			return -1
		case b == "busy_timeout":
			return 1
		}
		return strings.Compare(a, b)
	})

	params := url.Values{}
	for _, name := range names {
		value := pragmas[name]
		if err := validatePragma(name, value); err != nil {
			return "", err
		}
		params.Add("_pragma", fmt.Sprintf("%s(%s)", name, value))
	}
	if len(params) == 0 {
		return path, nil
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + params.Encode(), nil
}
