// Package environment provides helpers for loading configuration from environment variables.
//
// Every helper reads one variable and falls back to a default when it is unset,
// empty or malformed. Required variables return an error instead of exiting so
// that the caller decides how to fail.
package environment

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// String returns the value of the named variable and whether it was set at all.
func String(name string) (string, bool) {
	return os.LookupEnv(name)
}

// StringOr returns the value of the named variable, or defaultValue when it is
// unset or empty.
func StringOr(name, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return defaultValue
}

// RequiredString returns the value of the named variable or an error when it is
// unset or empty.
func RequiredString(name string) (string, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return "", fmt.Errorf("required environment variable %q is not set", name)
	}
	return v, nil
}

// BoolOr parses the named variable with strconv.ParseBool.
func BoolOr(name string, defaultValue bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

// IntOr parses the named variable as a decimal integer.
func IntOr(name string, defaultValue int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

// FloatOr parses the named variable as a float64 (e.g. a sampling temperature).
func FloatOr(name string, defaultValue float64) float64 {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

// DurationOr parses the named variable as a time.Duration ("2s", "5m").
// A bare integer is read as seconds, which is how most operators write
// timeouts in .env files.
func DurationOr(name string, defaultValue time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return defaultValue
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}

// StringSliceOr parses the named variable as a comma-separated list, trimming
// whitespace and dropping empty elements.
func StringSliceOr(name string, defaultValue []string) []string {
	v := os.Getenv(name)
	if strings.TrimSpace(v) == "" {
		return defaultValue
	}
	result := splitList(v)
	if len(result) == 0 {
		return defaultValue
	}
	return result
}

// Int64SliceOr parses the named variable as a comma-separated list of int64
// values (Telegram user ids). Unlike the other helpers it reports malformed
// elements, since silently dropping an id from an allow-list locks a user out.
func Int64SliceOr(name string, defaultValue []int64) ([]int64, error) {
	v := os.Getenv(name)
	if strings.TrimSpace(v) == "" {
		return defaultValue, nil
	}
	parts := splitList(v)
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("environment variable %q: invalid integer %q", name, p)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return defaultValue, nil
	}
	return out, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			result = append(result, t)
		}
	}
	return result
}
