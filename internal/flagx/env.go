package flagx

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// EnvString sets *dst to the first non-empty variable among keys.
func EnvString(dst *string, keys ...string) {
	if v, ok := lookup(keys); ok {
		*dst = v
	}
}

// EnvBool is EnvString for booleans (strconv.ParseBool syntax).
func EnvBool(dst *bool, keys ...string) error {
	v, ok := lookup(keys)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("env %s: %w", keys[0], err)
	}
	*dst = b
	return nil
}

// EnvInt is EnvString for integers.
func EnvInt(dst *int, keys ...string) error {
	v, ok := lookup(keys)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("env %s: %w", keys[0], err)
	}
	*dst = n
	return nil
}

// EnvDuration is EnvString for durations ("1s", "250ms").
func EnvDuration(dst *time.Duration, keys ...string) error {
	v, ok := lookup(keys)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("env %s: %w", keys[0], err)
	}
	*dst = d
	return nil
}

func lookup(keys []string) (string, bool) {
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok && v != "" {
			return v, true
		}
	}
	return "", false
}
