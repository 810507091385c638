// Package env handles the extra environment variables passed to the backend.
package env

import (
	"fmt"
	"maps"
	"os"
	"regexp"
	"slices"
	"strings"
)

var keyRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ParseSpecs parses `KEY=VALUE` specs, later specs win. A bare `KEY` takes its value
// from the launcher environment.
func ParseSpecs(specs []string) (map[string]string, error) {
	res := make(map[string]string, len(specs))
	for _, spec := range specs {
		key, value, explicit := strings.Cut(spec, "=")
		if err := checkKey(key); err != nil {
			return nil, err
		}

		if !explicit {
			v, ok := os.LookupEnv(key)
			if !ok {
				return nil, fmt.Errorf("environment variable %q is not set", key)
			}
			value = v
		}
		res[key] = value
	}

	return res, nil
}

// Validate checks every key of the map is a valid variable name.
func Validate(vars map[string]string) error {
	for _, k := range sortedKeys(vars) {
		if err := checkKey(k); err != nil {
			return err
		}
	}
	return nil
}

// MergeMaps returns a new map with base overridden by override, never nil.
func MergeMaps(base, override map[string]string) map[string]string {
	res := make(map[string]string, len(base)+len(override))
	maps.Copy(res, base)
	maps.Copy(res, override)
	return res
}

// Environ returns the map as `KEY=VALUE` entries sorted by key, nil when empty.
func Environ(vars map[string]string) []string {
	if len(vars) == 0 {
		return nil
	}

	res := make([]string, 0, len(vars))
	for _, k := range sortedKeys(vars) {
		res = append(res, k+"="+vars[k])
	}
	return res
}

func checkKey(k string) error {
	if k == "" {
		return fmt.Errorf("environment variable name cannot be empty")
	}
	if !keyRegexp.MatchString(k) {
		return fmt.Errorf("invalid environment variable name %q", k)
	}
	return nil
}

// sortedKeys returns the map keys in ascending order.
func sortedKeys(vars map[string]string) []string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
