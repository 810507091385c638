package settings

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/slok/comfylaunch/internal/model"
	"github.com/slok/comfylaunch/internal/utils/env"
)

// EnvPrefix is the key prefix that addresses backend environment variables.
const EnvPrefix = "env."

// Keys returns the settable keys, the persisted JSON field names.
func Keys() []string {
	fields, _ := toFields(model.DefaultSettings())
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == "env" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Apply sets each `key=value` assignment on a copy of st and validates the result.
// Keys are the persisted field names, `env.NAME=value` sets a backend environment
// variable and `env.NAME=` removes it.
func Apply(st model.Settings, assignments []string) (model.Settings, error) {
	st = clone(st)

	for _, a := range assignments {
		k, v, ok := strings.Cut(a, "=")
		if !ok {
			return st, fmt.Errorf("invalid assignment %q, expected key=value: %w", a, model.ErrNotValid)
		}

		if name, isEnv := strings.CutPrefix(k, EnvPrefix); isEnv {
			if err := applyEnv(&st, name, v); err != nil {
				return st, err
			}
			continue
		}

		var err error
		st, err = applyField(st, k, v)
		if err != nil {
			return st, err
		}
	}

	if err := st.Validate(); err != nil {
		return st, err
	}
	return st, nil
}

func applyEnv(st *model.Settings, name, value string) error {
	if value == "" {
		delete(st.Env, name)
		return nil
	}

	parsed, err := env.ParseSpecs([]string{name + "=" + value})
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrNotValid, err)
	}
	st.Env = env.MergeMaps(st.Env, parsed)
	return nil
}

func applyField(st model.Settings, key, value string) (model.Settings, error) {
	fields, err := toFields(st)
	if err != nil {
		return st, err
	}

	current, ok := fields[key]
	if !ok || key == "env" {
		return st, fmt.Errorf("unknown setting %q: %w", key, model.ErrNotValid)
	}

	switch current.(type) {
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return st, fmt.Errorf("setting %q needs a boolean: %w", key, model.ErrNotValid)
		}
		fields[key] = b
	case float64:
		n, err := strconv.Atoi(value)
		if err != nil {
			return st, fmt.Errorf("setting %q needs an integer: %w", key, model.ErrNotValid)
		}
		fields[key] = n
	default:
		fields[key] = value
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return st, fmt.Errorf("could not marshal settings: %w", err)
	}
	var res model.Settings
	if err := json.Unmarshal(data, &res); err != nil {
		return st, fmt.Errorf("could not unmarshal settings: %w", err)
	}
	return res, nil
}

func toFields(st model.Settings) (map[string]any, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("could not marshal settings: %w", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("could not unmarshal settings: %w", err)
	}
	return fields, nil
}
