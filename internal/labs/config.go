package labs

import (
	"fmt"
	"strconv"
)

// Lab configs arrive as decoded YAML, so values are any-typed.

func cfgString(cfg map[string]any, key string) (string, error) {
	v, ok := cfg[key]
	if !ok {
		return "", fmt.Errorf("missing %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%q must be a string, got %T", key, v)
	}
	return s, nil
}

func cfgInt(cfg map[string]any, key string) (int, error) {
	v, ok := cfg[key]
	if !ok {
		return 0, fmt.Errorf("missing %q", key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("%q must be a number: %w", key, err)
		}
		return i, nil
	}
	return 0, fmt.Errorf("%q must be a number, got %T", key, v)
}

func cfgStrings(cfg map[string]any, key string) ([]string, error) {
	v, ok := cfg[key]
	if !ok {
		return nil, fmt.Errorf("missing %q", key)
	}
	switch list := v.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%q[%d] must be a string, got %T", key, i, item)
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("%q must be a list, got %T", key, v)
}

func cfgBools(cfg map[string]any, key string) ([]bool, error) {
	v, ok := cfg[key]
	if !ok {
		return nil, fmt.Errorf("missing %q", key)
	}
	switch list := v.(type) {
	case []bool:
		return list, nil
	case []any:
		out := make([]bool, len(list))
		for i, item := range list {
			b, ok := item.(bool)
			if !ok {
				return nil, fmt.Errorf("%q[%d] must be a boolean, got %T", key, i, item)
			}
			out[i] = b
		}
		return out, nil
	}
	return nil, fmt.Errorf("%q must be a list, got %T", key, v)
}
