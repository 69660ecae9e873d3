package step

import "fmt"

// paramString fetches a required string param, the step-local analogue
// of the teacher's getEnvString config helper.
func paramString(params map[string]interface{}, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("missing required param %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("param %q must be a string, got %T", key, v)
	}
	return s, nil
}

// paramStringOr fetches an optional string param with a default.
func paramStringOr(params map[string]interface{}, key, def string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// paramInt fetches a required integer param. YAML unmarshals bare
// numbers as int in gopkg.in/yaml.v2, so int is the common case; a
// float64 fallback covers values that arrived via JSON-like sources.
func paramInt(params map[string]interface{}, key string) (int, error) {
	v, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("missing required param %q", key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("param %q must be an integer, got %T", key, v)
	}
}

// paramIntOr fetches an optional integer param with a default.
func paramIntOr(params map[string]interface{}, key string, def int) int {
	if n, err := paramInt(params, key); err == nil {
		return n
	}
	return def
}

// paramBoolOr fetches an optional boolean param with a default.
func paramBoolOr(params map[string]interface{}, key string, def bool) bool {
	if v, ok := params[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// paramStringMap fetches an optional map[string]string param (e.g.
// Demultiplex's barcode->bucket mapping read straight from the step's
// own params rather than the shared config.Barcodes sets).
func paramStringMap(params map[string]interface{}, key string) map[string]string {
	raw, ok := params[key]
	if !ok {
		return nil
	}
	m, ok := raw.(map[interface{}]interface{})
	if !ok {
		if m2, ok := raw.(map[string]interface{}); ok {
			out := make(map[string]string, len(m2))
			for k, v := range m2 {
				if s, ok := v.(string); ok {
					out[k] = s
				}
			}
			return out
		}
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		ks, kok := k.(string)
		vs, vok := v.(string)
		if kok && vok {
			out[ks] = vs
		}
	}
	return out
}
