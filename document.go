package flagkit

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"reflect"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const enabledKey = "enabled"

// A single feature flag from a configuration document
type Flag struct {
	Name      string
	Enabled   bool
	Variables map[string]interface{}

	hasEnabled bool
}

// Document maps flag names to their definitions. A Document is never
// modified after it is returned by a fetch; treat it as read-only.
type Document map[string]Flag

// Lookup returns the named flag, or a *FlagNotFoundError when the flag is
// absent or was delivered without an enabled field. The returned Variables
// are a copy the caller may modify.
func (d Document) Lookup(name string) (Flag, error) {
	flag, ok := d[name]
	if !ok {
		return Flag{}, &FlagNotFoundError{Name: name}
	}
	if !flag.hasEnabled {
		return Flag{}, &FlagNotFoundError{Name: name, Reason: "missing enabled field"}
	}
	flag.Variables = cloneVariables(flag.Variables)
	return flag, nil
}

func cloneVariables(vars map[string]interface{}) map[string]interface{} {
	if vars == nil {
		return nil
	}
	out := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return cloneVariables(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Names returns the flag names in sorted order.
func (d Document) Names() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d Document) Equal(other Document) bool {
	if len(d) != len(other) {
		return false
	}
	for name, flag := range d {
		o, ok := other[name]
		if !ok {
			return false
		}
		if flag.Enabled != o.Enabled || flag.hasEnabled != o.hasEnabled {
			return false
		}
		if len(flag.Variables) != len(o.Variables) {
			return false
		}
		if len(flag.Variables) > 0 && !reflect.DeepEqual(flag.Variables, o.Variables) {
			return false
		}
	}
	return true
}

// ParseDocument decodes a configuration payload. YAML content types are
// decoded as YAML, everything else as JSON.
func ParseDocument(body []byte, contentType string) (Document, error) {
	format := formatForContentType(contentType)
	var raw map[string]map[string]interface{}
	var err error
	if format == "yaml" {
		err = yaml.Unmarshal(body, &raw)
	} else {
		err = json.Unmarshal(body, &raw)
	}
	if err != nil {
		return nil, &ConfigParseError{Format: format, Err: err}
	}
	if raw == nil {
		return nil, &ConfigParseError{Format: format, Err: errors.New("document is not a mapping")}
	}

	doc := make(Document, len(raw))
	for name, fields := range raw {
		flag := Flag{Name: name, Variables: make(map[string]interface{})}
		for key, value := range fields {
			if key != enabledKey {
				flag.Variables[key] = value
				continue
			}
			enabled, ok := value.(bool)
			if !ok {
				return nil, &ConfigParseError{
					Format: format,
					Err:    fmt.Errorf("flag %q: enabled must be a boolean, got %T", name, value),
				}
			}
			flag.Enabled = enabled
			flag.hasEnabled = true
		}
		doc[name] = flag
	}
	return doc, nil
}

func formatForContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch mediaType {
	case "application/x-yaml", "application/yaml", "text/yaml", "text/x-yaml":
		return "yaml"
	default:
		return "json"
	}
}

// Gets the string variable at the given key
// Returns the fallback string if the variable is not found or not of type string
func (f Flag) GetString(key string, fallback string) string {
	if v, ok := f.Variables[key]; ok {
		if val, ok := v.(string); ok {
			return val
		}
	}
	return fallback
}

// Gets the numeric variable at the given key as a float64
// Returns the fallback if the variable is not found or not numeric
func (f Flag) GetNumber(key string, fallback float64) float64 {
	if v, ok := f.Variables[key]; ok {
		switch val := v.(type) {
		case float64:
			return val
		case int:
			return float64(val)
		case int64:
			return float64(val)
		}
	}
	return fallback
}

func (f Flag) GetBool(key string, fallback bool) bool {
	if v, ok := f.Variables[key]; ok {
		if val, ok := v.(bool); ok {
			return val
		}
	}
	return fallback
}

func (f Flag) GetSlice(key string, fallback []interface{}) []interface{} {
	if v, ok := f.Variables[key]; ok {
		if val, ok := v.([]interface{}); ok {
			return val
		}
	}
	return fallback
}

func (f Flag) GetMap(key string, fallback map[string]interface{}) map[string]interface{} {
	if v, ok := f.Variables[key]; ok {
		if val, ok := v.(map[string]interface{}); ok {
			return val
		}
	}
	return fallback
}
