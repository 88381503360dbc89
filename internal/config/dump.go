package config

import (
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const maskedValue = "***"

// secretKeys are the dotted settings keys whose values are masked when the
// effective configuration is rendered.
var secretKeys = []string{
	"hubspot.client_secret",
	"hubspot.refresh_token",
	"admin_token",
}

// Effective returns the merged settings map with secret values masked.
// Empty secrets stay empty so a missing credential is visible as such.
func Effective() map[string]any {
	settings := deepCopy(viper.AllSettings())
	for _, key := range secretKeys {
		maskKey(settings, key)
	}
	return settings
}

// RenderYAML renders a settings map as YAML.
func RenderYAML(settings map[string]any) (string, error) {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func deepCopy(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		if nested, ok := value.(map[string]any); ok {
			out[key] = deepCopy(nested)
			continue
		}
		out[key] = value
	}
	return out
}

func maskKey(settings map[string]any, dotted string) {
	current := settings
	parts := strings.Split(dotted, ".")
	for i, part := range parts {
		if i == len(parts)-1 {
			if value, ok := current[part].(string); ok && value != "" {
				current[part] = maskedValue
			}
			return
		}
		nested, ok := current[part].(map[string]any)
		if !ok {
			return
		}
		current = nested
	}
}
