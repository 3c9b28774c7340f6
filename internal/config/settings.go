package config

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/srediag/telemetry-shm/pkg/layout"
)

// LoadSettings reads a YAML settings file. Keys absent from the file keep
// their layout.DefaultSettings value; unknown keys are an error.
//
//	esp_enabled: true
//	max_dist: 8000
//	glow_visible: {r: 0, g: 1, b: 0}
func LoadSettings(path string) (layout.Settings, error) {
	return ParseSettings(path, nil)
}

// ParseSettings starts from the defaults, applies the file at path if it is
// not empty, then applies key=value pairs such as "bone=3" or
// "glow_visible.g=0.5".
func ParseSettings(path string, pairs []string) (layout.Settings, error) {
	s := layout.DefaultSettings()
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return s, fmt.Errorf("load settings %s: %w", path, err)
		}
	}
	for _, p := range pairs {
		key, val, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return s, fmt.Errorf("settings override %q: want key=value", p)
		}
		if err := k.Set(strings.TrimSpace(key), strings.TrimSpace(val)); err != nil {
			return s, fmt.Errorf("settings override %q: %w", p, err)
		}
	}
	conf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &s,
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		},
	}
	if err := k.UnmarshalWithConf("", &s, conf); err != nil {
		return s, fmt.Errorf("unmarshal settings: %w", err)
	}
	return s, nil
}
