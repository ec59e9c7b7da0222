package models

import (
	"context"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// InstallMapping pairs a file inside the source archive with the name it
// receives in the binary directory.
type InstallMapping struct {
	SourcePath    string `yaml:"source_path" json:"source_path"`
	InstalledName string `yaml:"installed_name" json:"installed_name"`
}

// ParseInstallMapping splits "source => name" or "source:name". A bare source
// installs under its base name without extension. The result is not validated.
func ParseInstallMapping(s string) (InstallMapping, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return InstallMapping{}, fmt.Errorf("install mapping is empty")
	}

	var source, name string
	switch {
	case strings.Contains(s, "=>"):
		source, name, _ = strings.Cut(s, "=>")
	case strings.Contains(s, ":"):
		source, name, _ = strings.Cut(s, ":")
	default:
		source = s
		name = path.Base(s)
		if dot := strings.LastIndex(name, "."); dot > 0 {
			name = name[:dot]
		}
	}

	return InstallMapping{
		SourcePath:    strings.Trim(strings.TrimSpace(source), `"`),
		InstalledName: strings.Trim(strings.TrimSpace(name), `"`),
	}, nil
}

// UnmarshalYAML accepts either a mapping or a "source => name" string
func (m *InstallMapping) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		parsed, err := ParseInstallMapping(value.Value)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	}

	type plain InstallMapping
	return value.Decode((*plain)(m))
}

// Installable is implemented by anything able to place its files into a
// binary directory from an already fetched and verified source tree.
type Installable interface {
	Install(ctx context.Context, srcRoot, binDir string) error
}
