package handlers

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version string `yaml:"version"`
	Commit  string `yaml:"commit"`
	Built   string `yaml:"built"`
}

// Version prints the build information as YAML.
func Version(w io.Writer, info BuildInfo) error {
	out, err := yaml.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to encode build info: %w", err)
	}
	_, err = w.Write(out)
	return err
}
