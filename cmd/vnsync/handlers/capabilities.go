package handlers

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Capabilities prints the provider capability table of the configuration.
func Capabilities(w io.Writer, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(cfg.Capabilities)
	if err != nil {
		return fmt.Errorf("failed to encode capabilities: %w", err)
	}
	_, err = w.Write(out)
	return err
}
