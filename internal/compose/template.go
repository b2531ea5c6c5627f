// Package compose builds mail records from a message template and a user
// list.
package compose

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Template is the message every user receives, with placeholders.
type Template struct {
	Cc      string `yaml:"cc"`
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

// LoadTemplate reads a YAML template file.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}

	var tmpl Template
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &tmpl, nil
}

// SaveTemplate writes tmpl to path as YAML.
func SaveTemplate(path string, tmpl *Template) error {
	data, err := yaml.Marshal(tmpl)
	if err != nil {
		return fmt.Errorf("failed to encode template: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write template: %w", err)
	}
	return nil
}
