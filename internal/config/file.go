// Package config loads the YAML run configuration and the persistent
// user preferences.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"miniswe/internal/agent"
	"miniswe/internal/environment"
)

// EnvironmentSettings mirrors environment.Config in file form. Durations
// are plain seconds so the YAML stays simple.
type EnvironmentSettings struct {
	Image             string            `yaml:"image"`
	Cwd               string            `yaml:"cwd"`
	ContainerID       string            `yaml:"container_id"`
	ContainerName     string            `yaml:"container_name"`
	ManageContainer   *bool             `yaml:"manage_container"`
	Env               map[string]string `yaml:"env"`
	ForwardEnv        []string          `yaml:"forward_env"`
	Timeout           int               `yaml:"timeout"`
	Executable        string            `yaml:"executable"`
	RunArgs           []string          `yaml:"run_args"`
	ContainerLifetime string            `yaml:"container_lifetime"`
	PullTimeout       int               `yaml:"pull_timeout"`
	Memory            string            `yaml:"memory"`
	CPUs              string            `yaml:"cpus"`
}

// Config converts the file settings into an environment config.
func (s EnvironmentSettings) Config() environment.Config {
	return environment.Config{
		Image:             s.Image,
		Cwd:               s.Cwd,
		ContainerID:       s.ContainerID,
		ContainerName:     s.ContainerName,
		ManageContainer:   s.ManageContainer,
		Env:               s.Env,
		ForwardEnv:        s.ForwardEnv,
		Timeout:           time.Duration(s.Timeout) * time.Second,
		Executable:        s.Executable,
		RunArgs:           s.RunArgs,
		ContainerLifetime: s.ContainerLifetime,
		PullTimeout:       time.Duration(s.PullTimeout) * time.Second,
		Memory:            s.Memory,
		CPUs:              s.CPUs,
	}
}

// ModelSettings selects the provider and model for a run. Empty fields
// fall back to the environment-variable driven factory defaults.
type ModelSettings struct {
	Provider string `yaml:"provider"`
	Name     string `yaml:"name"`
}

// File is the full YAML run configuration.
type File struct {
	Agent       agent.Config        `yaml:"agent"`
	Environment EnvironmentSettings `yaml:"environment"`
	Model       ModelSettings       `yaml:"model"`
}

// fileSchema rejects unknown sections and mistyped fields before the
// struct decode, so a typoed key fails loudly instead of being ignored.
const fileSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "agent": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "system_template": {"type": "string"},
        "instance_template": {"type": "string"},
        "action_observation_template": {"type": "string"},
        "format_error_template": {"type": "string"},
        "timeout_template": {"type": "string"},
        "step_limit": {"type": "integer", "minimum": 0},
        "cost_limit": {"type": "number", "minimum": 0}
      }
    },
    "environment": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "image": {"type": "string"},
        "cwd": {"type": "string"},
        "container_id": {"type": "string"},
        "container_name": {"type": "string"},
        "manage_container": {"type": "boolean"},
        "env": {"type": "object", "additionalProperties": {"type": "string"}},
        "forward_env": {"type": "array", "items": {"type": "string"}},
        "timeout": {"type": "integer", "minimum": 1},
        "executable": {"type": "string"},
        "run_args": {"type": "array", "items": {"type": "string"}},
        "container_lifetime": {"type": "string"},
        "pull_timeout": {"type": "integer", "minimum": 1},
        "memory": {"type": "string"},
        "cpus": {"type": "string"}
      }
    },
    "model": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "provider": {"type": "string"},
        "name": {"type": "string"}
      }
    }
  }
}`

// Load reads and validates a YAML run configuration.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(fileSchema)
	documentLoader := gojsonschema.NewGoLoader(raw)
	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("config schema validation failed: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, fmt.Errorf("invalid config %s: %v", path, msgs)
	}

	// File values overlay the stock agent defaults, so omitting a limit
	// keeps the default rather than making it unlimited.
	file := File{Agent: agent.DefaultConfig()}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &file, nil
}
