package orchestrator

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed rosters/default.yaml
var defaultRosterYAML []byte

// RosterSchema is the JSON schema every roster document must satisfy
const RosterSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["teams"],
  "properties": {
    "teams": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {
        "type": "array",
        "minItems": 1,
        "items": {
          "type": "object",
          "required": ["name", "role"],
          "properties": {
            "name": {"type": "string", "minLength": 1},
            "role": {"type": "string", "pattern": "^[A-Za-z][A-Za-z0-9_]*$"},
            "description": {"type": "string"},
            "tool": {"type": "string"},
            "delegates": {"type": "array", "items": {"type": "string"}}
          },
          "additionalProperties": false
        }
      }
    }
  },
  "additionalProperties": false
}`

// AgentSpec is the declarative form of an AgentDefinition. Tool defaults to
// the role when empty.
type AgentSpec struct {
	Name        string   `json:"name" yaml:"name"`
	Role        string   `json:"role" yaml:"role"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Tool        string   `json:"tool,omitempty" yaml:"tool,omitempty"`
	Delegates   []string `json:"delegates,omitempty" yaml:"delegates,omitempty"`
}

// RosterFile is the on-disk roster document
type RosterFile struct {
	Teams map[string][]AgentSpec `json:"teams" yaml:"teams"`
}

// RosterLoader loads roster documents from JSON or YAML
type RosterLoader struct {
	logger       Logger
	schemaLoader gojsonschema.JSONLoader
}

// NewRosterLoader creates a loader. logger may be nil.
func NewRosterLoader(logger Logger) *RosterLoader {
	if logger == nil {
		logger = nopLogger{}
	}
	return &RosterLoader{
		logger:       logger,
		schemaLoader: gojsonschema.NewStringLoader(RosterSchema),
	}
}

// LoadFromFile reads a roster from a .json, .yaml or .yml file
func (rl *RosterLoader) LoadFromFile(path string) (*RosterFile, error) {
	if path == "" {
		return nil, fmt.Errorf("roster file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster file: %w", err)
	}

	format := strings.TrimPrefix(filepath.Ext(path), ".")
	roster, err := rl.LoadFromBytes(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	rl.logger.Info("Loaded roster from file", "path", path, "teams", len(roster.Teams))
	return roster, nil
}

// LoadFromBytes parses and schema-validates a roster document
func (rl *RosterLoader) LoadFromBytes(data []byte, format string) (*RosterFile, error) {
	var doc any
	var roster RosterFile

	switch format {
	case "json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON roster: %w", err)
		}
		if err := json.Unmarshal(data, &roster); err != nil {
			return nil, fmt.Errorf("failed to decode JSON roster: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML roster: %w", err)
		}
		if err := yaml.Unmarshal(data, &roster); err != nil {
			return nil, fmt.Errorf("failed to decode YAML roster: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported roster format: %q (supported: json, yaml, yml)", format)
	}

	if err := rl.validateSchema(doc); err != nil {
		return nil, fmt.Errorf("roster schema validation failed: %w", err)
	}
	return &roster, nil
}

// LoadRoster loads a roster file and binds its tools from registry. An empty
// path loads the built-in roster.
func (rl *RosterLoader) LoadRoster(path string, registry *ToolRegistry) (*Roster, error) {
	var file *RosterFile
	var err error
	if path == "" {
		file, err = rl.LoadFromBytes(defaultRosterYAML, "yaml")
	} else {
		file, err = rl.LoadFromFile(path)
	}
	if err != nil {
		return nil, err
	}
	return BindRoster(file, registry)
}

func (rl *RosterLoader) validateSchema(doc any) error {
	result, err := gojsonschema.Validate(rl.schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("schema validation errors: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// DefaultRoster binds the built-in roster against registry
func DefaultRoster(registry *ToolRegistry) (*Roster, error) {
	return NewRosterLoader(nil).LoadRoster("", registry)
}
