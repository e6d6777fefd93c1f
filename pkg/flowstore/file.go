package flowstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ivikasavnish/go-flowrec/pkg/codegen"
	"github.com/ivikasavnish/go-flowrec/pkg/command"
)

// ReadFile loads a command list from disk. JSON and YAML files hold a list of
// command records; anything else is read as a declarative script.
func ReadFile(path string) (command.List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow file: %w", err)
	}
	return Decode(filepath.Ext(path), data)
}

// Decode parses data according to the file extension ext.
func Decode(ext string, data []byte) (command.List, error) {
	var list command.List
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("failed to parse JSON flow: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("failed to parse YAML flow: %w", err)
		}
	default:
		cmds, err := codegen.Parse(string(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse flow script: %w", err)
		}
		list = cmds
	}
	if err := command.ValidateAll(list); err != nil {
		return nil, err
	}
	return list, nil
}
