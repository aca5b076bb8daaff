package fragment

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ReadFile loads an id -> text map from a .json, .yaml or .yml file.
func ReadFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fragments: %w", err)
	}
	fragments, err := Unmarshal(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fragments, nil
}

// Unmarshal decodes data according to ext. Unknown extensions are read as
// YAML, which also accepts JSON.
func Unmarshal(data []byte, ext string) (map[string]string, error) {
	fragments := make(map[string]string)
	var err error
	if strings.EqualFold(ext, ".json") {
		err = json.Unmarshal(data, &fragments)
	} else {
		err = yaml.Unmarshal(data, &fragments)
	}
	if err != nil {
		return nil, fmt.Errorf("decode fragments: %w", err)
	}
	return fragments, nil
}

// Marshal encodes fragments for a file with extension ext. YAML output keeps
// multi-line fragments as block scalars.
func Marshal(fragments map[string]string, ext string) ([]byte, error) {
	if strings.EqualFold(ext, ".json") {
		data, err := json.MarshalIndent(fragments, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
	return yaml.Marshal(fragments)
}
