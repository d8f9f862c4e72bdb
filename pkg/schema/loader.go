package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Parse decodes a definition. The format follows the file extension: .yaml
// and .yml are YAML, .jsonc is JSON with comments and trailing commas, and
// .json is plain JSON. Unknown extensions try JSON first, then YAML.
func Parse(data []byte, source string) (Definition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Definition{}, fmt.Errorf("schema: file %s is empty", source)
	}

	var def Definition
	switch strings.ToLower(filepath.Ext(source)) {
	case ".yaml", ".yml":
		if err := decodeYAML(data, &def); err != nil {
			return Definition{}, fmt.Errorf("schema: parse %s: %w", source, err)
		}
	case ".jsonc":
		if err := decodeJSON(jsonc.ToJSON(data), &def); err != nil {
			return Definition{}, fmt.Errorf("schema: parse %s: %w", source, err)
		}
	case ".json":
		if err := decodeJSON(data, &def); err != nil {
			return Definition{}, fmt.Errorf("schema: parse %s: %w", source, err)
		}
	default:
		if err := decodeJSON(data, &def); err != nil {
			if yamlErr := decodeYAML(data, &def); yamlErr != nil {
				return Definition{}, fmt.Errorf("schema: parse %s: invalid JSON or YAML", source)
			}
		}
	}

	def.Source = source
	if err := def.Check(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

func decodeJSON(data []byte, out *Definition) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func decodeYAML(data []byte, out *Definition) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}

// Store indexes definitions by id.
type Store struct {
	definitions map[string]Definition
}

// NewStore builds a store from already parsed definitions.
func NewStore(defs ...Definition) (*Store, error) {
	store := &Store{definitions: make(map[string]Definition, len(defs))}
	for _, def := range defs {
		if err := store.add(def); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// LoadFS walks fsys and parses every definition file. A nil fsys yields an
// empty store.
func LoadFS(fsys fs.FS) (*Store, error) {
	store := &Store{definitions: make(map[string]Definition)}
	if fsys == nil {
		return store, nil
	}

	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !IsDefinitionFile(path) {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("schema: read %s: %w", path, err)
		}
		def, err := Parse(data, path)
		if err != nil {
			return err
		}
		return store.add(def)
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) add(def Definition) error {
	if prev, exists := s.definitions[def.ID]; exists {
		return fmt.Errorf("schema: duplicate definition %q (files %s and %s)", def.ID, prev.Source, def.Source)
	}
	s.definitions[def.ID] = def
	return nil
}

// Definition returns the definition registered under id.
func (s *Store) Definition(id string) (Definition, bool) {
	if s == nil {
		return Definition{}, false
	}
	def, ok := s.definitions[strings.TrimSpace(id)]
	return def, ok
}

// IDs lists the stored definition ids in sorted order.
func (s *Store) IDs() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.definitions))
	for id := range s.definitions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Empty reports whether the store holds any definitions.
func (s *Store) Empty() bool {
	return s == nil || len(s.definitions) == 0
}

// IsDefinitionFile reports whether path has a supported extension.
func IsDefinitionFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc", ".yaml", ".yml":
		return true
	default:
		return false
	}
}
