// Package definition loads container and group definition documents from
// disk into validated model types.
//
// Definition files are YAML by default; JSONC (JSON with comments) is
// accepted for the same key set, stripped with github.com/tidwall/jsonc
// before decoding. A definitions directory holds one file per container
// under containers/ plus a groups.yaml describing group membership,
// masters, and group-scoped defaults.
//
// Decoding is strict: unknown keys fail validation instead of being
// silently dropped, so a typoed option never turns into a container
// running without it.
package definition

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/mmr-tortoise/flotilla/internal/model"
)

const (
	// containersDir is the subdirectory of the store holding one
	// definition file per container.
	containersDir = "containers"

	// groupsFile is the store file describing groups.
	groupsFile = "groups.yaml"
)

// ParseContainer decodes a container definition document. The data may be
// YAML or JSONC; JSONC is detected by the jsonc flag and converted before
// decoding. The returned definition has passed Validate.
func ParseContainer(data []byte, isJSONC bool) (*model.ContainerDefinition, error) {
	if isJSONC {
		data = jsonc.ToJSON(data)
	}

	// yaml.v3 accepts JSON input, so both formats funnel through one
	// strict decoder keyed by the yaml struct tags.
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var def model.ContainerDefinition
	if err := dec.Decode(&def); err != nil {
		return nil, model.NewValidationError("definition", err.Error())
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadFile reads and decodes a definition file, picking the format from the
// file extension (.json/.jsonc are treated as JSONC, everything else as
// YAML).
func LoadFile(path string) (*model.ContainerDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	return ParseContainer(data, ext == ".json" || ext == ".jsonc")
}

// Store persists validated definitions under a base directory:
//
//	<dir>/containers/<name>.yaml
//	<dir>/groups.yaml
//
// Layout and semantics follow the operator workflow: a definition is
// validated once when defined, stored normalized, and reread on each run.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir and ensures the layout exists.
func NewStore(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store path %s: %w", dir, err)
	}
	if err := os.MkdirAll(filepath.Join(abs, containersDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store layout at %s: %w", abs, err)
	}
	return &Store{dir: abs}, nil
}

// Dir returns the store's base directory.
func (s *Store) Dir() string {
	return s.dir
}

// Define validates the definition document at path and stores it
// normalized as containers/<name>.yaml. It returns the parsed definition.
// Callers that must run cross-definition checks between parsing and
// persisting use LoadFile and Save separately instead.
func (s *Store) Define(path string) (*model.ContainerDefinition, error) {
	def, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := s.Save(def); err != nil {
		return nil, err
	}
	return def, nil
}

// Save writes a validated definition to its canonical store location as
// YAML.
func (s *Store) Save(def *model.ContainerDefinition) error {
	data, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to encode definition %q: %w", def.Name, err)
	}
	target := s.containerPath(def.Name)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("failed to write definition %q: %w", def.Name, err)
	}
	return nil
}

// Load reads the stored definition for name.
func (s *Store) Load(name string) (*model.ContainerDefinition, error) {
	path := s.containerPath(name)
	if _, err := os.Stat(path); err != nil {
		return nil, &model.UnknownContainerError{Container: name}
	}
	return LoadFile(path)
}

// List returns the names of all stored container definitions, sorted for
// a stable declaration order across runs.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, containersDir))
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name, ok := strings.CutSuffix(e.Name(), ".yaml"); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// LoadAll reads every stored definition in List order.
func (s *Store) LoadAll() ([]*model.ContainerDefinition, error) {
	names, err := s.List()
	if err != nil {
		return nil, err
	}

	defs := make([]*model.ContainerDefinition, 0, len(names))
	for _, name := range names {
		def, err := s.Load(name)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Remove deletes the stored definition for name.
func (s *Store) Remove(name string) error {
	path := s.containerPath(name)
	if _, err := os.Stat(path); err != nil {
		return &model.UnknownContainerError{Container: name}
	}
	return os.Remove(path)
}

// Dump writes the stored definition for name into destDir as
// <name>.yaml and returns the written path. Operators use this to seed a
// new definition file from an existing container.
func (s *Store) Dump(name, destDir string) (string, error) {
	def, err := s.Load(name)
	if err != nil {
		return "", err
	}
	data, err := yaml.Marshal(def)
	if err != nil {
		return "", fmt.Errorf("failed to encode definition %q: %w", name, err)
	}

	target := filepath.Join(destDir, name+".yaml")
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", target, err)
	}
	return target, nil
}

// LoadGroups reads groups.yaml. A missing file yields an empty map: a
// store with no groups is valid.
func (s *Store) LoadGroups() (map[string]*model.GroupDefinition, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, groupsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*model.GroupDefinition{}, nil
		}
		return nil, fmt.Errorf("failed to read groups: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	raw := map[string]*model.GroupDefinition{}
	if err := dec.Decode(&raw); err != nil {
		return nil, model.NewValidationError("groups", err.Error())
	}
	for name, g := range raw {
		if g == nil {
			g = &model.GroupDefinition{}
			raw[name] = g
		}
		g.Name = name
		if err := g.Validate(); err != nil {
			return nil, err
		}
	}
	return raw, nil
}

// SaveGroups writes groups.yaml.
func (s *Store) SaveGroups(groups map[string]*model.GroupDefinition) error {
	data, err := yaml.Marshal(groups)
	if err != nil {
		return fmt.Errorf("failed to encode groups: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, groupsFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write groups: %w", err)
	}
	return nil
}

// GroupNames returns the stored group names, sorted.
func (s *Store) GroupNames() ([]string, error) {
	groups, err := s.LoadGroups()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) containerPath(name string) string {
	return filepath.Join(s.dir, containersDir, name+".yaml")
}
