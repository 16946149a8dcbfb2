package template

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sigs.k8s.io/yaml"
)

//go:embed templates/*.json
var builtin embed.FS

// ErrNotFound is returned when no template has the requested name.
var ErrNotFound = errors.New("template not found")

var extensions = []string{".json", ".yaml", ".yml"}

// Repository loads templates from a directory, falling back to the
// templates built into the binary.
type Repository struct {
	dir string
}

// NewRepository creates a repository. An empty dir uses only the built-in templates.
func NewRepository(dir string) *Repository {
	return &Repository{dir: dir}
}

// Load returns the template with the given name. Files in the repository
// directory shadow built-in templates of the same name.
func (r *Repository) Load(name string) (*Template, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("invalid template name %q", name)
	}
	if r.dir != "" {
		for _, ext := range extensions {
			data, err := os.ReadFile(filepath.Join(r.dir, name+ext))
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to read template %s: %w", name, err)
			}
			return parse(name, data)
		}
	}
	data, err := builtin.ReadFile("templates/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return parse(name, data)
}

// List returns the names of every available template.
func (r *Repository) List() ([]string, error) {
	seen := make(map[string]bool)
	entries, err := builtin.ReadDir("templates")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		seen[strings.TrimSuffix(e.Name(), ".json")] = true
	}
	if r.dir != "" {
		entries, err := os.ReadDir(r.dir)
		if err != nil {
			return nil, fmt.Errorf("failed to list templates: %w", err)
		}
		for _, e := range entries {
			ext := filepath.Ext(e.Name())
			for _, known := range extensions {
				if ext == known && !e.IsDir() {
					seen[strings.TrimSuffix(e.Name(), ext)] = true
				}
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// parse reads JSON or YAML content.
func parse(name string, data []byte) (*Template, error) {
	var content map[string]any
	if err := yaml.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	if content == nil {
		return nil, fmt.Errorf("template %s is empty", name)
	}
	if _, ok := content["resources"]; !ok {
		return nil, fmt.Errorf("template %s declares no resources", name)
	}
	return &Template{Name: name, Content: content}, nil
}
