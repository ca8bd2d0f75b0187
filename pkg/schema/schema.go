// Package schema defines the envrun document model: environment groups, the
// script tree and the closed set of script variants, together with loading,
// import merging, path lookup and JSON Schema export/validation.
package schema

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"
)

// Top-level document keys.
const (
	KeyImports     = "imports"
	KeyEnv         = "env"
	KeyScripts     = "scripts"
	KeyDescription = "description"
)

var topLevelKeys = []string{KeyImports, KeyEnv, KeyScripts, KeyDescription}

// Document is a parsed envrun document.
type Document struct {
	Imports     []Import
	Description string
	// Env maps group name to an ordered group of variable declarations.
	Env *Map
	// Scripts is the script tree. Leaves are script declarations, inner
	// maps without a discriminator key are groups.
	Scripts *Map
	// Path is the file path or URL the document was loaded from.
	Path string
}

// Import references another document whose env groups and scripts are
// merged into the importing one.
type Import struct {
	Path     string `mapstructure:"path"`
	Optional bool   `mapstructure:"optional"`
}

// GroupNames returns the env group names in declaration order.
func (d *Document) GroupNames() []string {
	return d.Env.Keys()
}

// Group returns the named env group.
func (d *Document) Group(name string) (*Map, bool) {
	v, ok := d.Env.Get(name)
	if !ok {
		return nil, false
	}
	m, ok := v.(*Map)
	return m, ok
}

// LoadFile reads and parses a document from disk.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	doc, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if abs, err := filepath.Abs(path); err == nil {
		doc.Path = abs
	} else {
		doc.Path = path
	}
	return doc, nil
}

// Load parses a YAML (or JSON) document. Unknown top-level keys are rejected.
func Load(r io.Reader) (*Document, error) {
	var node yaml.Node
	if err := yaml.NewDecoder(r).Decode(&node); err != nil {
		if err == io.EOF {
			return &Document{Env: NewMap(), Scripts: NewMap()}, nil
		}
		return nil, fmt.Errorf("decode document: %w", err)
	}
	tree, err := FromYAML(&node)
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return FromTree(tree)
}

// Parse is Load over a byte slice.
func Parse(data []byte) (*Document, error) {
	return Load(bytes.NewReader(data))
}

// FromTree builds a Document from an already-decoded generic tree.
func FromTree(tree any) (*Document, error) {
	doc := &Document{Env: NewMap(), Scripts: NewMap()}
	if tree == nil {
		return doc, nil
	}
	root, ok := tree.(*Map)
	if !ok {
		return nil, fmt.Errorf("document root must be a mapping, got %T", tree)
	}
	for _, k := range root.Keys() {
		if !slices.Contains(topLevelKeys, k) {
			return nil, fmt.Errorf("unknown top-level key %q (allowed: %v)", k, topLevelKeys)
		}
	}

	if v, ok := root.Get(KeyDescription); ok && v != nil {
		s, ok := Scalar(v)
		if !ok {
			return nil, fmt.Errorf("description must be a string")
		}
		doc.Description = s
	}

	if v, ok := root.Get(KeyEnv); ok && v != nil {
		env, ok := v.(*Map)
		if !ok {
			return nil, fmt.Errorf("env must be a mapping of groups, got %T", v)
		}
		for _, name := range env.Keys() {
			g, _ := env.Get(name)
			if g == nil {
				env.Set(name, NewMap())
				continue
			}
			if _, ok := g.(*Map); !ok {
				return nil, fmt.Errorf("env.%s must be a mapping, got %T", name, g)
			}
		}
		doc.Env = env
	}

	if v, ok := root.Get(KeyScripts); ok && v != nil {
		scripts, ok := v.(*Map)
		if !ok {
			return nil, fmt.Errorf("scripts must be a mapping, got %T", v)
		}
		doc.Scripts = scripts
	}

	if v, ok := root.Get(KeyImports); ok && v != nil {
		imports, err := decodeImports(v)
		if err != nil {
			return nil, err
		}
		doc.Imports = imports
	}
	return doc, nil
}

func decodeImports(v any) ([]Import, error) {
	list, ok := v.([]any)
	if !ok {
		list = []any{v}
	}
	out := make([]Import, 0, len(list))
	for i, item := range list {
		switch t := item.(type) {
		case string:
			out = append(out, Import{Path: t})
		case *Map:
			var imp Import
			dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
				ErrorUnused:      true,
				WeaklyTypedInput: true,
				Result:           &imp,
			})
			if err != nil {
				return nil, err
			}
			if err := dec.Decode(Plain(t)); err != nil {
				return nil, fmt.Errorf("imports[%d]: %w", i, err)
			}
			if imp.Path == "" {
				return nil, fmt.Errorf("imports[%d]: path is required", i)
			}
			out = append(out, imp)
		default:
			return nil, fmt.Errorf("imports[%d]: expected string or mapping, got %T", i, item)
		}
	}
	return out, nil
}
