// Package packer produces the compact index encoding from a readable
// manifest of namespaces and items.
package packer

import (
	"fmt"
	"os"

	apperrors "github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Manifest is the packer input. YAML and JSON manifests are both accepted.
//
//	namespaces:
//	  - name: simple_net
//	    items:
//	      - {kind: struct, name: Tensor, path: simple_net}
//	      - {kind: method, name: zero, parent: Tensor, args: [usize, usize], ret: Tensor}
type Manifest struct {
	Namespaces []NamespaceSpec `yaml:"namespaces" json:"namespaces"`
}

type NamespaceSpec struct {
	Name    string       `yaml:"name" json:"name"`
	Doc     string       `yaml:"doc" json:"doc"`
	Parents []ParentSpec `yaml:"parents" json:"parents"`
	Items   []ItemSpec   `yaml:"items" json:"items"`
}

// ParentSpec declares a parent type explicitly. Parents named only by items
// are appended in order of first use.
type ParentSpec struct {
	Kind string `yaml:"kind" json:"kind"`
	Name string `yaml:"name" json:"name"`
}

// ItemSpec is one item. An omitted Path repeats the previous item's path; an
// explicit "" clears it. An item has a signature when Args or Ret is set or
// Callable is true; Ret empty means unit.
type ItemSpec struct {
	Kind     string   `yaml:"kind" json:"kind"`
	Name     string   `yaml:"name" json:"name"`
	Path     *string  `yaml:"path" json:"path"`
	Desc     string   `yaml:"desc" json:"desc"`
	Parent   string   `yaml:"parent" json:"parent"`
	Args     []string `yaml:"args" json:"args"`
	Ret      string   `yaml:"ret" json:"ret"`
	Callable bool     `yaml:"callable" json:"callable"`
}

func (it *ItemSpec) hasSignature() bool {
	return it.Callable || len(it.Args) > 0 || it.Ret != ""
}

// ParseManifest decodes a manifest and checks that namespace names are
// present and distinct.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w: %v", apperrors.ErrInvalidInput, err)
	}
	seen := make(map[string]struct{}, len(m.Namespaces))
	for i, ns := range m.Namespaces {
		if ns.Name == "" {
			return nil, fmt.Errorf("namespace %d has no name: %w", i, apperrors.ErrInvalidInput)
		}
		if _, dup := seen[ns.Name]; dup {
			return nil, fmt.Errorf("duplicate namespace %q: %w", ns.Name, apperrors.ErrInvalidInput)
		}
		seen[ns.Name] = struct{}{}
	}
	return &m, nil
}

func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return ParseManifest(data)
}
