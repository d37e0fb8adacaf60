package data

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ResourceInfo is one harvestable node template. Count is how many nodes
// the room seeds at boot.
type ResourceInfo struct {
	Type  string
	Count int
}

// ResourceTable holds the node templates in file order.
type ResourceTable struct {
	resources []*ResourceInfo
}

// All returns the templates in file order.
func (t *ResourceTable) All() []*ResourceInfo {
	return t.resources
}

// Count returns total loaded templates.
func (t *ResourceTable) Count() int {
	return len(t.resources)
}

type resourceEntry struct {
	Type  string `yaml:"type"`
	Count int    `yaml:"count"`
}

type resourceListFile struct {
	Resources []resourceEntry `yaml:"resources"`
}

// LoadResourceTable loads the node templates from YAML. An empty path loads
// the embedded defaults.
func LoadResourceTable(path string) (*ResourceTable, error) {
	raw, err := readTable(path, "yaml/resources.yaml")
	if err != nil {
		return nil, fmt.Errorf("read resources: %w", err)
	}
	var f resourceListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse resources: %w", err)
	}
	t := &ResourceTable{resources: make([]*ResourceInfo, 0, len(f.Resources))}
	for _, e := range f.Resources {
		if e.Type == "" {
			return nil, fmt.Errorf("resource entry without type")
		}
		count := e.Count
		if count <= 0 {
			count = 1
		}
		t.resources = append(t.resources, &ResourceInfo{Type: e.Type, Count: count})
	}
	return t, nil
}
