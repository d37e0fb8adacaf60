package data

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// EmoteTable holds the allowed emote names.
type EmoteTable struct {
	allowed map[string]struct{}
	names   []string
}

// Valid reports whether the emote name is allowed.
func (t *EmoteTable) Valid(name string) bool {
	_, ok := t.allowed[name]
	return ok
}

// Names returns the allowed emotes in file order.
func (t *EmoteTable) Names() []string {
	return t.names
}

// Count returns total allowed emotes.
func (t *EmoteTable) Count() int {
	return len(t.allowed)
}

type emoteListFile struct {
	Emotes []string `yaml:"emotes"`
}

// LoadEmoteTable loads the emote whitelist from YAML. An empty path loads
// the embedded defaults.
func LoadEmoteTable(path string) (*EmoteTable, error) {
	raw, err := readTable(path, "yaml/emotes.yaml")
	if err != nil {
		return nil, fmt.Errorf("read emotes: %w", err)
	}
	var f emoteListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse emotes: %w", err)
	}
	t := &EmoteTable{
		allowed: make(map[string]struct{}, len(f.Emotes)),
		names:   make([]string, 0, len(f.Emotes)),
	}
	for _, name := range f.Emotes {
		if _, dup := t.allowed[name]; dup {
			continue
		}
		t.allowed[name] = struct{}{}
		t.names = append(t.names, name)
	}
	return t, nil
}
