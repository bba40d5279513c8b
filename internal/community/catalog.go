package community

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON string

// roomScope limits which community aliases are visible in a given room.
// The reserved room name "global" is the fallback scope for rooms without an
// explicit entry. An empty alias list means "all communities".
type roomScope struct {
	Room        string   `yaml:"room"`
	Communities []string `yaml:"communities"`
}

type catalogFile struct {
	Communities []Community `yaml:"communities"`
	Rooms       []roomScope `yaml:"rooms"`
}

// Catalog holds the immutable set of configured communities and the per-room
// visibility scopes.
type Catalog struct {
	byAlias map[string]*Community
	ordered []*Community
	scopes  map[string][]string
}

// Load reads, schema-validates, and indexes the community catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("community catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a catalog document. It is the canonical entry point for
// loading the catalog; Load is a thin file wrapper around it.
func Parse(data []byte) (*Catalog, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("community catalog: parse: %w", err)
	}

	cat := &Catalog{
		byAlias: make(map[string]*Community, len(f.Communities)),
		scopes:  make(map[string][]string, len(f.Rooms)),
	}
	for i := range f.Communities {
		c := &f.Communities[i]
		if _, dup := cat.byAlias[c.Alias]; dup {
			return nil, fmt.Errorf("community catalog: duplicate alias %q", c.Alias)
		}
		cat.byAlias[c.Alias] = c
		cat.ordered = append(cat.ordered, c)
	}
	for _, s := range f.Rooms {
		for _, alias := range s.Communities {
			if _, ok := cat.byAlias[alias]; !ok {
				return nil, fmt.Errorf("community catalog: room %q references unknown alias %q", s.Room, alias)
			}
		}
		cat.scopes[s.Room] = s.Communities
	}

	return cat, nil
}

// validateSchema checks the raw YAML document against the embedded JSON
// schema. YAML is decoded to generic values and round-tripped through JSON so
// the validator sees JSON-typed data.
func validateSchema(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("community catalog: parse: %w", err)
	}
	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("community catalog: normalise for validation: %w", err)
	}
	var jsonDoc any
	if err := json.Unmarshal(jsonBytes, &jsonDoc); err != nil {
		return fmt.Errorf("community catalog: normalise for validation: %w", err)
	}

	schema, err := jsonschema.CompileString("communities-schema.json", schemaJSON)
	if err != nil {
		return fmt.Errorf("community catalog: compile schema: %w", err)
	}
	if err := schema.Validate(jsonDoc); err != nil {
		return fmt.Errorf("community catalog: invalid: %w", err)
	}
	return nil
}

// Get returns the community for alias. Lookup failure is a fatal precondition
// for any command that references a community.
func (c *Catalog) Get(alias string) (*Community, error) {
	cm, ok := c.byAlias[strings.TrimSpace(alias)]
	if !ok {
		return nil, fmt.Errorf("community %q not found", alias)
	}
	return cm, nil
}

// List returns the communities visible in roomID, in catalog order. Rooms
// without an explicit scope fall back to the "global" scope; an absent or
// empty scope means all communities are visible.
func (c *Catalog) List(roomID string) []*Community {
	scope, ok := c.scopes[roomID]
	if !ok {
		scope = c.scopes["global"]
	}
	if len(scope) == 0 {
		out := make([]*Community, len(c.ordered))
		copy(out, c.ordered)
		return out
	}

	allowed := make(map[string]struct{}, len(scope))
	for _, alias := range scope {
		allowed[alias] = struct{}{}
	}
	var out []*Community
	for _, cm := range c.ordered {
		if _, ok := allowed[cm.Alias]; ok {
			out = append(out, cm)
		}
	}
	return out
}

// Rooms returns the explicitly scoped room IDs, sorted. The "global"
// fallback scope is not a room and is excluded.
func (c *Catalog) Rooms() []string {
	var out []string
	for room := range c.scopes {
		if room != "global" {
			out = append(out, room)
		}
	}
	sort.Strings(out)
	return out
}

// Aliases returns all configured aliases, sorted.
func (c *Catalog) Aliases() []string {
	out := make([]string, 0, len(c.byAlias))
	for a := range c.byAlias {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
