// Package dialogue resolves player utterances into intent, alignment shifts
// and in-character reactions, for both the fixed dialogue nodes and dynamic
// NPC conversations.
package dialogue

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Alignment is the player's position on the moral scale.
type Alignment string

const (
	Hero    Alignment = "HERO"
	Neutral Alignment = "NEUTRAL"
	Villain Alignment = "VILLAIN"
)

// Alignments is the ordered scale, HERO first.
var Alignments = []Alignment{Hero, Neutral, Villain}

// NoConsequence is the consequence tag of a choice without one.
const NoConsequence = "NO_CONSEQUENCE"

// ErrUnknownNode is returned when a node ID is not in the catalog.
var ErrUnknownNode = errors.New("unknown dialogue node")

// Choice is a selectable option of a node or conversation.
type Choice struct {
	ID          string    `yaml:"id" json:"id"`
	Text        string    `yaml:"text" json:"text"`
	Alignment   Alignment `yaml:"alignment" json:"alignment,omitempty"`
	Consequence string    `yaml:"consequence" json:"consequence,omitempty"`
	End         bool      `yaml:"end" json:"end,omitempty"`
}

// Reaction is a speaker's fixed answer to a choice.
type Reaction struct {
	Speaker      string  `yaml:"speaker" json:"speaker"`
	Response     string  `yaml:"response" json:"response"`
	Consequence  string  `yaml:"consequence" json:"consequence"`
	Relationship float64 `yaml:"relationship" json:"relationship"`
}

// Node is a fixed dialogue state: who speaks, what they say, and how the
// player can answer.
type Node struct {
	ID        string              `yaml:"id"`
	Speaker   string              `yaml:"speaker"`
	Lines     []string            `yaml:"lines"`
	Choices   []Choice            `yaml:"choices"`
	Reactions map[string]Reaction `yaml:"reactions"`
}

// Choice returns the node choice with the given ID.
func (n *Node) Choice(id string) (Choice, bool) {
	for _, c := range n.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

// Catalog is the set of dialogue nodes.
type Catalog struct {
	Nodes []*Node `yaml:"nodes"`

	byID map[string]*Node
}

// Validate checks every node and builds the lookup index.
//
// Postcondition: nil return guarantees unique node IDs, unique choice IDs
// within a node, known alignments, and reactions that name an existing choice.
func (c *Catalog) Validate() error {
	var errs []string
	valid := make(map[Alignment]bool, len(Alignments))
	for _, a := range Alignments {
		valid[a] = true
	}
	byID := make(map[string]*Node, len(c.Nodes))
	for i, n := range c.Nodes {
		if n.ID == "" {
			errs = append(errs, fmt.Sprintf("nodes[%d]: id must not be empty", i))
			continue
		}
		if _, dup := byID[n.ID]; dup {
			errs = append(errs, fmt.Sprintf("nodes[%d]: duplicate id %q", i, n.ID))
		}
		byID[n.ID] = n
		if n.Speaker == "" {
			errs = append(errs, fmt.Sprintf("node %q: speaker must not be empty", n.ID))
		}
		if len(n.Choices) == 0 {
			errs = append(errs, fmt.Sprintf("node %q: must have at least one choice", n.ID))
		}
		seen := make(map[string]bool, len(n.Choices))
		for j := range n.Choices {
			ch := &n.Choices[j]
			if ch.ID == "" || seen[ch.ID] {
				errs = append(errs, fmt.Sprintf("node %q choices[%d]: id must be non-empty and unique", n.ID, j))
			}
			seen[ch.ID] = true
			if !valid[ch.Alignment] {
				errs = append(errs, fmt.Sprintf("node %q choice %q: unknown alignment %q", n.ID, ch.ID, ch.Alignment))
			}
			if ch.Consequence == "" {
				ch.Consequence = NoConsequence
			}
		}
		for id := range n.Reactions {
			if !seen[id] {
				errs = append(errs, fmt.Sprintf("node %q: reaction for unknown choice %q", n.ID, id))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("dialogue catalog validation failed: %s", strings.Join(errs, "; "))
	}
	c.byID = byID
	return nil
}

// Lookup returns the node with the given ID.
//
// Precondition: Validate must have succeeded.
func (c *Catalog) Lookup(id string) (*Node, bool) {
	n, ok := c.byID[id]
	return n, ok
}

// Load parses and validates a catalog from YAML.
func Load(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing dialogue catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

//go:embed nodes.yaml
var defaultCatalog []byte

// LoadDefault returns the embedded catalog.
func LoadDefault() (*Catalog, error) {
	return Load(defaultCatalog)
}

// MustLoadDefault returns the embedded catalog and panics if it is invalid.
func MustLoadDefault() *Catalog {
	c, err := LoadDefault()
	if err != nil {
		panic("dialogue: embedded catalog is invalid: " + err.Error())
	}
	return c
}
