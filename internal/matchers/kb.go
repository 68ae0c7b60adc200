// Package matchers holds the dictionary knowledge base (entities and
// topics) and the ordered chain of capabilities that answer queries from it
// directly.
package matchers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/tbourn/go-kb-retrieval/internal/textnorm"
)

// Entity is a typed property bag, e.g. {"type": "country", "capital": "Tokyo"}.
type Entity map[string]string

// Type returns the entity's "type" property.
func (e Entity) Type() string { return e["type"] }

// Properties returns the property names other than "type", sorted.
func (e Entity) Properties() []string {
	out := make([]string, 0, len(e))
	for k := range e {
		if k != "type" {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// KnowledgeBase is an immutable set of entities and topics keyed by
// normalized name.
type KnowledgeBase struct {
	entities   map[string]Entity
	topics     map[string]string
	entityKeys []string
	topicKeys  []string
}

// file is the on-disk layout shared by the JSON, YAML and TOML formats.
type file struct {
	Entities map[string]map[string]string `json:"entities" yaml:"entities" toml:"entities"`
	Topics   map[string]string            `json:"topics"   yaml:"topics"   toml:"topics"`
}

// New builds a knowledge base, normalizing keys and property names. Keys
// that normalize to nothing are rejected.
func New(entities map[string]Entity, topics map[string]string) (*KnowledgeBase, error) {
	kb := &KnowledgeBase{
		entities: make(map[string]Entity, len(entities)),
		topics:   make(map[string]string, len(topics)),
	}
	for name, props := range entities {
		key := textnorm.Normalize(name)
		if key == "" {
			return nil, fmt.Errorf("entity %q: empty key after normalization", name)
		}
		e := make(Entity, len(props))
		for p, v := range props {
			e[strings.ToLower(strings.TrimSpace(p))] = strings.TrimSpace(v)
		}
		kb.entities[key] = e
	}
	for name, text := range topics {
		key := textnorm.Normalize(name)
		if key == "" {
			return nil, fmt.Errorf("topic %q: empty key after normalization", name)
		}
		kb.topics[key] = strings.TrimSpace(text)
	}
	kb.entityKeys = sortedKeys(kb.entities)
	kb.topicKeys = sortedKeys(kb.topics)
	return kb, nil
}

// Builtin returns the starter knowledge base.
func Builtin() *KnowledgeBase {
	kb, _ := New(
		map[string]Entity{
			"japan":    {"type": "country", "capital": "Tokyo", "population": "~125 million", "language": "Japanese"},
			"earth":    {"type": "planet", "age": "~4.54 billion years", "position": "3rd from Sun"},
			"einstein": {"type": "person", "name": "Albert Einstein", "born": "1879", "field": "Physics", "known": "theory of relativity"},
			"water":    {"type": "compound", "formula": "H2O", "boiling": "100°C", "freezing": "0°C"},
		},
		map[string]string{
			"ai":      "Artificial intelligence is the development of computer systems to perform tasks that normally require human intelligence.",
			"gravity": "Gravity is a force by which objects with mass attract one another.",
		},
	)
	return kb
}

// ErrUnknownFormat is returned by Load for unsupported file extensions.
var ErrUnknownFormat = errors.New("knowledge file must be .json, .yaml, .yml or .toml")

// Load reads a knowledge base from a JSON, YAML or TOML file, chosen by
// extension.
func Load(path string) (*KnowledgeBase, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f file
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		err = dec.Decode(&f)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &f)
	case ".toml":
		err = toml.Unmarshal(b, &f)
	default:
		return nil, ErrUnknownFormat
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	entities := make(map[string]Entity, len(f.Entities))
	for k, v := range f.Entities {
		entities[k] = Entity(v)
	}
	return New(entities, f.Topics)
}

// Entity returns the entity stored under an exact normalized key.
func (kb *KnowledgeBase) Entity(key string) (Entity, bool) {
	e, ok := kb.entities[key]
	return e, ok
}

// Topic returns the topic text stored under an exact normalized key.
func (kb *KnowledgeBase) Topic(key string) (string, bool) {
	t, ok := kb.topics[key]
	return t, ok
}

// Len returns the number of entities and topics.
func (kb *KnowledgeBase) Len() (entities, topics int) {
	return len(kb.entities), len(kb.topics)
}

// FindEntity resolves free text to an entity key (see findKey).
func (kb *KnowledgeBase) FindEntity(q string) (string, bool) {
	return findKey(kb.entityKeys, q)
}

// FindTopic resolves free text to a topic key (see findKey).
func (kb *KnowledgeBase) FindTopic(q string) (string, bool) {
	return findKey(kb.topicKeys, q)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
