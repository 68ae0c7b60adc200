package matchers

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-kb-retrieval/internal/search"
	"github.com/tbourn/go-kb-retrieval/internal/textnorm"
)

// Kind identifies the capability that produced a Match.
type Kind string

const (
	KindEntity  Kind = "entity"
	KindTopic   Kind = "topic"
	KindCapital Kind = "capital"
	KindWhoIs   Kind = "who_is"
)

// Match is the result of a successful TryMatch. Answer is a sentence ready
// to show the user. Hit places dictionary matches on the retrieval merge
// scale; pattern matches leave it zero.
type Match struct {
	Kind   Kind
	Key    string
	Answer string
	Hit    search.Hit
}

// Matcher is a capability that may answer an input from the knowledge base.
// The set of implementations is closed: EntityMatcher, TopicMatcher,
// CapitalPattern and WhoIsPattern.
type Matcher interface {
	Kind() Kind
	TryMatch(input string) (Match, bool)
	sealed()
}

// maxBlurbProps caps the number of properties shown for an entity.
const maxBlurbProps = 4

// EntityMatcher resolves the input to an entity and summarizes it.
type EntityMatcher struct{ KB *KnowledgeBase }

func (EntityMatcher) Kind() Kind { return KindEntity }
func (EntityMatcher) sealed()    {}

func (m EntityMatcher) TryMatch(input string) (Match, bool) {
	key, ok := m.KB.FindEntity(input)
	if !ok {
		return Match{}, false
	}
	e, _ := m.KB.Entity(key)
	props := e.Properties()
	if len(props) > maxBlurbProps {
		props = props[:maxBlurbProps]
	}
	parts := make([]string, 0, len(props))
	for _, p := range props {
		parts = append(parts, fmt.Sprintf("%s: %s", titleCase(p), e[p]))
	}
	blurb := strings.Join(parts, "; ")
	return Match{
		Kind:   KindEntity,
		Key:    key,
		Answer: blurb,
		Hit:    search.Hit{ID: "entity:" + key, Title: titleCase(key), Text: blurb, Score: search.EntityScore},
	}, true
}

// TopicMatcher resolves the input to a topic definition.
type TopicMatcher struct{ KB *KnowledgeBase }

func (TopicMatcher) Kind() Kind { return KindTopic }
func (TopicMatcher) sealed()    {}

func (m TopicMatcher) TryMatch(input string) (Match, bool) {
	key, ok := m.KB.FindTopic(input)
	if !ok {
		return Match{}, false
	}
	text, _ := m.KB.Topic(key)
	return Match{
		Kind:   KindTopic,
		Key:    key,
		Answer: text,
		Hit:    search.Hit{ID: "topic:" + key, Title: titleCase(key), Text: text, Score: search.TopicScore},
	}, true
}

var (
	capitalRE = regexp.MustCompile(`\bcapital(?:\s+of)?\s+([\p{L}\p{N}\s\-]+)`)
	whoIsRE   = regexp.MustCompile(`\bwho\s+is\s+([\p{L}\p{N}\s\-]+)`)
)

// CapitalPattern answers "capital of X" for entities with a capital.
type CapitalPattern struct{ KB *KnowledgeBase }

func (CapitalPattern) Kind() Kind { return KindCapital }
func (CapitalPattern) sealed()    {}

func (p CapitalPattern) TryMatch(input string) (Match, bool) {
	m := capitalRE.FindStringSubmatch(textnorm.Normalize(input))
	if m == nil {
		return Match{}, false
	}
	key, ok := p.KB.FindEntity(m[1])
	if !ok {
		return Match{}, false
	}
	e, _ := p.KB.Entity(key)
	capital := e["capital"]
	if capital == "" {
		return Match{}, false
	}
	return Match{
		Kind:   KindCapital,
		Key:    key,
		Answer: fmt.Sprintf("The capital of %s is %s.", titleCase(key), capital),
	}, true
}

// WhoIsPattern answers "who is X" for person entities.
type WhoIsPattern struct{ KB *KnowledgeBase }

func (WhoIsPattern) Kind() Kind { return KindWhoIs }
func (WhoIsPattern) sealed()    {}

func (p WhoIsPattern) TryMatch(input string) (Match, bool) {
	m := whoIsRE.FindStringSubmatch(textnorm.Normalize(input))
	if m == nil {
		return Match{}, false
	}
	key, ok := p.KB.FindEntity(m[1])
	if !ok {
		return Match{}, false
	}
	e, _ := p.KB.Entity(key)
	if e.Type() != "person" {
		return Match{}, false
	}
	var parts []string
	if v := e["name"]; v != "" {
		parts = append(parts, v)
	}
	if v := e["field"]; v != "" {
		parts = append(parts, v+" figure")
	}
	if v := e["known"]; v != "" {
		parts = append(parts, "known for "+v)
	}
	if v := e["born"]; v != "" {
		parts = append(parts, "(born "+v+")")
	}
	if len(parts) == 0 {
		return Match{}, false
	}
	return Match{Kind: KindWhoIs, Key: key, Answer: strings.Join(parts, ", ") + "."}, true
}

// Chain evaluates matchers in priority order.
type Chain struct {
	ms []Matcher
}

// NewChain returns a chain trying ms in the given order.
func NewChain(ms ...Matcher) Chain { return Chain{ms: ms} }

// PatternChain answers direct questions: capital-of, then who-is.
func PatternChain(kb *KnowledgeBase) Chain {
	return NewChain(CapitalPattern{KB: kb}, WhoIsPattern{KB: kb})
}

// DictionaryChain yields entity and topic hits for retrieval merging.
func DictionaryChain(kb *KnowledgeBase) Chain {
	return NewChain(EntityMatcher{KB: kb}, TopicMatcher{KB: kb})
}

// First returns the first successful match.
func (c Chain) First(input string) (Match, bool) {
	for _, m := range c.ms {
		if res, ok := m.TryMatch(input); ok {
			return res, true
		}
	}
	return Match{}, false
}

// All returns every successful match in chain order.
func (c Chain) All(input string) []Match {
	var out []Match
	for _, m := range c.ms {
		if res, ok := m.TryMatch(input); ok {
			out = append(out, res)
		}
	}
	return out
}

// Hits returns the merge hits of every match that carries one.
func (c Chain) Hits(input string) []search.Hit {
	var out []search.Hit
	for _, m := range c.All(input) {
		if m.Hit.ID != "" {
			out = append(out, m.Hit)
		}
	}
	return out
}

func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}
