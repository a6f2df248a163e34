// Package graph models the transient knowledge-graph fragments extracted
// from a single model response: entity-relation-entity triples parsed from
// plain text, rendered as a Mermaid diagram with summary statistics. A
// fragment is discarded after rendering; there is no cross-session merging.
package graph

import (
	"fmt"
	"strings"
)

// Triple is a single (entity, relation, entity) edge.
type Triple struct {
	Head     string `json:"head"`
	Relation string `json:"relation"`
	Tail     string `json:"tail"`
}

// Fragment is the set of triples extracted from one model response.
type Fragment struct {
	Topic   string   `json:"topic"`
	Triples []Triple `json:"triples"`
}

// ParseTriples extracts triples from model output formatted as one
// "entity | relation | entity" line per triple. Lines that do not split
// into exactly three non-empty fields are skipped; order is preserved.
func ParseTriples(text string) []Triple {
	var triples []Triple
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.Contains(line, " | ") {
			continue
		}
		fields := strings.Split(line, " | ")
		if len(fields) != 3 {
			continue
		}
		head := strings.TrimSpace(fields[0])
		relation := strings.TrimSpace(fields[1])
		tail := strings.TrimSpace(fields[2])
		if head == "" || relation == "" || tail == "" {
			continue
		}
		triples = append(triples, Triple{Head: head, Relation: relation, Tail: tail})
	}
	return triples
}

// NewFragment parses the model output into a fragment for the given topic.
func NewFragment(topic, text string) Fragment {
	return Fragment{Topic: topic, Triples: ParseTriples(text)}
}

// Stats summarizes a fragment: distinct entities, distinct relation kinds
// and total connections.
type Stats struct {
	Entities      int `json:"entities"`
	RelationKinds int `json:"relation_kinds"`
	Connections   int `json:"connections"`
}

// Stats computes summary statistics over the fragment.
func (f Fragment) Stats() Stats {
	entities := map[string]struct{}{}
	relations := map[string]struct{}{}
	for _, t := range f.Triples {
		entities[t.Head] = struct{}{}
		entities[t.Tail] = struct{}{}
		relations[t.Relation] = struct{}{}
	}
	return Stats{
		Entities:      len(entities),
		RelationKinds: len(relations),
		Connections:   len(f.Triples),
	}
}

// Mermaid renders the fragment as a Mermaid "graph TD" definition. Node ids
// are assigned in first-seen order so output is deterministic for a given
// triple sequence; labels have double quotes escaped.
func (f Fragment) Mermaid() string {
	nodeIDs := map[string]string{}
	var nodeOrder []string
	nodeID := func(entity string) string {
		if id, ok := nodeIDs[entity]; ok {
			return id
		}
		id := fmt.Sprintf("n%d", len(nodeIDs))
		nodeIDs[entity] = id
		nodeOrder = append(nodeOrder, entity)
		return id
	}
	for _, t := range f.Triples {
		nodeID(t.Head)
		nodeID(t.Tail)
	}

	var b strings.Builder
	b.WriteString("graph TD\n")
	for _, entity := range nodeOrder {
		fmt.Fprintf(&b, "    %s[\"%s\"]\n", nodeIDs[entity], escapeLabel(entity))
	}
	for _, t := range f.Triples {
		fmt.Fprintf(&b, "    %s -->|\"%s\"| %s\n", nodeIDs[t.Head], escapeLabel(t.Relation), nodeIDs[t.Tail])
	}
	b.WriteString("    classDef default fill:#f9f9f9,stroke:#333,stroke-width:1px;\n")
	b.WriteString("    classDef concept fill:#d4f1f9,stroke:#0096c7,stroke-width:2px;\n")
	b.WriteString("    classDef person fill:#ffea00,stroke:#e6a700,stroke-width:2px;\n")
	for _, entity := range nodeOrder {
		fmt.Fprintf(&b, "    class %s %s;\n", nodeIDs[entity], nodeClass(entity))
	}
	return b.String()
}

var personMarkers = []string{"dr.", "professor", "mr.", "mrs.", "ms."}

// nodeClass picks a styling class with a simple title heuristic; entities
// without a personal title render as concepts.
func nodeClass(entity string) string {
	lower := strings.ToLower(entity)
	for _, marker := range personMarkers {
		if strings.Contains(lower, marker) {
			return "person"
		}
	}
	return "concept"
}

// Render produces the markdown report for a fragment: heading, fenced
// Mermaid block and summary statistics.
func (f Fragment) Render() string {
	stats := f.Stats()
	var b strings.Builder
	fmt.Fprintf(&b, "### Knowledge Graph: %s\n\n", f.Topic)
	b.WriteString("```mermaid\n")
	b.WriteString(f.Mermaid())
	b.WriteString("```\n\n")
	fmt.Fprintf(&b, "**Entities:** %d\n", stats.Entities)
	fmt.Fprintf(&b, "**Relationship Types:** %d\n", stats.RelationKinds)
	fmt.Fprintf(&b, "**Connections:** %d\n", stats.Connections)
	return b.String()
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
