// Package format renders entity result sets as JSON, plain text, a tree
// view over relationships, or CSV (C5).
package format

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ummon-dev/ummon/internal/entity"
	"github.com/ummon-dev/ummon/internal/graph"
)

// Format selects one of the four renderers.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
	FormatTree Format = "tree"
	FormatCSV  Format = "csv"
)

// jsonEntity is the wire shape for one entity in JSON output: metadata is
// omitted entirely when empty, not rendered as `{}`.
type jsonEntity struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Type     string            `json:"type"`
	FilePath string            `json:"file_path,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// JSON renders entities as a pretty-printed JSON array.
func JSON(entities []entity.Entity) (string, error) {
	out := make([]jsonEntity, len(entities))
	for i, e := range entities {
		je := jsonEntity{ID: string(e.ID), Name: e.Name, Type: string(e.Kind), Metadata: e.Metadata}
		if e.Location != nil {
			je.FilePath = e.Location.FilePath
		}
		out[i] = je
	}
	raw, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("format json: %w", err)
	}
	return string(raw), nil
}

// Text renders one line per entity: "<name> (<id>) [<file_path>]", omitting
// the bracketed file path when absent. Empty input renders a fixed message.
func Text(entities []entity.Entity) string {
	if len(entities) == 0 {
		return "No entities found"
	}
	var sb strings.Builder
	for i, e := range entities {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(e.Name)
		sb.WriteString(" (")
		sb.WriteString(string(e.ID))
		sb.WriteString(")")
		if e.Location != nil && e.Location.FilePath != "" {
			sb.WriteString(" [")
			sb.WriteString(e.Location.FilePath)
			sb.WriteString("]")
		}
	}
	return sb.String()
}

// ErrTreeRequiresGraph is returned by Tree when g is nil: the tree view
// needs a live in-memory graph to resolve each entity's outgoing edges.
var ErrTreeRequiresGraph = fmt.Errorf("tree format requires a live in-memory graph")

// Tree renders each entity's name and kind, followed by one indented line
// per outgoing relationship: "├─ <target_name> (<target_kind>) <- <rel_kind>",
// with the last child using "└─".
func Tree(entities []entity.Entity, g *graph.Graph) (string, error) {
	if g == nil {
		return "", ErrTreeRequiresGraph
	}
	var sb strings.Builder
	for i, e := range entities {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(fmt.Sprintf("%s (%s)", e.Name, e.Kind))

		relIDs := g.OutgoingIDs(e.ID)
		for left, right := 0, len(relIDs)-1; left < right; left, right = left+1, right-1 {
			relIDs[left], relIDs[right] = relIDs[right], relIDs[left]
		}
		for j, relID := range relIDs {
			rel, ok := g.Relationship(relID)
			if !ok {
				continue
			}
			target, ok := g.GetEntity(rel.TargetID)
			if !ok {
				continue
			}
			branch := "├─"
			if j == len(relIDs)-1 {
				branch = "└─"
			}
			sb.WriteString(fmt.Sprintf("\n  %s %s (%s) <- %s", branch, target.Name, target.Kind, rel.Kind))
		}
	}
	return sb.String(), nil
}

// CSV renders a header row "id,name,type,file_path,<sorted metadata keys>"
// followed by one row per entity, escaping any value containing a comma,
// double quote, or newline by wrapping it in quotes and doubling internal
// quotes (RFC 4180).
func CSV(entities []entity.Entity) string {
	keySet := map[string]bool{}
	for _, e := range entities {
		for k := range e.Metadata {
			keySet[k] = true
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	header := append([]string{"id", "name", "type", "file_path"}, keys...)
	sb.WriteString(strings.Join(header, ","))

	for _, e := range entities {
		sb.WriteByte('\n')
		filePath := ""
		if e.Location != nil {
			filePath = e.Location.FilePath
		}
		row := []string{csvEscape(string(e.ID)), csvEscape(e.Name), csvEscape(string(e.Kind)), csvEscape(filePath)}
		for _, k := range keys {
			row = append(row, csvEscape(e.Metadata[k]))
		}
		sb.WriteString(strings.Join(row, ","))
	}
	return sb.String()
}

func csvEscape(v string) string {
	if strings.ContainsAny(v, ",\"\n") {
		return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
	}
	return v
}
