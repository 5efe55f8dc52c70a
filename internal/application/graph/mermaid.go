package graph

import (
	"fmt"
	"strings"
)

// GenerateMermaid renders a view as a left-to-right Mermaid flowchart.
// needFulfilled edges are solid, needNotFulfilled edges dotted. Arrows run
// from a dependency to the mandate that checks it, which is the reading
// order of the layout.
func GenerateMermaid(v *View) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")
	if v == nil {
		return sb.String()
	}

	for _, n := range v.Nodes {
		label := n.ID
		if n.Mandate.Name != "" {
			label = fmt.Sprintf("%s: %s", n.ID, n.Mandate.Name)
		}
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", mermaidID(n.ID), escapeLabel(label)))
	}

	for _, e := range v.Edges {
		arrow := fmt.Sprintf("-- \"%s\" -->", e.Label)
		if e.Kind == EdgeNeedNotFulfilled {
			arrow = fmt.Sprintf("-. \"%s\" .->", e.Label)
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", mermaidID(e.Target), arrow, mermaidID(e.Source)))
	}

	var selected, dimmed, executed []string
	for _, n := range v.Nodes {
		id := mermaidID(n.ID)
		switch {
		case n.Selected:
			selected = append(selected, id)
		case n.Opacity < 1:
			dimmed = append(dimmed, id)
		}
		if n.Executed {
			executed = append(executed, id)
		}
	}
	if len(selected)+len(dimmed)+len(executed) == 0 {
		return sb.String()
	}

	sb.WriteString("\n    %% Overlay Styles\n")
	sb.WriteString("    classDef selected stroke:#1e40af,stroke-width:4px,color:#000;\n")
	sb.WriteString("    classDef dimmed opacity:0.5;\n")
	sb.WriteString("    classDef executed fill:#dcfce7,stroke:#15803d,color:#000;\n")
	writeClass(&sb, selected, "selected")
	writeClass(&sb, dimmed, "dimmed")
	writeClass(&sb, executed, "executed")
	return sb.String()
}

func writeClass(sb *strings.Builder, ids []string, class string) {
	if len(ids) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf("    class %s %s;\n", strings.Join(ids, ","), class))
}

// mermaidID prefixes numeric mandate ids so Mermaid accepts them.
func mermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return "m" + s
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
