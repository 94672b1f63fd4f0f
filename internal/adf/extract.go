package adf

import "strings"

// ExtractText linearizes a tree to readable plaintext: newlines between
// paragraphs, bullet prefixes for list items, tab-separated table cells,
// fenced code blocks. Pure and total; every node type renders to some
// string and unrecognized types degrade to their children's text.
func ExtractText(n *Node) string {
	return extract(n, 0)
}

// ExtractAll renders a node sequence with no separator between elements.
func ExtractAll(nodes []*Node) string {
	var b strings.Builder
	for _, n := range nodes {
		b.WriteString(extract(n, 0))
	}
	return b.String()
}

func extractList(nodes []*Node, depth int) string {
	var b strings.Builder
	for _, n := range nodes {
		b.WriteString(extract(n, depth))
	}
	return b.String()
}

func extract(n *Node, depth int) string {
	if n == nil {
		return ""
	}

	switch n.Type {
	case "text":
		return n.Text
	case "mention":
		return n.attrString("text")
	case "emoji":
		return n.attrString("shortName")
	case "inlineCard":
		return n.attrString("url")
	case "hardBreak":
		return "\n"
	case "status":
		return "[" + n.attrString("text") + "]"
	case "date":
		return n.attrString("timestamp")
	case "media", "mediaInline":
		if alt := n.attrString("alt"); alt != "" {
			return alt
		}
		return "[media]"
	}

	inner := extractList(n.Content, depth)

	switch n.Type {
	case "paragraph", "heading":
		return inner + "\n"
	case "bulletList", "orderedList", "taskList":
		return inner
	case "listItem":
		indent := strings.Repeat("  ", depth)
		lines := strings.Split(strings.TrimSpace(inner), "\n")
		var b strings.Builder
		b.WriteString(indent + "- " + lines[0] + "\n")
		for _, line := range lines[1:] {
			b.WriteString(indent + "  " + line + "\n")
		}
		return b.String()
	case "taskItem":
		checkbox := "[ ]"
		if n.attrString("state") == "DONE" {
			checkbox = "[x]"
		}
		return "  " + checkbox + " " + strings.TrimSpace(inner) + "\n"
	case "table":
		return inner + "\n"
	case "tableRow":
		parts := make([]string, 0, len(n.Content))
		for _, cell := range n.Content {
			parts = append(parts, strings.TrimSpace(extract(cell, depth)))
		}
		return strings.Join(parts, "\t") + "\n"
	case "tableCell", "tableHeader":
		return inner
	case "codeBlock":
		header := "```\n"
		if lang := n.attrString("language"); lang != "" {
			header = "```" + lang + "\n"
		}
		return header + inner + "```\n"
	case "blockquote":
		lines := strings.Split(strings.TrimSpace(inner), "\n")
		for i, line := range lines {
			lines[i] = "> " + line
		}
		return strings.Join(lines, "\n") + "\n"
	case "rule":
		return "---\n"
	case "panel":
		panelType := n.attrString("panelType")
		if panelType == "" {
			panelType = "info"
		}
		return "[" + panelType + "] " + inner
	case "expand", "nestedExpand":
		if title := n.attrString("title"); title != "" {
			return "▸ " + title + "\n" + inner
		}
		return inner
	}

	// mediaSingle, mediaGroup, multiBodiedExtension, extensionFrame and
	// anything unrecognized render their children verbatim.
	return inner
}
