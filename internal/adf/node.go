// Package adf models Atlassian Document Format trees and provides the
// traversal, extraction and mutation primitives the page tools are built on.
// Nodes round-trip through JSON without losing unrecognized types, attrs or
// top-level keys, so documents containing vocabulary this package does not
// know about survive an edit untouched.
package adf

import (
	"encoding/json"
)

// Mark is an inline decoration on a text node, e.g. a link carrying an href.
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Node is one element of a document tree. Which fields are meaningful is
// determined by Type; absent fields stay at their zero value and never
// cause an error. Extra captures top-level keys outside the known set
// (e.g. the root doc's schema version) so they survive a round trip.
type Node struct {
	Type    string
	Attrs   map[string]any
	Content []*Node
	Marks   []Mark
	Text    string
	Extra   map[string]json.RawMessage
}

// nodeWire mirrors the known ADF field set for decoding.
type nodeWire struct {
	Type    string          `json:"type"`
	Attrs   map[string]any  `json:"attrs,omitempty"`
	Content []*Node         `json:"content,omitempty"`
	Marks   []Mark          `json:"marks,omitempty"`
	Text    json.RawMessage `json:"text,omitempty"`
}

var knownNodeKeys = map[string]struct{}{
	"type": {}, "attrs": {}, "content": {}, "marks": {}, "text": {},
}

// UnmarshalJSON decodes a node, stashing unrecognized top-level keys in
// Extra so MarshalJSON can emit them again.
func (n *Node) UnmarshalJSON(data []byte) error {
	var w nodeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	n.Type = w.Type
	n.Attrs = w.Attrs
	n.Content = w.Content
	n.Marks = w.Marks
	n.Text = ""
	if len(w.Text) > 0 {
		if err := json.Unmarshal(w.Text, &n.Text); err != nil {
			return err
		}
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	n.Extra = nil
	for k, v := range raw {
		if _, ok := knownNodeKeys[k]; ok {
			continue
		}
		if n.Extra == nil {
			n.Extra = make(map[string]json.RawMessage)
		}
		n.Extra[k] = v
	}
	return nil
}

// MarshalJSON emits only the fields present on the node. A non-nil empty
// Content marshals as an empty array, matching how empty cells and
// paragraphs are represented on the wire.
func (n *Node) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 5+len(n.Extra))
	m["type"] = n.Type
	if n.Attrs != nil {
		m["attrs"] = n.Attrs
	}
	if n.Content != nil {
		m["content"] = n.Content
	}
	if len(n.Marks) > 0 {
		m["marks"] = n.Marks
	}
	if n.Type == "text" || n.Text != "" {
		m["text"] = n.Text
	}
	for k, v := range n.Extra {
		m[k] = v
	}
	return json.Marshal(m)
}

// Parse decodes a JSON document into a tree. An empty input yields an
// empty doc node rather than an error.
func Parse(data []byte) (*Node, error) {
	if len(data) == 0 {
		return NewDoc(), nil
	}
	var n Node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// NewDoc returns an empty document root with the current schema version.
func NewDoc() *Node {
	return &Node{
		Type:    "doc",
		Content: []*Node{},
		Extra:   map[string]json.RawMessage{"version": json.RawMessage("1")},
	}
}

// NewText returns a plain text leaf.
func NewText(text string) *Node {
	return &Node{Type: "text", Text: text}
}

// NewParagraph returns a paragraph wrapping a single text leaf, or an
// empty paragraph when text is empty.
func NewParagraph(text string) *Node {
	if text == "" {
		return &Node{Type: "paragraph", Content: []*Node{}}
	}
	return &Node{Type: "paragraph", Content: []*Node{NewText(text)}}
}

// NewLink returns a text leaf carrying a link mark.
func NewLink(text, href string) *Node {
	return &Node{
		Type:  "text",
		Text:  text,
		Marks: []Mark{{Type: "link", Attrs: map[string]any{"href": href}}},
	}
}

// attrString fetches a string attr, defaulting to empty for absent or
// non-string values.
func (n *Node) attrString(key string) string {
	if n.Attrs == nil {
		return ""
	}
	if v, ok := n.Attrs[key].(string); ok {
		return v
	}
	return ""
}

// setAttr assigns an attr, allocating the map on first use.
func (n *Node) setAttr(key string, value any) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]any)
	}
	n.Attrs[key] = value
}
