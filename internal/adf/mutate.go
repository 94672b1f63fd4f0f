package adf

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrAnchorNotFound reports that an inline-insertion anchor substring does
// not occur in any text leaf of the tree.
var ErrAnchorNotFound = errors.New("adf: anchor text not found")

// ErrInvalidTaskState reports a task state outside DONE/TODO.
var ErrInvalidTaskState = errors.New("adf: invalid task state")

// ReplaceText scans every text leaf for find and rewrites matches.
// With all set, every occurrence in every leaf is replaced and the total
// occurrence count returned. Otherwise only the first occurrence in the
// first matching leaf (depth-first pre-order) is replaced and count is 1.
// found reports whether find occurred anywhere, independent of count.
// An empty find never matches.
func ReplaceText(root *Node, find, replace string, all bool) (count int, found bool) {
	if root == nil || find == "" {
		return 0, false
	}
	op := &replaceOp{find: find, replace: replace, all: all}
	op.walk(root)
	return op.count, op.found
}

type replaceOp struct {
	find    string
	replace string
	all     bool
	count   int
	found   bool
}

func (op *replaceOp) walk(n *Node) {
	if n == nil {
		return
	}
	if n.Type == "text" && strings.Contains(n.Text, op.find) {
		op.found = true
		if op.all {
			op.count += strings.Count(n.Text, op.find)
			n.Text = strings.ReplaceAll(n.Text, op.find, op.replace)
		} else if op.count == 0 {
			op.count = 1
			n.Text = strings.Replace(n.Text, op.find, op.replace, 1)
		}
	}
	for _, child := range n.Content {
		op.walk(child)
	}
}

// RegexReplace compiles pattern once and applies a replace-all to every
// text leaf, summing per-leaf match counts. A pattern that fails to
// compile is rejected before any traversal.
func RegexReplace(root *Node, pattern, replacement string) (int, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, err
	}
	op := &regexOp{re: re, replacement: replacement}
	op.walk(root)
	return op.count, nil
}

type regexOp struct {
	re          *regexp.Regexp
	replacement string
	count       int
}

func (op *regexOp) walk(n *Node) {
	if n == nil {
		return
	}
	if n.Type == "text" {
		if matches := op.re.FindAllStringIndex(n.Text, -1); len(matches) > 0 {
			n.Text = op.re.ReplaceAllString(n.Text, op.replacement)
			op.count += len(matches)
		}
	}
	for _, child := range n.Content {
		op.walk(child)
	}
}

// ReplaceMentions rewrites every mention node whose display text contains
// findUser (case-insensitive) to point at the new identity, returning how
// many mentions were rewritten.
func ReplaceMentions(root *Node, findUser, newID, newText string) int {
	op := &mentionOp{find: strings.ToLower(findUser), newID: newID, newText: newText}
	op.walk(root)
	return op.count
}

type mentionOp struct {
	find    string
	newID   string
	newText string
	count   int
}

func (op *mentionOp) walk(n *Node) {
	if n == nil {
		return
	}
	if n.Type == "mention" && n.Attrs != nil &&
		strings.Contains(strings.ToLower(n.attrString("text")), op.find) {
		n.setAttr("id", op.newID)
		n.setAttr("text", op.newText)
		op.count++
	}
	for _, child := range n.Content {
		op.walk(child)
	}
}

// UpdateTaskStates sets the state attr on every taskItem whose rendered
// text contains taskText (case-insensitive). state must be DONE or TODO;
// anything else is rejected before traversal.
func UpdateTaskStates(root *Node, taskText, state string) (int, error) {
	if state != "DONE" && state != "TODO" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTaskState, state)
	}
	op := &taskOp{find: strings.ToLower(taskText), state: state}
	op.walk(root)
	return op.count, nil
}

type taskOp struct {
	find  string
	state string
	count int
}

func (op *taskOp) walk(n *Node) {
	if n == nil {
		return
	}
	if n.Type == "taskItem" {
		rendered := strings.TrimSpace(ExtractText(n))
		if strings.Contains(strings.ToLower(rendered), op.find) {
			n.setAttr("state", op.state)
			op.count++
		}
	}
	for _, child := range n.Content {
		op.walk(child)
	}
}

// InsertLink splices a link leaf into the tree. With afterText set, the
// first text leaf containing it is split into before (original marks
// kept), a single space, the link, and after (original marks kept); only
// the first match anywhere is used and ErrAnchorNotFound is returned when
// no leaf matches. Without afterText the link is appended to the root as
// a new paragraph.
func InsertLink(root *Node, text, url, afterText string) error {
	link := NewLink(text, url)
	if afterText == "" {
		root.Content = append(root.Content, &Node{Type: "paragraph", Content: []*Node{link}})
		return nil
	}
	op := &linkOp{anchor: afterText, link: link}
	op.walk(root)
	if !op.inserted {
		return ErrAnchorNotFound
	}
	return nil
}

type linkOp struct {
	anchor   string
	link     *Node
	inserted bool
}

// walk checks each node's immediate text children for the anchor before
// descending, so a match is always spliced into its parent's Content.
func (op *linkOp) walk(n *Node) {
	if n == nil || op.inserted || n.Content == nil {
		return
	}
	for i, child := range n.Content {
		if child.Type != "text" || !strings.Contains(child.Text, op.anchor) {
			continue
		}
		idx := strings.Index(child.Text, op.anchor) + len(op.anchor)
		before, after := child.Text[:idx], child.Text[idx:]

		spliced := make([]*Node, 0, 4)
		if before != "" {
			spliced = append(spliced, &Node{Type: "text", Text: before, Marks: child.Marks})
		}
		spliced = append(spliced, NewText(" "), op.link)
		if after != "" {
			spliced = append(spliced, &Node{Type: "text", Text: after, Marks: child.Marks})
		}

		n.Content = append(n.Content[:i], append(spliced, n.Content[i+1:]...)...)
		op.inserted = true
		return
	}
	for _, child := range n.Content {
		op.walk(child)
		if op.inserted {
			return
		}
	}
}
