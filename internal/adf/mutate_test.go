package adf

import (
	"errors"
	"strings"
	"testing"
)

func TestReplaceTextAllCountsEveryOccurrence(t *testing.T) {
	t.Parallel()
	tree := doc(para(text("aaa")), para(text("aaa")))
	count, found := ReplaceText(tree, "a", "b", true)
	if !found {
		t.Fatalf("expected found")
	}
	if count != 6 {
		t.Fatalf("expected 6 replacements, got %d", count)
	}
	if got := ExtractText(tree); got != "bbb\nbbb\n" {
		t.Fatalf("unexpected rendering after replace: %q", got)
	}
}

func TestReplaceTextFirstOnly(t *testing.T) {
	t.Parallel()
	tree := doc(para(text("foo foo")))
	count, found := ReplaceText(tree, "foo", "bar", false)
	if !found || count != 1 {
		t.Fatalf("expected found with count 1, got found=%v count=%d", found, count)
	}
	if got := ExtractText(tree); got != "bar foo\n" {
		t.Fatalf("unexpected rendering: %q", got)
	}
}

func TestReplaceTextFirstOnlySkipsLaterLeaves(t *testing.T) {
	t.Parallel()
	tree := doc(para(text("foo")), para(text("foo")))
	count, _ := ReplaceText(tree, "foo", "bar", false)
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}
	if got := ExtractText(tree); got != "bar\nfoo\n" {
		t.Fatalf("second leaf should be untouched: %q", got)
	}
}

func TestReplaceTextEmptyFindNeverMatches(t *testing.T) {
	t.Parallel()
	tree := doc(para(text("anything")))
	count, found := ReplaceText(tree, "", "x", true)
	if found || count != 0 {
		t.Fatalf("empty find must not match: found=%v count=%d", found, count)
	}
	if got := ExtractText(tree); got != "anything\n" {
		t.Fatalf("tree mutated by empty find: %q", got)
	}
}

func TestReplaceTextNotFound(t *testing.T) {
	t.Parallel()
	tree := doc(para(text("hello")))
	count, found := ReplaceText(tree, "absent", "x", true)
	if found || count != 0 {
		t.Fatalf("expected no match, got found=%v count=%d", found, count)
	}
}

func TestReplaceTextPreservesSiblingStructure(t *testing.T) {
	t.Parallel()
	heading := &Node{Type: "heading", Attrs: map[string]any{"level": float64(1)}, Content: []*Node{text("keep")}}
	tree := doc(heading, para(text("change me")))
	if _, found := ReplaceText(tree, "change", "changed", true); !found {
		t.Fatalf("expected match")
	}
	if heading.Type != "heading" {
		t.Fatalf("sibling kind mutated: %q", heading.Type)
	}
	if _, ok := heading.Attrs["level"]; !ok {
		t.Fatalf("sibling attrs mutated: %v", heading.Attrs)
	}
	if len(heading.Content) != 1 || heading.Content[0].Text != "keep" {
		t.Fatalf("sibling content mutated: %+v", heading.Content)
	}
}

func TestReplaceTextKeepsMarks(t *testing.T) {
	t.Parallel()
	leaf := NewLink("click here", "https://example.com")
	tree := doc(para(leaf))
	if _, found := ReplaceText(tree, "here", "now", true); !found {
		t.Fatalf("expected match")
	}
	if leaf.Text != "click now" {
		t.Fatalf("text not rewritten: %q", leaf.Text)
	}
	if len(leaf.Marks) != 1 || leaf.Marks[0].Type != "link" {
		t.Fatalf("marks lost on replace: %+v", leaf.Marks)
	}
}

func TestRegexReplaceSumsPerLeafCounts(t *testing.T) {
	t.Parallel()
	tree := doc(para(text("v1.2 and v3.4")), para(text("v5.6")))
	count, err := RegexReplace(tree, `v(\d+)\.(\d+)`, "version $1-$2")
	if err != nil {
		t.Fatalf("regex replace: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 matches, got %d", count)
	}
	if got := ExtractText(tree); got != "version 1-2 and version 3-4\nversion 5-6\n" {
		t.Fatalf("unexpected rendering: %q", got)
	}
}

func TestRegexReplaceInvalidPattern(t *testing.T) {
	t.Parallel()
	tree := doc(para(text("untouched")))
	if _, err := RegexReplace(tree, "([", "x"); err == nil {
		t.Fatalf("expected compile error")
	}
	if got := ExtractText(tree); got != "untouched\n" {
		t.Fatalf("tree mutated despite compile failure: %q", got)
	}
}

func TestReplaceMentionsCaseInsensitive(t *testing.T) {
	t.Parallel()
	mention := &Node{Type: "mention", Attrs: map[string]any{"id": "old-id", "text": "@Alice Smith"}}
	other := &Node{Type: "mention", Attrs: map[string]any{"id": "keep", "text": "@Bob"}}
	tree := doc(para(mention, text(" and "), other))
	count := ReplaceMentions(tree, "alice", "new-id", "@Mark")
	if count != 1 {
		t.Fatalf("expected 1 mention replaced, got %d", count)
	}
	if mention.Attrs["id"] != "new-id" || mention.Attrs["text"] != "@Mark" {
		t.Fatalf("mention not rewritten: %v", mention.Attrs)
	}
	if other.Attrs["id"] != "keep" {
		t.Fatalf("unrelated mention touched: %v", other.Attrs)
	}
}

func TestUpdateTaskStates(t *testing.T) {
	t.Parallel()
	tree := doc(&Node{Type: "taskList", Content: []*Node{
		{Type: "taskItem", Attrs: map[string]any{"state": "TODO"}, Content: []*Node{text("Review PR")}},
		{Type: "taskItem", Attrs: map[string]any{"state": "TODO"}, Content: []*Node{text("Deploy")}},
	}})
	count, err := UpdateTaskStates(tree, "review", "DONE")
	if err != nil {
		t.Fatalf("update tasks: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 task updated, got %d", count)
	}
	got := ExtractText(tree)
	if !strings.Contains(got, "[x] Review PR") || !strings.Contains(got, "[ ] Deploy") {
		t.Fatalf("unexpected rendering: %q", got)
	}
}

func TestUpdateTaskStatesRejectsUnknownState(t *testing.T) {
	t.Parallel()
	task := &Node{Type: "taskItem", Attrs: map[string]any{"state": "TODO"}, Content: []*Node{text("x")}}
	tree := doc(&Node{Type: "taskList", Content: []*Node{task}})
	if _, err := UpdateTaskStates(tree, "x", "MAYBE"); !errors.Is(err, ErrInvalidTaskState) {
		t.Fatalf("expected ErrInvalidTaskState, got %v", err)
	}
	if task.Attrs["state"] != "TODO" {
		t.Fatalf("task mutated despite invalid state: %v", task.Attrs)
	}
}

func TestInsertLinkAfterAnchor(t *testing.T) {
	t.Parallel()
	tree := doc(para(text("see the docs for details")))
	if err := InsertLink(tree, "here", "https://example.com", "docs"); err != nil {
		t.Fatalf("insert link: %v", err)
	}
	content := tree.Content[0].Content
	if len(content) != 4 {
		t.Fatalf("expected 4 leaves after splice, got %d", len(content))
	}
	if content[0].Text != "see the docs" || content[1].Text != " " {
		t.Fatalf("unexpected splice prefix: %q %q", content[0].Text, content[1].Text)
	}
	link := content[2]
	if link.Text != "here" || len(link.Marks) != 1 || link.Marks[0].Attrs["href"] != "https://example.com" {
		t.Fatalf("link leaf malformed: %+v", link)
	}
	if content[3].Text != " for details" {
		t.Fatalf("unexpected splice suffix: %q", content[3].Text)
	}
}

func TestInsertLinkFirstMatchOnly(t *testing.T) {
	t.Parallel()
	tree := doc(para(text("anchor one")), para(text("anchor two")))
	if err := InsertLink(tree, "x", "https://example.com", "anchor"); err != nil {
		t.Fatalf("insert link: %v", err)
	}
	if len(tree.Content[0].Content) != 4 {
		t.Fatalf("first paragraph not spliced: %d leaves", len(tree.Content[0].Content))
	}
	if len(tree.Content[1].Content) != 1 {
		t.Fatalf("second paragraph should be untouched: %d leaves", len(tree.Content[1].Content))
	}
}

func TestInsertLinkPreservesAnchorMarks(t *testing.T) {
	t.Parallel()
	bold := []Mark{{Type: "strong"}}
	tree := doc(para(&Node{Type: "text", Text: "bold anchor text", Marks: bold}))
	if err := InsertLink(tree, "link", "https://example.com", "anchor"); err != nil {
		t.Fatalf("insert link: %v", err)
	}
	content := tree.Content[0].Content
	if len(content[0].Marks) != 1 || content[0].Marks[0].Type != "strong" {
		t.Fatalf("before-leaf lost marks: %+v", content[0].Marks)
	}
	last := content[len(content)-1]
	if last.Text != " text" || len(last.Marks) != 1 {
		t.Fatalf("after-leaf lost marks: %+v", last)
	}
}

func TestInsertLinkAppendsWithoutAnchor(t *testing.T) {
	t.Parallel()
	tree := doc(para(text("existing")))
	if err := InsertLink(tree, "ref", "https://example.com", ""); err != nil {
		t.Fatalf("insert link: %v", err)
	}
	if len(tree.Content) != 2 {
		t.Fatalf("expected appended paragraph, got %d children", len(tree.Content))
	}
	appended := tree.Content[1]
	if appended.Type != "paragraph" || len(appended.Content) != 1 || appended.Content[0].Text != "ref" {
		t.Fatalf("appended paragraph malformed: %+v", appended)
	}
}

func TestInsertLinkAnchorNotFound(t *testing.T) {
	t.Parallel()
	tree := doc(para(text("nothing to see")))
	err := InsertLink(tree, "x", "https://example.com", "missing")
	if !errors.Is(err, ErrAnchorNotFound) {
		t.Fatalf("expected ErrAnchorNotFound, got %v", err)
	}
	if len(tree.Content) != 1 || len(tree.Content[0].Content) != 1 {
		t.Fatalf("tree mutated on failed insert: %+v", tree)
	}
}
