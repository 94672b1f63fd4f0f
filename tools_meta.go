package wikid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"pkt.systems/wikid/internal/adf"
	"pkt.systems/wikid/internal/confluence"
)

// commentDoc wraps plain comment text in a single-paragraph document,
// the only body shape the comment tools produce.
func commentDoc(text string) *adf.Node {
	doc := adf.NewDoc()
	doc.Content = append(doc.Content, adf.NewParagraph(text))
	return doc
}

// commentLine renders one comment for the listing tools.
func commentLine(c confluence.Comment) string {
	text := truncate(strings.TrimSpace(adf.ExtractText(c.Body)), 200)
	return fmt.Sprintf("  [%s] by %s at %s: %s",
		orUnknown(c.ID), orUnknown(c.AuthorID), orUnknown(c.CreatedAt), text)
}

type getLabelsToolInput struct {
	PageID string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
}

func (s *server) handleGetLabelsTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input getLabelsToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	labels, err := s.client.Labels(ctx, pageID)
	if err != nil {
		return nil, nil, err
	}
	if len(labels) == 0 {
		return textResult("No labels on this page."), nil, nil
	}
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, orUnknown(l.Name))
	}
	return textResult(fmt.Sprintf("%d label(s): %s", len(names), strings.Join(names, ", "))), nil, nil
}

type addLabelsToolInput struct {
	PageID string   `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
	Labels []string `json:"labels" jsonschema:"Label names to add, e.g. important, reviewed"`
}

func (s *server) handleAddLabelsTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input addLabelsToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	count, err := s.client.AddLabels(ctx, pageID, input.Labels)
	if err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("Added %d label(s): %s", count, strings.Join(input.Labels, ", "))), nil, nil
}

type removeLabelToolInput struct {
	PageID string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
	Label  string `json:"label" jsonschema:"The label name to remove"`
}

func (s *server) handleRemoveLabelTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input removeLabelToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	err = s.client.RemoveLabel(ctx, pageID, input.Label)
	if confluence.IsNotFound(err) {
		return textResult(fmt.Sprintf("Label %q was not on this page.", input.Label)), nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("Removed label %q.", input.Label)), nil, nil
}

type addCommentToolInput struct {
	PageID          string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
	Body            string `json:"body" jsonschema:"The comment text; stored as a single plain paragraph"`
	ParentCommentID string `json:"parent_comment_id,omitempty" jsonschema:"Parent comment ID for threaded replies"`
}

func (s *server) handleAddCommentTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input addCommentToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	id, err := s.client.AddFooterComment(ctx, pageID, commentDoc(input.Body), input.ParentCommentID)
	if err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("Added comment (id=%s) on page %s.", orUnknown(id), pageID)), nil, nil
}

type listCommentsToolInput struct {
	PageID string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of comments to return (default 25, max 100)"`
	Cursor string `json:"cursor,omitempty" jsonschema:"Pagination cursor from a previous result"`
}

func (s *server) handleListCommentsTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input listCommentsToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	list, err := s.client.FooterComments(ctx, pageID, clampLimit(input.Limit, 25, 100), input.Cursor)
	if err != nil {
		return nil, nil, err
	}
	if len(list.Comments) == 0 {
		return textResult("No comments on this page."), nil, nil
	}
	lines := []string{fmt.Sprintf("%d comment(s):", len(list.Comments))}
	for _, c := range list.Comments {
		lines = append(lines, commentLine(c))
	}
	if list.NextCursor != "" {
		lines = append(lines, "\nNext cursor: "+list.NextCursor)
	}
	return textResult(strings.Join(lines, "\n")), nil, nil
}

type listInlineCommentsToolInput struct {
	PageID string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of comments to return (default 25, max 100)"`
	Cursor string `json:"cursor,omitempty" jsonschema:"Pagination cursor from a previous result"`
}

func (s *server) handleListInlineCommentsTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input listInlineCommentsToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	list, err := s.client.InlineComments(ctx, pageID, clampLimit(input.Limit, 25, 100), input.Cursor)
	if err != nil {
		return nil, nil, err
	}
	if len(list.Comments) == 0 {
		return textResult("No inline comments on this page."), nil, nil
	}
	lines := []string{fmt.Sprintf("%d inline comment(s):", len(list.Comments))}
	for _, c := range list.Comments {
		line := commentLine(c)
		if c.Selection != "" {
			line += fmt.Sprintf(" (on: %q)", truncate(c.Selection, 60))
		}
		lines = append(lines, line)
	}
	if list.NextCursor != "" {
		lines = append(lines, "\nNext cursor: "+list.NextCursor)
	}
	return textResult(strings.Join(lines, "\n")), nil, nil
}

type addInlineCommentToolInput struct {
	PageID        string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
	Body          string `json:"body" jsonschema:"The comment text; stored as a single plain paragraph"`
	TextSelection string `json:"text_selection" jsonschema:"The exact page text to anchor the comment to"`
	MatchIndex    int    `json:"match_index,omitempty" jsonschema:"Which occurrence of the selection to annotate (0-based, default first)"`
}

func (s *server) handleAddInlineCommentTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input addInlineCommentToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	id, err := s.client.AddInlineComment(ctx, pageID, commentDoc(input.Body), input.TextSelection, input.MatchIndex)
	if err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("Added inline comment (id=%s) on %q in page %s.",
		orUnknown(id), truncate(input.TextSelection, 60), pageID)), nil, nil
}

// propertyValue renders a content property value for listing: strings
// bare, everything else as compact JSON.
func propertyValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

type getPagePropertiesToolInput struct {
	PageID string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of properties to return (default 25, max 100)"`
}

func (s *server) handleGetPagePropertiesTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input getPagePropertiesToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	props, err := s.client.Properties(ctx, pageID, clampLimit(input.Limit, 25, 100))
	if err != nil {
		return nil, nil, err
	}
	if len(props) == 0 {
		return textResult("No properties on this page."), nil, nil
	}
	lines := []string{fmt.Sprintf("%d propert(ies):", len(props))}
	for _, p := range props {
		value := propertyValue(p.Value)
		if len(value) > 120 {
			value = truncate(value, 117) + "..."
		}
		lines = append(lines, fmt.Sprintf("  %s = %s (v%d)", orUnknown(p.Key), value, p.Version.Number))
	}
	return textResult(strings.Join(lines, "\n")), nil, nil
}

type setPagePropertyToolInput struct {
	PageID string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
	Key    string `json:"key" jsonschema:"The property key, e.g. status or priority"`
	Value  string `json:"value" jsonschema:"The property value as JSON (object, array, number); non-JSON input is stored as a plain string"`
}

func (s *server) handleSetPagePropertyTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input setPagePropertyToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	raw := json.RawMessage(input.Value)
	if !json.Valid(raw) {
		quoted, _ := json.Marshal(input.Value)
		raw = quoted
	}
	updated, version, err := s.client.SetProperty(ctx, pageID, input.Key, raw)
	if err != nil {
		return nil, nil, err
	}
	action := "Created"
	if updated {
		action = "Updated"
	}
	return textResult(fmt.Sprintf("%s property %q on page %s (v%d).", action, input.Key, pageID, version)), nil, nil
}

type setRestrictionsToolInput struct {
	PageID    string   `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
	Operation string   `json:"operation" jsonschema:"The operation to restrict: read or update"`
	Users     []string `json:"users,omitempty" jsonschema:"Account IDs to grant access"`
	Groups    []string `json:"groups,omitempty" jsonschema:"Group names to grant access"`
}

func (s *server) handleSetRestrictionsTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input setRestrictionsToolInput) (*mcpsdk.CallToolResult, any, error) {
	operation := strings.ToLower(input.Operation)
	if operation != "read" && operation != "update" {
		return textResult(fmt.Sprintf(`Invalid operation %q. Use "read" or "update".`, operation)), nil, nil
	}
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.client.SetRestrictions(ctx, pageID, operation, input.Users, input.Groups); err != nil {
		return nil, nil, err
	}
	if len(input.Users)+len(input.Groups) == 0 {
		return textResult(fmt.Sprintf("Cleared %s restrictions on page %s.", operation, pageID)), nil, nil
	}
	return textResult(fmt.Sprintf("Set %s restrictions: %d user(s), %d group(s) on page %s.",
		operation, len(input.Users), len(input.Groups), pageID)), nil, nil
}

type watchPageToolInput struct {
	PageID string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
	Watch  *bool  `json:"watch,omitempty" jsonschema:"True to start watching (default); false to stop"`
}

func (s *server) handleWatchPageTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input watchPageToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	if boolOrTrue(input.Watch) {
		if err := s.client.Watch(ctx, pageID); err != nil {
			return nil, nil, err
		}
		return textResult(fmt.Sprintf("Watching page %s.", pageID)), nil, nil
	}
	if err := s.client.Unwatch(ctx, pageID); err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("Unwatched page %s.", pageID)), nil, nil
}
