package wikid

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"pkt.systems/wikid/internal/confluence"
	"pkt.systems/wikid/internal/snapshot"
)

// htmlTagPattern strips the highlight markup search excerpts carry.
var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

type searchPagesToolInput struct {
	Query  string `json:"query" jsonschema:"A CQL query or plain text; plain text searches page titles and bodies"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of results to return (default 10, max 50)"`
	Cursor string `json:"cursor,omitempty" jsonschema:"Pagination cursor from a previous search result"`
}

func (s *server) handleSearchPagesTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input searchPagesToolInput) (*mcpsdk.CallToolResult, any, error) {
	results, err := s.client.Search(ctx, confluence.WrapCQL(input.Query), clampLimit(input.Limit, 10, 50), input.Cursor)
	if err != nil {
		return nil, nil, err
	}
	if len(results.Results) == 0 {
		return textResult("No pages found."), nil, nil
	}
	lines := []string{fmt.Sprintf("Found %d result(s):", len(results.Results))}
	for _, r := range results.Results {
		line := fmt.Sprintf("  [%s] %q (space: %s)", orUnknown(r.PageID), orUnknown(r.Title), orUnknown(r.Space))
		excerpt := strings.TrimSpace(r.Excerpt)
		if excerpt != "" {
			excerpt = truncate(htmlTagPattern.ReplaceAllString(excerpt, ""), 120)
		}
		if excerpt != "" {
			line += " — " + excerpt
		}
		lines = append(lines, line)
	}
	if results.NextCursor != "" {
		lines = append(lines, "\nNext cursor: "+results.NextCursor)
	}
	return textResult(strings.Join(lines, "\n")), nil, nil
}

type listPagesToolInput struct {
	SpaceID string `json:"space_id" jsonschema:"The numeric space ID"`
	Limit   int    `json:"limit,omitempty" jsonschema:"Maximum number of pages to return (default 25, max 250)"`
	Sort    string `json:"sort,omitempty" jsonschema:"Sort order: title, -title, created-date, -modified-date (default title)"`
	Cursor  string `json:"cursor,omitempty" jsonschema:"Pagination cursor from a previous result"`
}

func (s *server) handleListPagesTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input listPagesToolInput) (*mcpsdk.CallToolResult, any, error) {
	sort := input.Sort
	if sort == "" {
		sort = "title"
	}
	list, err := s.client.ListPages(ctx, input.SpaceID, clampLimit(input.Limit, 25, 250), sort, input.Cursor)
	if err != nil {
		return nil, nil, err
	}
	if len(list.Pages) == 0 {
		return textResult("No pages found in this space."), nil, nil
	}
	lines := []string{fmt.Sprintf("%d page(s) in space %s:", len(list.Pages), input.SpaceID)}
	for _, p := range list.Pages {
		statusTag := ""
		if p.Status != "" && p.Status != "current" {
			statusTag = fmt.Sprintf(" [%s]", p.Status)
		}
		lines = append(lines, fmt.Sprintf("  [%s] %q%s", p.ID, p.Title, statusTag))
	}
	if list.NextCursor != "" {
		lines = append(lines, "\nNext cursor: "+list.NextCursor)
	}
	return textResult(strings.Join(lines, "\n")), nil, nil
}

type getChildPagesToolInput struct {
	PageID string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of children to return (default 25, max 250)"`
	Cursor string `json:"cursor,omitempty" jsonschema:"Pagination cursor from a previous result"`
}

func (s *server) handleGetChildPagesTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input getChildPagesToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	list, err := s.client.Children(ctx, pageID, clampLimit(input.Limit, 25, 250), input.Cursor)
	if err != nil {
		return nil, nil, err
	}
	if len(list.Pages) == 0 {
		return textResult("No child pages found."), nil, nil
	}
	lines := []string{fmt.Sprintf("%d child page(s):", len(list.Pages))}
	for _, c := range list.Pages {
		lines = append(lines, fmt.Sprintf("  [%s] %q", c.ID, c.Title))
	}
	if list.NextCursor != "" {
		lines = append(lines, "\nNext cursor: "+list.NextCursor)
	}
	return textResult(strings.Join(lines, "\n")), nil, nil
}

type getAncestorsToolInput struct {
	PageID string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
}

func (s *server) handleGetAncestorsTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input getAncestorsToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	ancestors, err := s.client.Ancestors(ctx, pageID)
	if err != nil {
		return nil, nil, err
	}
	if len(ancestors) == 0 {
		return textResult("No ancestors — this is a root-level page."), nil, nil
	}
	lines := []string{fmt.Sprintf("%d ancestor(s) (root → parent):", len(ancestors))}
	for i, a := range ancestors {
		lines = append(lines, strings.Repeat("  ", i+1)+fmt.Sprintf("[%s] %q", a.ID, orUnknown(a.Title)))
	}
	return textResult(strings.Join(lines, "\n")), nil, nil
}

type listSpacesToolInput struct {
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of spaces to return (default 25, max 250)"`
	Type   string `json:"type,omitempty" jsonschema:"Filter by space type: global or personal; empty for all"`
	Status string `json:"status,omitempty" jsonschema:"Filter by status: current (default) or archived"`
	Cursor string `json:"cursor,omitempty" jsonschema:"Pagination cursor from a previous result"`
}

func (s *server) handleListSpacesTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input listSpacesToolInput) (*mcpsdk.CallToolResult, any, error) {
	status := input.Status
	if status == "" {
		status = "current"
	}
	list, err := s.client.Spaces(ctx, clampLimit(input.Limit, 25, 250), input.Type, status, input.Cursor)
	if err != nil {
		return nil, nil, err
	}
	if len(list.Spaces) == 0 {
		return textResult("No spaces found."), nil, nil
	}
	lines := []string{fmt.Sprintf("%d space(s):", len(list.Spaces))}
	for _, sp := range list.Spaces {
		lines = append(lines, fmt.Sprintf("  [%s] %q (key=%s, type=%s)",
			orUnknown(sp.ID), orUnknown(sp.Name), orUnknown(sp.Key), orUnknown(sp.Type)))
	}
	if list.NextCursor != "" {
		lines = append(lines, "\nNext cursor: "+list.NextCursor)
	}
	return textResult(strings.Join(lines, "\n")), nil, nil
}

type archivePageToolInput struct {
	PageID  string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
	Confirm bool   `json:"confirm,omitempty" jsonschema:"Must be true to actually archive; false (default) shows a preview"`
}

func (s *server) handleArchivePageTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input archivePageToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	page, err := s.client.GetPage(ctx, pageID)
	if err != nil {
		return nil, nil, err
	}

	if !input.Confirm {
		return textResult(fmt.Sprintf("⚠ ARCHIVE PREVIEW — This will archive the following page:\n"+
			"  Page:    %q (id=%s)\n"+
			"  Space:   %s\n"+
			"  Version: v%d\n\n"+
			"The page will be removed from active view but can be restored.\n"+
			"To proceed, call again with confirm=True.",
			page.Title, pageID, orUnknown(page.SpaceID), page.Version.Number)), nil, nil
	}

	if err := s.client.ArchivePage(ctx, pageID, page.Title, pageBody(page), page.Version.Number); err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("Archived %q (id=%s).", page.Title, pageID)), nil, nil
}

type movePageToolInput struct {
	PageID         string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
	TargetParentID string `json:"target_parent_id" jsonschema:"The page ID of the new parent page"`
	Confirm        bool   `json:"confirm,omitempty" jsonschema:"Must be true to actually move; false (default) shows a preview"`
}

func (s *server) handleMovePageTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input movePageToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	targetID, err := s.client.ResolvePageID(ctx, input.TargetParentID)
	if err != nil {
		return nil, nil, err
	}

	var source, target *confluence.Page
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		source, err = s.client.GetPage(gctx, pageID)
		return err
	})
	g.Go(func() error {
		var err error
		target, err = s.client.GetPage(gctx, targetID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	crossSpace := source.SpaceID != target.SpaceID

	if !input.Confirm {
		preview := fmt.Sprintf("⚠ MOVE PREVIEW — This will move the following page:\n"+
			"  Page:        %q (id=%s)\n"+
			"  From space:  %s\n"+
			"  To parent:   %q (id=%s)\n"+
			"  In space:    %s\n",
			source.Title, pageID, orUnknown(source.SpaceID), target.Title, targetID, orUnknown(target.SpaceID))
		if crossSpace {
			preview += "\n  ⚠ This is a CROSS-SPACE move!\n"
		}
		preview += "\nTo proceed, call again with confirm=True."
		return textResult(preview), nil, nil
	}

	result, err := s.client.PushPage(ctx, confluence.PageUpdate{
		ID:          pageID,
		Title:       source.Title,
		Body:        pageBody(source),
		BaseVersion: source.Version.Number,
		Message:     fmt.Sprintf("Moved under %q", target.Title),
	})
	if err != nil {
		return nil, nil, err
	}
	if err := s.client.SetParent(ctx, pageID, source.Title, result.Version.Number+1, targetID); err != nil {
		return nil, nil, err
	}

	msg := fmt.Sprintf("Moved %q under %q (id=%s).", source.Title, target.Title, targetID)
	if crossSpace {
		msg += fmt.Sprintf(" (cross-space: %s → %s)", orUnknown(source.SpaceID), orUnknown(target.SpaceID))
	}
	return textResult(msg), nil, nil
}

type copyPageToolInput struct {
	PageID              string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
	Title               string `json:"title,omitempty" jsonschema:"Title for the copy; defaults to Copy of {original title}"`
	DestinationParentID string `json:"destination_parent_id,omitempty" jsonschema:"Parent page ID for the copy; empty keeps the same parent"`
	CopyLabels          *bool  `json:"copy_labels,omitempty" jsonschema:"Whether to copy labels (default true)"`
	CopyAttachments     *bool  `json:"copy_attachments,omitempty" jsonschema:"Whether to copy attachments (default true)"`
}

func (s *server) handleCopyPageTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input copyPageToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	page, err := s.client.GetPage(ctx, pageID)
	if err != nil {
		return nil, nil, err
	}

	copyTitle := input.Title
	if copyTitle == "" {
		copyTitle = "Copy of " + page.Title
	}
	newID, err := s.client.CopyPage(ctx, pageID, confluence.CopyRequest{
		Title:               copyTitle,
		DestinationParentID: input.DestinationParentID,
		CopyLabels:          boolOrTrue(input.CopyLabels),
		CopyAttachments:     boolOrTrue(input.CopyAttachments),
	})
	if err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("Copied %q → %q (id=%s).", page.Title, copyTitle, orUnknown(newID))), nil, nil
}

type getUserToolInput struct {
	AccountID string `json:"account_id" jsonschema:"The Confluence/Atlassian account ID"`
}

func (s *server) handleGetUserTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input getUserToolInput) (*mcpsdk.CallToolResult, any, error) {
	user, err := s.client.GetUser(ctx, input.AccountID)
	if confluence.IsNotFound(err) {
		return textResult("User not found: " + input.AccountID), nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	info := fmt.Sprintf("%q (type=%s, id=%s)", orUnknown(user.DisplayName), orUnknown(user.AccountType), input.AccountID)
	if user.Email != "" {
		info += " — " + user.Email
	}
	return textResult(info), nil, nil
}

type listCacheToolInput struct{}

func (s *server) handleListCacheTool(ctx context.Context, _ *mcpsdk.CallToolRequest, _ listCacheToolInput) (*mcpsdk.CallToolResult, any, error) {
	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(entries) == 0 {
		return textResult("Cache is empty."), nil, nil
	}
	lines := []string{fmt.Sprintf("%d cached page(s):", len(entries))}
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("  [%s] %q (cached: %s)",
			e.ID, orUnknown(e.Title), e.ModTime.Format("2006-01-02T15:04:05")))
	}
	return textResult(strings.Join(lines, "\n")), nil, nil
}

type clearCacheToolInput struct {
	PageID string `json:"page_id,omitempty" jsonschema:"Page ID to clear; empty clears all cached pages"`
}

func (s *server) handleClearCacheTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input clearCacheToolInput) (*mcpsdk.CallToolResult, any, error) {
	if input.PageID != "" {
		err := s.store.Delete(ctx, input.PageID)
		if errors.Is(err, snapshot.ErrNotFound) {
			return textResult(fmt.Sprintf("No cache found for page %s.", input.PageID)), nil, nil
		}
		if err != nil {
			return nil, nil, err
		}
		return textResult(fmt.Sprintf("Cleared cache for page %s.", input.PageID)), nil, nil
	}

	count, err := s.store.Clear(ctx)
	if err != nil {
		return nil, nil, err
	}
	if count == 0 {
		return textResult("Cache is already empty."), nil, nil
	}
	return textResult(fmt.Sprintf("Cleared %d cached page(s).", count)), nil, nil
}
