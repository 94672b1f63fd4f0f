package wikid

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"pkt.systems/wikid/internal/adf"
	"pkt.systems/wikid/internal/confluence"
	"pkt.systems/wikid/internal/snapshot"
)

// readSnapshot loads a cached page for the edit tools, translating a
// missing snapshot into the guidance message agents need to recover.
func (s *server) readSnapshot(ctx context.Context, pageID string) (*snapshot.Snapshot, error) {
	snap, err := s.store.Read(ctx, pageID)
	if errors.Is(err, snapshot.ErrNotFound) {
		return nil, toolMessagef("No cached page for %s. Call confluence_get_page first.", pageID)
	}
	if err != nil {
		return nil, err
	}
	if snap.Body == nil {
		snap.Body = adf.NewDoc()
	}
	return snap, nil
}

// writeSnapshot caches a freshly fetched page and returns the location
// reported back to the caller.
func (s *server) writeSnapshot(ctx context.Context, page *confluence.Page) (string, error) {
	return s.store.Write(ctx, &snapshot.Snapshot{
		ID:      page.ID,
		Title:   page.Title,
		Version: page.Version.Number,
		SpaceID: page.SpaceID,
		Body:    pageBody(page),
	})
}

// recacheAfterPush rewrites the snapshot from the server's post-push
// identity so the next edit starts from the published version. The push
// already succeeded, so a cache write failure only logs; the stale
// snapshot heals itself through the conflict retry on the next push.
func (s *server) recacheAfterPush(ctx context.Context, result *confluence.Page, body *adf.Node, spaceID string) {
	if spaceID == "" {
		spaceID = result.SpaceID
	}
	snap := &snapshot.Snapshot{
		ID:      result.ID,
		Title:   result.Title,
		Version: result.Version.Number,
		SpaceID: spaceID,
		Body:    body,
	}
	if _, err := s.store.Write(ctx, snap); err != nil {
		s.cacheLog.Warn("cache.write_failed", "page", result.ID, "error", err)
	}
}

type getPageToolInput struct {
	PageID string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
}

func (s *server) handleGetPageTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input getPageToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	page, err := s.client.GetPage(ctx, pageID)
	if err != nil {
		return nil, nil, err
	}
	location, err := s.writeSnapshot(ctx, page)
	if err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("Fetched %q (v%d, id=%s, space=%s). Cached at %s",
		page.Title, page.Version.Number, page.ID, page.SpaceID, location)), nil, nil
}

type editPageToolInput struct {
	PageID     string `json:"page_id" jsonschema:"The page ID to edit (must be cached via confluence_get_page first)"`
	Find       string `json:"find" jsonschema:"The text to find in the page content"`
	Replace    string `json:"replace" jsonschema:"The text to replace it with"`
	ReplaceAll *bool  `json:"replace_all,omitempty" jsonschema:"Replace every occurrence (default true); false replaces only the first"`
}

func (s *server) handleEditPageTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input editPageToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID := strings.TrimSpace(input.PageID)
	snap, err := s.readSnapshot(ctx, pageID)
	if err != nil {
		return nil, nil, err
	}
	count, found := adf.ReplaceText(snap.Body, input.Find, input.Replace, boolOrTrue(input.ReplaceAll))
	if !found {
		return textResult("Text not found: " + input.Find), nil, nil
	}
	location, err := s.store.Write(ctx, snap)
	if err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("Edited %d replacement(s) in cache. File: %s", count, location)), nil, nil
}

type pushPageToolInput struct {
	PageID         string `json:"page_id" jsonschema:"The page ID to push (must be cached via confluence_get_page first)"`
	VersionMessage string `json:"version_message,omitempty" jsonschema:"Optional message describing the change"`
}

func (s *server) handlePushPageTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input pushPageToolInput) (*mcpsdk.CallToolResult, any, error) {
	snap, err := s.readSnapshot(ctx, strings.TrimSpace(input.PageID))
	if err != nil {
		return nil, nil, err
	}
	pageID := snap.ID
	if pageID == "" {
		pageID = strings.TrimSpace(input.PageID)
	}
	message := input.VersionMessage
	if message == "" {
		message = "Updated via MCP"
	}
	result, err := s.client.PushPage(ctx, confluence.PageUpdate{
		ID:          pageID,
		Title:       snap.Title,
		Body:        snap.Body,
		BaseVersion: snap.Version,
		Message:     message,
	})
	if err != nil {
		return nil, nil, err
	}
	s.recacheAfterPush(ctx, result, snap.Body, snap.SpaceID)
	return textResult(fmt.Sprintf("Pushed %q to v%d.", result.Title, result.Version.Number)), nil, nil
}

type findReplaceToolInput struct {
	PageID         string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
	Find           string `json:"find" jsonschema:"The text to find in the page content"`
	Replace        string `json:"replace" jsonschema:"The text to replace it with"`
	ReplaceAll     *bool  `json:"replace_all,omitempty" jsonschema:"Replace every occurrence (default true); false replaces only the first"`
	VersionMessage string `json:"version_message,omitempty" jsonschema:"Optional message describing the change"`
}

func (s *server) handleFindReplaceTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input findReplaceToolInput) (*mcpsdk.CallToolResult, any, error) {
	start := time.Now()
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	page, err := s.client.GetPage(ctx, pageID)
	if err != nil {
		return nil, nil, err
	}
	body := pageBody(page)
	count, _ := adf.ReplaceText(body, input.Find, input.Replace, boolOrTrue(input.ReplaceAll))
	if count == 0 {
		return textResult(fmt.Sprintf("Text not found: %q (%.0fms)", input.Find, elapsedMS(start))), nil, nil
	}
	message := input.VersionMessage
	if message == "" {
		message = fmt.Sprintf("Replaced '%s' with '%s'", input.Find, input.Replace)
	}
	result, err := s.client.PushPage(ctx, confluence.PageUpdate{
		ID:          pageID,
		Title:       page.Title,
		Body:        body,
		BaseVersion: page.Version.Number,
		Message:     message,
	})
	if err != nil {
		return nil, nil, err
	}
	s.recacheAfterPush(ctx, result, body, page.SpaceID)
	return textResult(fmt.Sprintf("Replaced %d occurrence(s) of %q with %q in %q (v%d). %.0fms",
		count, input.Find, input.Replace, result.Title, result.Version.Number, elapsedMS(start))), nil, nil
}

type createPageToolInput struct {
	SpaceID  string `json:"space_id" jsonschema:"The space ID to create the page in"`
	Title    string `json:"title" jsonschema:"The page title"`
	ADFBody  string `json:"adf_body" jsonschema:"The full ADF document as a JSON string, e.g. {\"type\": \"doc\", \"version\": 1, \"content\": [...]}"`
	ParentID string `json:"parent_id,omitempty" jsonschema:"Optional parent page ID to nest under"`
}

func (s *server) handleCreatePageTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input createPageToolInput) (*mcpsdk.CallToolResult, any, error) {
	page, err := s.client.CreatePage(ctx, input.SpaceID, input.Title, input.ADFBody, input.ParentID)
	if err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("Created %q (v%d, id=%s).", page.Title, page.Version.Number, page.ID)), nil, nil
}

type extractTextToolInput struct {
	PageID string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
}

func (s *server) handleExtractTextTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input extractTextToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	page, err := s.client.GetPage(ctx, pageID)
	if err != nil {
		return nil, nil, err
	}
	title := page.Title
	if title == "" {
		title = "?"
	}
	text := adf.ExtractText(pageBody(page))
	return textResult(fmt.Sprintf("# %s\n\n%s", title, strings.TrimSpace(text))), nil, nil
}
