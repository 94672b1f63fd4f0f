package wikid

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"pkt.systems/wikid/internal/adf"
	"pkt.systems/wikid/internal/confluence"
)

// tableRangeMessage translates the tree mutation errors the table tools
// share into their benign in-band replies. The second return reports
// whether err was one of those.
func tableRangeMessage(err error) (string, bool) {
	if errors.Is(err, adf.ErrNoTables) {
		return "No tables found on this page.", true
	}
	var rangeErr *adf.RangeError
	if !errors.As(err, &rangeErr) {
		return "", false
	}
	switch rangeErr.Unit {
	case "table":
		return fmt.Sprintf("Table index %d out of range (page has %d table(s)).", rangeErr.Index, rangeErr.Count), true
	case "row":
		return fmt.Sprintf("Row %d out of range (table has %d row(s)).", rangeErr.Index, rangeErr.Count), true
	case "column":
		return fmt.Sprintf("Column %d out of range (row has %d column(s)).", rangeErr.Index, rangeErr.Count), true
	}
	return "", false
}

type regexReplaceToolInput struct {
	PageID         string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
	Pattern        string `json:"pattern" jsonschema:"Regular expression to match (RE2 syntax)"`
	Replacement    string `json:"replacement" jsonschema:"Replacement string; capture group references use $1, $2, ..."`
	VersionMessage string `json:"version_message,omitempty" jsonschema:"Optional message describing the change"`
}

func (s *server) handleRegexReplaceTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input regexReplaceToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	page, err := s.client.GetPage(ctx, pageID)
	if err != nil {
		return nil, nil, err
	}
	body := pageBody(page)
	count, err := adf.RegexReplace(body, input.Pattern, input.Replacement)
	if err != nil {
		return textResult(fmt.Sprintf("Invalid regex: %s", err)), nil, nil
	}
	if count == 0 {
		return textResult("No matches for pattern: " + input.Pattern), nil, nil
	}
	message := input.VersionMessage
	if message == "" {
		message = "Regex replace: " + input.Pattern
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
	return textResult(fmt.Sprintf("Replaced %d match(es) of /%s/ in %q (v%d).",
		count, input.Pattern, result.Title, result.Version.Number)), nil, nil
}

type replaceMentionToolInput struct {
	PageID      string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
	FindUser    string `json:"find_user" jsonschema:"Name to find (partial match on mention text, e.g. \"Ali\")"`
	ReplaceUser string `json:"replace_user" jsonschema:"Name to replace with (searched in Confluence users, e.g. \"Mark\")"`
}

func (s *server) handleReplaceMentionTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input replaceMentionToolInput) (*mcpsdk.CallToolResult, any, error) {
	start := time.Now()
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}

	var (
		page  *confluence.Page
		users []confluence.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		page, err = s.client.GetPage(gctx, pageID)
		return err
	})
	g.Go(func() error {
		var err error
		users, err = s.client.SearchUsers(gctx, input.ReplaceUser)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if len(users) == 0 {
		return textResult(fmt.Sprintf("User not found: %q (%.0fms)", input.ReplaceUser, elapsedMS(start))), nil, nil
	}
	if len(users) > 1 {
		lines := []string{fmt.Sprintf("Multiple users match %q. Please pick one by passing their exact display name:", input.ReplaceUser)}
		for _, u := range users {
			display := u.DisplayName
			if display == "" {
				display = "?"
			}
			accountID := u.AccountID
			if accountID == "" {
				accountID = "?"
			}
			lines = append(lines, fmt.Sprintf("  - %s (%s)", display, accountID))
		}
		lines = append(lines, fmt.Sprintf("(%.0fms)", elapsedMS(start)))
		return textResult(strings.Join(lines, "\n")), nil, nil
	}

	display := users[0].DisplayName
	if display == "" {
		display = input.ReplaceUser
	}
	body := pageBody(page)
	count := adf.ReplaceMentions(body, input.FindUser, users[0].AccountID, "@"+display)
	if count == 0 {
		return textResult(fmt.Sprintf("No mentions found matching %q (%.0fms)", input.FindUser, elapsedMS(start))), nil, nil
	}

	result, err := s.client.PushPage(ctx, confluence.PageUpdate{
		ID:          pageID,
		Title:       page.Title,
		Body:        body,
		BaseVersion: page.Version.Number,
		Message:     fmt.Sprintf("Replaced @%s mentions with @%s", input.FindUser, display),
	})
	if err != nil {
		return nil, nil, err
	}
	s.recacheAfterPush(ctx, result, body, page.SpaceID)
	return textResult(fmt.Sprintf("Replaced %d mention(s) of %q with %q in %q (v%d). %.0fms",
		count, input.FindUser, "@"+display, result.Title, result.Version.Number, elapsedMS(start))), nil, nil
}

type updateTaskToolInput struct {
	PageID   string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
	TaskText string `json:"task_text" jsonschema:"Text substring to match the task item (e.g. \"Review PR\")"`
	State    string `json:"state" jsonschema:"New state: DONE or TODO"`
}

func (s *server) handleUpdateTaskTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input updateTaskToolInput) (*mcpsdk.CallToolResult, any, error) {
	state := strings.ToUpper(input.State)
	if state != "DONE" && state != "TODO" {
		return textResult(fmt.Sprintf(`Invalid state %q. Use "DONE" or "TODO".`, state)), nil, nil
	}
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	page, err := s.client.GetPage(ctx, pageID)
	if err != nil {
		return nil, nil, err
	}
	body := pageBody(page)
	count, err := adf.UpdateTaskStates(body, input.TaskText, state)
	if err != nil {
		return nil, nil, err
	}
	if count == 0 {
		return textResult(fmt.Sprintf("No task found matching %q.", input.TaskText)), nil, nil
	}
	result, err := s.client.PushPage(ctx, confluence.PageUpdate{
		ID:          pageID,
		Title:       page.Title,
		Body:        body,
		BaseVersion: page.Version.Number,
		Message:     fmt.Sprintf("Set task '%s' to %s", input.TaskText, state),
	})
	if err != nil {
		return nil, nil, err
	}
	s.recacheAfterPush(ctx, result, body, page.SpaceID)
	return textResult(fmt.Sprintf("Updated %d task(s) matching %q to %s (v%d).",
		count, input.TaskText, state, result.Version.Number)), nil, nil
}

type updateTableCellToolInput struct {
	PageID     string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
	Row        int    `json:"row" jsonschema:"Zero-based row index"`
	Col        int    `json:"col" jsonschema:"Zero-based column index"`
	Value      string `json:"value" jsonschema:"New text value for the cell"`
	TableIndex int    `json:"table_index,omitempty" jsonschema:"Which table on the page (0-based, default first table)"`
}

func (s *server) handleUpdateTableCellTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input updateTableCellToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	page, err := s.client.GetPage(ctx, pageID)
	if err != nil {
		return nil, nil, err
	}
	body := pageBody(page)
	if err := adf.UpdateTableCell(body, input.TableIndex, input.Row, input.Col, input.Value); err != nil {
		if msg, ok := tableRangeMessage(err); ok {
			return textResult(msg), nil, nil
		}
		return nil, nil, err
	}
	result, err := s.client.PushPage(ctx, confluence.PageUpdate{
		ID:          pageID,
		Title:       page.Title,
		Body:        body,
		BaseVersion: page.Version.Number,
		Message:     fmt.Sprintf("Updated table cell [%d,%d]", input.Row, input.Col),
	})
	if err != nil {
		return nil, nil, err
	}
	s.recacheAfterPush(ctx, result, body, page.SpaceID)
	return textResult(fmt.Sprintf("Updated cell [%d,%d] to %q (v%d).",
		input.Row, input.Col, input.Value, result.Version.Number)), nil, nil
}

type insertTableRowToolInput struct {
	PageID     string   `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
	RowIndex   int      `json:"row_index" jsonschema:"Position to insert at (0-based); -1 appends at the end"`
	Values     []string `json:"values" jsonschema:"Cell values for the new row, in column order"`
	TableIndex int      `json:"table_index,omitempty" jsonschema:"Which table on the page (0-based, default first table)"`
}

func (s *server) handleInsertTableRowTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input insertTableRowToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	page, err := s.client.GetPage(ctx, pageID)
	if err != nil {
		return nil, nil, err
	}
	body := pageBody(page)
	pos, err := adf.InsertTableRow(body, input.TableIndex, input.RowIndex, input.Values)
	if err != nil {
		if msg, ok := tableRangeMessage(err); ok {
			return textResult(msg), nil, nil
		}
		return nil, nil, err
	}
	result, err := s.client.PushPage(ctx, confluence.PageUpdate{
		ID:          pageID,
		Title:       page.Title,
		Body:        body,
		BaseVersion: page.Version.Number,
		Message:     fmt.Sprintf("Inserted table row at index %d", pos),
	})
	if err != nil {
		return nil, nil, err
	}
	s.recacheAfterPush(ctx, result, body, page.SpaceID)
	return textResult(fmt.Sprintf("Inserted row at index %d with %d cell(s) (v%d).",
		pos, len(input.Values), result.Version.Number)), nil, nil
}

type deleteTableRowToolInput struct {
	PageID     string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
	RowIndex   int    `json:"row_index" jsonschema:"Zero-based row index to delete"`
	TableIndex int    `json:"table_index,omitempty" jsonschema:"Which table on the page (0-based, default first table)"`
}

func (s *server) handleDeleteTableRowTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input deleteTableRowToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	page, err := s.client.GetPage(ctx, pageID)
	if err != nil {
		return nil, nil, err
	}
	body := pageBody(page)
	removed, err := adf.DeleteTableRow(body, input.TableIndex, input.RowIndex)
	if err != nil {
		if msg, ok := tableRangeMessage(err); ok {
			return textResult(msg), nil, nil
		}
		return nil, nil, err
	}
	removedText := truncate(strings.TrimSpace(adf.ExtractText(removed)), 60)
	result, err := s.client.PushPage(ctx, confluence.PageUpdate{
		ID:          pageID,
		Title:       page.Title,
		Body:        body,
		BaseVersion: page.Version.Number,
		Message:     fmt.Sprintf("Deleted table row %d", input.RowIndex),
	})
	if err != nil {
		return nil, nil, err
	}
	s.recacheAfterPush(ctx, result, body, page.SpaceID)
	return textResult(fmt.Sprintf("Deleted row %d (%q) (v%d).",
		input.RowIndex, removedText, result.Version.Number)), nil, nil
}

type addLinkToolInput struct {
	PageID    string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
	LinkText  string `json:"link_text" jsonschema:"The display text for the link"`
	URL       string `json:"url" jsonschema:"The URL to link to"`
	AfterText string `json:"after_text,omitempty" jsonschema:"Optional text to insert the link after (inline within a paragraph); empty appends a new paragraph at the end"`
}

func (s *server) handleAddLinkTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input addLinkToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	page, err := s.client.GetPage(ctx, pageID)
	if err != nil {
		return nil, nil, err
	}
	body := pageBody(page)
	if err := adf.InsertLink(body, input.LinkText, input.URL, input.AfterText); err != nil {
		if errors.Is(err, adf.ErrAnchorNotFound) {
			return textResult(fmt.Sprintf("Text %q not found on page.", input.AfterText)), nil, nil
		}
		return nil, nil, err
	}
	result, err := s.client.PushPage(ctx, confluence.PageUpdate{
		ID:          pageID,
		Title:       page.Title,
		Body:        body,
		BaseVersion: page.Version.Number,
		Message:     "Added link: " + input.LinkText,
	})
	if err != nil {
		return nil, nil, err
	}
	s.recacheAfterPush(ctx, result, body, page.SpaceID)
	return textResult(fmt.Sprintf("Added link %q → %s (v%d).",
		input.LinkText, input.URL, result.Version.Number)), nil, nil
}
