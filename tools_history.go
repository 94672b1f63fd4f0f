package wikid

import (
	"context"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/sync/errgroup"

	"pkt.systems/wikid/internal/adf"
)

type listVersionsToolInput struct {
	PageID string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of versions to return (default 10, max 50)"`
	Cursor string `json:"cursor,omitempty" jsonschema:"Pagination cursor from a previous result"`
}

func (s *server) handleListVersionsTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input listVersionsToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	list, err := s.client.Versions(ctx, pageID, clampLimit(input.Limit, 10, 50), input.Cursor)
	if err != nil {
		return nil, nil, err
	}
	if len(list.Versions) == 0 {
		return textResult("No version history found."), nil, nil
	}
	lines := []string{fmt.Sprintf("%d version(s):", len(list.Versions))}
	for _, v := range list.Versions {
		line := fmt.Sprintf("  v%d by %s at %s", v.Number, orUnknown(v.AuthorID), orUnknown(v.CreatedAt))
		if v.Message != "" {
			line += fmt.Sprintf(" — %q", v.Message)
		}
		lines = append(lines, line)
	}
	if list.NextCursor != "" {
		lines = append(lines, "\nNext cursor: "+list.NextCursor)
	}
	return textResult(strings.Join(lines, "\n")), nil, nil
}

type compareVersionsToolInput struct {
	PageID   string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
	VersionA int64  `json:"version_a" jsonschema:"The before version number"`
	VersionB int64  `json:"version_b" jsonschema:"The after version number"`
}

func (s *server) handleCompareVersionsTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input compareVersionsToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}

	var docA, docB *adf.Node
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		docA, err = s.client.VersionADF(gctx, pageID, input.VersionA)
		return err
	})
	g.Go(func() error {
		var err error
		docB, err = s.client.VersionADF(gctx, pageID, input.VersionB)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(adf.ExtractText(docA)),
		B:        difflib.SplitLines(adf.ExtractText(docB)),
		FromFile: fmt.Sprintf("v%d", input.VersionA),
		ToFile:   fmt.Sprintf("v%d", input.VersionB),
		Context:  3,
	})
	if err != nil {
		return nil, nil, err
	}
	if diff == "" {
		return textResult(fmt.Sprintf("No text differences between v%d and v%d.", input.VersionA, input.VersionB)), nil, nil
	}
	return textResult(diff), nil, nil
}

type revertPageToolInput struct {
	PageID         string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
	VersionNumber  int64  `json:"version_number" jsonschema:"The version number to revert to"`
	VersionMessage string `json:"version_message,omitempty" jsonschema:"Message describing the revert"`
}

func (s *server) handleRevertPageTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input revertPageToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	version, err := s.client.RevertPage(ctx, pageID, input.VersionNumber, input.VersionMessage)
	if err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("Reverted to v%d. Now at v%d — %q.",
		input.VersionNumber, version.Number, version.Message)), nil, nil
}

type getContributorsToolInput struct {
	PageID string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
}

func (s *server) handleGetContributorsTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input getContributorsToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	list, err := s.client.Versions(ctx, pageID, 50, "")
	if err != nil {
		return nil, nil, err
	}
	if len(list.Versions) == 0 {
		return textResult("No version history found."), nil, nil
	}

	type contributor struct {
		authorID  string
		firstSeen int64
	}
	// The history arrives newest first; walk it backwards so firstSeen
	// lands on each author's earliest version in the fetched window.
	seen := make(map[string]struct{})
	var contributors []contributor
	for i := len(list.Versions) - 1; i >= 0; i-- {
		v := list.Versions[i]
		if v.AuthorID == "" {
			continue
		}
		if _, ok := seen[v.AuthorID]; ok {
			continue
		}
		seen[v.AuthorID] = struct{}{}
		contributors = append(contributors, contributor{authorID: v.AuthorID, firstSeen: v.Number})
	}

	lines := []string{fmt.Sprintf("%d contributor(s):", len(contributors))}
	for _, c := range contributors {
		lines = append(lines, fmt.Sprintf("  %s (first seen in v%d)", c.authorID, c.firstSeen))
	}
	return textResult(strings.Join(lines, "\n")), nil, nil
}
