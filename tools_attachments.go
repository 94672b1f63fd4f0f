package wikid

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"pkt.systems/wikid/internal/confluence"
)

// attachmentSize renders a file size for listings, or the placeholder
// when the API omitted it.
func attachmentSize(size int64) string {
	if size <= 0 {
		return "?"
	}
	return humanize.IBytes(uint64(size))
}

// findAttachment locates an attachment by exact filename among the
// first 250 on the page. A nil result with nil error means no match.
func (s *server) findAttachment(ctx context.Context, pageID, title string) (*confluence.Attachment, error) {
	list, err := s.client.Attachments(ctx, pageID, 250, "")
	if err != nil {
		return nil, err
	}
	for i := range list.Attachments {
		if list.Attachments[i].Title == title {
			return &list.Attachments[i], nil
		}
	}
	return nil, nil
}

type listAttachmentsToolInput struct {
	PageID string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of attachments to return (default 25, max 100)"`
	Cursor string `json:"cursor,omitempty" jsonschema:"Pagination cursor from a previous result"`
}

func (s *server) handleListAttachmentsTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input listAttachmentsToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	list, err := s.client.Attachments(ctx, pageID, clampLimit(input.Limit, 25, 100), input.Cursor)
	if err != nil {
		return nil, nil, err
	}
	if len(list.Attachments) == 0 {
		return textResult("No attachments on this page."), nil, nil
	}
	lines := []string{fmt.Sprintf("%d attachment(s):", len(list.Attachments))}
	for _, a := range list.Attachments {
		lines = append(lines, fmt.Sprintf("  [%s] %q (%s, %s)",
			orUnknown(a.ID), orUnknown(a.Title), orUnknown(a.MediaType), attachmentSize(a.FileSize)))
	}
	if list.NextCursor != "" {
		lines = append(lines, "\nNext cursor: "+list.NextCursor)
	}
	return textResult(strings.Join(lines, "\n")), nil, nil
}

type uploadAttachmentToolInput struct {
	PageID   string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
	FilePath string `json:"file_path" jsonschema:"Local file path to upload"`
	Comment  string `json:"comment,omitempty" jsonschema:"Comment for the attachment"`
}

func (s *server) handleUploadAttachmentTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input uploadAttachmentToolInput) (*mcpsdk.CallToolResult, any, error) {
	info, err := os.Stat(input.FilePath)
	if err != nil {
		return textResult("File not found: " + input.FilePath), nil, nil
	}
	if info.Size() > s.cfg.MaxUploadBytes {
		return textResult(fmt.Sprintf("File too large: %s is %s (limit %s).",
			input.FilePath, humanize.IBytes(uint64(info.Size())), humanize.IBytes(uint64(s.cfg.MaxUploadBytes)))), nil, nil
	}
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(input.FilePath)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = f.Close() }()
	att, err := s.client.UploadAttachment(ctx, pageID, filepath.Base(input.FilePath), f, input.Comment)
	if err != nil {
		return nil, nil, err
	}
	title := att.Title
	if title == "" {
		title = filepath.Base(input.FilePath)
	}
	return textResult(fmt.Sprintf("Uploaded %q (id=%s) to page %s.", title, orUnknown(att.ID), pageID)), nil, nil
}

type downloadAttachmentToolInput struct {
	PageID          string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
	AttachmentTitle string `json:"attachment_title" jsonschema:"The filename of the attachment to download, e.g. report.pdf"`
	SavePath        string `json:"save_path" jsonschema:"Local file path to save the downloaded file"`
}

func (s *server) handleDownloadAttachmentTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input downloadAttachmentToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	att, err := s.findAttachment(ctx, pageID, input.AttachmentTitle)
	if err != nil {
		return nil, nil, err
	}
	if att == nil {
		return textResult(fmt.Sprintf("Attachment %q not found on page %s.", input.AttachmentTitle, pageID)), nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(input.SavePath), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.Create(input.SavePath)
	if err != nil {
		return nil, nil, err
	}
	size, err := s.client.DownloadAttachment(ctx, att.ID, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, nil, err
	}

	resolved, err := filepath.Abs(input.SavePath)
	if err != nil {
		resolved = input.SavePath
	}
	return textResult(fmt.Sprintf("Downloaded %q (%.1f KB) to %s",
		input.AttachmentTitle, float64(size)/1024, resolved)), nil, nil
}

type deleteAttachmentToolInput struct {
	PageID          string `json:"page_id" jsonschema:"Numeric page ID or a Confluence URL (including short /wiki/x/ links)"`
	AttachmentTitle string `json:"attachment_title" jsonschema:"The filename of the attachment to delete"`
	Confirm         bool   `json:"confirm,omitempty" jsonschema:"Must be true to actually delete; false (default) shows a preview"`
}

func (s *server) handleDeleteAttachmentTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input deleteAttachmentToolInput) (*mcpsdk.CallToolResult, any, error) {
	pageID, err := s.client.ResolvePageID(ctx, input.PageID)
	if err != nil {
		return nil, nil, err
	}
	att, err := s.findAttachment(ctx, pageID, input.AttachmentTitle)
	if err != nil {
		return nil, nil, err
	}
	if att == nil {
		return textResult(fmt.Sprintf("Attachment %q not found on page %s.", input.AttachmentTitle, pageID)), nil, nil
	}

	if !input.Confirm {
		return textResult(fmt.Sprintf("⚠ DELETE PREVIEW — This will permanently delete:\n"+
			"  File:  %q (id=%s)\n"+
			"  Type:  %s\n"+
			"  Size:  %s\n"+
			"  Page:  %s\n\n"+
			"To proceed, call again with confirm=True.",
			input.AttachmentTitle, orUnknown(att.ID), orUnknown(att.MediaType), attachmentSize(att.FileSize), pageID)), nil, nil
	}

	if err := s.client.DeleteAttachment(ctx, att.ID); err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("Deleted attachment %q (id=%s) from page %s.",
		input.AttachmentTitle, att.ID, pageID)), nil, nil
}
