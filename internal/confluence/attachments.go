package confluence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
)

// Attachment describes one file attached to a page.
type Attachment struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	MediaType string `json:"mediaType"`
	FileSize  int64  `json:"fileSize"`
}

// AttachmentList is one page of attachments.
type AttachmentList struct {
	Attachments []Attachment
	NextCursor  string
}

// Attachments lists a page's attachments.
func (c *Client) Attachments(ctx context.Context, pageID string, limit int, cursor string) (*AttachmentList, error) {
	query := url.Values{"limit": {strconv.Itoa(limit)}}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	var w struct {
		Results []Attachment `json:"results"`
		Links   linksWire    `json:"_links"`
	}
	if err := c.getJSON(ctx, "/api/v2/pages/"+pageID+"/attachments", query, &w); err != nil {
		return nil, err
	}
	return &AttachmentList{Attachments: w.Results, NextCursor: nextCursor(w.Links)}, nil
}

// UploadAttachment attaches content to a page as filename. The payload
// is buffered so a throttled upload can be replayed; callers enforce
// their own size limits before handing the reader over.
func (c *Client) UploadAttachment(ctx context.Context, pageID, filename string, content io.Reader, comment string) (*Attachment, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("confluence: build upload form: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("confluence: read upload payload: %w", err)
	}
	if comment != "" {
		if err := mw.WriteField("comment", comment); err != nil {
			return nil, fmt.Errorf("confluence: build upload form: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("confluence: build upload form: %w", err)
	}

	path := "/rest/api/content/" + pageID + "/child/attachment"
	req, err := c.newRequest(ctx, http.MethodPost, path, nil, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Atlassian-Token", "nocheck")

	resp, err := c.do(c.longClient, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	// The v1 endpoint wraps the attachment in a results array, but
	// replies with a bare object on some deployments.
	var wrapped struct {
		Results []Attachment `json:"results"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Results) > 0 {
		return &wrapped.Results[0], nil
	}
	var single Attachment
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("confluence: decode upload response: %w", err)
	}
	return &single, nil
}

// DownloadAttachment streams an attachment's bytes into w, following
// the v1 download redirect, and returns how many bytes were written.
func (c *Client) DownloadAttachment(ctx context.Context, attachmentID string, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/rest/api/content/"+attachmentID+"/download", nil, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "*/*")
	resp, err := c.do(c.longClient, req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	return io.Copy(w, resp.Body)
}

// DeleteAttachment permanently removes an attachment by its content ID.
func (c *Client) DeleteAttachment(ctx context.Context, attachmentID string) error {
	return c.sendJSON(ctx, http.MethodDelete, "/rest/api/content/"+attachmentID, nil, nil)
}
