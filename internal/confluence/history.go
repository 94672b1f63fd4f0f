package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"pkt.systems/wikid/internal/adf"
)

// VersionList is one page of a page's version history, newest first.
type VersionList struct {
	Versions   []Version
	NextCursor string
}

// Versions lists a page's version history.
func (c *Client) Versions(ctx context.Context, pageID string, limit int, cursor string) (*VersionList, error) {
	query := url.Values{"limit": {strconv.Itoa(limit)}}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	var w struct {
		Results []Version `json:"results"`
		Links   linksWire `json:"_links"`
	}
	if err := c.getJSON(ctx, "/api/v2/pages/"+pageID+"/versions", query, &w); err != nil {
		return nil, err
	}
	return &VersionList{Versions: w.Results, NextCursor: nextCursor(w.Links)}, nil
}

// VersionADF fetches the document body of one historical version
// through the v1 content API, which still serves arbitrary versions.
func (c *Client) VersionADF(ctx context.Context, pageID string, version int64) (*adf.Node, error) {
	query := url.Values{
		"version": {strconv.FormatInt(version, 10)},
		"expand":  {"body.atlas_doc_format"},
	}
	var w struct {
		Body struct {
			ADF struct {
				Value string `json:"value"`
			} `json:"atlas_doc_format"`
		} `json:"body"`
	}
	if err := c.getJSON(ctx, "/rest/api/content/"+pageID, query, &w); err != nil {
		return nil, err
	}
	value := w.Body.ADF.Value
	if value == "" {
		value = "{}"
	}
	node, err := adf.Parse([]byte(value))
	if err != nil {
		return nil, fmt.Errorf("confluence: parse page %s v%d body: %w", pageID, version, err)
	}
	return node, nil
}

// RevertPage rolls a page back to an earlier version via the v1 restore
// operation and returns the version the restore produced.
func (c *Client) RevertPage(ctx context.Context, pageID string, toVersion int64, message string) (*Version, error) {
	params := map[string]any{"versionNumber": toVersion}
	if message != "" {
		params["message"] = message
	}
	payload := map[string]any{
		"operationKey": "restore",
		"params":       params,
	}
	var v Version
	if err := c.sendJSON(ctx, http.MethodPost, "/rest/api/content/"+pageID+"/version", payload, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Comment is a footer or inline comment with its parsed body.
type Comment struct {
	ID        string
	AuthorID  string
	CreatedAt string
	Body      *adf.Node
	// Selection is the page text an inline comment is anchored to.
	// Empty for footer comments.
	Selection string
}

// CommentList is one page of comments.
type CommentList struct {
	Comments   []Comment
	NextCursor string
}

type commentWire struct {
	ID        string `json:"id"`
	AuthorID  string `json:"authorId"`
	CreatedAt string `json:"createdAt"`
	Body      struct {
		ADF struct {
			Value string `json:"value"`
		} `json:"atlas_doc_format"`
	} `json:"body"`
	Properties struct {
		MarkerRef struct {
			Value string `json:"value"`
		} `json:"inline-marker-ref"`
	} `json:"properties"`
}

func commentFromWire(w commentWire) (Comment, error) {
	cm := Comment{
		ID:        w.ID,
		AuthorID:  w.AuthorID,
		CreatedAt: w.CreatedAt,
		Selection: w.Properties.MarkerRef.Value,
	}
	value := w.Body.ADF.Value
	if value == "" {
		value = "{}"
	}
	node, err := adf.Parse([]byte(value))
	if err != nil {
		return Comment{}, fmt.Errorf("confluence: parse comment %s body: %w", w.ID, err)
	}
	cm.Body = node
	return cm, nil
}

func (c *Client) listComments(ctx context.Context, path string, limit int, cursor string) (*CommentList, error) {
	query := url.Values{
		"limit":       {strconv.Itoa(limit)},
		"body-format": {representationADF},
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	var w struct {
		Results []commentWire `json:"results"`
		Links   linksWire     `json:"_links"`
	}
	if err := c.getJSON(ctx, path, query, &w); err != nil {
		return nil, err
	}
	out := &CommentList{NextCursor: nextCursor(w.Links)}
	for _, cw := range w.Results {
		cm, err := commentFromWire(cw)
		if err != nil {
			return nil, err
		}
		out.Comments = append(out.Comments, cm)
	}
	return out, nil
}

// FooterComments lists the comments shown below a page.
func (c *Client) FooterComments(ctx context.Context, pageID string, limit int, cursor string) (*CommentList, error) {
	return c.listComments(ctx, "/api/v2/pages/"+pageID+"/footer-comments", limit, cursor)
}

// InlineComments lists comments anchored to text selections on a page.
func (c *Client) InlineComments(ctx context.Context, pageID string, limit int, cursor string) (*CommentList, error) {
	return c.listComments(ctx, "/api/v2/pages/"+pageID+"/inline-comments", limit, cursor)
}

// AddFooterComment posts a footer comment, optionally as a reply, and
// returns the new comment's ID.
func (c *Client) AddFooterComment(ctx context.Context, pageID string, body *adf.Node, parentCommentID string) (string, error) {
	value, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("confluence: encode comment body: %w", err)
	}
	payload := map[string]any{
		"pageId": pageID,
		"body": bodyWire{
			Representation: representationADF,
			Value:          string(value),
		},
	}
	if parentCommentID != "" {
		payload["parentCommentId"] = parentCommentID
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.sendJSON(ctx, http.MethodPost, "/api/v2/footer-comments", payload, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// AddInlineComment posts a comment anchored to the matchIndex-th
// occurrence (zero-based) of selection in the page text, returning the
// new comment's ID.
func (c *Client) AddInlineComment(ctx context.Context, pageID string, body *adf.Node, selection string, matchIndex int) (string, error) {
	value, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("confluence: encode comment body: %w", err)
	}
	payload := map[string]any{
		"pageId": pageID,
		"body": bodyWire{
			Representation: representationADF,
			Value:          string(value),
		},
		"inlineCommentProperties": map[string]any{
			"textSelection":           selection,
			"textSelectionMatchCount": matchIndex + 1,
			"textSelectionMatchIndex": matchIndex,
		},
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.sendJSON(ctx, http.MethodPost, "/api/v2/inline-comments", payload, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}
