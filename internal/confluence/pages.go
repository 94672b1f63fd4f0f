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

// Version identifies one revision of a page or comment.
type Version struct {
	Number    int64  `json:"number"`
	Message   string `json:"message"`
	CreatedAt string `json:"createdAt"`
	AuthorID  string `json:"authorId"`
}

// Page is a Confluence page with its parsed document body. Body is nil
// when the API response carried no ADF value.
type Page struct {
	ID       string
	Title    string
	Status   string
	SpaceID  string
	ParentID string
	Version  Version
	Body     *adf.Node
}

// PageSummary is the listing form of a page: identity without body.
type PageSummary struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// PageList is one page of a paginated listing.
type PageList struct {
	Pages      []PageSummary
	NextCursor string
}

type bodyWire struct {
	Representation string `json:"representation"`
	Value          string `json:"value"`
}

type pageWire struct {
	ID       string  `json:"id"`
	Status   string  `json:"status"`
	Title    string  `json:"title"`
	SpaceID  string  `json:"spaceId"`
	ParentID string  `json:"parentId"`
	Version  Version `json:"version"`
	Body     struct {
		ADF struct {
			Value string `json:"value"`
		} `json:"atlas_doc_format"`
	} `json:"body"`
}

func pageFromWire(w pageWire) (*Page, error) {
	p := &Page{
		ID:       w.ID,
		Title:    w.Title,
		Status:   w.Status,
		SpaceID:  w.SpaceID,
		ParentID: w.ParentID,
		Version:  w.Version,
	}
	if w.Body.ADF.Value != "" {
		node, err := adf.Parse([]byte(w.Body.ADF.Value))
		if err != nil {
			return nil, fmt.Errorf("confluence: parse page %s body: %w", w.ID, err)
		}
		p.Body = node
	}
	return p, nil
}

// GetPage fetches a page with its ADF body from the v2 API.
func (c *Client) GetPage(ctx context.Context, pageID string) (*Page, error) {
	var w pageWire
	query := url.Values{"body-format": {representationADF}}
	if err := c.getJSON(ctx, "/api/v2/pages/"+pageID, query, &w); err != nil {
		return nil, err
	}
	return pageFromWire(w)
}

type pagePutWire struct {
	ID      string   `json:"id"`
	Status  string   `json:"status"`
	Title   string   `json:"title"`
	Version Version  `json:"version"`
	Body    bodyWire `json:"body"`
}

// PageUpdate describes a page write. BaseVersion is the version the
// caller last saw; the write targets BaseVersion+1.
type PageUpdate struct {
	ID          string
	Title       string
	Body        *adf.Node
	BaseVersion int64
	Message     string
}

// PushPage publishes body as the next version of the page. On a version
// conflict it re-reads the current remote version and retries exactly
// once against that; a second conflict is returned to the caller.
func (c *Client) PushPage(ctx context.Context, up PageUpdate) (*Page, error) {
	value, err := json.Marshal(up.Body)
	if err != nil {
		return nil, fmt.Errorf("confluence: encode page %s body: %w", up.ID, err)
	}
	payload := pagePutWire{
		ID:      up.ID,
		Status:  "current",
		Title:   up.Title,
		Version: Version{Number: up.BaseVersion + 1, Message: up.Message},
		Body:    bodyWire{Representation: representationADF, Value: string(value)},
	}
	path := "/api/v2/pages/" + up.ID

	var w pageWire
	err = c.sendJSON(ctx, http.MethodPut, path, payload, &w)
	if IsConflict(err) {
		if c.onConflict != nil {
			c.onConflict()
		}
		current, gerr := c.GetPage(ctx, up.ID)
		if gerr != nil {
			return nil, gerr
		}
		c.logger.Debug("client.push.conflict",
			"page", up.ID, "stale_version", up.BaseVersion, "remote_version", current.Version.Number)
		payload.Version.Number = current.Version.Number + 1
		w = pageWire{}
		err = c.sendJSON(ctx, http.MethodPut, path, payload, &w)
	}
	if err != nil {
		return nil, err
	}
	return pageFromWire(w)
}

// ArchivePage republishes the page with archived status. Unlike
// PushPage this does not retry on conflict.
func (c *Client) ArchivePage(ctx context.Context, pageID, title string, body *adf.Node, baseVersion int64) error {
	value, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("confluence: encode page %s body: %w", pageID, err)
	}
	payload := pagePutWire{
		ID:      pageID,
		Status:  "archived",
		Title:   title,
		Version: Version{Number: baseVersion + 1, Message: "Archived via MCP"},
		Body:    bodyWire{Representation: representationADF, Value: string(value)},
	}
	return c.sendJSON(ctx, http.MethodPut, "/api/v2/pages/"+pageID, payload, nil)
}

type pagePostWire struct {
	SpaceID  string   `json:"spaceId"`
	Title    string   `json:"title"`
	Status   string   `json:"status"`
	Body     bodyWire `json:"body"`
	ParentID string   `json:"parentId,omitempty"`
}

// CreatePage creates a page from a raw ADF JSON document string,
// optionally nested under a parent.
func (c *Client) CreatePage(ctx context.Context, spaceID, title, adfValue, parentID string) (*Page, error) {
	payload := pagePostWire{
		SpaceID:  spaceID,
		Title:    title,
		Status:   "current",
		Body:     bodyWire{Representation: representationADF, Value: adfValue},
		ParentID: parentID,
	}
	var w pageWire
	if err := c.sendJSON(ctx, http.MethodPost, "/api/v2/pages", payload, &w); err != nil {
		return nil, err
	}
	return pageFromWire(w)
}

// SetParent re-parents a page through the v1 content API, which still
// owns ancestor placement. version must be the page's current version.
func (c *Client) SetParent(ctx context.Context, pageID, title string, version int64, parentID string) error {
	payload := map[string]any{
		"type":      "page",
		"title":     title,
		"version":   map[string]int64{"number": version},
		"ancestors": []map[string]string{{"id": parentID}},
	}
	return c.sendJSON(ctx, http.MethodPut, "/rest/api/content/"+pageID, payload, nil)
}

// CopyRequest controls CopyPage.
type CopyRequest struct {
	// Title names the copy.
	Title string
	// DestinationParentID places the copy under another page. Empty
	// keeps the original's parent.
	DestinationParentID string
	CopyLabels          bool
	CopyAttachments     bool
}

type copyPostWire struct {
	CopyAttachments bool          `json:"copyAttachments"`
	CopyLabels      bool          `json:"copyLabels"`
	CopyPermissions bool          `json:"copyPermissions"`
	Destination     *copyDestWire `json:"destination,omitempty"`
	PageTitle       string        `json:"pageTitle"`
}

type copyDestWire struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// CopyPage duplicates a page and returns the new page's ID.
func (c *Client) CopyPage(ctx context.Context, pageID string, req CopyRequest) (string, error) {
	payload := copyPostWire{
		CopyAttachments: req.CopyAttachments,
		CopyLabels:      req.CopyLabels,
		PageTitle:       req.Title,
	}
	if req.DestinationParentID != "" {
		payload.Destination = &copyDestWire{Type: "parent_page", Value: req.DestinationParentID}
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.sendJSON(ctx, http.MethodPost, "/rest/api/content/"+pageID+"/copy", payload, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// SearchResult is one hit from a CQL search.
type SearchResult struct {
	PageID string
	Title  string
	Space  string
	// Excerpt is the raw highlight snippet; it may contain HTML tags.
	Excerpt string
}

// SearchResults is one page of CQL search hits.
type SearchResults struct {
	Results    []SearchResult
	NextCursor string
}

// Search runs a CQL query through the v1 search API.
func (c *Client) Search(ctx context.Context, cql string, limit int, cursor string) (*SearchResults, error) {
	query := url.Values{
		"cql":   {cql},
		"limit": {strconv.Itoa(limit)},
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	var w struct {
		Results []struct {
			Title   string `json:"title"`
			Excerpt string `json:"excerpt"`
			Content struct {
				ID    string `json:"id"`
				Title string `json:"title"`
			} `json:"content"`
			Container struct {
				Title string `json:"title"`
			} `json:"resultGlobalContainer"`
		} `json:"results"`
		Links linksWire `json:"_links"`
	}
	if err := c.getJSON(ctx, "/rest/api/search", query, &w); err != nil {
		return nil, err
	}
	out := &SearchResults{NextCursor: nextCursor(w.Links)}
	for _, r := range w.Results {
		title := r.Content.Title
		if title == "" {
			title = r.Title
		}
		out.Results = append(out.Results, SearchResult{
			PageID:  r.Content.ID,
			Title:   title,
			Space:   r.Container.Title,
			Excerpt: r.Excerpt,
		})
	}
	return out, nil
}

type pageListWire struct {
	Results []PageSummary `json:"results"`
	Links   linksWire     `json:"_links"`
}

// ListPages lists pages in a space, sorted per the v2 sort parameter
// ("title", "-modified-date", ...).
func (c *Client) ListPages(ctx context.Context, spaceID string, limit int, sort, cursor string) (*PageList, error) {
	query := url.Values{
		"limit": {strconv.Itoa(limit)},
		"sort":  {sort},
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	var w pageListWire
	if err := c.getJSON(ctx, "/api/v2/spaces/"+spaceID+"/pages", query, &w); err != nil {
		return nil, err
	}
	return &PageList{Pages: w.Results, NextCursor: nextCursor(w.Links)}, nil
}

// Children lists a page's direct child pages.
func (c *Client) Children(ctx context.Context, pageID string, limit int, cursor string) (*PageList, error) {
	query := url.Values{"limit": {strconv.Itoa(limit)}}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	var w pageListWire
	if err := c.getJSON(ctx, "/api/v2/pages/"+pageID+"/children", query, &w); err != nil {
		return nil, err
	}
	return &PageList{Pages: w.Results, NextCursor: nextCursor(w.Links)}, nil
}

// Ancestors lists a page's ancestor chain, root first.
func (c *Client) Ancestors(ctx context.Context, pageID string) ([]PageSummary, error) {
	var w pageListWire
	if err := c.getJSON(ctx, "/api/v2/pages/"+pageID+"/ancestors", nil, &w); err != nil {
		return nil, err
	}
	return w.Results, nil
}
