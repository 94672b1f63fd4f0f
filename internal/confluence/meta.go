package confluence

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
)

// Label is one label on a page.
type Label struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Prefix string `json:"prefix"`
}

// Labels lists a page's labels.
func (c *Client) Labels(ctx context.Context, pageID string) ([]Label, error) {
	var w struct {
		Results []Label `json:"results"`
	}
	if err := c.getJSON(ctx, "/api/v2/pages/"+pageID+"/labels", nil, &w); err != nil {
		return nil, err
	}
	return w.Results, nil
}

type labelPostWire struct {
	Prefix string `json:"prefix"`
	Name   string `json:"name"`
}

// AddLabels attaches global-prefix labels to a page through the v1
// content API and returns how many the server acknowledged.
func (c *Client) AddLabels(ctx context.Context, pageID string, names []string) (int, error) {
	payload := make([]labelPostWire, 0, len(names))
	for _, name := range names {
		payload = append(payload, labelPostWire{Prefix: "global", Name: name})
	}
	var out struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := c.sendJSON(ctx, http.MethodPost, "/rest/api/content/"+pageID+"/label", payload, &out); err != nil {
		return 0, err
	}
	count := len(out.Results)
	if count == 0 {
		count = len(names)
	}
	return count, nil
}

// RemoveLabel detaches one label. A label that was never on the page
// surfaces as a 404 APIError; callers decide whether that matters.
func (c *Client) RemoveLabel(ctx context.Context, pageID, name string) error {
	path := "/rest/api/content/" + pageID + "/label/" + url.PathEscape(name)
	return c.sendJSON(ctx, http.MethodDelete, path, nil, nil)
}

// Property is a content property: a versioned key-value pair on a page.
type Property struct {
	ID      string          `json:"id"`
	Key     string          `json:"key"`
	Value   json.RawMessage `json:"value"`
	Version Version         `json:"version"`
}

// Properties lists a page's content properties.
func (c *Client) Properties(ctx context.Context, pageID string, limit int) ([]Property, error) {
	query := url.Values{"limit": {strconv.Itoa(limit)}}
	var w struct {
		Results []Property `json:"results"`
	}
	if err := c.getJSON(ctx, "/api/v2/pages/"+pageID+"/properties", query, &w); err != nil {
		return nil, err
	}
	return w.Results, nil
}

// SetProperty creates the named property or, when it already exists,
// writes the next version of it. Returns whether an existing property
// was updated and the resulting version number.
func (c *Client) SetProperty(ctx context.Context, pageID, key string, value json.RawMessage) (bool, int64, error) {
	existing, err := c.Properties(ctx, pageID, 100)
	if err != nil {
		return false, 0, err
	}
	var current *Property
	for i := range existing {
		if existing[i].Key == key {
			current = &existing[i]
			break
		}
	}
	var out struct {
		Version Version `json:"version"`
	}
	if current != nil {
		payload := map[string]any{
			"key":     key,
			"value":   value,
			"version": map[string]int64{"number": current.Version.Number + 1},
		}
		path := "/api/v2/pages/" + pageID + "/properties/" + current.ID
		if err := c.sendJSON(ctx, http.MethodPut, path, payload, &out); err != nil {
			return false, 0, err
		}
		return true, out.Version.Number, nil
	}
	payload := map[string]any{"key": key, "value": value}
	if err := c.sendJSON(ctx, http.MethodPost, "/api/v2/pages/"+pageID+"/properties", payload, &out); err != nil {
		return false, 0, err
	}
	return false, out.Version.Number, nil
}

type restrictionSubjectsWire struct {
	User  []map[string]string `json:"user"`
	Group []map[string]string `json:"group"`
}

type restrictionWire struct {
	Operation    string                  `json:"operation"`
	Restrictions restrictionSubjectsWire `json:"restrictions"`
}

// SetRestrictions replaces a page's restrictions for one operation
// ("read" or "update"). Empty users and groups clear the restriction.
func (c *Client) SetRestrictions(ctx context.Context, pageID, operation string, users, groups []string) error {
	subjects := restrictionSubjectsWire{
		User:  make([]map[string]string, 0, len(users)),
		Group: make([]map[string]string, 0, len(groups)),
	}
	for _, accountID := range users {
		subjects.User = append(subjects.User, map[string]string{"type": "known", "accountId": accountID})
	}
	for _, name := range groups {
		subjects.Group = append(subjects.Group, map[string]string{"type": "group", "name": name})
	}
	payload := []restrictionWire{{Operation: operation, Restrictions: subjects}}
	return c.sendJSON(ctx, http.MethodPut, "/rest/api/content/"+pageID+"/restriction", payload, nil)
}

// Watch subscribes the authenticated user to page change notifications.
func (c *Client) Watch(ctx context.Context, pageID string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/rest/api/user/watch/content/"+pageID, nil, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Atlassian-Token", "nocheck")
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(c.httpClient, req)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil)
}

// Unwatch removes the authenticated user's page watch.
func (c *Client) Unwatch(ctx context.Context, pageID string) error {
	return c.sendJSON(ctx, http.MethodDelete, "/rest/api/user/watch/content/"+pageID, nil, nil)
}

// Space is a Confluence space.
type Space struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

// SpaceList is one page of spaces.
type SpaceList struct {
	Spaces     []Space
	NextCursor string
}

// Spaces lists spaces, optionally filtered by type ("global",
// "personal") and status ("current", "archived").
func (c *Client) Spaces(ctx context.Context, limit int, spaceType, status, cursor string) (*SpaceList, error) {
	query := url.Values{
		"limit":  {strconv.Itoa(limit)},
		"status": {status},
	}
	if spaceType != "" {
		query.Set("type", spaceType)
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	var w struct {
		Results []Space   `json:"results"`
		Links   linksWire `json:"_links"`
	}
	if err := c.getJSON(ctx, "/api/v2/spaces", query, &w); err != nil {
		return nil, err
	}
	return &SpaceList{Spaces: w.Results, NextCursor: nextCursor(w.Links)}, nil
}

// User is an Atlassian account.
type User struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
	AccountType string `json:"accountType"`
	Email       string `json:"email"`
}

// SearchUsers finds users whose full name matches name.
func (c *Client) SearchUsers(ctx context.Context, name string) ([]User, error) {
	query := url.Values{"cql": {`user.fullname~"` + name + `"`}}
	var w struct {
		Results []struct {
			User User `json:"user"`
		} `json:"results"`
	}
	if err := c.getJSON(ctx, "/rest/api/search/user", query, &w); err != nil {
		return nil, err
	}
	users := make([]User, 0, len(w.Results))
	for _, r := range w.Results {
		users = append(users, r.User)
	}
	return users, nil
}

// GetUser resolves an account ID to profile details. An unknown account
// surfaces as a 404 APIError.
func (c *Client) GetUser(ctx context.Context, accountID string) (*User, error) {
	query := url.Values{"accountId": {accountID}}
	var u User
	if err := c.getJSON(ctx, "/rest/api/user", query, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
