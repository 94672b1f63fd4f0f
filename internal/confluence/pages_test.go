package confluence_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"pkt.systems/wikid/internal/adf"
	"pkt.systems/wikid/internal/confluence"
)

const sampleADF = `{"type":"doc","version":1,"content":[{"type":"paragraph","content":[{"type":"text","text":"hello world"}]}]}`

func pageJSON(id, title string, version int64, adfValue string) string {
	quoted, _ := json.Marshal(adfValue)
	return fmt.Sprintf(`{"id":%q,"status":"current","title":%q,"spaceId":"555","version":{"number":%d,"message":"","authorId":"acc-1","createdAt":"2026-03-01T12:00:00Z"},"body":{"atlas_doc_format":{"value":%s}}}`,
		id, title, version, quoted)
}

func sampleDoc(t *testing.T) *adf.Node {
	t.Helper()
	node, err := adf.Parse([]byte(sampleADF))
	if err != nil {
		t.Fatalf("parse sample adf: %v", err)
	}
	return node
}

func TestGetPageParsesBody(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/pages/777" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("body-format"); got != "atlas_doc_format" {
			t.Errorf("body-format=%q", got)
		}
		_, _ = io.WriteString(w, pageJSON("777", "Runbook", 3, sampleADF))
	}))
	page, err := c.GetPage(context.Background(), "777")
	if err != nil {
		t.Fatalf("get page: %v", err)
	}
	if page.Title != "Runbook" || page.Version.Number != 3 || page.SpaceID != "555" {
		t.Fatalf("unexpected page %+v", page)
	}
	if got := strings.TrimSpace(adf.ExtractText(page.Body)); got != "hello world" {
		t.Fatalf("extracted %q", got)
	}
}

func TestPushPageTargetsNextVersion(t *testing.T) {
	t.Parallel()
	var putBody []byte
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("unexpected method %s", r.Method)
		}
		putBody, _ = io.ReadAll(r.Body)
		_, _ = io.WriteString(w, pageJSON("777", "Runbook", 4, sampleADF))
	}))
	page, err := c.PushPage(context.Background(), confluence.PageUpdate{
		ID:          "777",
		Title:       "Runbook",
		Body:        sampleDoc(t),
		BaseVersion: 3,
		Message:     "Updated via MCP",
	})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if page.Version.Number != 4 {
		t.Fatalf("committed version %d, want 4", page.Version.Number)
	}

	var payload struct {
		ID      string `json:"id"`
		Status  string `json:"status"`
		Title   string `json:"title"`
		Version struct {
			Number  int64  `json:"number"`
			Message string `json:"message"`
		} `json:"version"`
		Body struct {
			Representation string `json:"representation"`
			Value          string `json:"value"`
		} `json:"body"`
	}
	if err := json.Unmarshal(putBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.ID != "777" || payload.Status != "current" || payload.Version.Number != 4 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.Version.Message != "Updated via MCP" {
		t.Fatalf("version message %q", payload.Version.Message)
	}
	if payload.Body.Representation != "atlas_doc_format" {
		t.Fatalf("representation %q", payload.Body.Representation)
	}
	var inner struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(payload.Body.Value), &inner); err != nil || inner.Type != "doc" {
		t.Fatalf("body value is not an embedded ADF document: %v (%q)", err, payload.Body.Value)
	}
}

func TestPushPageRetriesOnceOnConflict(t *testing.T) {
	t.Parallel()
	var puts atomic.Int32
	var conflicts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/pages/777", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, pageJSON("777", "Runbook", 3, sampleADF))
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			var payload struct {
				Version struct {
					Number int64 `json:"number"`
				} `json:"version"`
			}
			_ = json.Unmarshal(body, &payload)
			if puts.Add(1) == 1 {
				if payload.Version.Number != 2 {
					t.Errorf("first PUT targeted v%d, want 2", payload.Version.Number)
				}
				w.WriteHeader(http.StatusConflict)
				return
			}
			if payload.Version.Number != 4 {
				t.Errorf("retry PUT targeted v%d, want 4", payload.Version.Number)
			}
			_, _ = io.WriteString(w, pageJSON("777", "Runbook", 4, sampleADF))
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	})
	c := newTestClient(t, mux,
		confluence.WithConflictObserver(func() { conflicts.Add(1) }))

	page, err := c.PushPage(context.Background(), confluence.PageUpdate{
		ID:          "777",
		Title:       "Runbook",
		Body:        sampleDoc(t),
		BaseVersion: 1,
		Message:     "stale write",
	})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if page.Version.Number != 4 {
		t.Fatalf("committed version %d, want 4", page.Version.Number)
	}
	if n := puts.Load(); n != 2 {
		t.Fatalf("expected 2 PUTs, got %d", n)
	}
	if n := conflicts.Load(); n != 1 {
		t.Fatalf("expected 1 observed conflict, got %d", n)
	}
}

func TestPushPageSurfacesSecondConflict(t *testing.T) {
	t.Parallel()
	var puts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/pages/777", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, pageJSON("777", "Runbook", 5, sampleADF))
		case http.MethodPut:
			puts.Add(1)
			w.WriteHeader(http.StatusConflict)
		}
	})
	c := newTestClient(t, mux)

	_, err := c.PushPage(context.Background(), confluence.PageUpdate{
		ID:          "777",
		Title:       "Runbook",
		Body:        sampleDoc(t),
		BaseVersion: 1,
	})
	if !confluence.IsConflict(err) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if n := puts.Load(); n != 2 {
		t.Fatalf("expected exactly 2 PUTs, got %d", n)
	}
}

func TestCreatePagePayload(t *testing.T) {
	t.Parallel()
	var body []byte
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v2/pages" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		body, _ = io.ReadAll(r.Body)
		_, _ = io.WriteString(w, pageJSON("900", "New Page", 1, ""))
	}))
	page, err := c.CreatePage(context.Background(), "555", "New Page", sampleADF, "42")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if page.ID != "900" || page.Version.Number != 1 {
		t.Fatalf("unexpected result %+v", page)
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["spaceId"] != "555" || payload["status"] != "current" || payload["parentId"] != "42" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestCreatePageOmitsEmptyParent(t *testing.T) {
	t.Parallel()
	var body []byte
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		_, _ = io.WriteString(w, pageJSON("901", "Rootless", 1, ""))
	}))
	if _, err := c.CreatePage(context.Background(), "555", "Rootless", sampleADF, ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if strings.Contains(string(body), "parentId") {
		t.Fatalf("parentId should be omitted: %s", body)
	}
}

func TestSearchDecodesResultsAndCursor(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("cql"); got != `type=page AND (title~"runbook" OR text~"runbook")` {
			t.Errorf("cql %q", got)
		}
		_, _ = io.WriteString(w, `{
			"results": [
				{"excerpt": "the <b>runbook</b> covers", "content": {"id": "777", "title": "Ops Runbook"}, "resultGlobalContainer": {"title": "Docs"}}
			],
			"_links": {"next": "/rest/api/search?cursor=abc123&limit=10"}
		}`)
	}))
	res, err := c.Search(context.Background(), confluence.WrapCQL("runbook"), 10, "")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(res.Results))
	}
	hit := res.Results[0]
	if hit.PageID != "777" || hit.Title != "Ops Runbook" || hit.Space != "Docs" {
		t.Fatalf("unexpected hit %+v", hit)
	}
	if !strings.Contains(hit.Excerpt, "<b>runbook</b>") {
		t.Fatalf("excerpt should stay raw: %q", hit.Excerpt)
	}
	if res.NextCursor != "abc123" {
		t.Fatalf("cursor %q", res.NextCursor)
	}
}

func TestListPagesPassesSortAndCursor(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("sort") != "-modified-date" || q.Get("cursor") != "next-1" || q.Get("limit") != "25" {
			t.Errorf("unexpected query %v", q)
		}
		_, _ = io.WriteString(w, `{"results":[{"id":"1","title":"A","status":"current"},{"id":"2","title":"B","status":"draft"}]}`)
	}))
	list, err := c.ListPages(context.Background(), "555", 25, "-modified-date", "next-1")
	if err != nil {
		t.Fatalf("list pages: %v", err)
	}
	if len(list.Pages) != 2 || list.Pages[1].Status != "draft" {
		t.Fatalf("unexpected list %+v", list)
	}
	if list.NextCursor != "" {
		t.Fatalf("cursor %q", list.NextCursor)
	}
}

func TestAncestorsReturnRootFirst(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/pages/9/ancestors" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"results":[{"id":"1","title":"Root"},{"id":"5","title":"Middle"}]}`)
	}))
	chain, err := c.Ancestors(context.Background(), "9")
	if err != nil {
		t.Fatalf("ancestors: %v", err)
	}
	if len(chain) != 2 || chain[0].Title != "Root" {
		t.Fatalf("unexpected chain %+v", chain)
	}
}

func TestVersionADFFetchesHistoricalBody(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/content/777" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("version") != "2" || q.Get("expand") != "body.atlas_doc_format" {
			t.Errorf("unexpected query %v", q)
		}
		quoted, _ := json.Marshal(sampleADF)
		_, _ = fmt.Fprintf(w, `{"body":{"atlas_doc_format":{"value":%s}}}`, quoted)
	}))
	node, err := c.VersionADF(context.Background(), "777", 2)
	if err != nil {
		t.Fatalf("version adf: %v", err)
	}
	if got := strings.TrimSpace(adf.ExtractText(node)); got != "hello world" {
		t.Fatalf("extracted %q", got)
	}
}

func TestRemoveLabelSurfacesNotFound(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected method %s", r.Method)
		}
		http.Error(w, "label not found", http.StatusNotFound)
	}))
	err := c.RemoveLabel(context.Background(), "777", "obsolete")
	if !confluence.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestAddLabelsCountsServerResults(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload []map[string]string
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("decode labels payload: %v", err)
		}
		if len(payload) != 2 || payload[0]["prefix"] != "global" || payload[0]["name"] != "ops" {
			t.Errorf("unexpected payload %v", payload)
		}
		_, _ = io.WriteString(w, `{"results":[{"name":"ops"},{"name":"oncall"}]}`)
	}))
	count, err := c.AddLabels(context.Background(), "777", []string{"ops", "oncall"})
	if err != nil {
		t.Fatalf("add labels: %v", err)
	}
	if count != 2 {
		t.Fatalf("count %d, want 2", count)
	}
}

func TestAddLabelsFallsBackToRequestedCount(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))
	count, err := c.AddLabels(context.Background(), "777", []string{"ops"})
	if err != nil {
		t.Fatalf("add labels: %v", err)
	}
	if count != 1 {
		t.Fatalf("count %d, want fallback 1", count)
	}
}

func TestSetPropertyCreatesWhenMissing(t *testing.T) {
	t.Parallel()
	var posted []byte
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/pages/777/properties", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, `{"results":[{"id":"p1","key":"other","version":{"number":3}}]}`)
		case http.MethodPost:
			posted, _ = io.ReadAll(r.Body)
			_, _ = io.WriteString(w, `{"id":"p2","key":"status","version":{"number":1}}`)
		}
	})
	c := newTestClient(t, mux)

	updated, version, err := c.SetProperty(context.Background(), "777", "status", json.RawMessage(`"done"`))
	if err != nil {
		t.Fatalf("set property: %v", err)
	}
	if updated || version != 1 {
		t.Fatalf("updated=%v version=%d, want created v1", updated, version)
	}
	if !strings.Contains(string(posted), `"value":"done"`) {
		t.Fatalf("payload %s", posted)
	}
}

func TestSetPropertyUpdatesExisting(t *testing.T) {
	t.Parallel()
	var put []byte
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/pages/777/properties", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"results":[{"id":"p7","key":"status","version":{"number":4}}]}`)
	})
	mux.HandleFunc("/api/v2/pages/777/properties/p7", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("unexpected method %s", r.Method)
		}
		put, _ = io.ReadAll(r.Body)
		_, _ = io.WriteString(w, `{"id":"p7","key":"status","version":{"number":5}}`)
	})
	c := newTestClient(t, mux)

	updated, version, err := c.SetProperty(context.Background(), "777", "status", json.RawMessage(`{"score":5}`))
	if err != nil {
		t.Fatalf("set property: %v", err)
	}
	if !updated || version != 5 {
		t.Fatalf("updated=%v version=%d, want updated v5", updated, version)
	}
	if !strings.Contains(string(put), `"number":5`) {
		t.Fatalf("payload should target v5: %s", put)
	}
}

func TestUploadAttachmentSendsMultipart(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Atlassian-Token") != "nocheck" {
			t.Errorf("missing nocheck header")
		}
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/form-data" {
			t.Errorf("content type %q: %v", mediaType, err)
		}
		reader := multipart.NewReader(r.Body, params["boundary"])
		form, err := reader.ReadForm(1 << 20)
		if err != nil {
			t.Errorf("read form: %v", err)
			return
		}
		files := form.File["file"]
		if len(files) != 1 || files[0].Filename != "report.pdf" {
			t.Errorf("unexpected files %+v", files)
		}
		if got := form.Value["comment"]; len(got) != 1 || got[0] != "quarterly" {
			t.Errorf("comment %v", got)
		}
		_, _ = io.WriteString(w, `{"results":[{"id":"att1","title":"report.pdf","mediaType":"application/pdf","fileSize":512}]}`)
	}))
	att, err := c.UploadAttachment(context.Background(), "777", "report.pdf", strings.NewReader("%PDF-1.4"), "quarterly")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if att.ID != "att1" || att.FileSize != 512 {
		t.Fatalf("unexpected attachment %+v", att)
	}
}

func TestDownloadAttachmentStreamsBytes(t *testing.T) {
	t.Parallel()
	payload := strings.Repeat("binary", 100)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/content/att1/download" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, payload)
	}))
	var buf strings.Builder
	n, err := c.DownloadAttachment(context.Background(), "att1", &buf)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if n != int64(len(payload)) || buf.String() != payload {
		t.Fatalf("downloaded %d bytes", n)
	}
}

func TestRevertPageRestoresVersion(t *testing.T) {
	t.Parallel()
	var body []byte
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/content/777/version" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		body, _ = io.ReadAll(r.Body)
		_, _ = io.WriteString(w, `{"number":8,"message":"Restored version 3"}`)
	}))
	v, err := c.RevertPage(context.Background(), "777", 3, "roll back bad edit")
	if err != nil {
		t.Fatalf("revert: %v", err)
	}
	if v.Number != 8 || v.Message != "Restored version 3" {
		t.Fatalf("unexpected version %+v", v)
	}
	var payload struct {
		OperationKey string `json:"operationKey"`
		Params       struct {
			VersionNumber int64  `json:"versionNumber"`
			Message       string `json:"message"`
		} `json:"params"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.OperationKey != "restore" || payload.Params.VersionNumber != 3 || payload.Params.Message != "roll back bad edit" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestFooterCommentsParseBodies(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/pages/777/footer-comments" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("body-format"); got != "atlas_doc_format" {
			t.Errorf("body-format %q", got)
		}
		quoted, _ := json.Marshal(sampleADF)
		_, _ = fmt.Fprintf(w, `{"results":[{"id":"c1","authorId":"acc-9","createdAt":"2026-01-02T10:00:00Z","body":{"atlas_doc_format":{"value":%s}}}]}`, quoted)
	}))
	list, err := c.FooterComments(context.Background(), "777", 25, "")
	if err != nil {
		t.Fatalf("footer comments: %v", err)
	}
	if len(list.Comments) != 1 {
		t.Fatalf("expected 1 comment, got %d", len(list.Comments))
	}
	cm := list.Comments[0]
	if cm.AuthorID != "acc-9" || strings.TrimSpace(adf.ExtractText(cm.Body)) != "hello world" {
		t.Fatalf("unexpected comment %+v", cm)
	}
}

func TestAddInlineCommentAnchorsSelection(t *testing.T) {
	t.Parallel()
	var body []byte
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/inline-comments" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ = io.ReadAll(r.Body)
		_, _ = io.WriteString(w, `{"id":"ic4"}`)
	}))
	id, err := c.AddInlineComment(context.Background(), "777", sampleDoc(t), "hello world", 1)
	if err != nil {
		t.Fatalf("add inline comment: %v", err)
	}
	if id != "ic4" {
		t.Fatalf("comment id %q", id)
	}
	var payload struct {
		PageID string `json:"pageId"`
		Props  struct {
			Selection  string `json:"textSelection"`
			MatchCount int    `json:"textSelectionMatchCount"`
			MatchIndex int    `json:"textSelectionMatchIndex"`
		} `json:"inlineCommentProperties"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.PageID != "777" || payload.Props.Selection != "hello world" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.Props.MatchIndex != 1 || payload.Props.MatchCount != 2 {
		t.Fatalf("match index/count %+v", payload.Props)
	}
}

func TestSpacesFiltersAndPagination(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("type") != "global" || q.Get("status") != "current" {
			t.Errorf("unexpected query %v", q)
		}
		_, _ = io.WriteString(w, `{"results":[{"id":"555","key":"DOC","name":"Docs","type":"global","status":"current"}],"_links":{"next":"/api/v2/spaces?cursor=s2"}}`)
	}))
	list, err := c.Spaces(context.Background(), 25, "global", "current", "")
	if err != nil {
		t.Fatalf("spaces: %v", err)
	}
	if len(list.Spaces) != 1 || list.Spaces[0].Key != "DOC" {
		t.Fatalf("unexpected spaces %+v", list.Spaces)
	}
	if list.NextCursor != "s2" {
		t.Fatalf("cursor %q", list.NextCursor)
	}
}

func TestSearchUsersUnwrapsResults(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("cql"); got != `user.fullname~"Mark"` {
			t.Errorf("cql %q", got)
		}
		_, _ = io.WriteString(w, `{"results":[{"user":{"accountId":"acc-7","displayName":"Mark Chen"}}]}`)
	}))
	users, err := c.SearchUsers(context.Background(), "Mark")
	if err != nil {
		t.Fatalf("search users: %v", err)
	}
	if len(users) != 1 || users[0].AccountID != "acc-7" || users[0].DisplayName != "Mark Chen" {
		t.Fatalf("unexpected users %+v", users)
	}
}
