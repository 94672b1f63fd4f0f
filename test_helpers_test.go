package wikid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"pkt.systems/pslog"
	"pkt.systems/wikid/internal/adf"
	"pkt.systems/wikid/internal/confluence"
)

// fakePage is the fake site's mutable record of one page. history keeps
// every version's ADF document so the v1 content API can serve old
// revisions, and versions mirrors what /versions returns, oldest first.
type fakePage struct {
	id       string
	title    string
	spaceID  string
	parentID string
	status   string
	version  int64
	message  string
	body     string
	history  map[int64]string
	versions []confluence.Version
}

type fakeSearchHit struct {
	PageID  string
	Title   string
	Space   string
	Excerpt string
}

type fakeComment struct {
	id        string
	authorID  string
	createdAt string
	body      string
	selection string
}

// fakeConfluence simulates the slice of the Confluence Cloud REST API
// the gateway touches. The PUT page handler enforces the same
// base-version+1 rule the real site does, so conflict handling can be
// driven by seeding stale snapshots or forcing rejections.
type fakeConfluence struct {
	ts *httptest.Server

	mu              sync.Mutex
	pages           map[string]*fakePage
	labels          map[string][]confluence.Label
	props           map[string][]confluence.Property
	atts            map[string][]confluence.Attachment
	attData         map[string][]byte
	footer          map[string][]fakeComment
	inline          map[string][]fakeComment
	spaces          []confluence.Space
	users           map[string]confluence.User
	userHits        []confluence.User
	searchHits      []fakeSearchHit
	shortLinkTarget string

	nextPageID int
	nextLabel  int
	nextProp   int

	// forcedConflicts rejects that many page PUTs with 409 regardless
	// of the version they carry.
	forcedConflicts int
	putCalls        int
	authBroken      bool

	lastAuth        string
	lastCorrelation string
	lastCQL         string
	lastUserCQL     string
	lastRestriction []byte
	lastInlineProps inlineCommentProps
	watch           map[string]bool
}

type inlineCommentProps struct {
	TextSelection string `json:"textSelection"`
	MatchCount    int    `json:"textSelectionMatchCount"`
	MatchIndex    int    `json:"textSelectionMatchIndex"`
}

func newFakeConfluence(t *testing.T) *fakeConfluence {
	t.Helper()
	f := &fakeConfluence{
		pages:           make(map[string]*fakePage),
		labels:          make(map[string][]confluence.Label),
		props:           make(map[string][]confluence.Property),
		atts:            make(map[string][]confluence.Attachment),
		attData:         make(map[string][]byte),
		footer:          make(map[string][]fakeComment),
		inline:          make(map[string][]fakeComment),
		users:           make(map[string]confluence.User),
		watch:           make(map[string]bool),
		shortLinkTarget: "100",
		nextPageID:      1000,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v2/pages/{id}", f.getPage)
	mux.HandleFunc("PUT /api/v2/pages/{id}", f.putPage)
	mux.HandleFunc("POST /api/v2/pages", f.createPage)
	mux.HandleFunc("GET /api/v2/pages/{id}/children", f.listChildren)
	mux.HandleFunc("GET /api/v2/pages/{id}/ancestors", f.listAncestors)
	mux.HandleFunc("GET /api/v2/pages/{id}/labels", f.listLabels)
	mux.HandleFunc("GET /api/v2/pages/{id}/properties", f.listProperties)
	mux.HandleFunc("POST /api/v2/pages/{id}/properties", f.createProperty)
	mux.HandleFunc("PUT /api/v2/pages/{id}/properties/{propID}", f.updateProperty)
	mux.HandleFunc("GET /api/v2/pages/{id}/versions", f.listVersions)
	mux.HandleFunc("GET /api/v2/pages/{id}/attachments", f.listAttachments)
	mux.HandleFunc("GET /api/v2/pages/{id}/footer-comments", f.listFooterComments)
	mux.HandleFunc("GET /api/v2/pages/{id}/inline-comments", f.listInlineComments)
	mux.HandleFunc("POST /api/v2/footer-comments", f.addFooterComment)
	mux.HandleFunc("POST /api/v2/inline-comments", f.addInlineComment)
	mux.HandleFunc("GET /api/v2/spaces", f.listSpaces)
	mux.HandleFunc("GET /api/v2/spaces/{id}/pages", f.listSpacePages)

	mux.HandleFunc("POST /rest/api/content/{id}/label", f.addLabels)
	mux.HandleFunc("DELETE /rest/api/content/{id}/label/{name}", f.removeLabel)
	mux.HandleFunc("GET /rest/api/content/{id}", f.getContentV1)
	mux.HandleFunc("PUT /rest/api/content/{id}", f.setParent)
	mux.HandleFunc("DELETE /rest/api/content/{id}", f.deleteAttachment)
	mux.HandleFunc("POST /rest/api/content/{id}/version", f.revertPage)
	mux.HandleFunc("POST /rest/api/content/{id}/copy", f.copyPage)
	mux.HandleFunc("PUT /rest/api/content/{id}/restriction", f.setRestrictions)
	mux.HandleFunc("POST /rest/api/content/{id}/child/attachment", f.uploadAttachment)
	mux.HandleFunc("GET /rest/api/content/{id}/download", f.downloadAttachment)
	mux.HandleFunc("GET /rest/api/search", f.search)
	mux.HandleFunc("GET /rest/api/search/user", f.searchUsers)
	mux.HandleFunc("GET /rest/api/user", f.getUser)
	mux.HandleFunc("POST /rest/api/user/watch/content/{id}", f.watchPage)
	mux.HandleFunc("DELETE /rest/api/user/watch/content/{id}", f.unwatchPage)

	mux.HandleFunc("GET /wiki/x/{code}", f.shortLink)
	mux.HandleFunc("GET /wiki/spaces/{space}/pages/{id}/{slug}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	f.ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.lastAuth = r.Header.Get("Authorization")
		f.lastCorrelation = r.Header.Get("X-Correlation-Id")
		broken := f.authBroken
		f.mu.Unlock()
		if broken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "token rejected"})
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.ts.Close)
	return f
}

// addPage seeds a page whose every version up to version carries the
// same single-paragraph body.
func (f *fakeConfluence) addPage(id, title, spaceID string, version int64, text string) *fakePage {
	f.mu.Lock()
	defer f.mu.Unlock()
	body := adfDocJSON(text)
	p := &fakePage{
		id:      id,
		title:   title,
		spaceID: spaceID,
		status:  "current",
		version: version,
		body:    body,
		history: make(map[int64]string),
	}
	for n := int64(1); n <= version; n++ {
		p.history[n] = body
		p.versions = append(p.versions, confluence.Version{
			Number:    n,
			Message:   fmt.Sprintf("rev %d", n),
			CreatedAt: "2025-06-01T10:00:00Z",
			AuthorID:  "acc-author",
		})
	}
	f.pages[id] = p
	return p
}

// withPage mutates a seeded page under the fake's lock.
func (f *fakeConfluence) withPage(t *testing.T, id string, fn func(*fakePage)) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pages[id]
	if !ok {
		t.Fatalf("fake page %s not seeded", id)
	}
	fn(p)
}

func (f *fakeConfluence) addAttachment(pageID, id, title, mediaType string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.atts[pageID] = append(f.atts[pageID], confluence.Attachment{
		ID:        id,
		Title:     title,
		MediaType: mediaType,
		FileSize:  int64(len(data)),
	})
	f.attData[id] = data
}

func (f *fakeConfluence) breakAuth() {
	f.mu.Lock()
	f.authBroken = true
	f.mu.Unlock()
}

func (f *fakeConfluence) forceConflicts(n int) {
	f.mu.Lock()
	f.forcedConflicts = n
	f.mu.Unlock()
}

func (f *fakeConfluence) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.putCalls
}

func (f *fakeConfluence) pageJSON(p *fakePage) map[string]any {
	version := map[string]any{"number": p.version, "message": p.message}
	if n := len(p.versions); n > 0 {
		version["createdAt"] = p.versions[n-1].CreatedAt
		version["authorId"] = p.versions[n-1].AuthorID
	}
	return map[string]any{
		"id":       p.id,
		"status":   p.status,
		"title":    p.title,
		"spaceId":  p.spaceID,
		"parentId": p.parentID,
		"version":  version,
		"body": map[string]any{
			"atlas_doc_format": map[string]any{"value": p.body},
		},
	}
}

func (f *fakeConfluence) getPage(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pages[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no such page"})
		return
	}
	writeJSON(w, http.StatusOK, f.pageJSON(p))
}

func (f *fakeConfluence) putPage(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls++
	p, ok := f.pages[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no such page"})
		return
	}
	var in struct {
		Status  string `json:"status"`
		Title   string `json:"title"`
		Version struct {
			Number  int64  `json:"number"`
			Message string `json:"message"`
		} `json:"version"`
		Body struct {
			Value string `json:"value"`
		} `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	if f.forcedConflicts > 0 || in.Version.Number != p.version+1 {
		if f.forcedConflicts > 0 {
			f.forcedConflicts--
		}
		writeJSON(w, http.StatusConflict, map[string]any{
			"errors": []map[string]any{{"status": 409, "title": "Conflict"}},
		})
		return
	}
	p.version = in.Version.Number
	p.title = in.Title
	p.status = in.Status
	p.message = in.Version.Message
	p.body = in.Body.Value
	p.history[p.version] = p.body
	p.versions = append(p.versions, confluence.Version{
		Number:    p.version,
		Message:   in.Version.Message,
		CreatedAt: "2025-06-02T10:00:00Z",
		AuthorID:  "acc-author",
	})
	writeJSON(w, http.StatusOK, f.pageJSON(p))
}

func (f *fakeConfluence) createPage(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var in struct {
		SpaceID string `json:"spaceId"`
		Title   string `json:"title"`
		Body    struct {
			Value string `json:"value"`
		} `json:"body"`
		ParentID string `json:"parentId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	f.nextPageID++
	p := &fakePage{
		id:       strconv.Itoa(f.nextPageID),
		title:    in.Title,
		spaceID:  in.SpaceID,
		parentID: in.ParentID,
		status:   "current",
		version:  1,
		body:     in.Body.Value,
		history:  map[int64]string{1: in.Body.Value},
		versions: []confluence.Version{{Number: 1, CreatedAt: "2025-06-02T10:00:00Z", AuthorID: "acc-author"}},
	}
	f.pages[p.id] = p
	writeJSON(w, http.StatusOK, f.pageJSON(p))
}

func (f *fakeConfluence) pageRefs(match func(*fakePage) bool) []map[string]any {
	refs := make([]map[string]any, 0)
	for _, p := range f.pages {
		if match(p) {
			refs = append(refs, map[string]any{"id": p.id, "title": p.title, "status": p.status})
		}
	}
	return refs
}

func (f *fakeConfluence) listChildren(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := r.PathValue("id")
	writeJSON(w, http.StatusOK, map[string]any{
		"results": f.pageRefs(func(p *fakePage) bool { return p.parentID == id }),
		"_links":  map[string]any{},
	})
}

func (f *fakeConfluence) listAncestors(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chain := []map[string]any{}
	p := f.pages[r.PathValue("id")]
	for p != nil && p.parentID != "" {
		parent, ok := f.pages[p.parentID]
		if !ok {
			break
		}
		chain = append([]map[string]any{{"id": parent.id, "title": parent.title, "status": parent.status}}, chain...)
		p = parent
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": chain, "_links": map[string]any{}})
}

func (f *fakeConfluence) listSpacePages(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := r.PathValue("id")
	writeJSON(w, http.StatusOK, map[string]any{
		"results": f.pageRefs(func(p *fakePage) bool { return p.spaceID == id }),
		"_links":  map[string]any{},
	})
}

func (f *fakeConfluence) listLabels(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	labels := f.labels[r.PathValue("id")]
	if labels == nil {
		labels = []confluence.Label{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": labels})
}

func (f *fakeConfluence) addLabels(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := r.PathValue("id")
	var in []struct {
		Prefix string `json:"prefix"`
		Name   string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	added := make([]confluence.Label, 0, len(in))
	for _, l := range in {
		f.nextLabel++
		label := confluence.Label{ID: strconv.Itoa(f.nextLabel), Name: l.Name, Prefix: l.Prefix}
		f.labels[id] = append(f.labels[id], label)
		added = append(added, label)
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": added})
}

func (f *fakeConfluence) removeLabel(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, name := r.PathValue("id"), r.PathValue("name")
	for i, l := range f.labels[id] {
		if l.Name == name {
			f.labels[id] = append(f.labels[id][:i], f.labels[id][i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "label not found"})
}

func (f *fakeConfluence) listProperties(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	props := f.props[r.PathValue("id")]
	if props == nil {
		props = []confluence.Property{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": props})
}

func (f *fakeConfluence) createProperty(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := r.PathValue("id")
	var in struct {
		Key   string          `json:"key"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	f.nextProp++
	f.props[id] = append(f.props[id], confluence.Property{
		ID:      fmt.Sprintf("prop-%d", f.nextProp),
		Key:     in.Key,
		Value:   in.Value,
		Version: confluence.Version{Number: 1},
	})
	writeJSON(w, http.StatusOK, map[string]any{"version": map[string]int64{"number": 1}})
}

func (f *fakeConfluence) updateProperty(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, propID := r.PathValue("id"), r.PathValue("propID")
	var in struct {
		Key     string          `json:"key"`
		Value   json.RawMessage `json:"value"`
		Version struct {
			Number int64 `json:"number"`
		} `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	for i := range f.props[id] {
		if f.props[id][i].ID == propID {
			f.props[id][i].Value = in.Value
			f.props[id][i].Version = confluence.Version{Number: in.Version.Number}
			writeJSON(w, http.StatusOK, map[string]any{"version": map[string]int64{"number": in.Version.Number}})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "property not found"})
}

func (f *fakeConfluence) listVersions(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pages[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no such page"})
		return
	}
	newest := make([]confluence.Version, 0, len(p.versions))
	for i := len(p.versions) - 1; i >= 0; i-- {
		newest = append(newest, p.versions[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": newest, "_links": map[string]any{}})
}

func (f *fakeConfluence) getContentV1(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pages[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no such content"})
		return
	}
	version, _ := strconv.ParseInt(r.URL.Query().Get("version"), 10, 64)
	body, ok := p.history[version]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no such version"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"body": map[string]any{"atlas_doc_format": map[string]any{"value": body}},
	})
}

func (f *fakeConfluence) revertPage(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pages[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no such content"})
		return
	}
	var in struct {
		OperationKey string `json:"operationKey"`
		Params       struct {
			VersionNumber int64  `json:"versionNumber"`
			Message       string `json:"message"`
		} `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.OperationKey != "restore" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad restore request"})
		return
	}
	body, ok := p.history[in.Params.VersionNumber]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no such version"})
		return
	}
	p.version++
	p.body = body
	p.history[p.version] = body
	v := confluence.Version{
		Number:    p.version,
		Message:   in.Params.Message,
		CreatedAt: "2025-06-03T10:00:00Z",
		AuthorID:  "acc-author",
	}
	p.versions = append(p.versions, v)
	writeJSON(w, http.StatusOK, v)
}

func (f *fakeConfluence) setParent(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pages[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no such content"})
		return
	}
	var in struct {
		Version struct {
			Number int64 `json:"number"`
		} `json:"version"`
		Ancestors []struct {
			ID string `json:"id"`
		} `json:"ancestors"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || len(in.Ancestors) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad reparent request"})
		return
	}
	if in.Version.Number != p.version+1 {
		writeJSON(w, http.StatusConflict, map[string]any{
			"errors": []map[string]any{{"status": 409, "title": "Conflict"}},
		})
		return
	}
	p.version = in.Version.Number
	p.parentID = in.Ancestors[0].ID
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (f *fakeConfluence) copyPage(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, ok := f.pages[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no such content"})
		return
	}
	var in struct {
		PageTitle   string `json:"pageTitle"`
		Destination *struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		} `json:"destination"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	f.nextPageID++
	parentID := src.parentID
	if in.Destination != nil {
		parentID = in.Destination.Value
	}
	p := &fakePage{
		id:       strconv.Itoa(f.nextPageID),
		title:    in.PageTitle,
		spaceID:  src.spaceID,
		parentID: parentID,
		status:   "current",
		version:  1,
		body:     src.body,
		history:  map[int64]string{1: src.body},
		versions: []confluence.Version{{Number: 1, CreatedAt: "2025-06-03T10:00:00Z", AuthorID: "acc-author"}},
	}
	f.pages[p.id] = p
	writeJSON(w, http.StatusOK, map[string]string{"id": p.id})
}

func (f *fakeConfluence) setRestrictions(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	f.mu.Lock()
	f.lastRestriction = data
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (f *fakeConfluence) watchPage(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.watch[r.PathValue("id")] = true
	f.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeConfluence) unwatchPage(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	delete(f.watch, r.PathValue("id"))
	f.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func commentJSON(c fakeComment) map[string]any {
	m := map[string]any{
		"id":        c.id,
		"authorId":  c.authorID,
		"createdAt": c.createdAt,
		"body":      map[string]any{"atlas_doc_format": map[string]any{"value": c.body}},
	}
	if c.selection != "" {
		m["properties"] = map[string]any{"inline-marker-ref": map[string]any{"value": c.selection}}
	}
	return m
}

func (f *fakeConfluence) listFooterComments(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]map[string]any, 0)
	for _, c := range f.footer[r.PathValue("id")] {
		results = append(results, commentJSON(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "_links": map[string]any{}})
}

func (f *fakeConfluence) listInlineComments(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]map[string]any, 0)
	for _, c := range f.inline[r.PathValue("id")] {
		results = append(results, commentJSON(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "_links": map[string]any{}})
}

func (f *fakeConfluence) addFooterComment(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var in struct {
		PageID string `json:"pageId"`
		Body   struct {
			Value string `json:"value"`
		} `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	c := fakeComment{
		id:        fmt.Sprintf("c-%d", len(f.footer[in.PageID])+1),
		authorID:  "acc-author",
		createdAt: "2025-06-03T10:00:00Z",
		body:      in.Body.Value,
	}
	f.footer[in.PageID] = append(f.footer[in.PageID], c)
	writeJSON(w, http.StatusOK, map[string]string{"id": c.id})
}

func (f *fakeConfluence) addInlineComment(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var in struct {
		PageID string `json:"pageId"`
		Body   struct {
			Value string `json:"value"`
		} `json:"body"`
		Props inlineCommentProps `json:"inlineCommentProperties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	f.lastInlineProps = in.Props
	c := fakeComment{
		id:        fmt.Sprintf("ic-%d", len(f.inline[in.PageID])+1),
		authorID:  "acc-author",
		createdAt: "2025-06-03T10:00:00Z",
		body:      in.Body.Value,
		selection: in.Props.TextSelection,
	}
	f.inline[in.PageID] = append(f.inline[in.PageID], c)
	writeJSON(w, http.StatusOK, map[string]string{"id": c.id})
}

func (f *fakeConfluence) listSpaces(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	spaces := f.spaces
	if spaces == nil {
		spaces = []confluence.Space{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": spaces, "_links": map[string]any{}})
}

func (f *fakeConfluence) listAttachments(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	atts := f.atts[r.PathValue("id")]
	if atts == nil {
		atts = []confluence.Attachment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": atts, "_links": map[string]any{}})
}

func (f *fakeConfluence) uploadAttachment(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	defer func() { _ = file.Close() }()
	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("att-%d", len(f.attData)+1)
	att := confluence.Attachment{
		ID:        id,
		Title:     header.Filename,
		MediaType: "application/octet-stream",
		FileSize:  int64(len(data)),
	}
	pageID := r.PathValue("id")
	f.atts[pageID] = append(f.atts[pageID], att)
	f.attData[id] = data
	writeJSON(w, http.StatusOK, map[string]any{"results": []confluence.Attachment{att}})
}

func (f *fakeConfluence) downloadAttachment(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	data, ok := f.attData[r.PathValue("id")]
	f.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no such attachment"})
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

func (f *fakeConfluence) deleteAttachment(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := r.PathValue("id")
	if _, ok := f.attData[id]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no such attachment"})
		return
	}
	delete(f.attData, id)
	for pageID, atts := range f.atts {
		for i, a := range atts {
			if a.ID == id {
				f.atts[pageID] = append(atts[:i], atts[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeConfluence) search(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCQL = r.URL.Query().Get("cql")
	results := make([]map[string]any, 0)
	for _, h := range f.searchHits {
		results = append(results, map[string]any{
			"title":                 h.Title,
			"excerpt":               h.Excerpt,
			"content":               map[string]any{"id": h.PageID, "title": h.Title},
			"resultGlobalContainer": map[string]any{"title": h.Space},
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "_links": map[string]any{}})
}

func (f *fakeConfluence) searchUsers(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUserCQL = r.URL.Query().Get("cql")
	results := make([]map[string]any, 0)
	for _, u := range f.userHits {
		results = append(results, map[string]any{"user": u})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (f *fakeConfluence) getUser(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[r.URL.Query().Get("accountId")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no such user"})
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (f *fakeConfluence) shortLink(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	target := f.shortLinkTarget
	f.mu.Unlock()
	http.Redirect(w, r, "/wiki/spaces/ENG/pages/"+target+"/Home", http.StatusFound)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// adfDocJSON renders a single-paragraph document as the ADF JSON string
// the wire carries.
func adfDocJSON(text string) string {
	doc := adf.NewDoc()
	doc.Content = append(doc.Content, adf.NewParagraph(text))
	data, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// newTestGateway builds a gateway against the fake site with basic auth
// and an in-memory snapshot cache.
func newTestGateway(t *testing.T, fake *fakeConfluence) *server {
	t.Helper()
	srv, err := NewServer(NewServerRequest{
		Config: Config{
			BaseURL:  fake.ts.URL,
			Email:    "you@example.com",
			APIToken: "token",
			CacheDSN: "mem://",
		},
		Logger: pslog.NoopLogger(),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	gw, ok := srv.(*server)
	if !ok {
		t.Fatalf("unexpected server type %T", srv)
	}
	t.Cleanup(func() { _ = gw.store.Close() })
	return gw
}

// connectTestClient wires an MCP client to the gateway's server over
// in-memory transports.
func connectTestClient(t *testing.T, gw *server) *mcpsdk.ClientSession {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t1, t2 := mcpsdk.NewInMemoryTransports()
	ss, err := gw.mcp.Connect(ctx, t1, nil)
	if err != nil {
		cancel()
		t.Fatalf("server connect: %v", err)
	}
	cli := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	cs, err := cli.Connect(ctx, t2, nil)
	if err != nil {
		_ = ss.Close()
		cancel()
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Close()
		cancel()
	})
	return cs
}

// toolText unwraps the single text content every wikid tool returns.
func toolText(t *testing.T, res *mcpsdk.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("tool result has no content")
	}
	text, ok := res.Content[0].(*mcpsdk.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", res.Content[0])
	}
	return text.Text
}
