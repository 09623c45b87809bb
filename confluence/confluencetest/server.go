// Package confluencetest runs an in-memory Confluence that speaks enough of the REST API for the
// client and the publisher: page reads, title search, create, versioned update, labels, spaces
// and the current user.
package confluencetest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// Page is the server's copy of one page.
type Page struct {
	ID       string
	SpaceKey string
	Title    string
	Body     string
	Version  int
	ParentID string
	Labels   []string
}

// Request is one call the server saw.
type Request struct {
	Method string
	Path   string
	Query  string
	Body   string
	Auth   string
}

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	pages    map[string]*Page
	order    []string
	nextID   int
	faults   []int
	requests []Request

	failLabels bool
	token      string
	spaces     []map[string]string
}

// New starts a server.  Clients should use BaseURL as their site.
func New() *Server {
	s := &Server{
		pages:  map[string]*Page{},
		nextID: 1000,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// BaseURL is the wiki root, mirroring https://ORG.atlassian.net/wiki.
func (s *Server) BaseURL() string {
	return s.URL + "/wiki"
}

// RequireToken makes every request without this token (bearer, or as basic-auth password) fail
// with 401.
func (s *Server) RequireToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// AddPage seeds a page at version 1 and returns its ID.
func (s *Server) AddPage(spaceKey, title, body string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addPage(spaceKey, title, body, "").ID
}

// Bump simulates a concurrent edit by someone else.
func (s *Server) Bump(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pages[id]; ok {
		p.Version++
	}
}

func (s *Server) Page(id string) (Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[id]
	if !ok {
		return Page{}, false
	}
	out := *p
	out.Labels = append([]string(nil), p.Labels...)
	return out, true
}

// PageCount is the number of pages held.
func (s *Server) PageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pages)
}

// FailNext answers the next len(statuses) requests with these statuses, in order, before
// handling anything normally.
func (s *Server) FailNext(statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, statuses...)
}

// FailLabels makes label requests answer 500.
func (s *Server) FailLabels(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLabels = fail
}

func (s *Server) AddSpace(key, name, spaceType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spaces = append(s.spaces, map[string]string{
		"id":     strconv.Itoa(len(s.spaces) + 1),
		"key":    key,
		"name":   name,
		"type":   spaceType,
		"status": "current",
	})
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsTo counts requests with this method whose path ends in suffix.
func (s *Server) RequestsTo(method, suffix string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && strings.HasSuffix(r.Path, suffix) {
			n++
		}
	}
	return n
}

func (s *Server) addPage(spaceKey, title, body, parentID string) *Page {
	s.nextID++
	p := &Page{
		ID:       strconv.Itoa(s.nextID),
		SpaceKey: spaceKey,
		Title:    title,
		Body:     body,
		Version:  1,
		ParentID: parentID,
	}
	s.pages[p.ID] = p
	s.order = append(s.order, p.ID)
	return p
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Body:   string(raw),
		Auth:   r.Header.Get("Authorization"),
	})

	if len(s.faults) > 0 {
		status := s.faults[0]
		s.faults = s.faults[1:]
		writeError(w, status, http.StatusText(status))
		return
	}

	if s.token != "" && !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "Unauthorized; scope does not match")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/wiki/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case path == "rest/api/user/current" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{
			"type":        "known",
			"accountId":   "5b10ac8d82e05b22cc7d4ef5",
			"accountType": "atlassian",
			"displayName": "Test User",
			"email":       "test@example.com",
		})
	case path == "api/v2/spaces" && r.Method == http.MethodGet:
		s.listSpaces(w, r)
	case path == "rest/api/content" && r.Method == http.MethodGet:
		s.search(w, r)
	case path == "rest/api/content" && r.Method == http.MethodPost:
		s.create(w, raw)
	case len(parts) == 4 && parts[2] == "content" && r.Method == http.MethodGet:
		s.get(w, parts[3])
	case len(parts) == 4 && parts[2] == "content" && r.Method == http.MethodPut:
		s.update(w, parts[3], raw)
	case len(parts) == 5 && parts[2] == "content" && parts[4] == "label" && r.Method == http.MethodPost:
		s.label(w, parts[3], raw)
	default:
		writeError(w, http.StatusNotFound, fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
	}
}

func (s *Server) authorized(r *http.Request) bool {
	if _, password, ok := r.BasicAuth(); ok {
		return password == s.token
	}
	return r.Header.Get("Authorization") == "Bearer "+s.token
}

func (s *Server) get(w http.ResponseWriter, id string) {
	p, ok := s.pages[id]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("No content found with id: ContentId{id=%s}", id))
		return
	}
	writeJSON(w, http.StatusOK, wire(p))
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	results := []map[string]any{}
	for _, id := range s.order {
		p := s.pages[id]
		if p.SpaceKey == q.Get("spaceKey") && p.Title == q.Get("title") {
			results = append(results, wire(p))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"start":   0,
		"limit":   25,
		"size":    len(results),
	})
}

type writeBody struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
	Space struct {
		Key string `json:"key"`
	} `json:"space"`
	Version struct {
		Number int `json:"number"`
	} `json:"version"`
	Body struct {
		Storage struct {
			Value          string `json:"value"`
			Representation string `json:"representation"`
		} `json:"storage"`
	} `json:"body"`
	Ancestors []struct {
		ID string `json:"id"`
	} `json:"ancestors"`
}

func (s *Server) create(w http.ResponseWriter, raw []byte) {
	var in writeBody
	if err := json.Unmarshal(raw, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if in.Space.Key == "" || in.Title == "" {
		writeError(w, http.StatusBadRequest, "space and title are required")
		return
	}
	if in.Body.Storage.Representation != "storage" {
		writeError(w, http.StatusBadRequest, "unsupported representation")
		return
	}
	for _, p := range s.pages {
		if p.SpaceKey == in.Space.Key && p.Title == in.Title {
			writeError(w, http.StatusBadRequest, "A page with this title already exists: A page already exists with the same TITLE in this space")
			return
		}
	}

	var parent string
	if len(in.Ancestors) > 0 {
		parent = in.Ancestors[0].ID
		if _, ok := s.pages[parent]; !ok {
			writeError(w, http.StatusBadRequest, "parent page does not exist")
			return
		}
	}

	p := s.addPage(in.Space.Key, in.Title, in.Body.Storage.Value, parent)
	writeJSON(w, http.StatusOK, wire(p))
}

func (s *Server) update(w http.ResponseWriter, id string, raw []byte) {
	p, ok := s.pages[id]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("No content found with id: ContentId{id=%s}", id))
		return
	}

	var in writeBody
	if err := json.Unmarshal(raw, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if in.Version.Number != p.Version+1 {
		writeError(w, http.StatusConflict, fmt.Sprintf("Version must be incremented on update. Current version is: %d", p.Version))
		return
	}

	p.Version = in.Version.Number
	p.Body = in.Body.Storage.Value
	if in.Title != "" {
		p.Title = in.Title
	}
	writeJSON(w, http.StatusOK, wire(p))
}

func (s *Server) label(w http.ResponseWriter, id string, raw []byte) {
	if s.failLabels {
		writeError(w, http.StatusInternalServerError, "label service unavailable")
		return
	}
	p, ok := s.pages[id]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("No content found with id: ContentId{id=%s}", id))
		return
	}

	var labels []struct {
		Prefix string `json:"prefix"`
		Name   string `json:"name"`
	}
	if err := json.Unmarshal(raw, &labels); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	for _, l := range labels {
		p.Labels = append(p.Labels, l.Name)
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": labels, "size": len(labels)})
}

func (s *Server) listSpaces(w http.ResponseWriter, r *http.Request) {
	want := r.URL.Query().Get("type")
	results := []map[string]string{}
	for _, sp := range s.spaces {
		if want == "" || sp["type"] == want {
			results = append(results, sp)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"_links":  map[string]string{},
	})
}

func wire(p *Page) map[string]any {
	return map[string]any{
		"id":     p.ID,
		"type":   "page",
		"status": "current",
		"title":  p.Title,
		"space":  map[string]string{"key": p.SpaceKey},
		"version": map[string]any{
			"number": p.Version,
		},
		"body": map[string]any{
			"storage": map[string]string{
				"value":          p.Body,
				"representation": "storage",
			},
		},
		"_links": map[string]string{
			"webui": fmt.Sprintf("/spaces/%s/pages/%s", p.SpaceKey, p.ID),
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"statusCode": status,
		"message":    message,
	})
}
