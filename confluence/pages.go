package confluence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// pageExpand is what every page read asks for: enough to resolve a version and compare bodies.
var pageExpand = []string{"version", "space", "body.storage"}

const (
	opGetPage        = "get_page"
	opGetPageByTitle = "get_page_by_title"
	opCreatePage     = "create_page"
	opUpdatePage     = "update_page"
	opAddLabels      = "add_labels"
)

// CreatePageRequest describes a new page.  Body must already be in storage format.
type CreatePageRequest struct {
	SpaceKey string
	Title    string
	Body     string
	ParentID string
	Labels   []string
}

// UpdatePageRequest describes a new revision of an existing page.
type UpdatePageRequest struct {
	PageID string
	Body   string

	// Empty keeps the current remote title.
	Title string

	// The version the caller last saw.  When set the update is sent as ExpectedVersion+1 without
	// reading the page first, so a concurrent edit surfaces as a conflict.  When nil the current
	// remote version is fetched and the update is applied on top of it.
	ExpectedVersion *int

	Labels []string
}

// GetPageByID fetches a page with its version and storage body.
func (api *API) GetPageByID(ctx context.Context, id string) (*Page, error) {
	start := time.Now()
	ep, err := api.getContentByIDEndpoint(GetContentByIDQuery{ID: id, Expand: pageExpand})
	if err != nil {
		return nil, fmt.Errorf("confluence: couldn't get single page endpoint: %w", err)
	}

	body, err := api.request(ctx, opGetPage, http.MethodGet, ep, nil)
	if err != nil {
		return nil, withPageID(err, id)
	}

	var c content
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, fmt.Errorf("confluence: couldn't parse json response: %w", err)
	}

	page := c.page()
	api.logger.Debug("fetched page",
		slog.String("page_id", page.ID),
		slog.Int("version", page.Version),
		slog.Duration("duration", time.Since(start)))

	return page, nil
}

// GetPageByTitle finds the page with exactly this title in a space.  No match is reported as an
// *APIError of KindNotFound, the same as GetPageByID.
func (api *API) GetPageByTitle(ctx context.Context, spaceKey, title string) (*Page, error) {
	if spaceKey == "" || title == "" {
		return nil, fmt.Errorf("confluence: please provide space key and title to find a page")
	}

	start := time.Now()
	ep, err := api.getContentEndpoint(ContentQuery{
		Type:     "page",
		SpaceKey: spaceKey,
		Title:    title,
		Expand:   pageExpand,
		Limit:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("confluence: couldn't get content endpoint: %w", err)
	}

	body, err := api.request(ctx, opGetPageByTitle, http.MethodGet, ep, nil)
	if err != nil {
		return nil, err
	}

	var list contentList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("confluence: couldn't parse json response: %w", err)
	}

	if len(list.Results) == 0 {
		return nil, &APIError{
			Kind:    KindNotFound,
			Op:      opGetPageByTitle,
			Message: fmt.Sprintf("no page titled %q in space %s", title, spaceKey),
		}
	}

	page := list.Results[0].page()
	if page.SpaceKey == "" {
		page.SpaceKey = spaceKey
	}
	api.logger.Debug("found page by title",
		slog.String("space", spaceKey),
		slog.String("title", title),
		slog.String("page_id", page.ID),
		slog.Duration("duration", time.Since(start)))

	return page, nil
}

// CreatePage creates a page, optionally below ParentID.  Labels are attached afterwards; failing
// to attach them doesn't fail the create but is recorded on Page.LabelErr.
func (api *API) CreatePage(ctx context.Context, req CreatePageRequest) (*Page, error) {
	if req.SpaceKey == "" {
		return nil, fmt.Errorf("confluence: please provide a space key to create a page")
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("confluence: please provide a title to create a page")
	}

	start := time.Now()
	ep, err := api.getContentEndpoint(ContentQuery{})
	if err != nil {
		return nil, fmt.Errorf("confluence: couldn't get content endpoint: %w", err)
	}

	payload := content{
		Type:  "page",
		Title: req.Title,
		Body:  storageBody(req.Body),
	}
	payload.Space = &struct {
		Key string `json:"key,omitempty"`
	}{Key: req.SpaceKey}
	if req.ParentID != "" {
		payload.Ancestors = []contentRef{{ID: req.ParentID}}
	}

	body, err := api.request(ctx, opCreatePage, http.MethodPost, ep, payload)
	if err != nil {
		return nil, err
	}

	var c content
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, fmt.Errorf("confluence: couldn't parse json response: %w", err)
	}

	page := c.page()
	if page.SpaceKey == "" {
		page.SpaceKey = req.SpaceKey
	}
	if page.Body == "" {
		page.Body = req.Body
	}

	api.logger.Info("created page",
		slog.String("page_id", page.ID),
		slog.String("space", page.SpaceKey),
		slog.String("title", page.Title),
		slog.Int("version", page.Version),
		slog.Duration("duration", time.Since(start)))

	api.attachLabels(ctx, page, req.Labels)

	return page, nil
}

// UpdatePage writes a new version of a page.  A version mismatch comes back as an *APIError of
// KindConflict with AttemptedVersion set and, when a follow-up read succeeds, ActualVersion.
func (api *API) UpdatePage(ctx context.Context, req UpdatePageRequest) (*Page, error) {
	if req.PageID == "" {
		return nil, fmt.Errorf("confluence: please provide ID to update a page")
	}
	if req.ExpectedVersion != nil && *req.ExpectedVersion < 1 {
		return nil, fmt.Errorf("confluence: expected version must be positive, got %d", *req.ExpectedVersion)
	}

	start := time.Now()
	title := req.Title

	var next int
	if req.ExpectedVersion != nil {
		next = *req.ExpectedVersion + 1
	}

	if req.ExpectedVersion == nil || title == "" {
		current, err := api.GetPageByID(ctx, req.PageID)
		if err != nil {
			return nil, fmt.Errorf("confluence: couldn't read page before update: %w", err)
		}
		if req.ExpectedVersion == nil {
			next = current.Version + 1
		}
		if title == "" {
			title = current.Title
		}
	}

	ep, err := api.getContentByIDEndpoint(GetContentByIDQuery{ID: req.PageID})
	if err != nil {
		return nil, fmt.Errorf("confluence: couldn't get single page endpoint: %w", err)
	}

	payload := content{
		ID:      req.PageID,
		Type:    "page",
		Title:   title,
		Version: &Version{Number: next},
		Body:    storageBody(req.Body),
	}

	body, err := api.request(ctx, opUpdatePage, http.MethodPut, ep, payload)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Kind == KindConflict {
			return nil, api.versionConflict(ctx, apiErr, req.PageID, next)
		}
		return nil, withPageID(err, req.PageID)
	}

	var c content
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, fmt.Errorf("confluence: couldn't parse json response: %w", err)
	}

	page := c.page()
	if page.ID == "" {
		page.ID = req.PageID
	}
	if c.Version == nil {
		page.Version = next
	}
	if page.Body == "" {
		page.Body = req.Body
	}

	api.logger.Info("updated page",
		slog.String("page_id", page.ID),
		slog.String("title", page.Title),
		slog.Int("version", page.Version),
		slog.Duration("duration", time.Since(start)))

	api.attachLabels(ctx, page, req.Labels)

	return page, nil
}

// AddLabels attaches global labels to a page.  Blank names are skipped.
func (api *API) AddLabels(ctx context.Context, pageID string, labels []string) error {
	var payload []label
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		payload = append(payload, label{Prefix: "global", Name: l})
	}
	if len(payload) == 0 {
		return nil
	}

	ep, err := api.getContentLabelsEndpoint(pageID)
	if err != nil {
		return fmt.Errorf("confluence: couldn't get labels endpoint: %w", err)
	}

	if _, err := api.request(ctx, opAddLabels, http.MethodPost, ep, payload); err != nil {
		return withPageID(err, pageID)
	}

	return nil
}

func (api *API) attachLabels(ctx context.Context, page *Page, labels []string) {
	if len(labels) == 0 {
		return
	}
	if err := api.AddLabels(ctx, page.ID, labels); err != nil {
		api.logger.Warn("couldn't attach labels",
			slog.String("page_id", page.ID),
			slog.Any("labels", labels),
			slog.String("error", err.Error()))
		page.LabelErr = err
	}
}

// versionConflict enriches a rejected update with the version the server actually holds.
func (api *API) versionConflict(ctx context.Context, apiErr *APIError, pageID string, attempted int) error {
	conflict := *apiErr
	conflict.PageID = pageID
	conflict.AttemptedVersion = attempted

	if current, err := api.GetPageByID(ctx, pageID); err == nil {
		conflict.ActualVersion = current.Version
	} else {
		api.logger.Debug("couldn't read page after conflict",
			slog.String("page_id", pageID),
			slog.String("error", err.Error()))
	}

	api.logger.Warn("version conflict",
		slog.String("page_id", pageID),
		slog.Int("attempted_version", conflict.AttemptedVersion),
		slog.Int("actual_version", conflict.ActualVersion))

	return &conflict
}

func storageBody(value string) *Body {
	return &Body{Storage: &Storage{Value: value, Representation: "storage"}}
}

// withPageID stamps the page ID onto an *APIError that doesn't carry one yet.
func withPageID(err error, id string) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.PageID == "" {
		stamped := *apiErr
		stamped.PageID = id
		return &stamped
	}
	return err
}
