package confluence

import (
	"fmt"
	"net/url"
	"path"

	"github.com/google/go-querystring/query"
)

// getContentByIDEndpoint returns the (v1) API endpoint to fetch one page:
// https://developer.atlassian.com/cloud/confluence/rest/v1/api-group-content/#api-wiki-rest-api-content-id-get
func (a *API) getContentByIDEndpoint(opts GetContentByIDQuery) (*url.URL, error) {
	if opts.ID == "" {
		return nil, fmt.Errorf("confluence: please provide ID to get page by ID")
	}

	ep, err := a.resolveEndpoint("rest/api/content", url.PathEscape(opts.ID))
	if err != nil {
		return nil, fmt.Errorf("confluence: couldn't resolve endpoint: %w", err)
	}

	v, err := query.Values(opts)
	if err != nil {
		return nil, fmt.Errorf("confluence: couldn't encode query params: %w", err)
	}
	ep.RawQuery = v.Encode()

	return ep, nil
}

// getContentEndpoint returns the (v1) API endpoint to search content, and to create it (POST):
// https://developer.atlassian.com/cloud/confluence/rest/v1/api-group-content/#api-wiki-rest-api-content-get
func (a *API) getContentEndpoint(opts ContentQuery) (*url.URL, error) {
	ep, err := a.resolveEndpoint("rest/api/content")
	if err != nil {
		return nil, fmt.Errorf("confluence: couldn't resolve endpoint: %w", err)
	}

	v, err := query.Values(opts)
	if err != nil {
		return nil, fmt.Errorf("confluence: couldn't encode query params: %w", err)
	}
	ep.RawQuery = v.Encode()

	return ep, nil
}

// getContentLabelsEndpoint returns the (v1) API endpoint to attach labels:
// https://developer.atlassian.com/cloud/confluence/rest/v1/api-group-content-labels/#api-wiki-rest-api-content-id-label-post
func (a *API) getContentLabelsEndpoint(id string) (*url.URL, error) {
	if id == "" {
		return nil, fmt.Errorf("confluence: please provide ID to label a page")
	}

	return a.resolveEndpoint("rest/api/content", url.PathEscape(id), "label")
}

// getSpaceEndpoint returns the (v2) API endpoint to list spaces
// https://developer.atlassian.com/cloud/confluence/rest/v2/api-group-space/#api-spaces-get
func (a *API) getSpaceEndpoint(opts SpacesQuery) (*url.URL, error) {
	ep, err := a.resolveEndpoint("api/v2/spaces")
	if err != nil {
		return nil, fmt.Errorf("confluence: couldn't resolve endpoint: %w", err)
	}

	v, err := query.Values(opts)
	if err != nil {
		return nil, fmt.Errorf("confluence: couldn't encode query params: %w", err)
	}
	ep.RawQuery = v.Encode()

	return ep, nil
}

// getCurrentUserEndpoint returns the (v1) API endpoint to query current user
// https://developer.atlassian.com/cloud/confluence/rest/v1/api-group-users/#api-wiki-rest-api-user-current-get
//
// This API is supported.
func (a *API) getCurrentUserEndpoint() (*url.URL, error) {
	return a.resolveEndpoint("rest/api/user/current")
}

// Join endpoint segments below the wiki root.  Segments must already be escaped.
func (a *API) resolveEndpoint(segments ...string) (*url.URL, error) {
	if a.BaseURI == nil {
		return nil, fmt.Errorf("confluence: API has no base URI")
	}

	ep := *a.BaseURI
	raw := path.Join(append([]string{"/", a.BaseURI.EscapedPath()}, segments...)...)
	unescaped, err := url.PathUnescape(raw)
	if err != nil {
		return nil, fmt.Errorf("confluence: failed to build endpoint path: %w", err)
	}
	ep.Path = unescaped
	ep.RawPath = raw
	ep.RawQuery = ""
	ep.Fragment = ""

	return &ep, nil
}
