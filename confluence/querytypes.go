package confluence

// SpacesQuery defines the query parameters for:
// https://developer.atlassian.com/cloud/confluence/rest/v2/api-group-space/#api-spaces-get
type SpacesQuery struct {
	// Filter the results to spaces based on...
	Keys   []string `url:"keys,omitempty,comma"` // their keys.
	Type   string   `url:"type,omitempty"`       // their types. Valid values: "global" or "personal"
	Status string   `url:"status,omitempty"`     // their status: current, archived.

	Sort string `url:"sort,omitempty"` // Sort order: id, -id, key, -key, name, -name

	// 'Cursor' is used for pagination; this opaque cursor will be returned in the 'next' URL in the
	// 'Link' response header.  Use the relative URL in the 'Link' header to retrieve the next set
	// of results.
	Cursor string `url:"cursor,omitempty"`
	Limit  int    `url:"limit,omitempty"` // page limit; default 25, range 1-250
}

// ContentQuery defines the query parameters for the (v1) content search:
// https://developer.atlassian.com/cloud/confluence/rest/v1/api-group-content/#api-wiki-rest-api-content-get
//
// The v2 pages endpoint only filters by numeric space ID, so title lookups go through v1 where
// spaceKey is accepted directly.
type ContentQuery struct {
	Type     string   `url:"type,omitempty"`     // page or blogpost
	SpaceKey string   `url:"spaceKey,omitempty"` // required when filtering by title
	Title    string   `url:"title,omitempty"`    // exact title match
	Status   []string `url:"status,omitempty,comma"`
	Expand   []string `url:"expand,omitempty,comma"` // e.g. version, space, body.storage

	Start int `url:"start,omitempty"`
	Limit int `url:"limit,omitempty"`
}

// GetContentByIDQuery defines the query parameters for:
// https://developer.atlassian.com/cloud/confluence/rest/v1/api-group-content/#api-wiki-rest-api-content-id-get
type GetContentByIDQuery struct {
	ID string `url:"-"` // ID of the page; required

	Expand []string `url:"expand,omitempty,comma"`
	Status string   `url:"status,omitempty"`
	// Allows you to retrieve a previously published version.
	Version int `url:"version,omitempty"`
}
