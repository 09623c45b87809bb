package confluence

// See https://developer.atlassian.com/cloud/confluence/rest/v1/api-group-users/#api-wiki-rest-api-user-get
type User struct {
	Type        string `json:"type"`
	Username    string `json:"username"`
	UserKey     string `json:"userKey"`
	AccountID   string `json:"accountId"`
	AccountType string `json:"accountType"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// See https://developer.atlassian.com/cloud/confluence/rest/v2/api-group-space/#api-spaces-get. I'm
// embellishing that with the Org/"Confluence instance name" field for convenience.
type Space struct {
	ID     string `json:"id,omitempty"`
	Key    string `json:"key,omitempty"`
	Name   string `json:"name,omitempty"`
	Type   string `json:"type,omitempty"`
	Status string `json:"status,omitempty"`
	Org    string `json:"-"`
}

// Page is a snapshot of one remote page as returned by a single call.  Nothing is cached; the
// server owns the authoritative copy.
type Page struct {
	ID       string
	Title    string
	SpaceKey string

	// Strictly increasing; every accepted update bumps it by exactly one.
	Version int

	// Storage-format body.  Empty unless the call expanded body.storage.
	Body string

	// Relative web UI link, e.g. /spaces/DOC/pages/123/Title
	WebUI string

	// LabelErr is set when labels were requested on a create or update but couldn't be attached.
	// The write itself succeeded.
	LabelErr error
}

// content is the v1 wire shape:
// https://developer.atlassian.com/cloud/confluence/rest/v1/api-group-content/#api-wiki-rest-api-content-id-get
type content struct {
	ID     string `json:"id,omitempty"`
	Type   string `json:"type,omitempty"`
	Status string `json:"status,omitempty"`
	Title  string `json:"title,omitempty"`

	Space *struct {
		Key string `json:"key,omitempty"`
	} `json:"space,omitempty"`

	Version *Version `json:"version,omitempty"`

	Body *Body `json:"body,omitempty"`

	Ancestors []contentRef `json:"ancestors,omitempty"`

	Links struct {
		WebUI string `json:"webui,omitempty"`
		Base  string `json:"base,omitempty"`
	} `json:"_links"`
}

type contentRef struct {
	ID string `json:"id"`
}

// Version defines the content version number
// the version number is used for updating content
type Version struct {
	Number    int    `json:"number"`
	Message   string `json:"message,omitempty"`
	MinorEdit bool   `json:"minorEdit,omitempty"`
	When      string `json:"when,omitempty"`
}

// Body holds the storage information
type Body struct {
	Storage *Storage `json:"storage,omitempty"`
}

// Storage defines the storage information
type Storage struct {
	Representation string `json:"representation"`
	Value          string `json:"value"`
}

type label struct {
	Prefix string `json:"prefix"`
	Name   string `json:"name"`
}

func (c content) page() *Page {
	p := &Page{
		ID:    c.ID,
		Title: c.Title,
		WebUI: c.Links.WebUI,
		// a response without version info is a freshly created page.
		Version: 1,
	}
	if c.Space != nil {
		p.SpaceKey = c.Space.Key
	}
	if c.Version != nil && c.Version.Number > 0 {
		p.Version = c.Version.Number
	}
	if c.Body != nil && c.Body.Storage != nil {
		p.Body = c.Body.Storage.Value
	}
	return p
}
