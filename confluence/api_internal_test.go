package confluence

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAPI(t *testing.T) {
	t.Parallel()

	t.Run("org name", func(t *testing.T) {
		api, err := NewAPI("example", "me", "token")
		require.NoError(t, err)
		assert.Equal(t, "https://example.atlassian.net/wiki", api.BaseURI.String())
		assert.Equal(t, 3, api.Retry.MaxRetries)
		assert.Equal(t, 30*time.Second, api.Client.Timeout)
	})

	t.Run("full URL", func(t *testing.T) {
		api, err := NewAPI("http://wiki.internal:8090/confluence/", "", "token")
		require.NoError(t, err)
		assert.Equal(t, "http://wiki.internal:8090/confluence", api.BaseURI.String())
	})

	t.Run("options", func(t *testing.T) {
		client := &http.Client{}
		api, err := NewAPI("example", "", "token", WithHTTPClient(client), WithTimeout(5*time.Second))
		require.NoError(t, err)
		assert.Same(t, client, api.Client)
		assert.Equal(t, 5*time.Second, api.Client.Timeout)
	})

	for name, site := range map[string]string{
		"empty site": "",
		"bad scheme": "ftp://example.com/wiki",
	} {
		site := site
		t.Run(name, func(t *testing.T) {
			_, err := NewAPI(site, "", "token")
			assert.Error(t, err)
		})
	}

	t.Run("empty token", func(t *testing.T) {
		_, err := NewAPI("example", "me", "")
		assert.Error(t, err)
	})
}

func TestEndpoints(t *testing.T) {
	t.Parallel()
	api, err := NewAPI("https://wiki.example.com/wiki", "", "token")
	require.NoError(t, err)

	ep, err := api.getContentByIDEndpoint(GetContentByIDQuery{ID: "123", Expand: []string{"version", "body.storage"}})
	require.NoError(t, err)
	assert.Equal(t, "https://wiki.example.com/wiki/rest/api/content/123?expand=version%2Cbody.storage", ep.String())

	ep, err = api.getContentEndpoint(ContentQuery{Type: "page", SpaceKey: "DOC", Title: "A & B"})
	require.NoError(t, err)
	assert.Equal(t, "/wiki/rest/api/content", ep.Path)
	assert.Equal(t, "A & B", ep.Query().Get("title"))
	assert.Equal(t, "DOC", ep.Query().Get("spaceKey"))

	ep, err = api.getContentLabelsEndpoint("9")
	require.NoError(t, err)
	assert.Equal(t, "/wiki/rest/api/content/9/label", ep.Path)

	ep, err = api.getSpaceEndpoint(SpacesQuery{Type: "global", Limit: 25})
	require.NoError(t, err)
	assert.Equal(t, "/wiki/api/v2/spaces", ep.Path)

	ep, err = api.getCurrentUserEndpoint()
	require.NoError(t, err)
	assert.Equal(t, "/wiki/rest/api/user/current", ep.Path)

	_, err = api.getContentByIDEndpoint(GetContentByIDQuery{})
	assert.Error(t, err)
}

func TestClassifyStatus(t *testing.T) {
	t.Parallel()
	cases := []struct {
		status  int
		message string
		want    Kind
	}{
		{http.StatusUnauthorized, "", KindAuth},
		{http.StatusForbidden, "", KindAuth},
		{http.StatusNotFound, "", KindNotFound},
		{http.StatusConflict, "Version must be incremented", KindConflict},
		{http.StatusBadRequest, "A page with this title already exists", KindConflict},
		{http.StatusBadRequest, "invalid storage format", KindAPI},
		{http.StatusTooManyRequests, "", KindRateLimited},
		{http.StatusInternalServerError, "", KindServer},
		{http.StatusGatewayTimeout, "", KindServer},
		{http.StatusTeapot, "", KindAPI},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, classifyStatus(c.status, c.message), "status %d %q", c.status, c.message)
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "nope", errorMessage([]byte(`{"statusCode":404,"message":"nope"}`)))
	assert.Equal(t, "<html>bad gateway</html>", errorMessage([]byte("  <html>bad gateway</html>\n")))

	long := make([]byte, 2*maxErrorBody)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, errorMessage(long), maxErrorBody+3)
}

func TestAPIError(t *testing.T) {
	t.Parallel()
	err := &APIError{
		Kind:             KindConflict,
		Op:               "update_page",
		Status:           409,
		PageID:           "12",
		AttemptedVersion: 4,
		ActualVersion:    5,
		Message:          "Version must be incremented on update",
	}
	assert.Equal(t, "confluence: update_page: conflict (409) page 12: tried to write version 4 but remote is at version 5: Version must be incremented on update", err.Error())
	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.False(t, KindConflict.Retryable())
	assert.True(t, KindTransport.Retryable())
}

func TestContentPage(t *testing.T) {
	t.Parallel()
	p := content{ID: "1", Title: "T"}.page()
	assert.Equal(t, 1, p.Version)
	assert.Empty(t, p.SpaceKey)
	assert.Empty(t, p.Body)
}
