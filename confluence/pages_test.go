package confluence_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toothbrush/confluence-markdown/confluence"
	"github.com/toothbrush/confluence-markdown/confluence/confluencetest"
)

func newAPI(t *testing.T, srv *confluencetest.Server, opts ...confluence.Option) *confluence.API {
	t.Helper()
	opts = append([]confluence.Option{
		confluence.WithRetryPolicy(confluence.RetryPolicy{MaxRetries: 3, BackoffFactor: time.Millisecond}),
	}, opts...)
	api, err := confluence.NewAPI(srv.BaseURL(), "someone@example.com", "secret-token", opts...)
	require.NoError(t, err)
	return api
}

func intPtr(i int) *int { return &i }

func TestGetPageByID(t *testing.T) {
	t.Parallel()
	srv := confluencetest.New()
	defer srv.Close()
	id := srv.AddPage("DOC", "Home", "<p>hello</p>")

	api := newAPI(t, srv)
	page, err := api.GetPageByID(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, id, page.ID)
	assert.Equal(t, "Home", page.Title)
	assert.Equal(t, "DOC", page.SpaceKey)
	assert.Equal(t, 1, page.Version)
	assert.Equal(t, "<p>hello</p>", page.Body)
	assert.Equal(t, "/spaces/DOC/pages/"+id, page.WebUI)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/wiki/rest/api/content/"+id, reqs[0].Path)
	assert.Contains(t, reqs[0].Query, "expand=version%2Cspace%2Cbody.storage")
}

func TestGetPageByID_NotFound(t *testing.T) {
	t.Parallel()
	srv := confluencetest.New()
	defer srv.Close()

	api := newAPI(t, srv)
	_, err := api.GetPageByID(context.Background(), "424242")
	require.Error(t, err)

	assert.ErrorIs(t, err, confluence.ErrNotFound)
	var apiErr *confluence.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "424242", apiErr.PageID)
	assert.Contains(t, apiErr.Message, "No content found")
	// not retried
	assert.Len(t, srv.Requests(), 1)
}

func TestGetPageByTitle(t *testing.T) {
	t.Parallel()
	srv := confluencetest.New()
	defer srv.Close()
	srv.AddPage("DOC", "Other", "")
	id := srv.AddPage("DOC", "Getting Started", "<p>go</p>")
	srv.AddPage("ENG", "Getting Started", "")

	api := newAPI(t, srv)

	t.Run("found", func(t *testing.T) {
		page, err := api.GetPageByTitle(context.Background(), "DOC", "Getting Started")
		require.NoError(t, err)
		assert.Equal(t, id, page.ID)
		assert.Equal(t, "<p>go</p>", page.Body)
	})

	t.Run("missing is not found", func(t *testing.T) {
		_, err := api.GetPageByTitle(context.Background(), "DOC", "Nope")
		require.Error(t, err)
		assert.ErrorIs(t, err, confluence.ErrNotFound)
		kind, ok := confluence.KindOf(err)
		assert.True(t, ok)
		assert.Equal(t, confluence.KindNotFound, kind)
	})

	t.Run("requires space and title", func(t *testing.T) {
		_, err := api.GetPageByTitle(context.Background(), "", "Home")
		assert.Error(t, err)
	})
}

func TestCreatePage(t *testing.T) {
	t.Parallel()
	srv := confluencetest.New()
	defer srv.Close()
	parent := srv.AddPage("DOC", "Parent", "")

	api := newAPI(t, srv)
	page, err := api.CreatePage(context.Background(), confluence.CreatePageRequest{
		SpaceKey: "DOC",
		Title:    "Child",
		Body:     "<p>new</p>",
		ParentID: parent,
		Labels:   []string{"docs", " ", "generated"},
	})
	require.NoError(t, err)
	require.NoError(t, page.LabelErr)

	assert.NotEmpty(t, page.ID)
	assert.Equal(t, 1, page.Version)
	assert.Equal(t, "Child", page.Title)
	assert.Equal(t, "DOC", page.SpaceKey)

	stored, ok := srv.Page(page.ID)
	require.True(t, ok)
	assert.Equal(t, "<p>new</p>", stored.Body)
	assert.Equal(t, parent, stored.ParentID)
	assert.Equal(t, []string{"docs", "generated"}, stored.Labels)

	var sent map[string]any
	for _, r := range srv.Requests() {
		if r.Method == http.MethodPost && r.Path == "/wiki/rest/api/content" {
			require.NoError(t, json.Unmarshal([]byte(r.Body), &sent))
		}
	}
	require.NotNil(t, sent)
	assert.Equal(t, "page", sent["type"])
	body := sent["body"].(map[string]any)["storage"].(map[string]any)
	assert.Equal(t, "storage", body["representation"])
	ancestors := sent["ancestors"].([]any)
	require.Len(t, ancestors, 1)
	assert.Equal(t, parent, ancestors[0].(map[string]any)["id"])
}

func TestCreatePage_DuplicateTitleIsConflict(t *testing.T) {
	t.Parallel()
	srv := confluencetest.New()
	defer srv.Close()
	srv.AddPage("DOC", "Home", "")

	api := newAPI(t, srv)
	_, err := api.CreatePage(context.Background(), confluence.CreatePageRequest{
		SpaceKey: "DOC",
		Title:    "Home",
		Body:     "<p>x</p>",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, confluence.ErrConflict)
	assert.Equal(t, 1, srv.PageCount())
}

func TestCreatePage_Validation(t *testing.T) {
	t.Parallel()
	srv := confluencetest.New()
	defer srv.Close()
	api := newAPI(t, srv)

	_, err := api.CreatePage(context.Background(), confluence.CreatePageRequest{Title: "x"})
	assert.Error(t, err)
	_, err = api.CreatePage(context.Background(), confluence.CreatePageRequest{SpaceKey: "DOC", Title: "  "})
	assert.Error(t, err)
	assert.Empty(t, srv.Requests())
}

func TestCreatePage_LabelFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	srv := confluencetest.New()
	defer srv.Close()
	srv.FailLabels(true)

	api := newAPI(t, srv, confluence.WithRetryPolicy(confluence.RetryPolicy{}))
	page, err := api.CreatePage(context.Background(), confluence.CreatePageRequest{
		SpaceKey: "DOC",
		Title:    "Labelled",
		Body:     "<p>x</p>",
		Labels:   []string{"a"},
	})
	require.NoError(t, err)
	require.Error(t, page.LabelErr)
	assert.ErrorIs(t, page.LabelErr, confluence.ErrServer)
	assert.Equal(t, 1, srv.PageCount())
}

func TestUpdatePage(t *testing.T) {
	t.Parallel()

	t.Run("fetches current version when none expected", func(t *testing.T) {
		t.Parallel()
		srv := confluencetest.New()
		defer srv.Close()
		id := srv.AddPage("DOC", "Home", "<p>v1</p>")
		srv.Bump(id)

		api := newAPI(t, srv)
		page, err := api.UpdatePage(context.Background(), confluence.UpdatePageRequest{
			PageID: id,
			Body:   "<p>v3</p>",
		})
		require.NoError(t, err)
		assert.Equal(t, 3, page.Version)
		assert.Equal(t, "Home", page.Title)

		stored, _ := srv.Page(id)
		assert.Equal(t, 3, stored.Version)
		assert.Equal(t, "<p>v3</p>", stored.Body)
	})

	t.Run("expected version skips the read", func(t *testing.T) {
		t.Parallel()
		srv := confluencetest.New()
		defer srv.Close()
		id := srv.AddPage("DOC", "Home", "<p>v1</p>")

		api := newAPI(t, srv)
		page, err := api.UpdatePage(context.Background(), confluence.UpdatePageRequest{
			PageID:          id,
			Title:           "Renamed",
			Body:            "<p>v2</p>",
			ExpectedVersion: intPtr(1),
		})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Version)
		assert.Equal(t, "Renamed", page.Title)
		assert.Equal(t, 0, srv.RequestsTo(http.MethodGet, "/content/"+id))
	})

	t.Run("stale expected version is a conflict", func(t *testing.T) {
		t.Parallel()
		srv := confluencetest.New()
		defer srv.Close()
		id := srv.AddPage("DOC", "Home", "<p>v1</p>")
		srv.Bump(id)
		srv.Bump(id)

		api := newAPI(t, srv)
		_, err := api.UpdatePage(context.Background(), confluence.UpdatePageRequest{
			PageID:          id,
			Title:           "Home",
			Body:            "<p>mine</p>",
			ExpectedVersion: intPtr(1),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, confluence.ErrConflict)

		var apiErr *confluence.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, id, apiErr.PageID)
		assert.Equal(t, 2, apiErr.AttemptedVersion)
		assert.Equal(t, 3, apiErr.ActualVersion)
		assert.Contains(t, apiErr.Error(), "tried to write version 2 but remote is at version 3")

		// no silent overwrite, and conflicts aren't retried
		stored, _ := srv.Page(id)
		assert.Equal(t, "<p>v1</p>", stored.Body)
		assert.Equal(t, 1, srv.RequestsTo(http.MethodPut, "/content/"+id))
	})

	t.Run("missing page", func(t *testing.T) {
		t.Parallel()
		srv := confluencetest.New()
		defer srv.Close()

		api := newAPI(t, srv)
		_, err := api.UpdatePage(context.Background(), confluence.UpdatePageRequest{PageID: "77", Body: "x"})
		assert.ErrorIs(t, err, confluence.ErrNotFound)
	})

	t.Run("rejects non-positive expected version", func(t *testing.T) {
		t.Parallel()
		srv := confluencetest.New()
		defer srv.Close()

		api := newAPI(t, srv)
		_, err := api.UpdatePage(context.Background(), confluence.UpdatePageRequest{PageID: "1", ExpectedVersion: intPtr(0)})
		assert.Error(t, err)
		assert.Empty(t, srv.Requests())
	})
}

func TestAuthentication(t *testing.T) {
	t.Parallel()

	t.Run("basic auth with username", func(t *testing.T) {
		t.Parallel()
		srv := confluencetest.New()
		defer srv.Close()
		srv.RequireToken("secret-token")

		api := newAPI(t, srv)
		_, err := api.CurrentUser(context.Background())
		require.NoError(t, err)
		assert.Contains(t, srv.Requests()[0].Auth, "Basic ")
	})

	t.Run("bearer without username", func(t *testing.T) {
		t.Parallel()
		srv := confluencetest.New()
		defer srv.Close()
		srv.RequireToken("pat")

		api, err := confluence.NewAPI(srv.BaseURL(), "", "pat")
		require.NoError(t, err)
		user, err := api.CurrentUser(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Test User", user.DisplayName)
		assert.Equal(t, "Bearer pat", srv.Requests()[0].Auth)
	})

	t.Run("bad token is an auth failure, not retried", func(t *testing.T) {
		t.Parallel()
		srv := confluencetest.New()
		defer srv.Close()
		srv.RequireToken("right")

		api := newAPI(t, srv)
		_, err := api.CurrentUser(context.Background())
		assert.ErrorIs(t, err, confluence.ErrAuth)
		assert.Len(t, srv.Requests(), 1)
	})
}

func TestListAllSpaces(t *testing.T) {
	t.Parallel()
	srv := confluencetest.New()
	defer srv.Close()
	srv.AddSpace("DOC", "Documentation", "global")
	srv.AddSpace("~me", "My space", "personal")

	api := newAPI(t, srv)

	spaces, err := api.ListAllSpaces(context.Background(), "example", false)
	require.NoError(t, err)
	require.Len(t, spaces, 1)
	assert.Equal(t, "Documentation", spaces["DOC"].Name)
	assert.Equal(t, "example", spaces["DOC"].Org)

	spaces, err = api.ListAllSpaces(context.Background(), "example", true)
	require.NoError(t, err)
	assert.Len(t, spaces, 2)
}
