package confluence_test

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toothbrush/confluence-markdown/confluence"
	"github.com/toothbrush/confluence-markdown/confluence/confluencetest"
	"gopkg.in/dnaeon/go-vcr.v3/cassette"
	"gopkg.in/dnaeon/go-vcr.v3/recorder"
)

func TestRecordAndReplay(t *testing.T) {
	t.Parallel()
	srv := confluencetest.New()
	id := srv.AddPage("DOC", "Recorded", "<p>on tape</p>")
	base := srv.BaseURL()

	cassetteName := filepath.Join(t.TempDir(), "confluence")

	record, err := recorder.NewWithOptions(&recorder.Options{
		CassetteName:       cassetteName,
		Mode:               recorder.ModeRecordOnly,
		SkipRequestLatency: true,
		RealTransport:      http.DefaultTransport,
	})
	require.NoError(t, err)
	record.AddHook(func(i *cassette.Interaction) error {
		delete(i.Request.Headers, "Authorization")
		return nil
	}, recorder.AfterCaptureHook)

	api, err := confluence.NewAPI(base, "someone", "secret-token", confluence.WithHTTPClient(record.GetDefaultClient()))
	require.NoError(t, err)
	page, err := api.GetPageByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Recorded", page.Title)
	require.NoError(t, record.Stop())
	srv.Close()

	tape, err := os.ReadFile(cassetteName + ".yaml")
	require.NoError(t, err)
	assert.NotContains(t, string(tape), "Authorization")
	assert.NotContains(t, string(tape), "secret-token")

	replay, err := recorder.NewWithOptions(&recorder.Options{
		CassetteName:       cassetteName,
		Mode:               recorder.ModeReplayOnly,
		SkipRequestLatency: true,
	})
	require.NoError(t, err)
	defer replay.Stop()

	api, err = confluence.NewAPI(base, "someone", "secret-token", confluence.WithHTTPClient(replay.GetDefaultClient()))
	require.NoError(t, err)
	page, err = api.GetPageByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "<p>on tape</p>", page.Body)
	assert.Equal(t, 1, page.Version)
}
