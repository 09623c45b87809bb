package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ListAllSpaces walks the v2 spaces listing, following cursors.  The result is keyed by space key.
func (api *API) ListAllSpaces(ctx context.Context, orgName string, includePersonal bool) (map[string]Space, error) {
	spaces := map[string]Space{}

	query := SpacesQuery{
		Limit: 25,
	}

	if !includePersonal {
		// The `type` parameter may be "global", "personal", or nothing at all for both.  "global"
		// returns spaces like DOC, ENG, etc., while "personal" returns each user's space.  Leaving
		// it empty gives us everything, so we only set this if we _do not_ intend to include
		// personal spaces in our query.
		query.Type = "global"
	}

	for {
		allspaces, err := api.getSpaces(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("confluence: couldn't list spaces: %w", err)
		}

		for _, space := range allspaces.Results {
			space.Org = orgName
			spaces[space.Key] = space
		}

		if allspaces.Links.Next == "" {
			break
		}

		q, err := url.Parse(allspaces.Links.Next)
		if err != nil {
			return nil, fmt.Errorf("confluence: couldn't parse _links.next: %w", err)
		}
		query.Cursor = q.Query().Get("cursor")
		if query.Cursor == "" {
			return nil, fmt.Errorf("confluence: expected parameter 'cursor' was empty")
		}
	}

	return spaces, nil
}

func (api *API) getSpaces(ctx context.Context, opts SpacesQuery) (*AllSpaces, error) {
	ep, err := api.getSpaceEndpoint(opts)
	if err != nil {
		return nil, fmt.Errorf("confluence: couldn't get spaces endpoint: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	body, err := api.request(ctx, "list_spaces", http.MethodGet, ep, nil)
	if err != nil {
		return nil, err
	}

	var allSpaces AllSpaces
	if err := json.Unmarshal(body, &allSpaces); err != nil {
		return nil, fmt.Errorf("confluence: couldn't parse json response: %w", err)
	}

	return &allSpaces, nil
}
