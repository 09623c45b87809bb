package confluence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maximum length of a raw (non-JSON) error body we keep on an APIError.
const maxErrorBody = 512

// request performs one logical call, retried according to api.Retry.  payload, when non-nil, is
// sent as JSON.  The response body of a 2xx is returned.
func (api *API) request(ctx context.Context, op string, method string, url *url.URL, payload any) ([]byte, error) {
	var encoded []byte
	if payload != nil {
		var err error
		encoded, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("confluence: couldn't encode request body: %w", err)
		}
	}

	var body []byte
	err := api.Retry.Do(ctx, api.logger, op, func(ctx context.Context) error {
		var err error
		body, err = api.roundTrip(ctx, op, method, url, encoded)
		return err
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}

// roundTrip implements the basic request function: one HTTP exchange, classified.
func (api *API) roundTrip(ctx context.Context, op string, method string, url *url.URL, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("confluence: couldn't instantiate http request: %w", err)
	}

	req.Header.Add("Accept", "application/json, */*")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// if user & token are not set, do not add authorization header
	if api.username != "" && api.token != "" {
		req.SetBasicAuth(api.username, api.token)
	} else if api.token != "" {
		req.Header.Set("Authorization", "Bearer "+api.token)
	}

	start := time.Now()
	response, err := api.Client.Do(req)
	if err != nil {
		return nil, &APIError{Kind: KindTransport, Op: op, Err: err}
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, &APIError{Kind: KindTransport, Op: op, Status: response.StatusCode, Err: err}
	}

	api.logger.LogAttrs(ctx, slog.LevelDebug, "confluence request",
		slog.String("operation", op),
		slog.String("method", method),
		slog.String("path", url.Path),
		slog.Int("status", response.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return body, nil
	}

	message := errorMessage(body)
	return nil, &APIError{
		Kind:    classifyStatus(response.StatusCode, message),
		Op:      op,
		Status:  response.StatusCode,
		Message: message,
	}
}

// errorMessage digs the human-readable part out of a Confluence error payload, falling back to
// (a prefix of) the raw body.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}
	return msg
}
