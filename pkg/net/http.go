package net

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

var ErrorURLNotFound = errors.New("URL not found")

// GetJSON retrieves the HTTP content and decodes it into the passed target.
// Headers are applied to the request as-is (API keys go here).
func GetJSON[T any](ctx context.Context, url string, headers map[string]string, target *T) error {
	resp, err := getResp(ctx, url, headers)
	if err != nil {
		return fmt.Errorf("error creating HTTP Get request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrorURLNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("error getting content (status: %d - %s): %s", resp.StatusCode, resp.Status, url)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("error decoding content: %w", err)
	}
	return nil
}

func getResp(ctx context.Context, url string, headers map[string]string) (resp *http.Response, err error) {
	c, err := GetHTTPClient()
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP client: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP Get request: %w", err)
	}

	req.Header.Set("User-Agent", clientAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err = c.Do(req)
	if err != nil {
		return nil, err
	}
	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		PrintHTTPResponse(resp)
	}
	return resp, nil
}
