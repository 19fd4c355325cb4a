package judge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"
)

// httpClient builds the client for one MakeInput fetch: a new disk
// cache transport over the same cache directory under cacheDir, which
// delegates to http.DefaultTransport and so reuses its connection pool.
func httpClient(cacheDir string) *http.Client {
	return &http.Client{
		Timeout:   15 * time.Second,
		Transport: newDiskCacheTransport(filepath.Join(cacheDir, "judge-input-cache")),
	}
}

// MakeInput resolves a Spec's stdin: the inline Input string if given,
// otherwise an HTTP GET against InputURL (bearer-authenticated with
// InputAuth if set), served through an on-disk cache.
func MakeInput(ctx context.Context, s Spec, cacheDir string) (string, error) {
	if s.Input != "" {
		return s.Input, nil
	}
	if s.InputURL == "" {
		return "", fmt.Errorf("judge: spec has neither input nor input_url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.InputURL, nil)
	if err != nil {
		return "", fmt.Errorf("error fetching input: %w", err)
	}
	if s.InputAuth != "" {
		req.Header.Set("Authorization", "Bearer "+s.InputAuth)
	}

	resp, err := httpClient(cacheDir).Do(req)
	if err != nil {
		return "", fmt.Errorf("error fetching input: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("error fetching input: status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading input: %w", err)
	}
	return string(body), nil
}
