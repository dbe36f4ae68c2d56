package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultGoogleURL is the public web translation endpoint.
const DefaultGoogleURL = "https://translate.googleapis.com/translate_a/single"

// GoogleClient calls Google's keyless web translation endpoint.
type GoogleClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGoogleClient creates a client. An empty baseURL selects DefaultGoogleURL.
func NewGoogleClient(baseURL string, timeout time.Duration) *GoogleClient {
	if baseURL == "" {
		baseURL = DefaultGoogleURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GoogleClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *GoogleClient) Name() string { return "google" }

func (c *GoogleClient) Translate(ctx context.Context, text, source, target string) (string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", source)
	q.Set("tl", target)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("google request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("google returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return parseGoogleResponse(body)
}

// parseGoogleResponse joins the translated chunks of a gtx response, shaped
// [[["Bonjour","Hello",...],["le monde","world",...]],null,"en",...].
func parseGoogleResponse(body []byte) (string, error) {
	var root []json.RawMessage
	if err := json.Unmarshal(body, &root); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(root) == 0 {
		return "", fmt.Errorf("decode response: empty array")
	}
	var chunks [][]json.RawMessage
	if err := json.Unmarshal(root[0], &chunks); err != nil {
		return "", fmt.Errorf("decode sentences: %w", err)
	}

	var b strings.Builder
	for _, chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(chunk[0], &s); err != nil {
			continue // null entries carry transliteration only
		}
		b.WriteString(s)
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("decode response: no translated text")
	}
	return b.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
