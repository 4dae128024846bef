package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://www.instagram.com"

// postInfoTemplate is the public JSON rendering of a post page; it
// exposes the media graph without requiring an authenticated session.
const postInfoTemplate = "%s/p/%s/?__a=1&__d=dis"

type (
	Config struct {
		UserAgent string
		Timeout   time.Duration
	}

	// postResolver resolves a post shortcode to the direct URL of the
	// post's display image. Resolution commonly fails for private,
	// removed, or rate-limited posts; callers should treat failures as
	// soft and fall back to another strategy.
	postResolver struct {
		config  Config
		client  *http.Client
		baseURL string
	}

	postInfo struct {
		Graphql struct {
			ShortcodeMedia struct {
				DisplayURL string `json:"display_url"`
				IsVideo    bool   `json:"is_video"`
			} `json:"shortcode_media"`
		} `json:"graphql"`
	}
)

func NewResolver(config Config) *postResolver {
	return &postResolver{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		baseURL: defaultBaseURL,
	}
}

// ResolvePostImage returns the direct image URL for the post identified
// by the given shortcode. An error will be raised if:
//   - The request to the platform fails or is refused
//   - The response payload cannot be parsed
//   - The post exposes no display image
func (resolver *postResolver) ResolvePostImage(ctx context.Context, shortcode string) (string, error) {
	path := fmt.Sprintf(postInfoTemplate, resolver.baseURL, shortcode)

	var info postInfo
	if err := resolver.getJSON(ctx, path, &info); err != nil {
		return "", err
	}

	if info.Graphql.ShortcodeMedia.DisplayURL == "" {
		return "", &NoImageError{Shortcode: shortcode}
	}

	return info.Graphql.ShortcodeMedia.DisplayURL, nil
}

func (resolver *postResolver) getJSON(ctx context.Context, path string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return &UnknownRequestError{fmt.Sprintf("failed to construct GET(%s): %s", path, err.Error())}
	}
	req.Header.Set("User-Agent", resolver.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := resolver.client.Do(req)
	if err != nil {
		return &UnknownRequestError{fmt.Sprintf("failed to perform GET(%s): %s", path, err.Error())}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &UnknownRequestError{fmt.Sprintf("failed to read response body: %s", err.Error())}
	}

	if resp.StatusCode != http.StatusOK {
		return &FailedRequestError{httpCode: resp.StatusCode}
	}

	if err := json.Unmarshal(respBody, target); err != nil {
		return &UnknownRequestError{fmt.Sprintf("response JSON could not be unmarshalled: %s", err.Error())}
	}

	return nil
}

type (
	FailedRequestError struct {
		httpCode int
	}

	NoImageError struct {
		Shortcode string
	}

	UnknownRequestError struct {
		reason string
	}
)

func (err *FailedRequestError) Error() string {
	return fmt.Sprintf("post resolution refused with status %d", err.httpCode)
}

func (err *NoImageError) Error() string {
	return fmt.Sprintf("post %s exposes no display image", err.Shortcode)
}

func (err *UnknownRequestError) Error() string {
	return fmt.Sprintf("post resolution failed: %s", err.reason)
}
