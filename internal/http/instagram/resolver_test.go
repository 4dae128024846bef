package instagram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T, handler http.HandlerFunc) *postResolver {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	resolver := NewResolver(Config{UserAgent: "test-agent", Timeout: 2 * time.Second})
	resolver.baseURL = server.URL
	return resolver
}

func Test_ResolvePostImage_Success(t *testing.T) {
	t.Parallel()

	resolver := newTestResolver(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/p/ABC123/", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("__a"))
		assert.Equal(t, "dis", r.URL.Query().Get("__d"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"graphql":{"shortcode_media":{"display_url":"https://cdn.example.com/display.jpg","is_video":false}}}`)
	})

	mediaURL, err := resolver.ResolvePostImage(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/display.jpg", mediaURL)
}

func Test_ResolvePostImage_RefusedRequest(t *testing.T) {
	t.Parallel()

	resolver := newTestResolver(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := resolver.ResolvePostImage(context.Background(), "ABC123")
	require.Error(t, err)

	var refused *FailedRequestError
	require.True(t, errors.As(err, &refused))
	assert.Contains(t, refused.Error(), "429")
}

func Test_ResolvePostImage_NoDisplayImage(t *testing.T) {
	t.Parallel()

	resolver := newTestResolver(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"graphql":{"shortcode_media":{"is_video":true}}}`)
	})

	_, err := resolver.ResolvePostImage(context.Background(), "ABC123")
	require.Error(t, err)

	var noImage *NoImageError
	require.True(t, errors.As(err, &noImage))
	assert.Equal(t, "ABC123", noImage.Shortcode)
}

func Test_ResolvePostImage_MalformedPayload(t *testing.T) {
	t.Parallel()

	resolver := newTestResolver(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>login required</html>")
	})

	_, err := resolver.ResolvePostImage(context.Background(), "ABC123")
	require.Error(t, err)

	var unknown *UnknownRequestError
	assert.True(t, errors.As(err, &unknown))
}

func Test_ResolvePostImage_UnreachableHost(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(Config{UserAgent: "test-agent", Timeout: time.Second})
	resolver.baseURL = "http://127.0.0.1:1"

	_, err := resolver.ResolvePostImage(context.Background(), "ABC123")
	require.Error(t, err)

	var unknown *UnknownRequestError
	assert.True(t, errors.As(err, &unknown))
}
