package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPostResolver struct {
	mediaURL      string
	err           error
	seenShortcode string
}

func (stub *stubPostResolver) ResolvePostImage(_ context.Context, shortcode string) (string, error) {
	stub.seenShortcode = shortcode
	if stub.err != nil {
		return "", stub.err
	}

	return stub.mediaURL, nil
}

// writeFakeSlideshowTool creates an executable standing in for the real
// slideshow extraction binary. The script body receives the target
// directory as its second argument, mirroring the '-D <dir>' invocation.
func writeFakeSlideshowTool(t *testing.T, body string) string {
	t.Helper()

	script := filepath.Join(t.TempDir(), "gallery-dl")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\n"+body), 0o755))
	return script
}

func newPhotoTestDownloader(galleryBinary string, resolver PostResolver) *photoDownloader {
	config := Config{
		FetchTimeoutSeconds:     5,
		GalleryDLTimeoutSeconds: 10,
		GalleryDLBinary:         galleryBinary,
		UserAgent:               "test-agent",
	}

	return newPhotoDownloader(config, newImageFetcher(config), resolver)
}

func Test_PhotoDownload_Slideshow(t *testing.T) {
	t.Parallel()

	source := filepath.Join(t.TempDir(), "source.png")
	require.NoError(t, os.WriteFile(source, encodeTestPNG(t, 120, 90), 0o644))

	script := writeFakeSlideshowTool(t, fmt.Sprintf("cp '%s' \"$2/slide_01.png\"\ncp '%s' \"$2/slide_02.png\"\n", source, source))
	dl := newPhotoTestDownloader(script, nil)

	target := t.TempDir()
	result, err := dl.Download(context.Background(), "https://www.tiktok.com/@someone/photo/724", target)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.Thumbnail, thumbnailDataPrefix))
	assert.Len(t, findImageFiles(target), 2)
}

func Test_PhotoDownload_Slideshow_NoOutputIsNotAnError(t *testing.T) {
	t.Parallel()

	script := writeFakeSlideshowTool(t, "exit 0\n")
	dl := newPhotoTestDownloader(script, nil)

	target := t.TempDir()
	result, err := dl.Download(context.Background(), "https://www.tiktok.com/@someone/photo/724", target)
	require.NoError(t, err)
	assert.Empty(t, result.Thumbnail)

	entries, err := os.ReadDir(target)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func Test_PhotoDownload_Slideshow_ToolFailureIsNotAnError(t *testing.T) {
	t.Parallel()

	script := writeFakeSlideshowTool(t, "echo 'simulated extraction failure' >&2\nexit 1\n")
	dl := newPhotoTestDownloader(script, nil)

	result, err := dl.Download(context.Background(), "https://www.tiktok.com/@someone/photo/724", t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, result.Thumbnail)
}

func Test_PhotoDownload_Slideshow_TrustsScanOverExitStatus(t *testing.T) {
	t.Parallel()

	source := filepath.Join(t.TempDir(), "source.png")
	require.NoError(t, os.WriteFile(source, encodeTestPNG(t, 120, 90), 0o644))

	// The tool writes a usable image but still exits non-zero; the scan
	// must report success regardless.
	script := writeFakeSlideshowTool(t, fmt.Sprintf("cp '%s' \"$2/slide_01.png\"\nexit 1\n", source))
	dl := newPhotoTestDownloader(script, nil)

	target := t.TempDir()
	result, err := dl.Download(context.Background(), "https://www.tiktok.com/@someone/photo/724", target)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Thumbnail, thumbnailDataPrefix))
	assert.Len(t, findImageFiles(target), 1)
}

func Test_PhotoDownload_SocialPhoto(t *testing.T) {
	t.Parallel()

	server, _ := newImageServer(t, encodeTestPNG(t, 200, 200), "image/png")
	resolver := &stubPostResolver{mediaURL: server.URL + "/display.png"}
	dl := newPhotoTestDownloader("gallery-dl", resolver)

	target := t.TempDir()
	result, err := dl.Download(context.Background(), "https://www.instagram.com/p/ABC123/", target)
	require.NoError(t, err)

	assert.Equal(t, "ABC123", resolver.seenShortcode)
	assert.True(t, strings.HasPrefix(result.Thumbnail, thumbnailDataPrefix))
	assert.FileExists(t, filepath.Join(target, "insta_ABC123.png"))
}

func Test_PhotoDownload_SocialPhoto_ReelShortcode(t *testing.T) {
	t.Parallel()

	server, _ := newImageServer(t, encodeTestPNG(t, 200, 200), "image/png")
	resolver := &stubPostResolver{mediaURL: server.URL + "/display.png"}
	dl := newPhotoTestDownloader("gallery-dl", resolver)

	target := t.TempDir()
	_, err := dl.Download(context.Background(), "https://www.instagram.com/reel/xYz_-9/", target)
	require.NoError(t, err)

	assert.Equal(t, "xYz_-9", resolver.seenShortcode)
	assert.FileExists(t, filepath.Join(target, "insta_xYz_-9.png"))
}

func Test_PhotoDownload_SocialPhoto_ResolverFailureFallsBack(t *testing.T) {
	t.Parallel()

	server, _ := newImageServer(t, encodeTestPNG(t, 200, 200), "image/png")
	resolver := &stubPostResolver{err: errors.New("post is private")}
	dl := newPhotoTestDownloader("gallery-dl", resolver)

	// The path keeps the URL on the social platform's classification
	// while remaining directly fetchable from the test server.
	sourceURL := server.URL + "/instagram.com/p/ABC123"
	target := t.TempDir()
	result, err := dl.Download(context.Background(), sourceURL, target)
	require.NoError(t, err)

	assert.Equal(t, "ABC123", resolver.seenShortcode)
	assert.True(t, strings.HasPrefix(result.Thumbnail, thumbnailDataPrefix))

	files := findImageFiles(target)
	require.Len(t, files, 1)
	assert.True(t, strings.HasPrefix(filepath.Base(files[0]), "direct_"))
}

func Test_PhotoDownload_SocialPhoto_NoShortcodeFallsBack(t *testing.T) {
	t.Parallel()

	server, _ := newImageServer(t, encodeTestPNG(t, 200, 200), "image/png")
	dl := newPhotoTestDownloader("gallery-dl", &stubPostResolver{})

	sourceURL := server.URL + "/instagram.com/profile-picture.png"
	target := t.TempDir()
	_, err := dl.Download(context.Background(), sourceURL, target)
	require.NoError(t, err)
	assert.Len(t, findImageFiles(target), 1)
}

func Test_PhotoDownload_Generic(t *testing.T) {
	t.Parallel()

	server, _ := newImageServer(t, encodeTestPNG(t, 200, 200), "image/png")
	dl := newPhotoTestDownloader("gallery-dl", nil)

	target := t.TempDir()
	result, err := dl.Download(context.Background(), server.URL+"/cat.png", target)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Thumbnail, thumbnailDataPrefix))

	files := findImageFiles(target)
	require.Len(t, files, 1)
	assert.True(t, strings.HasPrefix(filepath.Base(files[0]), "direct_"))
}

func Test_PhotoDownload_Generic_FailurePropagates(t *testing.T) {
	t.Parallel()

	server, _ := newImageServer(t, []byte("<html>not an image</html>"), "text/html")
	dl := newPhotoTestDownloader("gallery-dl", nil)

	target := t.TempDir()
	_, err := dl.Download(context.Background(), server.URL+"/broken.png", target)
	require.Error(t, err)

	entries, readErr := os.ReadDir(target)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}
