package download

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	// The imaging package registers the jpeg/png/gif/bmp/tiff decoders;
	// webp content (common for social platforms) needs registering here.
	_ "golang.org/x/image/webp"
)

const (
	thumbnailMaxDimension = 320
	thumbnailJPEGQuality  = 75
	thumbnailDataPrefix   = "data:image/jpeg;base64,"
)

// formatExtensions maps decoded image format names (as reported by
// image.Decode) to their canonical file extension.
var formatExtensions = map[string]string{
	"jpeg": ".jpg",
	"png":  ".png",
	"gif":  ".gif",
	"webp": ".webp",
	"bmp":  ".bmp",
	"tiff": ".tiff",
}

// imageFetcher normalises remote images on to the local disk: it fetches
// the raw bytes with a browser-like user agent, verifies they decode as
// an image, and re-encodes them under a safe extension. It also owns the
// thumbnail pipeline used for the response preview header.
type imageFetcher struct {
	client    *http.Client
	userAgent string
}

func newImageFetcher(config Config) *imageFetcher {
	return &imageFetcher{
		client:    &http.Client{Timeout: config.fetchTimeout()},
		userAgent: config.UserAgent,
	}
}

// FetchToFile downloads the image at sourceURL and saves it as
// 'folder/name<ext>', returning the resulting path. The extension is
// chosen by priority: decoded format, URL path extension, content-type
// derived extension, and finally '.png'. When the chosen extension has
// no registered encoder the source bytes are written verbatim instead
// of re-encoding.
func (fetcher *imageFetcher) FetchToFile(ctx context.Context, sourceURL string, folder string, name string) (string, error) {
	raw, contentType, err := fetcher.fetchBytes(ctx, sourceURL)
	if err != nil {
		return "", err
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("response from %s is not a decodable image: %w", sourceURL, err)
	}

	ext := chooseExtension(format, sourceURL, contentType)
	path := filepath.Join(folder, name+ext)

	outputFormat, err := imaging.FormatFromExtension(ext)
	if err != nil {
		// No encoder for this extension; keep the decoder's native bytes.
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			return "", fmt.Errorf("failed to write image to %s: %w", path, err)
		}

		return path, nil
	}

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create image file %s: %w", path, err)
	}
	defer out.Close()

	// Clone flattens the decoded image in to an RGBA bitmap so every
	// encoder (JPEG in particular) accepts it.
	if err := imaging.Encode(out, imaging.Clone(img), outputFormat); err != nil {
		return "", fmt.Errorf("failed to encode image to %s: %w", path, err)
	}

	return path, nil
}

// Thumbnail opens the image at path and produces a small base64 JPEG
// preview of it, formatted as a data URI.
func (fetcher *imageFetcher) Thumbnail(path string) (string, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return "", err
	}

	return encodeThumbnail(img)
}

// ThumbnailFromURL fetches a remote image and runs it through the same
// thumbnail pipeline as Thumbnail.
func (fetcher *imageFetcher) ThumbnailFromURL(ctx context.Context, sourceURL string) (string, error) {
	raw, _, err := fetcher.fetchBytes(ctx, sourceURL)
	if err != nil {
		return "", err
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}

	return encodeThumbnail(img)
}

func (fetcher *imageFetcher) fetchBytes(ctx context.Context, sourceURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", fetcher.userAgent)

	resp, err := fetcher.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, "", fmt.Errorf("GET %s returned status %d", sourceURL, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body from %s: %w", sourceURL, err)
	}

	return raw, resp.Header.Get("Content-Type"), nil
}

func chooseExtension(format string, sourceURL string, contentType string) string {
	if ext, ok := formatExtensions[strings.ToLower(format)]; ok {
		return ext
	}

	if parsed, err := url.Parse(sourceURL); err == nil {
		if ext := strings.ToLower(filepath.Ext(parsed.Path)); ext != "" {
			return ext
		}
	}

	if contentType != "" {
		if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
			// The extension table for jpeg varies across systems (.jpe,
			// .jpeg, .jfif); pin the canonical one.
			if mediaType == "image/jpeg" {
				return ".jpg"
			}

			if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
				return exts[0]
			}
		}
	}

	return ".png"
}

func encodeThumbnail(img image.Image) (string, error) {
	thumb := imaging.Fit(img, thumbnailMaxDimension, thumbnailMaxDimension, imaging.Lanczos)

	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, thumb, imaging.JPEG, imaging.JPEGQuality(thumbnailJPEGQuality)); err != nil {
		return "", err
	}

	return thumbnailDataPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
