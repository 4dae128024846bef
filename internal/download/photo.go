package download

import (
	"context"
	"fmt"
	"hash/fnv"
	"os/exec"
	"regexp"
	"strings"

	"github.com/snagd/snag/pkg/logger"
)

var photoLog = logger.Get("PhotoDL")

// galleryDLImageFilter excludes audio/video results so slideshow posts
// only yield their still images.
const galleryDLImageFilter = "extension not in ('mp3', 'm4a', 'wav', 'mp4')"

var shortcodePattern = regexp.MustCompile(`/(?:p|reel|reels)/([A-Za-z0-9_-]+)`)

type (
	// PostResolver resolves a social post shortcode to a direct media
	// URL. Resolution may fail for private, deleted, or rate-limited
	// content; callers are expected to degrade to another strategy.
	PostResolver interface {
		ResolvePostImage(ctx context.Context, shortcode string) (string, error)
	}

	// PhotoResult carries the optional preview produced while acquiring
	// one or more images in to the target directory.
	PhotoResult struct {
		Thumbnail string
	}

	// photoDownloader routes a photo request to the extraction strategy
	// suited to the hosting platform: the slideshow tool for multi-image
	// posts, the social resolver for login-walled posts, and a direct
	// normalised fetch for everything else.
	photoDownloader struct {
		config   Config
		images   *imageFetcher
		resolver PostResolver
	}
)

func newPhotoDownloader(config Config, images *imageFetcher, resolver PostResolver) *photoDownloader {
	return &photoDownloader{config: config, images: images, resolver: resolver}
}

// Download acquires the photo(s) behind sourceURL in to targetDir. The
// only failure that propagates is a generic fetch failure; every other
// strategy degrades (social resolution falls back to the generic path,
// and an unproductive slideshow run yields an empty result).
func (dl *photoDownloader) Download(ctx context.Context, sourceURL string, targetDir string) (PhotoResult, error) {
	switch ClassifyURL(sourceURL) {
	case PlatformSlideshow:
		return dl.downloadSlideshow(ctx, sourceURL, targetDir)
	case PlatformSocialPhoto:
		if result, ok := dl.downloadSocialPhoto(ctx, sourceURL, targetDir); ok {
			return result, nil
		}

		return dl.downloadGeneric(ctx, sourceURL, targetDir)
	default:
		return dl.downloadGeneric(ctx, sourceURL, targetDir)
	}
}

// downloadSlideshow shells out to the slideshow extraction tool and then
// verifies the outcome by scanning the target directory, NOT by trusting
// the subprocess exit status (the tool's exit semantics are unreliable).
// The subprocess is bounded by a timeout; expiry is non-fatal.
func (dl *photoDownloader) downloadSlideshow(ctx context.Context, sourceURL string, targetDir string) (PhotoResult, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, dl.config.galleryDLTimeout())
	defer cancel()

	photoLog.Emit(logger.INFO, "Slideshow platform detected for %s, invoking %s\n", sourceURL, dl.config.GalleryDLBinary)
	cmd := exec.CommandContext(cmdCtx, dl.config.GalleryDLBinary, "-D", targetDir, "--filter", galleryDLImageFilter, sourceURL)
	if output, err := cmd.CombinedOutput(); err != nil {
		photoLog.Emit(logger.WARNING, "Slideshow tool run for %s reported %v (%s); proceeding to result scan\n",
			sourceURL, err, strings.TrimSpace(string(output)))
	}

	for _, imagePath := range findImageFiles(targetDir) {
		thumb, err := dl.images.Thumbnail(imagePath)
		if err != nil {
			photoLog.Emit(logger.WARNING, "Failed to build thumbnail from %s: %v\n", imagePath, err)
			continue
		}

		return PhotoResult{Thumbnail: thumb}, nil
	}

	// Zero image files is a best-effort outcome here, not an error; the
	// caller's result scan decides whether the request failed overall.
	photoLog.Emit(logger.INFO, "Slideshow extraction for %s produced no usable image files\n", sourceURL)
	return PhotoResult{}, nil
}

// downloadSocialPhoto attempts the resolver-backed strategy. The boolean
// return reports whether the strategy handled the request; false means
// the caller should fall through to the generic path.
func (dl *photoDownloader) downloadSocialPhoto(ctx context.Context, sourceURL string, targetDir string) (PhotoResult, bool) {
	match := shortcodePattern.FindStringSubmatch(sourceURL)
	if match == nil {
		photoLog.Emit(logger.INFO, "No post shortcode found in %s, falling through to generic fetch\n", sourceURL)
		return PhotoResult{}, false
	}

	shortcode := match[1]
	mediaURL, err := dl.resolver.ResolvePostImage(ctx, shortcode)
	if err != nil {
		photoLog.Emit(logger.WARNING, "Resolution of post %s failed (%v), falling through to generic fetch\n", shortcode, err)
		return PhotoResult{}, false
	}

	path, err := dl.images.FetchToFile(ctx, mediaURL, targetDir, "insta_"+shortcode)
	if err != nil {
		photoLog.Emit(logger.WARNING, "Failed to save resolved media for post %s (%v), falling through to generic fetch\n", shortcode, err)
		return PhotoResult{}, false
	}

	thumb, err := dl.images.Thumbnail(path)
	if err != nil {
		photoLog.Emit(logger.WARNING, "Failed to build thumbnail from %s: %v\n", path, err)
		return PhotoResult{}, true
	}

	return PhotoResult{Thumbnail: thumb}, true
}

// downloadGeneric treats sourceURL as a directly fetchable image. There
// is no further fallback, so failure here propagates to the caller.
func (dl *photoDownloader) downloadGeneric(ctx context.Context, sourceURL string, targetDir string) (PhotoResult, error) {
	path, err := dl.images.FetchToFile(ctx, sourceURL, targetDir, fmt.Sprintf("direct_%d", urlHash(sourceURL)))
	if err != nil {
		return PhotoResult{}, err
	}

	thumb, err := dl.images.Thumbnail(path)
	if err != nil {
		photoLog.Emit(logger.WARNING, "Failed to build thumbnail from %s: %v\n", path, err)
		return PhotoResult{}, nil
	}

	return PhotoResult{Thumbnail: thumb}, nil
}

func urlHash(sourceURL string) uint64 {
	hasher := fnv.New64a()
	hasher.Write([]byte(sourceURL))
	return hasher.Sum64()
}
