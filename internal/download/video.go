package download

import (
	"context"
	"path/filepath"

	"github.com/lrstanley/go-ytdlp"
	"github.com/snagd/snag/pkg/logger"
)

var mediaLog = logger.Get("MediaDL")

const (
	// outputTemplate names downloaded files by media title; the media
	// extraction library expands the placeholders per entry.
	outputTemplate = "%(title)s.%(ext)s"

	audioFormatSelector = "bestaudio/best"

	// videoFormatSelector prefers a merged mp4 stream, falling back to
	// any pre-merged mp4 and finally the absolute best available.
	videoFormatSelector = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"

	audioCodec        = "mp3"
	audioQuality      = "192K"
	mergedContainer   = "mp4"
)

type (
	// MediaMetadata describes what the extraction library fetched. For
	// playlists the title represents the collection rather than any
	// single entry.
	MediaMetadata struct {
		Title     string
		Thumbnail string
		Playlist  bool
	}

	// mediaDownloader drives the external media extraction library for
	// the video and audio modes. A fresh command is constructed per call
	// so no configuration is shared between concurrent requests.
	mediaDownloader struct {
		config Config
		images *imageFetcher
	}
)

func newMediaDownloader(config Config, images *imageFetcher) *mediaDownloader {
	return &mediaDownloader{config: config, images: images}
}

// Download populates targetDir with the media behind sourceURL. An
// unrecoverable extraction error propagates unwrapped; per-entry errors
// inside a multi-item fetch are tolerated so partial playlists still
// return the entries that succeeded. The resolved thumbnail is fetched
// best-effort and never affects the primary result.
func (dl *mediaDownloader) Download(ctx context.Context, sourceURL string, mode Mode, targetDir string) (MediaMetadata, error) {
	mediaLog.Emit(logger.INFO, "Fetching %s media from %s\n", mode, sourceURL)

	result, err := dl.buildCommand(mode, targetDir).Run(ctx, sourceURL)
	if err != nil {
		return MediaMetadata{}, err
	}

	meta, thumbnailURL := dl.inspectResult(result)
	if thumbnailURL != "" {
		if thumb, err := dl.images.ThumbnailFromURL(ctx, thumbnailURL); err == nil {
			meta.Thumbnail = thumb
		} else {
			mediaLog.Emit(logger.WARNING, "Failed to build thumbnail from %s: %v\n", thumbnailURL, err)
		}
	}

	return meta, nil
}

func (dl *mediaDownloader) buildCommand(mode Mode, targetDir string) *ytdlp.Command {
	cmd := ytdlp.New().
		Output(filepath.Join(targetDir, outputTemplate)).
		NoWarnings().
		IgnoreErrors().
		NoCheckCertificates().
		UserAgent(dl.config.UserAgent)

	if dl.config.FfmpegLocation != "" {
		cmd = cmd.FFmpegLocation(dl.config.FfmpegLocation)
	}

	if mode == ModeAudio {
		return cmd.Format(audioFormatSelector).
			ExtractAudio().
			AudioFormat(audioCodec).
			AudioQuality(audioQuality)
	}

	return cmd.Format(videoFormatSelector).MergeOutputFormat(mergedContainer)
}

// inspectResult pulls the title, playlist flag and thumbnail URL out of
// the extraction metadata. Metadata parse failures are swallowed; the
// files on disk are the primary result and remain valid without it.
func (dl *mediaDownloader) inspectResult(result *ytdlp.Result) (MediaMetadata, string) {
	meta := MediaMetadata{}
	if result == nil {
		return meta, ""
	}

	infos, err := result.GetExtractedInfo()
	if err != nil {
		mediaLog.Emit(logger.WARNING, "Extraction metadata could not be parsed: %v\n", err)
		return meta, ""
	}

	thumbnailURL := ""
	entries := 0
	for _, info := range infos {
		if info == nil {
			continue
		}

		if info.Type == ytdlp.ExtractedTypePlaylist {
			meta.Playlist = true
			if info.Title != nil {
				meta.Title = *info.Title
			}
			continue
		}

		entries++
		if meta.Title == "" && info.Title != nil {
			meta.Title = *info.Title
		}
		if thumbnailURL == "" && info.Thumbnail != nil {
			thumbnailURL = *info.Thumbnail
		}
	}

	if entries > 1 {
		meta.Playlist = true
	}

	return meta, thumbnailURL
}
