package download

import "time"

// Config contains the tunables for the download pipeline. All values
// carry sane defaults so a zero-config deployment works as long as the
// external tools (gallery-dl, yt-dlp, ffmpeg) are on the PATH.
type Config struct {
	Parallelism             int    `yaml:"parallelism" env:"DOWNLOAD_PARALLELISM" env-default:"2"`
	ScratchPath             string `yaml:"scratch_path" env:"DOWNLOAD_SCRATCH_PATH"`
	FetchTimeoutSeconds     int    `yaml:"fetch_timeout_seconds" env:"DOWNLOAD_FETCH_TIMEOUT_SECONDS" env-default:"20"`
	UserAgent               string `yaml:"user_agent" env:"DOWNLOAD_USER_AGENT" env-default:"Mozilla/5.0"`
	GalleryDLBinary         string `yaml:"gallery_dl_binary" env:"GALLERY_DL_BINARY" env-default:"gallery-dl"`
	GalleryDLTimeoutSeconds int    `yaml:"gallery_dl_timeout_seconds" env:"GALLERY_DL_TIMEOUT_SECONDS" env-default:"120"`
	FfmpegLocation          string `yaml:"ffmpeg_location" env:"FFMPEG_LOCATION"`
}

func (config *Config) fetchTimeout() time.Duration {
	return time.Duration(config.FetchTimeoutSeconds) * time.Second
}

func (config *Config) galleryDLTimeout() time.Duration {
	return time.Duration(config.GalleryDLTimeoutSeconds) * time.Second
}
