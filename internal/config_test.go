package internal_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/snagd/snag/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_LoadFromEnv_Defaults(t *testing.T) {
	config := internal.SnagConfig{}
	require.NoError(t, config.LoadFromEnv())

	assert.Equal(t, "0.0.0.0:8080", config.Rest.HostAddr)
	assert.Equal(t, 2, config.Downloader.Parallelism)
	assert.Equal(t, 20, config.Downloader.FetchTimeoutSeconds)
	assert.Equal(t, "Mozilla/5.0", config.Downloader.UserAgent)
	assert.Equal(t, "gallery-dl", config.Downloader.GalleryDLBinary)
	assert.Equal(t, 120, config.Downloader.GalleryDLTimeoutSeconds)
}

func Test_LoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("API_HOST_ADDR", "127.0.0.1:9999")
	t.Setenv("DOWNLOAD_PARALLELISM", "8")
	t.Setenv("GALLERY_DL_BINARY", "/opt/tools/gallery-dl")

	config := internal.SnagConfig{}
	require.NoError(t, config.LoadFromEnv())

	assert.Equal(t, "127.0.0.1:9999", config.Rest.HostAddr)
	assert.Equal(t, 8, config.Downloader.Parallelism)
	assert.Equal(t, "/opt/tools/gallery-dl", config.Downloader.GalleryDLBinary)
}

func Test_LoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := `
api:
  host_address: "0.0.0.0:9000"
downloader:
  parallelism: 4
  user_agent: custom-agent
  scratch_path: /tmp/snag-scratch
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	config := internal.SnagConfig{}
	require.NoError(t, config.LoadFromFile(path))

	assert.Equal(t, "0.0.0.0:9000", config.Rest.HostAddr)
	assert.Equal(t, 4, config.Downloader.Parallelism)
	assert.Equal(t, "custom-agent", config.Downloader.UserAgent)
	assert.Equal(t, "/tmp/snag-scratch", config.Downloader.ScratchPath)

	// Values absent from the file keep their defaults.
	assert.Equal(t, "gallery-dl", config.Downloader.GalleryDLBinary)
}

func Test_LoadFromFile_MissingFile(t *testing.T) {
	config := internal.SnagConfig{}
	assert.Error(t, config.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")))
}
