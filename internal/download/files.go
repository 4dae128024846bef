package download

import (
	"archive/zip"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// thumbnailFilePrefix is reserved for preview artifacts; files
	// carrying it are never included in the outbound response.
	thumbnailFilePrefix = "thumb"

	defaultArchiveName   = "downloaded_media.zip"
	archiveScratchName   = "snag_archive.zip"
	maxFilenameLength    = 160
	fallbackArchiveTitle = "download"
)

var stillImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
}

var forbiddenFilenameChars = strings.NewReplacer(
	`\`, "_", "/", "_", ":", "_", "*", "_", "?", "_",
	`"`, "_", "<", "_", ">", "_", "|", "_",
)

// collectFiles recursively lists every regular file under root in
// lexical walk order, excluding reserved thumbnail artifacts.
func collectFiles(root string) ([]string, error) {
	files := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if strings.HasPrefix(strings.ToLower(entry.Name()), thumbnailFilePrefix) {
			return nil
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// findImageFiles recursively scans root for files whose extension is a
// recognised still-image type. Walk errors skip the offending entry
// rather than aborting; this scan backs a best-effort strategy.
func findImageFiles(root string) []string {
	images := make([]string, 0)
	_ = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return nil
		}
		if stillImageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			images = append(images, path)
		}

		return nil
	})

	return images
}

// SanitizeFilename replaces characters that are unsafe for filenames
// and bounds the overall length.
func SanitizeFilename(name string) string {
	sanitized := strings.TrimSpace(forbiddenFilenameChars.Replace(name))
	if sanitized == "" {
		return fallbackArchiveTitle
	}

	if runes := []rune(sanitized); len(runes) > maxFilenameLength {
		sanitized = string(runes[:maxFilenameLength])
	}

	return sanitized
}

// BuildArchive zips every collected file in to a single archive inside
// the scratch directory, preserving paths relative to it, and returns
// the archive path. The archive shares the scratch directory lifecycle.
func (result *Result) BuildArchive() (string, error) {
	archivePath := filepath.Join(result.Dir, archiveScratchName)
	out, err := os.Create(archivePath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	writer := zip.NewWriter(out)
	for _, file := range result.Files {
		relative, err := filepath.Rel(result.Dir, file)
		if err != nil {
			return "", err
		}

		entry, err := writer.Create(filepath.ToSlash(relative))
		if err != nil {
			return "", err
		}

		source, err := os.Open(file)
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(entry, source); err != nil {
			source.Close()
			return "", err
		}
		source.Close()
	}

	if err := writer.Close(); err != nil {
		return "", err
	}

	return archivePath, nil
}

// ArchiveFileName derives the client-facing archive name from the
// collection title, falling back to a fixed default when the downloader
// reported none.
func (result *Result) ArchiveFileName() string {
	if result.Title == "" {
		return defaultArchiveName
	}

	return SanitizeFilename(result.Title) + ".zip"
}
