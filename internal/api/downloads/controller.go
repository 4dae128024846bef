package downloads

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/snagd/snag/internal/download"
	"github.com/snagd/snag/pkg/logger"
)

var controllerLogger = logger.Get("DownloadsController")

const (
	// thumbnailHeader carries the base64 preview as a side channel next
	// to the binary response body.
	thumbnailHeader = "X-Thumbnail"

	archiveMediaType  = "application/zip"
	fallbackMediaType = "application/octet-stream"
)

type (
	// DownloadRequest is the inbound DTO for the download endpoint.
	DownloadRequest struct {
		Url  string `json:"url" validate:"required"`
		Mode string `json:"mode" validate:"required,oneof=video audio photo"`
	}

	DownloadService interface {
		Download(download.Request) (*download.Result, error)
		Cleanup(dir string)
	}

	// Controller is the struct which is responsible for defining the
	// routes for this controller, validating inbound requests and
	// assembling the file-or-archive response from a download result.
	Controller struct {
		validate *validator.Validate
		service  DownloadService
	}
)

func New(validate *validator.Validate, serv DownloadService) *Controller {
	return &Controller{validate: validate, service: serv}
}

// SetRoutes accepts the echo group for the download endpoints
// and sets the routes on them.
func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.POST("/", controller.create)
}

// create validates the inbound request (rejecting a bad mode before any
// download side effects), dispatches the download, and streams back the
// single resulting file or a zip archive of all of them. The scratch
// directory is deleted once the response body has been written; failed
// downloads are cleaned up by the service before the error reaches us.
func (controller *Controller) create(ec echo.Context) error {
	var request DownloadRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := controller.validate.Struct(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid format selected.")
	}

	mode, err := download.ParseMode(request.Mode)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := controller.service.Download(download.Request{URL: request.Url, Mode: mode})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, download.ErrInvalidMode) {
			status = http.StatusBadRequest
		}

		return echo.NewHTTPError(status, err.Error())
	}

	// The scratch directory must outlive the response stream but never
	// leak past it.
	defer controller.service.Cleanup(result.Dir)

	if len(result.Files) == 1 {
		path := result.Files[0]
		mediaType := mime.TypeByExtension(filepath.Ext(path))
		if mediaType == "" {
			mediaType = fallbackMediaType
		}

		return controller.streamFile(ec, path, filepath.Base(path), mediaType, result.Thumbnail)
	}

	controllerLogger.Emit(logger.INFO, "Download %s produced %d files, building archive\n", result.ID, len(result.Files))
	archivePath, err := result.BuildArchive()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return controller.streamFile(ec, archivePath, result.ArchiveFileName(), archiveMediaType, "")
}

func (controller *Controller) streamFile(ec echo.Context, path string, downloadName string, mediaType string, thumbnail string) error {
	header := ec.Response().Header()
	header.Set(echo.HeaderContentType, mediaType)
	header.Set(echo.HeaderContentDisposition, attachmentDisposition(downloadName))
	if thumbnail != "" {
		header.Set(thumbnailHeader, thumbnail)
	}

	return ec.File(path)
}

// attachmentDisposition formats an RFC 5987 attachment header so
// non-ASCII media titles survive the trip intact.
func attachmentDisposition(filename string) string {
	return fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(filename))
}
