package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/snagd/snag/pkg/logger"
	"github.com/snagd/snag/pkg/worker"
)

var log = logger.Get("DownloadServ")

// Mode selects which extraction pipeline handles a request.
type Mode string

const (
	ModeVideo Mode = "video"
	ModeAudio Mode = "audio"
	ModePhoto Mode = "photo"
)

var (
	// ErrInvalidMode is returned for any mode outside video/audio/photo.
	ErrInvalidMode = errors.New("invalid mode: must be one of 'video', 'audio' or 'photo'")

	// ErrNoMedia indicates the download pipeline completed without error
	// but produced zero usable files. A zero-file result is always a
	// failure, never a valid empty response.
	ErrNoMedia = errors.New("no media was found or downloaded, check the URL")
)

// ParseMode validates a raw mode string from an inbound request.
func ParseMode(raw string) (Mode, error) {
	mode := Mode(strings.ToLower(raw))
	switch mode {
	case ModeVideo, ModeAudio, ModePhoto:
		return mode, nil
	default:
		return "", ErrInvalidMode
	}
}

type (
	// Request is the immutable description of one inbound download.
	Request struct {
		URL  string
		Mode Mode
	}

	// Result describes a completed download. Ownership of the scratch
	// directory passes to the consumer, which must call Cleanup once the
	// files have been dealt with.
	Result struct {
		ID        uuid.UUID
		Dir       string
		Files     []string
		Title     string
		Thumbnail string
	}

	photoSource interface {
		Download(ctx context.Context, sourceURL string, targetDir string) (PhotoResult, error)
	}

	mediaSource interface {
		Download(ctx context.Context, sourceURL string, mode Mode, targetDir string) (MediaMetadata, error)
	}

	jobOutcome struct {
		result *Result
		err    error
	}

	downloadJob struct {
		id      uuid.UUID
		request Request
		outcome chan jobOutcome
	}

	// Service owns the download pipeline: it hands queued jobs to a
	// bounded worker pool, gives each job an exclusively-owned scratch
	// directory, dispatches to the mode-specific downloader and scans
	// the outcome. Requests share nothing beyond the filesystem, where
	// isolation comes from the uniquely-named scratch directories.
	Service struct {
		*sync.Mutex
		config Config
		photos photoSource
		media  mediaSource
		queue  []*downloadJob
		pool   *worker.WorkerPool
		runCtx context.Context
	}
)

// New constructs the download service and its worker pool using the
// provided config. The resolver backs the social-photo strategy.
func New(config Config, resolver PostResolver) (*Service, error) {
	if config.Parallelism < 1 {
		return nil, fmt.Errorf("download parallelism must be at least 1, got %d", config.Parallelism)
	}

	if config.ScratchPath != "" {
		if err := os.MkdirAll(config.ScratchPath, os.ModeDir|os.ModePerm); err != nil {
			return nil, fmt.Errorf("scratch path '%s' could not be created: %w", config.ScratchPath, err)
		}
	}

	images := newImageFetcher(config)
	service := &Service{
		Mutex:  &sync.Mutex{},
		config: config,
		photos: newPhotoDownloader(config, images, resolver),
		media:  newMediaDownloader(config, images),
		queue:  make([]*downloadJob, 0),
		pool:   worker.NewWorkerPool(),
		runCtx: context.Background(),
	}

	for i := 0; i < config.Parallelism; i++ {
		label := fmt.Sprintf("download-worker-%d", i)
		service.pool.PushWorker(worker.NewWorker(label, service.performQueuedDownload))
	}

	return service, nil
}

// Run starts the worker pool and blocks until the provided context is
// cancelled, at which point in-flight jobs are allowed to finish and
// the pool is closed.
func (service *Service) Run(ctx context.Context) error {
	service.Lock()
	service.runCtx = ctx
	service.Unlock()

	if err := service.pool.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	service.pool.Close()
	return nil
}

// Download enqueues the request and blocks until a pooled worker has
// completed it. There is deliberately no per-request cancellation: once
// dispatched, a download runs to completion or failure regardless of
// the requesting client, so a disconnect can never leak a scratch
// directory mid-write.
func (service *Service) Download(request Request) (*Result, error) {
	if _, err := ParseMode(string(request.Mode)); err != nil {
		return nil, err
	}

	job := &downloadJob{
		id:      uuid.New(),
		request: request,
		outcome: make(chan jobOutcome, 1),
	}

	service.Lock()
	service.queue = append(service.queue, job)
	service.Unlock()

	if err := service.pool.WakeupWorkers(); err != nil {
		service.dropQueuedJob(job)
		return nil, err
	}

	outcome := <-job.outcome
	return outcome.result, outcome.err
}

// Cleanup removes a scratch directory. Callers invoke this exactly once
// per successful Result; failed jobs are cleaned internally.
func (service *Service) Cleanup(dir string) {
	if dir == "" {
		return
	}

	if err := os.RemoveAll(dir); err != nil {
		log.Emit(logger.WARNING, "Failed to remove scratch directory %s: %v\n", dir, err)
		return
	}

	log.Emit(logger.REMOVE, "Removed scratch directory %s\n", dir)
}

// performQueuedDownload is the worker task: claim the oldest queued job,
// execute it, and deliver the outcome to the waiting caller.
func (service *Service) performQueuedDownload(w worker.Worker) (bool, error) {
	job := service.claimQueuedJob()
	if job == nil {
		return false, nil
	}

	result, err := service.execute(job)
	if err != nil {
		log.Emit(logger.ERROR, "Download job %s failed: %v\n", job.id, err)
	}

	job.outcome <- jobOutcome{result: result, err: err}
	return true, nil
}

func (service *Service) execute(job *downloadJob) (*Result, error) {
	ctx := service.runContext()

	dir, err := service.createScratchDir(job.id)
	if err != nil {
		return nil, err
	}

	log.Emit(logger.NEW, "Download %s (%s %s) started in %s\n", job.id, job.request.Mode, job.request.URL, dir)

	result := &Result{ID: job.id, Dir: dir}
	switch job.request.Mode {
	case ModePhoto:
		photo, err := service.photos.Download(ctx, job.request.URL, dir)
		if err != nil {
			service.Cleanup(dir)
			return nil, err
		}

		result.Thumbnail = photo.Thumbnail
	default:
		meta, err := service.media.Download(ctx, job.request.URL, job.request.Mode, dir)
		if err != nil {
			service.Cleanup(dir)
			return nil, err
		}

		result.Thumbnail = meta.Thumbnail
		if meta.Playlist {
			result.Title = meta.Title
		}
	}

	files, err := collectFiles(dir)
	if err != nil {
		service.Cleanup(dir)
		return nil, err
	}
	if len(files) == 0 {
		service.Cleanup(dir)
		return nil, ErrNoMedia
	}

	result.Files = files
	log.Emit(logger.SUCCESS, "Download %s produced %d file(s)\n", job.id, len(files))
	return result, nil
}

func (service *Service) claimQueuedJob() *downloadJob {
	service.Lock()
	defer service.Unlock()

	if len(service.queue) == 0 {
		return nil
	}

	job := service.queue[0]
	service.queue = service.queue[1:]
	return job
}

func (service *Service) dropQueuedJob(job *downloadJob) {
	service.Lock()
	defer service.Unlock()

	for i, queued := range service.queue {
		if queued == job {
			service.queue = append(service.queue[:i], service.queue[i+1:]...)
			return
		}
	}
}

func (service *Service) createScratchDir(id uuid.UUID) (string, error) {
	root := service.config.ScratchPath
	if root == "" {
		root = os.TempDir()
	}

	dir := filepath.Join(root, "snag-"+id.String())
	if err := os.MkdirAll(dir, os.ModeDir|os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create scratch directory %s: %w", dir, err)
	}

	return dir, nil
}

func (service *Service) runContext() context.Context {
	service.Lock()
	defer service.Unlock()
	return service.runCtx
}
