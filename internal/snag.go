package internal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/snagd/snag/internal/api"
	"github.com/snagd/snag/internal/download"
	"github.com/snagd/snag/internal/http/instagram"
	"github.com/snagd/snag/pkg/logger"
)

var log = logger.Get("Core")

type (
	RunnableService interface {
		Run(context.Context) error
	}

	DownloadService interface {
		RunnableService
		Download(download.Request) (*download.Result, error)
		Cleanup(dir string)
	}
)

// Snag represents the top-level object for the server, and is responsible
// for initialising its services and wiring them together.
type snagImpl struct {
	config          SnagConfig
	downloadService DownloadService
	restGateway     RunnableService
}

func New(config SnagConfig) *snagImpl {
	log.Emit(logger.DEBUG, "Bootstrapping Snag services using config: %#v\n", config)
	snag := &snagImpl{config: config}

	resolver := instagram.NewResolver(instagram.Config{
		UserAgent: config.Downloader.UserAgent,
		Timeout:   time.Duration(config.Downloader.FetchTimeoutSeconds) * time.Second,
	})

	if serv, err := download.New(config.Downloader, resolver); err == nil {
		snag.downloadService = serv
	} else {
		panic(fmt.Sprintf("failed to construct download service due to error: %s", err.Error()))
	}

	snag.restGateway = api.NewRestGateway(&config.Rest, snag.downloadService)

	return snag
}

// Run will start Snag by bringing up the download service and the REST
// gateway. This function will not return until Snag is stopped; to stop
// Snag the provided context must be cancelled. Errors from which Snag
// cannot recover will also cause it to stop.
func (snag *snagImpl) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	crashHandler := func(label string, err error) {
		log.Emit(logger.FATAL, "Service crash (%s)! %s\n", label, err.Error())
		cancel()
	}

	wg := &sync.WaitGroup{}
	snag.spawnAsyncService(ctx, wg, snag.downloadService, "download-service", crashHandler)
	snag.spawnAsyncService(ctx, wg, snag.restGateway, "rest-gateway", crashHandler)
	log.Emit(logger.SUCCESS, "Snag services spawned!\n")

	wg.Wait()
	return nil
}

// spawnAsyncService will run the provided function/service as it's own
// go-routine, ensuring that the Snag service waitgroup is updated correctly
func (snag *snagImpl) spawnAsyncService(context context.Context, wg *sync.WaitGroup, service RunnableService, serviceLabel string, crashHandler func(string, error)) {
	log.Emit(logger.NEW, "Spawning %s\n", serviceLabel)
	wg.Add(1)

	go func(wg *sync.WaitGroup, label string, crash func(string, error)) {
		defer func() {
			if r := recover(); r != nil {
				crash(label, fmt.Errorf("panic %v", r))
			}
		}()

		defer wg.Done()
		if err := service.Run(context); err != nil {
			crash(label, err)
		}
	}(wg, serviceLabel, crashHandler)
}
