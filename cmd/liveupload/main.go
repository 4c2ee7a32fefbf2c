// Command liveupload streams a file that is still being written to an HTTP
// endpoint or an S3 bucket, one chunk at a time.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bitrise-io/go-liveupload/config"
	"github.com/bitrise-io/go-liveupload/filereader"
	"github.com/bitrise-io/go-liveupload/internal"
	"github.com/bitrise-io/go-liveupload/producer"
	"github.com/bitrise-io/go-liveupload/secretkeys"
	"github.com/bitrise-io/go-liveupload/uploader"
	"github.com/bitrise-io/go-liveupload/uploader/transfer"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
)

const completionPollInterval = 100 * time.Millisecond

func main() {
	logger := log.NewLogger()
	if err := run(logger, env.NewRepository()); err != nil {
		logger.Errorf("%s", err)
		os.Exit(1)
	}
}

func run(logger log.Logger, envRepository env.Repository) error {
	var inputs Inputs
	if err := config.NewInputParser(envRepository).Parse(&inputs); err != nil {
		return err
	}
	logger.EnableDebugLog(inputs.Verbose)
	config.Print(logger, inputs)
	logger.Println()

	cfg, err := inputs.toConfig()
	if err != nil {
		return err
	}

	osProxy := internal.RealOS{}
	inputPath, err := resolveInputPath(osProxy, cfg.InputPath)
	if err != nil {
		return err
	}
	cfg.Settings.LocalFileName = filepath.Base(inputPath)
	cfg.Settings.SecretHeaders = secretkeys.NewManager().Load(envRepository)
	logger.Infof("Streaming %s", inputPath)

	reader := filereader.New(osProxy)
	if err := reader.Open(inputPath); err != nil {
		return err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Warnf("Failed to close %s: %s", inputPath, err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return stream(ctx, logger, cfg, reader, engineFactory(ctx, cfg))
}

func engineFactory(ctx context.Context, cfg Config) transfer.Factory {
	if cfg.S3 != nil {
		return transfer.NewS3Factory(ctx, *cfg.S3)
	}
	return transfer.NewHTTPFactory()
}

// stream runs an uploader fed by source until the source goes idle or ctx
// is done, then stops the uploader.
func stream(ctx context.Context, logger log.Logger, cfg Config, source producer.Source, factory transfer.Factory) error {
	u := uploader.New(logger, uploader.WithEngineFactory(factory))
	if err := u.Initialize(cfg.Settings); err != nil {
		return err
	}
	if err := u.Start(); err != nil {
		return err
	}

	pump, err := producer.New(source, u, cfg.Pump, logger)
	if err != nil {
		stopUploader(logger, u)
		return err
	}

	reportDone := make(chan struct{})
	go reportStats(logger, u, cfg.StatsInterval, reportDone)

	result, pumpErr := pump.Run(ctx)
	interrupted := errors.Is(pumpErr, context.Canceled)
	if pumpErr == nil {
		waitForCompletion(ctx, u)
	}

	stopUploader(logger, u)
	close(reportDone)

	stats := u.GetStats()
	logStats(logger, stats)
	logger.Printf("Submitted %d chunks (%s), busy retries: %d",
		result.ChunksSubmitted, units.HumanSizeWithPrecision(float64(result.BytesSubmitted), 3), result.BusyRetries)

	if pumpErr != nil && !interrupted {
		return pumpErr
	}
	if interrupted {
		logger.Warnf("Interrupted")
	}
	if stats.ChunksFailed > 0 {
		return fmt.Errorf("%d of %d chunks failed", stats.ChunksFailed, stats.ChunksFailed+stats.ChunksSent)
	}

	logger.Donef("Upload finished")
	return nil
}

func waitForCompletion(ctx context.Context, u *uploader.Uploader) {
	ticker := time.NewTicker(completionPollInterval)
	defer ticker.Stop()

	for !u.UploadComplete() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func stopUploader(logger log.Logger, u *uploader.Uploader) {
	if err := u.Stop(); err != nil && !errors.Is(err, uploader.ErrNotRunning) {
		logger.Warnf("Failed to stop uploader: %s", err)
	}
}

func reportStats(logger log.Logger, u *uploader.Uploader, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			logStats(logger, u.GetStats())
		}
	}
}

func logStats(logger log.Logger, stats uploader.Stats) {
	logger.Printf("Sent %s in %s (%s/s), chunks: %d sent, %d failed",
		units.HumanSizeWithPrecision(float64(stats.BytesSent), 3),
		stats.Elapsed.Round(time.Second),
		units.HumanSizeWithPrecision(stats.BytesPerSecond, 3),
		stats.ChunksSent,
		stats.ChunksFailed,
	)
}
