package main

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitrise-io/go-liveupload/config"
	"github.com/bitrise-io/go-liveupload/internal"
	"github.com/bitrise-io/go-liveupload/producer"
	"github.com/bitrise-io/go-liveupload/uploader"
	"github.com/bitrise-io/go-liveupload/uploader/transfer"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/docker/go-units"
)

const (
	busyRetries = 3
	busyWait    = 50 * time.Millisecond
)

// Inputs ...
type Inputs struct {
	TargetURL          string        `env:"LIVEUPLOAD_TARGET_URL" validate:"omitempty,url"`
	InputPath          string        `env:"LIVEUPLOAD_INPUT_PATH,required=true" validate:"required"`
	Headers            string        `env:"LIVEUPLOAD_HEADERS"`
	FormFields         string        `env:"LIVEUPLOAD_FORM_FIELDS"`
	FormName           string        `env:"LIVEUPLOAD_FORM_NAME,default=webm_file"`
	ContentType        string        `env:"LIVEUPLOAD_CONTENT_TYPE,default=video/webm"`
	Compression        string        `env:"LIVEUPLOAD_COMPRESSION" validate:"omitempty,oneof=zstd"`
	ChunkSize          string        `env:"LIVEUPLOAD_CHUNK_SIZE,default=1MB"`
	ChunkTimeout       time.Duration `env:"LIVEUPLOAD_CHUNK_TIMEOUT,default=0s" validate:"gte=0"`
	PollInterval       time.Duration `env:"LIVEUPLOAD_POLL_INTERVAL,default=500ms" validate:"gt=0"`
	IdleTimeout        time.Duration `env:"LIVEUPLOAD_IDLE_TIMEOUT,default=30s" validate:"gte=0"`
	StatsInterval      time.Duration `env:"LIVEUPLOAD_STATS_INTERVAL,default=10s" validate:"gt=0"`
	Verbose            bool          `env:"LIVEUPLOAD_VERBOSE,default=false"`
	S3Bucket           string        `env:"LIVEUPLOAD_S3_BUCKET"`
	S3Prefix           string        `env:"LIVEUPLOAD_S3_PREFIX"`
	AWSRegion          string        `env:"AWS_REGION"`
	AWSAccessKeyID     string        `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey config.Secret `env:"AWS_SECRET_ACCESS_KEY"`
}

// Config is the validated, converted form of Inputs.
type Config struct {
	InputPath     string
	Settings      uploader.Settings
	Pump          producer.Config
	StatsInterval time.Duration
	// S3 is set when chunks go to a bucket instead of an HTTP endpoint.
	S3 *transfer.S3Params
}

func (i Inputs) toConfig() (Config, error) {
	if i.TargetURL == "" && i.S3Bucket == "" {
		return Config{}, errors.New("either LIVEUPLOAD_TARGET_URL or LIVEUPLOAD_S3_BUCKET must be set")
	}
	if i.TargetURL != "" && i.S3Bucket != "" {
		return Config{}, errors.New("LIVEUPLOAD_TARGET_URL and LIVEUPLOAD_S3_BUCKET are mutually exclusive")
	}

	chunkSize, err := units.RAMInBytes(i.ChunkSize)
	if err != nil {
		return Config{}, fmt.Errorf("invalid chunk size %q: %w", i.ChunkSize, err)
	}
	if chunkSize <= 0 {
		return Config{}, fmt.Errorf("chunk size must be positive, got %q", i.ChunkSize)
	}

	headers, err := config.ParseKeyValues(i.Headers, ":")
	if err != nil {
		return Config{}, fmt.Errorf("invalid headers: %w", err)
	}
	formFields, err := config.ParseKeyValues(i.FormFields, "=")
	if err != nil {
		return Config{}, fmt.Errorf("invalid form fields: %w", err)
	}

	cfg := Config{
		InputPath: i.InputPath,
		Settings: uploader.Settings{
			TargetURL:   i.TargetURL,
			Headers:     headers,
			FormFields:  formFields,
			FormName:    i.FormName,
			ContentType: i.ContentType,
			Compression: i.Compression,
			Timeout:     i.ChunkTimeout,
		},
		Pump: producer.Config{
			ChunkSize:    int(chunkSize),
			PollInterval: i.PollInterval,
			BusyRetries:  busyRetries,
			BusyWait:     busyWait,
			IdleTimeout:  i.IdleTimeout,
		},
		StatsInterval: i.StatsInterval,
	}

	if i.S3Bucket != "" {
		cfg.S3 = &transfer.S3Params{
			Bucket:          i.S3Bucket,
			Prefix:          i.S3Prefix,
			Region:          i.AWSRegion,
			AccessKeyID:     i.AWSAccessKeyID,
			SecretAccessKey: string(i.AWSSecretAccessKey),
		}
		cfg.Settings.TargetURL = "s3://" + path.Join(i.S3Bucket, i.S3Prefix)
	}

	return cfg, nil
}

// resolveInputPath expands a glob to the most recently modified match. A
// plain path is returned as is.
func resolveInputPath(osProxy internal.OsProxy, pattern string) (string, error) {
	if !strings.ContainsAny(pattern, "*?[{") {
		return pattern, nil
	}

	base, rest := doublestar.SplitPattern(filepath.ToSlash(pattern))
	matches, err := doublestar.Glob(osProxy.DirFS(base), rest)
	if err != nil {
		return "", fmt.Errorf("match %s: %w", pattern, err)
	}

	var newest string
	var newestTime time.Time
	for _, match := range matches {
		pth := filepath.Join(base, match)
		info, err := osProxy.Stat(pth)
		if err != nil {
			return "", err
		}
		if info.IsDir() {
			continue
		}
		if newest == "" || info.ModTime().After(newestTime) {
			newest = pth
			newestTime = info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no file matches %s", pattern)
	}

	return newest, nil
}
