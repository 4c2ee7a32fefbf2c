package transfer

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/bitrise-io/go-utils/v2/log"
)

// S3Params selects the bucket and credentials of an S3 engine.
type S3Params struct {
	Bucket          string
	Prefix          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Engine stores each chunk as a separate object named after the local
// file and a sequence number: <prefix>/<file>.000000, <prefix>/<file>.000001...
type S3Engine struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
	session  Session
	form     *formBuilder
	listener Listener
	logger   log.Logger
	seq      int
}

// NewS3Factory returns a Factory producing S3 engines. AWS configuration is
// loaded when the factory is invoked.
func NewS3Factory(ctx context.Context, params S3Params) Factory {
	return func(session Session, listener Listener, logger log.Logger) (Engine, error) {
		if params.Bucket == "" {
			return nil, fmt.Errorf("bucket must not be empty")
		}

		cfg, err := loadAWSCredentials(ctx, params.Region, params.AccessKeyID, params.SecretAccessKey, logger)
		if err != nil {
			return nil, fmt.Errorf("load aws credentials: %w", err)
		}

		return NewS3Engine(s3.NewFromConfig(*cfg), params, session, listener, logger)
	}
}

// NewS3Engine creates an engine on top of an existing client.
func NewS3Engine(client manager.UploadAPIClient, params S3Params, session Session, listener Listener, logger log.Logger) (*S3Engine, error) {
	if listener == nil {
		return nil, fmt.Errorf("listener must not be nil")
	}

	session = session.WithDefaults()
	form, err := newFormBuilder(session)
	if err != nil {
		return nil, err
	}

	return &S3Engine{
		uploader: manager.NewUploader(client),
		bucket:   params.Bucket,
		prefix:   params.Prefix,
		session:  session,
		form:     form,
		listener: listener,
		logger:   logger,
	}, nil
}

// Upload stores data under the next sequence key.
func (e *S3Engine) Upload(ctx context.Context, data []byte) error {
	if e.session.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.session.Timeout)
		defer cancel()
	}

	key := path.Join(e.prefix, fmt.Sprintf("%s.%06d", e.session.LocalFileName, e.seq))
	e.seq++

	reader := newProgressReader(e.form.encode(data), e.listener)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        reader,
		ContentType: aws.String(e.session.ContentType),
		Metadata:    e.session.FormFields,
	}
	if e.form.encoder != nil {
		input.ContentEncoding = aws.String(CompressionZstd)
	}

	e.logger.Debugf("Uploading chunk to s3://%s/%s", e.bucket, key)
	out, err := e.uploader.Upload(ctx, input)
	if err != nil {
		if reader.aborted || errors.Is(err, ErrAborted) || ctx.Err() == context.Canceled {
			return abortedError("upload interrupted")
		}
		return s3TransferError(err)
	}

	if out != nil && out.Location != "" {
		e.logger.Debugf("Chunk stored at %s", out.Location)
		e.listener.ResponseData([]byte(out.Location))
	}
	return nil
}

// Close releases the encoder.
func (e *S3Engine) Close() {
	e.form.close()
}

func s3TransferError(err error) *TransferError {
	transferErr := &TransferError{Code: CodeTransport, Reason: "put object", Err: err}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		transferErr.Code = respErr.HTTPStatusCode()
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		transferErr.Reason = apiErr.ErrorCode()
	}

	return transferErr
}

func loadAWSCredentials(
	ctx context.Context,
	region string,
	accessKeyID string,
	secretKey string,
	logger log.Logger,
) (*aws.Config, error) {
	if region == "" {
		return nil, fmt.Errorf("region must not be empty")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	if accessKeyID != "" && secretKey != "" {
		logger.Debugf("aws credentials provided, using them...")
		opts = append(opts,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretKey, "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config, %v", err)
	}

	return &cfg, nil
}
