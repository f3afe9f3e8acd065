package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/bitrise-io/go-uploadthing/upload"
	"github.com/bitrise-io/go-uploadthing/uploaderror"
	"github.com/bitrise-io/go-utils/retry"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

const numUploadRetries = 3

// S3Params configures an S3Uploader.
type S3Params struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string

	// Endpoint overrides the S3 endpoint for S3 compatible storages.
	Endpoint     string
	UsePathStyle bool

	// Prefix is prepended to every object key.
	Prefix string

	// PublicURL is the base of the returned file URLs. Defaults to the bucket URL.
	PublicURL string

	// Compress uploads the files zstd compressed with Content-Encoding: zstd.
	Compress bool

	// PartSizeMB is the multipart upload part size. Default: 10
	PartSizeMB int64

	// RetryWait is the delay between attempts. Default: 5 seconds
	RetryWait time.Duration

	// Concurrency is the maximum number of files uploaded in parallel.
	Concurrency int
}

// S3Uploader uploads files straight to an S3 bucket.
type S3Uploader struct {
	client manager.UploadAPIClient
	params S3Params
	logger log.Logger
}

// NewS3Uploader loads the AWS configuration and creates an S3Uploader.
func NewS3Uploader(ctx context.Context, params S3Params, logger log.Logger) (*S3Uploader, error) {
	if logger == nil {
		logger = log.NewLogger()
	}

	cfg, err := loadAWSCredentials(
		ctx,
		params.Region,
		params.AccessKeyID,
		params.SecretAccessKey,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("load aws credentials: %w", err)
	}

	client := s3.NewFromConfig(*cfg, func(o *s3.Options) {
		if params.Endpoint != "" {
			o.BaseEndpoint = aws.String(params.Endpoint)
		}
		o.UsePathStyle = params.UsePathStyle
	})

	return NewS3UploaderWithClient(client, params, logger)
}

// NewS3UploaderWithClient creates an S3Uploader on top of an existing client.
func NewS3UploaderWithClient(client manager.UploadAPIClient, params S3Params, logger log.Logger) (*S3Uploader, error) {
	if params.Bucket == "" {
		return nil, fmt.Errorf("Bucket must not be empty")
	}
	if logger == nil {
		logger = log.NewLogger()
	}
	if params.PartSizeMB <= 0 {
		params.PartSizeMB = 10
	}
	if params.RetryWait <= 0 {
		params.RetryWait = 5 * time.Second
	}
	if params.Concurrency <= 0 {
		params.Concurrency = DefaultConcurrency()
	}

	return &S3Uploader{
		client: client,
		params: params,
		logger: logger,
	}, nil
}

// Upload puts every file under {prefix}{endpoint}/{uuid}-{name}.
func (u *S3Uploader) Upload(ctx context.Context, endpoint string, params upload.Params) ([]upload.UploadedFile, error) {
	if ctx.Err() != nil {
		return nil, contextError(ctx)
	}

	result := make([]upload.UploadedFile, len(params.Files))
	err := forEachFile(ctx, len(params.Files), u.params.Concurrency, func(ctx context.Context, index int) error {
		file := params.Files[index]
		key := u.objectKey(endpoint, file.Name)

		reportBegin(params, file)
		if err := u.putObjectWithRetry(ctx, key, file, reportProgress(params, file)); err != nil {
			return err
		}
		reportProgress(params, file)(file.Size)

		result[index] = upload.UploadedFile{
			Key:  key,
			Name: file.Name,
			Size: file.Size,
			Type: file.Type,
			URL:  u.fileURL(key),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (u *S3Uploader) objectKey(endpoint, name string) string {
	return fmt.Sprintf("%s%s/%s-%s", u.params.Prefix, endpoint, uuid.NewString(), path.Base(name))
}

func (u *S3Uploader) fileURL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	switch {
	case u.params.PublicURL != "":
		return strings.TrimSuffix(u.params.PublicURL, "/") + "/" + escaped
	case u.params.Endpoint != "":
		return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(u.params.Endpoint, "/"), u.params.Bucket, escaped)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.params.Bucket, u.params.Region, escaped)
	}
}

func (u *S3Uploader) putObjectWithRetry(ctx context.Context, key string, file *upload.File, report func(int64)) error {
	return retry.Times(numUploadRetries).Wait(u.params.RetryWait).TryWithAbort(func(attempt uint) (error, bool) {
		if ctx.Err() != nil {
			return contextError(ctx), true
		}
		if attempt > 0 {
			u.logger.Warnf("Retrying upload of %s (attempt %d)", file.Name, attempt+1)
		}

		content, err := file.Open()
		if err != nil {
			return fmt.Errorf("open file: %w", err), true
		}
		defer content.Close() //nolint:errcheck

		uploader := manager.NewUploader(u.client, func(m *manager.Uploader) {
			m.PartSize = u.params.PartSizeMB * 1024 * 1024
		})

		input := &s3.PutObjectInput{
			Bucket:            aws.String(u.params.Bucket),
			Key:               aws.String(key),
			ChecksumAlgorithm: types.ChecksumAlgorithmSha256,
		}
		if file.Type != "" {
			input.ContentType = aws.String(file.Type)
		}

		var body io.Reader = &progressReader{reader: content, onRead: report}
		if u.params.Compress {
			compressed := compress(body)
			defer compressed.Close() //nolint:errcheck
			body = compressed
			input.ContentEncoding = aws.String("zstd")
		} else {
			input.ContentLength = aws.Int64(file.Size)
		}
		input.Body = body

		_, err = uploader.Upload(ctx, input)
		if err != nil {
			if ctx.Err() != nil {
				return abortOr(ctx, fmt.Errorf("upload %s: %w", file.Name, err)), true
			}
			mapped := s3Error(err)
			var utErr *uploaderror.UploadThingError
			abort := errors.As(mapped, &utErr) && utErr.Code != uploaderror.CodeUploadFailed
			return fmt.Errorf("upload %s: %w", file.Name, mapped), abort
		}

		return nil, true
	})
}

// compress streams r through a zstd encoder.
func compress(r io.Reader) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		encoder, err := zstd.NewWriter(pw)
		if err != nil {
			pw.CloseWithError(fmt.Errorf("create zstd writer: %w", err))
			return
		}
		if _, err := io.Copy(encoder, r); err != nil {
			encoder.Close() //nolint:errcheck
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(encoder.Close())
	}()
	return pr
}

// s3Error converts S3 API errors into UploadThingErrors.
func s3Error(err error) error {
	var apiError smithy.APIError
	if !errors.As(err, &apiError) {
		return err
	}

	code := uploaderror.CodeUploadFailed
	switch apiError.ErrorCode() {
	case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		code = uploaderror.CodeForbidden
	case "NoSuchBucket", "NotFound":
		code = uploaderror.CodeNotFound
	case "EntityTooLarge":
		code = uploaderror.CodeTooLarge
	case "EntityTooSmall":
		code = uploaderror.CodeTooSmall
	case "KeyTooLongError":
		code = uploaderror.CodeKeyTooLong
	case "InvalidArgument", "InvalidRequest", "InvalidDigest", "BadDigest":
		code = uploaderror.CodeBadRequest
	}

	message := apiError.ErrorMessage()
	if message == "" {
		message = apiError.ErrorCode()
	}
	return &uploaderror.UploadThingError{
		Code:    code,
		Message: message,
		Status:  uploaderror.StatusForCode(code),
		Cause:   err,
	}
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
