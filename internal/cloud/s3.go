package cloud

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	dbconfig "dbbackup/internal/config"
	"dbbackup/internal/errs"
	"dbbackup/internal/logger"
)

// multipartThreshold above which Upload switches to a multipart transfer.
const multipartThreshold = 100 * 1024 * 1024 // 100 MB

// ProgressCallback reports bytes transferred during Upload/Download.
type ProgressCallback func(bytesTransferred, totalBytes int64)

// Client is the Object Store Client (C3), constructed once per call from an
// S3Location with a fixed credentials provider — no ambient-environment
// credentials are consulted.
type Client struct {
	s3  *s3.Client
	loc *dbconfig.S3Location
	log logger.Logger
}

// New builds a Client from an S3Location. The caller supplies region and an
// optional endpoint override so S3-compatible providers (MinIO, B2) work
// the same as AWS S3.
func New(ctx context.Context, loc *dbconfig.S3Location, log logger.Logger) (*Client, error) {
	credsProvider := credentials.NewStaticCredentialsProvider(loc.AccessKey, loc.SecretKey, "")

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credsProvider),
		config.WithRegion(loc.Region),
		// 5 attempts, exponential backoff starting at 2s, per §4.3.
		config.WithRetryer(func() aws.Retryer {
			return retry.NewStandard(func(o *retry.StandardOptions) {
				o.MaxAttempts = 5
				o.Backoff = retry.BackoffDelayerFunc(func(attempt int, _ error) (time.Duration, error) {
					return (2 * time.Second) << (attempt - 1), nil
				})
			})
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if loc.Endpoint != "" {
			o.BaseEndpoint = aws.String(loc.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Client{s3: client, loc: loc, log: log}, nil
}

// Probe attempts ListBuckets; if denied, falls back to HeadBucket on the
// target bucket. A probe failure is logged but never returned — it does
// not abort a subsequent upload (§4.3).
func (c *Client) Probe(ctx context.Context) {
	if _, err := c.s3.ListBuckets(ctx, &s3.ListBucketsInput{}); err == nil {
		return
	}
	if _, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.loc.Bucket)}); err != nil {
		if c.log != nil {
			c.log.Warn("object store connectivity probe failed", "bucket", c.loc.Bucket, "error", err)
		}
	}
}

// Upload streams localPath to key without reading the whole file into
// memory, applying a request-level timeout.
func (c *Client) Upload(ctx context.Context, localPath, key string, timeout time.Duration, progress ProgressCallback) error {
	file, err := os.Open(localPath)
	if err != nil {
		return &errs.ObjectStoreError{Op: "upload", Bucket: c.loc.Bucket, Key: key, Err: err}
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return &errs.ObjectStoreError{Op: "upload", Bucket: c.loc.Bucket, Key: key, Err: err}
	}

	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	uploadCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader = file
	if progress != nil {
		reader = newProgressReader(file, stat.Size(), progress)
	}

	if stat.Size() > multipartThreshold {
		uploader := manager.NewUploader(c.s3, func(u *manager.Uploader) {
			u.PartSize = 10 * 1024 * 1024
			u.Concurrency = 10
			u.LeavePartsOnError = false
		})
		_, err = uploader.Upload(uploadCtx, &s3.PutObjectInput{
			Bucket: aws.String(c.loc.Bucket), Key: aws.String(key), Body: reader,
		})
	} else {
		_, err = c.s3.PutObject(uploadCtx, &s3.PutObjectInput{
			Bucket: aws.String(c.loc.Bucket), Key: aws.String(key), Body: reader,
		})
	}
	if err != nil {
		return &errs.ObjectStoreError{Op: "upload", Bucket: c.loc.Bucket, Key: key, Err: err}
	}
	return nil
}

// Download writes key incrementally to localPath, creating the parent
// directory if absent.
func (c *Client) Download(ctx context.Context, key, localPath string, progress ProgressCallback) error {
	result, err := c.s3.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(c.loc.Bucket), Key: aws.String(key)})
	if err != nil {
		return &errs.ObjectStoreError{Op: "download", Bucket: c.loc.Bucket, Key: key, Err: err}
	}
	defer result.Body.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return &errs.ObjectStoreError{Op: "download", Bucket: c.loc.Bucket, Key: key, Err: err}
	}
	out, err := os.Create(localPath)
	if err != nil {
		return &errs.ObjectStoreError{Op: "download", Bucket: c.loc.Bucket, Key: key, Err: err}
	}
	defer out.Close()

	var reader io.Reader = result.Body
	if progress != nil {
		size := int64(-1)
		if result.ContentLength != nil {
			size = *result.ContentLength
		}
		reader = newProgressReader(result.Body, size, progress)
	}

	if _, err := io.Copy(out, reader); err != nil {
		return &errs.ObjectStoreError{Op: "download", Bucket: c.loc.Bucket, Key: key, Err: err}
	}
	return nil
}

// Exists checks whether key exists in the bucket.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(c.loc.Bucket), Key: aws.String(key)})
	if err != nil {
		if strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "404") {
			return false, nil
		}
		return false, &errs.ObjectStoreError{Op: "head", Bucket: c.loc.Bucket, Key: key, Err: err}
	}
	return true, nil
}

type progressReader struct {
	reader   io.Reader
	total    int64
	read     int64
	callback ProgressCallback
	last     time.Time
}

func newProgressReader(r io.Reader, total int64, cb ProgressCallback) *progressReader {
	return &progressReader{reader: r, total: total, callback: cb, last: time.Now()}
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.read += int64(n)
	now := time.Now()
	if now.Sub(pr.last) > 100*time.Millisecond || err == io.EOF {
		pr.callback(pr.read, pr.total)
		pr.last = now
	}
	return n, err
}
