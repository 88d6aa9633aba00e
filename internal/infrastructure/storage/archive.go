// Package storage archives rendered invoice documents in S3-compatible
// object storage (AWS S3, MinIO, RustFS).
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	invoicingapp "github.com/ledgerly/invoicing/internal/application/invoicing"
	"github.com/ledgerly/invoicing/internal/infrastructure/config"
)

const defaultRegion = "us-east-1"

// Archive keeps PDFs in one bucket. Issued invoices never change, so an
// object is written once and read many times.
type Archive struct {
	s3     *s3.Client
	bucket string
	log    *zap.Logger
}

var _ invoicingapp.DocumentStore = (*Archive)(nil)

// NewArchive builds an S3 client from cfg. No request is made until
// Prepare or the first Get.
func NewArchive(ctx context.Context, cfg config.DocumentsConfig, log *zap.Logger) (*Archive, error) {
	if err := checkSettings(cfg); err != nil {
		return nil, err
	}
	endpoint, err := endpointURL(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		// MinIO and RustFS reject trailing checksums
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})
	return &Archive{s3: client, bucket: cfg.Bucket, log: log.Named("archive")}, nil
}

// checkSettings lists every missing setting at once.
func checkSettings(cfg config.DocumentsConfig) error {
	var missing []error
	for name, v := range map[string]string{
		"documents.bucket":     cfg.Bucket,
		"documents.access_key": cfg.AccessKey,
		"documents.secret_key": cfg.SecretKey,
	} {
		if v == "" {
			missing = append(missing, fmt.Errorf("%s is required", name))
		}
	}
	return errors.Join(missing...)
}

// endpointURL gives a bare host a scheme. An empty endpoint means AWS.
func endpointURL(endpoint string, tls bool) (string, error) {
	if endpoint == "" {
		return "", nil
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Opaque != "" {
		scheme := "http"
		if tls {
			scheme = "https"
		}
		u, err = url.Parse(scheme + "://" + endpoint)
	}
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("documents.endpoint %q is not a host or URL", endpoint)
	}
	return u.String(), nil
}

func (a *Archive) Bucket() string { return a.bucket }

// Prepare creates the bucket unless it exists.
func (a *Archive) Prepare(ctx context.Context) error {
	_, err := a.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &a.bucket})
	switch {
	case err == nil:
		return nil
	case !missing(err):
		return fmt.Errorf("head bucket %s: %w", a.bucket, err)
	}
	a.log.Info("Creating document bucket", zap.String("bucket", a.bucket))
	_, err = a.s3.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: &a.bucket})
	if err != nil && apiCode(err) != "BucketAlreadyOwnedByYou" {
		return fmt.Errorf("create bucket %s: %w", a.bucket, err)
	}
	return nil
}

// Get reads the object at key. A missing object reports found=false.
func (a *Archive) Get(ctx context.Context, key string) (body []byte, found bool, err error) {
	if key == "" {
		return nil, false, errors.New("archive: empty key")
	}
	out, err := a.s3.GetObject(ctx, &s3.GetObjectInput{Bucket: &a.bucket, Key: &key})
	if missing(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	defer out.Body.Close()
	if body, err = io.ReadAll(out.Body); err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return body, true, nil
}

// Put writes body at key.
func (a *Archive) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if key == "" {
		return errors.New("archive: empty key")
	}
	_, err := a.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &a.bucket,
		Key:           &key,
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   &contentType,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	a.log.Debug("Document archived", zap.String("key", key), zap.Int("bytes", len(body)))
	return nil
}

// apiCode is the S3 error code of err, if it carries one.
func apiCode(err error) string {
	var api smithy.APIError
	if errors.As(err, &api) {
		return api.ErrorCode()
	}
	return ""
}

// missing reports the codes S3 and its look-alikes use for an absent
// bucket or key. HEAD answers carry no body, hence the bare NotFound.
func missing(err error) bool {
	switch apiCode(err) {
	case "NotFound", "NoSuchKey", "NoSuchBucket":
		return true
	}
	return false
}
