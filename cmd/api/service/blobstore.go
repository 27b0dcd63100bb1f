package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/parkvision/visionserve/common/apierr"
	"github.com/parkvision/visionserve/common/logger"
	"github.com/parkvision/visionserve/common/retrypolicy"
)

// BlobStore implements C2: Put/Get/Delete of original and annotated pixel
// blobs against an S3-compatible object store. Grounded on
// vaarunx-distributed-classification-system/backend-service/services/s3.go
// (session.Must(session.NewSession(...)) + s3.New(sess)), generalized from
// a single CopyObject/presign helper into full Put/Get/Delete wrapped in
// the shared retry policy (§4.2).
type BlobStore struct {
	client   *s3.S3
	uploader *s3manager.Uploader
	bucket   string
	log      *logger.Logger
	retry    retrypolicy.Policy
}

// NewBlobStore constructs a BlobStore against the configured bucket/region,
// optionally pointed at an S3-compatible endpoint override (e.g. MinIO).
func NewBlobStore(bucket, region, endpointOverride, accessKeyID, secretAccessKey string, log *logger.Logger, retry retrypolicy.Policy) (*BlobStore, error) {
	cfg := &aws.Config{Region: aws.String(region)}
	if endpointOverride != "" {
		cfg.Endpoint = aws.String(endpointOverride)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	if accessKeyID != "" {
		cfg.Credentials = credentials.NewStaticCredentials(accessKeyID, secretAccessKey, "")
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("create blob store session: %w", err)
	}

	client := s3.New(sess)
	return &BlobStore{
		client:   client,
		uploader: s3manager.NewUploaderWithClient(client),
		bucket:   bucket,
		log:      log,
		retry:    retry,
	}, nil
}

// Put writes content under objectName, returning the canonical URL. An
// existing object under the same name is left untouched and its URL is
// returned unchanged (idempotent per §4.2).
func (b *BlobStore) Put(ctx context.Context, objectName string, content []byte, mimeType string) (string, error) {
	if exists, err := b.exists(ctx, objectName); err == nil && exists {
		return b.urlFor(objectName), nil
	}

	err := b.retry.Do(ctx, isTransientTransportErr, func(ctx context.Context) error {
		_, uploadErr := b.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
			Bucket:      aws.String(b.bucket),
			Key:         aws.String(objectName),
			Body:        bytes.NewReader(content),
			ContentType: aws.String(mimeType),
		})
		return classifyS3Error(uploadErr)
	})
	if err != nil {
		return "", apierr.Storage(fmt.Sprintf("failed to put blob %s", objectName), err)
	}
	b.log.Debug("blob stored", "object", objectName, "size_bytes", len(content))
	return b.urlFor(objectName), nil
}

// Get reads the bytes for objectName.
func (b *BlobStore) Get(ctx context.Context, objectName string) ([]byte, error) {
	var content []byte
	err := b.retry.Do(ctx, isTransientTransportErr, func(ctx context.Context) error {
		out, getErr := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(objectName),
		})
		if getErr != nil {
			return classifyS3Error(getErr)
		}
		defer out.Body.Close()
		buf := new(bytes.Buffer)
		if _, readErr := buf.ReadFrom(out.Body); readErr != nil {
			return readErr
		}
		content = buf.Bytes()
		return nil
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, apierr.NotFound(fmt.Sprintf("no blob at %s", objectName), nil)
		}
		return nil, apierr.Storage(fmt.Sprintf("failed to get blob %s", objectName), err)
	}
	return content, nil
}

// Delete removes objectName.
func (b *BlobStore) Delete(ctx context.Context, objectName string) error {
	err := b.retry.Do(ctx, isTransientTransportErr, func(ctx context.Context) error {
		_, delErr := b.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(objectName),
		})
		return classifyS3Error(delErr)
	})
	if err != nil {
		return apierr.Storage(fmt.Sprintf("failed to delete blob %s", objectName), err)
	}
	return nil
}

func (b *BlobStore) exists(ctx context.Context, objectName string) (bool, error) {
	_, err := b.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objectName),
	})
	if err == nil {
		return true, nil
	}
	if aerr, ok := err.(awserr.Error); ok && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound") {
		return false, nil
	}
	return false, err
}

func (b *BlobStore) urlFor(objectName string) string {
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", b.bucket, objectName)
}

// classifyS3Error returns the raw AWS SDK error unchanged; the transient
// (connection/5xx/timeout classes, per §4.2) versus terminal decision is
// made by isTransientTransportErr, which the retry policy consults.
func classifyS3Error(err error) error {
	return err
}

func isTransientTransportErr(err error) bool {
	if err == nil {
		return false
	}
	aerr, ok := err.(awserr.Error)
	if !ok {
		return true // connection-level errors (no AWS error code) are transient
	}
	switch aerr.Code() {
	case s3.ErrCodeNoSuchKey, "NotFound", "AccessDenied", "InvalidAccessKeyId":
		return false
	default:
		return true // 5xx/throttling/timeout classes from the SDK
	}
}
