// Package evidence stores project evidence objects (images, documents) in
// an S3-compatible object store and enforces the upload policy before any
// bytes leave the process.
package evidence

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"blue-carbon/mrv-portal/mrv-portal-backend/internal/apperrors"
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/config"
)

// Object is a stored evidence object reference.
type Object struct {
	URL string
	Key string
}

// Store is the object-storage boundary consumed by the lifecycle services.
type Store interface {
	Upload(ctx context.Context, folder, contentType string, size int64, body io.Reader) (*Object, error)
	UploadBase64(ctx context.Context, folder, data string) (*Object, error)
	Delete(ctx context.Context, key string) error
}

// S3API is the subset of the S3 client the store needs directly.
type S3API interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type s3Store struct {
	client   S3API
	uploader *manager.Uploader
	cfg      config.StorageConfig
	logger   *zap.Logger
}

// NewStore creates an evidence store over the given S3 client.
func NewStore(client *s3.Client, cfg config.StorageConfig, logger *zap.Logger) Store {
	return &s3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		cfg:      cfg,
		logger:   logger,
	}
}

func (s *s3Store) allowed(contentType string) bool {
	for _, t := range s.cfg.AllowedTypes {
		if strings.EqualFold(strings.TrimSpace(t), contentType) {
			return true
		}
	}
	return false
}

// Upload streams an object into the store after checking the MIME and size
// policy.
func (s *s3Store) Upload(ctx context.Context, folder, contentType string, size int64, body io.Reader) (*Object, error) {
	if !s.allowed(contentType) {
		return nil, apperrors.Invalid(fmt.Sprintf("invalid file type %q, allowed types: %s",
			contentType, strings.Join(s.cfg.AllowedTypes, ", ")))
	}
	if size > s.cfg.MaxUploadSize {
		return nil, apperrors.Invalid(fmt.Sprintf("file exceeds maximum size of %d bytes", s.cfg.MaxUploadSize))
	}

	key := s.objectKey(folder)
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, apperrors.Storage("failed to upload evidence object", err)
	}

	return &Object{URL: s.objectURL(key), Key: key}, nil
}

// UploadBase64 accepts a base64 data URI ("data:image/png;base64,...").
func (s *s3Store) UploadBase64(ctx context.Context, folder, data string) (*Object, error) {
	contentType, payload, err := decodeDataURI(data)
	if err != nil {
		return nil, apperrors.Invalid(err.Error())
	}
	return s.Upload(ctx, folder, contentType, int64(len(payload)), bytes.NewReader(payload))
}

// Delete removes an object. Callers treating deletion as best-effort log
// the returned error and continue.
func (s *s3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return apperrors.Storage("failed to delete evidence object", err)
	}
	return nil
}

func (s *s3Store) objectKey(folder string) string {
	return fmt.Sprintf("%s/%s/%s", s.cfg.KeyPrefix, folder, uuid.NewString())
}

func (s *s3Store) objectURL(key string) string {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimSuffix(s.cfg.PublicBaseURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}

// decodeDataURI splits and decodes a base64 data URI.
func decodeDataURI(data string) (contentType string, payload []byte, err error) {
	if !strings.HasPrefix(data, "data:") {
		return "", nil, fmt.Errorf("image must be a base64 data URI")
	}
	rest := strings.TrimPrefix(data, "data:")
	sep := strings.Index(rest, ";base64,")
	if sep < 0 {
		return "", nil, fmt.Errorf("image must be base64 encoded")
	}
	contentType = rest[:sep]
	payload, err = base64.StdEncoding.DecodeString(rest[sep+len(";base64,"):])
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 image payload: %w", err)
	}
	return contentType, payload, nil
}
