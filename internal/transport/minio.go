package transport

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/maneesh/discloud/internal/apperr"
	"github.com/maneesh/discloud/internal/logging"
	"github.com/maneesh/discloud/internal/models"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const filenameMetaKey = "Filename"

// MinioClient emulates the chat transport on an S3-compatible bucket: each
// message is one object at "<channelID>/<messageID>", and attachment URLs are
// presigned GETs that expire after urlTTL.
type MinioClient struct {
	client     *minio.Client
	bucketName string
	urlTTL     time.Duration
}

// NewMinioClient initializes a new MinIO client
func NewMinioClient(endpoint, accessKey, secretKey, bucketName string, useSSL bool, urlTTL time.Duration) (*MinioClient, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	if urlTTL <= 0 {
		urlTTL = time.Hour
	}
	mc := &MinioClient{
		client:     client,
		bucketName: bucketName,
		urlTTL:     urlTTL,
	}

	// Ensure bucket exists
	ctx := context.Background()
	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		logging.Infof("Creating bucket: %s", bucketName)
		err = client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		logging.Infof("Bucket %s created successfully", bucketName)
	}

	return mc, nil
}

func objectKey(channelID, messageID string) string {
	return path.Join(channelID, messageID)
}

// Send uploads data as a new object under a fresh message id
func (mc *MinioClient) Send(ctx context.Context, channelID string, upload Upload) (string, error) {
	messageID := uuid.NewString()
	key := objectKey(channelID, messageID)

	ctx, span := tracer.Start(ctx, "minio.send",
		trace.WithAttributes(
			attribute.String("object_key", key),
			attribute.Int("size_bytes", len(upload.Data)),
		),
	)
	defer span.End()

	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	reader := bytes.NewReader(upload.Data)
	_, err := mc.client.PutObject(ctx, mc.bucketName, key, reader, int64(len(upload.Data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{filenameMetaKey: url.QueryEscape(upload.Name)},
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to upload object: %w: %v", apperr.ErrTransportUnavailable, err)
	}

	span.SetAttributes(attribute.Bool("upload_success", true))
	return messageID, nil
}

// Attachment stats the object and presigns a download URL for it
func (mc *MinioClient) Attachment(ctx context.Context, channelID, messageID string) (*models.Attachment, error) {
	key := objectKey(channelID, messageID)
	ctx, span := tracer.Start(ctx, "minio.attachment",
		trace.WithAttributes(
			attribute.String("object_key", key),
		),
	)
	defer span.End()

	info, err := mc.client.StatObject(ctx, mc.bucketName, key, minio.StatObjectOptions{})
	if err != nil {
		span.RecordError(err)
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("object %s: %w", key, ErrMessageNotFound)
		}
		return nil, fmt.Errorf("failed to stat object: %w: %v", apperr.ErrTransportUnavailable, err)
	}

	u, err := mc.client.PresignedGetObject(ctx, mc.bucketName, key, mc.urlTTL, url.Values{})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to presign object: %w: %v", apperr.ErrTransportUnavailable, err)
	}

	filename, err := url.QueryUnescape(info.UserMetadata[filenameMetaKey])
	if err != nil || filename == "" {
		filename = messageID
	}

	return &models.Attachment{
		MessageID:   messageID,
		ChannelID:   channelID,
		URL:         u.String(),
		Filename:    filename,
		ContentType: info.ContentType,
		Size:        info.Size,
	}, nil
}

// Delete removes the object. A missing object is not reported.
func (mc *MinioClient) Delete(ctx context.Context, channelID, messageID string) error {
	key := objectKey(channelID, messageID)
	ctx, span := tracer.Start(ctx, "minio.delete",
		trace.WithAttributes(
			attribute.String("object_key", key),
		),
	)
	defer span.End()

	err := mc.client.RemoveObject(ctx, mc.bucketName, key, minio.RemoveObjectOptions{})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete object: %w: %v", apperr.ErrTransportUnavailable, err)
	}

	return nil
}
