// Package storage provides durable object storage for page images.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// UploadedObject describes one stored page image.
type UploadedObject struct {
	PublicURL  string
	ObjectName string
}

// Uploader is the capability the materializer needs from durable storage.
// Uploads are non-overwriting; callers must generate unique object names.
type Uploader interface {
	Upload(ctx context.Context, localPath, objectName string) (UploadedObject, error)
}

// GCSUploader stores objects in one Google Cloud Storage bucket.
type GCSUploader struct {
	client  *storage.Client
	bucket  string
	timeout time.Duration
}

// NewGCSUploader wraps an existing storage client for the given bucket.
// timeout bounds each individual write attempt.
func NewGCSUploader(client *storage.Client, bucket string, timeout time.Duration) *GCSUploader {
	return &GCSUploader{client: client, bucket: bucket, timeout: timeout}
}

// Upload writes the local file to the bucket under objectName, retrying
// transient failures with exponential backoff. The write carries a
// DoesNotExist precondition; an already-existing object is treated as a
// completed earlier attempt, not a failure.
func (u *GCSUploader) Upload(ctx context.Context, localPath, objectName string) (UploadedObject, error) {
	const maxRetries = 4
	backoff := 1 * time.Second
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		err := u.writeOnce(ctx, localPath, objectName)
		if err == nil {
			return u.object(objectName), nil
		}
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == 412 {
			// Precondition failed: the object landed on a previous attempt.
			slog.Debug("Object already exists, treating upload as complete.", "object", objectName)
			return u.object(objectName), nil
		}

		lastErr = err
		slog.Warn(
			"Upload failed, will retry.",
			"object", objectName,
			"attempt", i+1,
			"maxRetries", maxRetries,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return UploadedObject{}, ctx.Err()
		}
	}
	return UploadedObject{}, fmt.Errorf("upload for %s failed after all retries: %w", objectName, lastErr)
}

func (u *GCSUploader) writeOnce(ctx context.Context, localPath, objectName string) error {
	localFile, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("could not open local file %s: %w", localPath, err)
	}
	defer localFile.Close()

	writeCtx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	writer := u.client.Bucket(u.bucket).Object(objectName).
		If(storage.Conditions{DoesNotExist: true}).
		NewWriter(writeCtx)

	if _, err := io.Copy(writer, localFile); err != nil {
		_ = writer.Close()
		return fmt.Errorf("io.Copy to GCS failed: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

func (u *GCSUploader) object(objectName string) UploadedObject {
	return UploadedObject{
		PublicURL:  fmt.Sprintf("https://storage.googleapis.com/%s/%s", u.bucket, objectName),
		ObjectName: objectName,
	}
}
