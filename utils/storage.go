package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// StoredObject describes an uploaded export.
type StoredObject struct {
	Bucket    string    `json:"bucket"`
	ObjectKey string    `json:"objectKey"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// StorageEnabled reports whether exports can be uploaded (GCS_BUCKET set).
func StorageEnabled() bool {
	return strings.TrimSpace(os.Getenv("GCS_BUCKET")) != ""
}

// getGoogleClient prefers ADC; GCS_CREDENTIALS_JSON overrides it (local runs).
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

// UploadExport writes data to GCS_BUCKET/objectKey and returns a V4 signed GET url valid for expires.
func UploadExport(ctx context.Context, objectKey, contentType string, data []byte, expires time.Duration) (*StoredObject, error) {
	bucketName := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucketName == "" {
		return nil, errors.New("GCS_BUCKET is required")
	}

	client, err := getGoogleClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	bucket := client.Bucket(bucketName)
	wc := bucket.Object(objectKey).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return nil, fmt.Errorf("upload %s: %w", objectKey, err)
	}
	if err := wc.Close(); err != nil {
		return nil, fmt.Errorf("upload %s: %w", objectKey, err)
	}

	expiresAt := time.Now().Add(expires)
	url, err := bucket.SignedURL(objectKey, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: expiresAt,
	})
	if err != nil {
		return nil, err
	}
	return &StoredObject{Bucket: bucketName, ObjectKey: objectKey, URL: url, ExpiresAt: expiresAt}, nil
}
