package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// GCSUploader is an explicitly constructed handle; the client is created on first upload.
type GCSUploader struct {
	Bucket string
	Prefix string

	mu     sync.Mutex
	client *storage.Client
}

func NewGCSUploaderFromEnv() (*GCSUploader, error) {
	bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucket == "" {
		return nil, errors.New("GCS_BUCKET is required")
	}
	return &GCSUploader{Bucket: bucket, Prefix: strings.Trim(os.Getenv("GCS_PREFIX"), "/")}, nil
}

// getGoogleClient initializes a Google Cloud Storage client
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	// Prefer ADC (GOOGLE_APPLICATION_CREDENTIALS).
	// If you need to provide explicit JSON (e.g. locally), set GCS_CREDENTIALS_JSON.
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

func (u *GCSUploader) getClient(ctx context.Context) (*storage.Client, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.client != nil {
		return u.client, nil
	}
	client, err := getGoogleClient(ctx)
	if err != nil {
		return nil, err
	}
	u.client = client
	return client, nil
}

// ObjectName joins the configured prefix with name.
func (u *GCSUploader) ObjectName(name string) string {
	if u.Prefix == "" {
		return name
	}
	return u.Prefix + "/" + name
}

func (u *GCSUploader) UploadBytes(ctx context.Context, objectName string, data []byte, contentType string) error {
	client, err := u.getClient(ctx)
	if err != nil {
		return err
	}

	wc := client.Bucket(u.Bucket).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to upload bytes to Google Cloud Storage: %v", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %v", err)
	}
	return nil
}

// UploadFile mirrors a local file under its base name and returns the object name.
func (u *GCSUploader) UploadFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	objectName := u.ObjectName(filepath.Base(path))
	contentType := "application/octet-stream"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		contentType = XLSXContentType
	case ".zip":
		contentType = "application/zip"
	}
	if err := u.UploadBytes(ctx, objectName, data, contentType); err != nil {
		return "", err
	}
	return objectName, nil
}

func (u *GCSUploader) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.client == nil {
		return nil
	}
	err := u.client.Close()
	u.client = nil
	return err
}
