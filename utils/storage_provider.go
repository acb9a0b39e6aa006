package utils

import (
	"os"
	"strings"
)

const (
	StorageProviderNone = "none"
	StorageProviderGCS  = "gcs"
)

// GetStorageProvider selects where generated spreadsheets are mirrored. Local files are always written.
func GetStorageProvider() string {
	provider := strings.TrimSpace(strings.ToLower(os.Getenv("STORAGE_PROVIDER")))
	if provider == "" {
		if strings.TrimSpace(os.Getenv("GCS_BUCKET")) != "" {
			return StorageProviderGCS
		}
		return StorageProviderNone
	}
	return provider
}
