package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// Version is overridden at build time with -ldflags "-X .../config.Version=x.y.z".
var Version = "1.0.0"

type versionManifest struct {
	Version string `json:"version"`
}

// CheckVersion compares the published version at VERSION_URL with the running build.
// An empty VERSION_URL disables the check.
func CheckVersion(ctx context.Context, client *http.Client) error {
	url := strings.TrimSpace(os.Getenv("VERSION_URL"))
	if url == "" {
		return nil
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("version check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("version check: status %d", resp.StatusCode)
	}
	var manifest versionManifest
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		return fmt.Errorf("version check: %w", err)
	}
	if strings.TrimSpace(manifest.Version) != Version {
		return fmt.Errorf("version %s has expired; download %s", Version, manifest.Version)
	}
	return nil
}

// CheckVersionOrExit terminates the process when the version gate fails.
func CheckVersionOrExit() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := CheckVersion(ctx, nil); err != nil {
		LogError(GetLogger(), "config", "CheckVersionOrExit", "version gate", nil, err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
