package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/browsermob/agent/pkg/log"
	"github.com/spf13/afero"
)

// Capture a screenshot from the calling worker's browser session and write
// it to {RootDir}/{Description}/{tag}.png. Returns the path written.
func (r *Registry) CaptureArtifact(ctx context.Context, tag string) (string, error) {
	c, err := r.Current(ctx)
	if err != nil {
		return "", err
	}
	if c.Session == nil {
		return "", errors.New("session context has no browser session")
	}

	payload, err := c.Session.CaptureScreenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("capture screenshot: %w", err)
	}

	data, err := decodeBase64(payload)
	if err != nil {
		return "", err
	}

	r.mu.RLock()
	fs := r.fs
	r.mu.RUnlock()

	dir := filepath.Join(c.RootDir, sanitize(c.Description))
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create artifact directory: %w", err)
	}

	path := filepath.Join(dir, sanitize(tag)+".png")
	tmpPath := path + ".tmp"

	if err := afero.WriteFile(fs, tmpPath, data, 0644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := fs.Rename(tmpPath, path); err != nil {
		_ = fs.Remove(tmpPath)
		return "", fmt.Errorf("commit artifact: %w", err)
	}

	log.Debug("add - artifact - path:", path)
	return path, nil
}

func decodeBase64(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		_, data, ok := strings.Cut(payload, ",")
		if !ok {
			return nil, errors.New("invalid data url payload")
		}
		payload = data
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode screenshot payload: %w", err)
	}
	if len(decoded) == 0 {
		return nil, errors.New("screenshot payload is empty")
	}
	return decoded, nil
}

// Keep path components inside the artifact root.
func sanitize(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" {
		return "unnamed"
	}
	return name
}
