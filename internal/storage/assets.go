package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const sniffLen = 512

// AssetHost publishes locally staged files to object storage and returns
// their public URL.
type AssetHost struct {
	storage *Storage
	baseURL string
}

// NewAssetHost builds an AssetHost. URLs are baseURL/bucket/key; an empty
// baseURL falls back to the backend's public endpoint.
func NewAssetHost(s *Storage, baseURL string) *AssetHost {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = s.PublicBaseURL()
	}
	return &AssetHost{
		storage: s,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Upload stores the file at localPath under prefix and returns its URL.
// The local file is removed when the upload fails.
func (a *AssetHost) Upload(ctx context.Context, prefix, localPath string) (string, error) {
	if strings.TrimSpace(localPath) == "" {
		return "", errors.New("local path is required")
	}

	url, err := a.upload(ctx, prefix, localPath)
	if err != nil {
		if rmErr := os.Remove(localPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = errors.Join(err, fmt.Errorf("remove staged file: %w", rmErr))
		}
		return "", err
	}
	return url, nil
}

func (a *AssetHost) upload(ctx context.Context, prefix, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open staged file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("stat staged file: %w", err)
	}
	if info.IsDir() {
		return "", errors.New("staged path is a directory")
	}

	contentType, err := sniffContentType(file)
	if err != nil {
		return "", err
	}

	key := ObjectKey(prefix, localPath)
	if err := a.storage.Put(ctx, key, file, info.Size(), contentType); err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return a.URL(key), nil
}

// Remove deletes a previously uploaded asset by its URL. URLs that were not
// produced by this host are ignored.
func (a *AssetHost) Remove(ctx context.Context, assetURL string) error {
	prefix := a.baseURL + "/" + a.storage.Bucket() + "/"
	if !strings.HasPrefix(assetURL, prefix) {
		return nil
	}
	key := strings.TrimPrefix(assetURL, prefix)
	if key == "" {
		return nil
	}
	return a.storage.Delete(ctx, key)
}

// URL returns the public URL of key.
func (a *AssetHost) URL(key string) string {
	return a.baseURL + "/" + path.Join(a.storage.Bucket(), key)
}

// ObjectKey returns a collision free key that keeps the file extension.
func ObjectKey(prefix, localPath string) string {
	ext := strings.ToLower(filepath.Ext(localPath))
	name := uuid.NewString() + ext
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func sniffContentType(file *os.File) (string, error) {
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(file, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read staged file: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind staged file: %w", err)
	}
	return http.DetectContentType(buf[:n]), nil
}

