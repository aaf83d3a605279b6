// Package storage persists generated image assets to durable file storage
// and derives the basic metadata (dimensions) recorded on the message row.
package storage

import (
	db_models "bardchat-backend/internal/models"
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png" // generated assets are PNG
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FileStore writes image assets under a single media directory. Stored paths
// are relative to the directory and served under the public /media prefix.
type FileStore struct {
	dir        string
	httpClient *http.Client
}

// NewFileStore creates the media directory if needed and returns a store.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating media directory %s: %w", dir, err)
	}
	return &FileStore{
		dir:        dir,
		httpClient: &http.Client{},
	}, nil
}

// Dir returns the media directory the store writes into.
func (fs *FileStore) Dir() string {
	return fs.dir
}

// SaveImageFromURL fetches generated image bytes over HTTP and writes them
// to durable storage, returning the stored path and dimensions. A
// non-success response or missing body is fatal; fetches are never retried.
func (fs *FileStore) SaveImageFromURL(ctx context.Context, url string) (*db_models.ImageMeta, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error fetching image: %w", err)
	}

	resp, err := fs.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("error fetching image: unexpected status %s", resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error fetching image: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("error fetching image: empty body")
	}

	return fs.SaveImage(raw)
}

// SaveImage writes image bytes to the media directory under a fresh name and
// returns the stored path with decoded dimensions.
func (fs *FileStore) SaveImage(raw []byte) (*db_models.ImageMeta, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decoding image dimensions: %w", err)
	}

	name := uuid.New().String() + ".png"
	path := filepath.Join(fs.dir, name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return nil, fmt.Errorf("writing image %s: %w", path, err)
	}

	log.Printf("[FileStore] Wrote image %s (%dx%d, %d bytes)", name, cfg.Width, cfg.Height, len(raw))

	return &db_models.ImageMeta{
		Path:   name,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}
