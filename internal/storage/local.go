package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes images under root, mirroring the ref layout
// uploads/<owner>/<task>/image.<ext>.
type LocalStore struct {
	root     string
	baseURL  string
	maxBytes int64
}

func NewLocalStore(root, baseURL string, maxBytes int64) *LocalStore {
	return &LocalStore{root: root, baseURL: strings.TrimSuffix(baseURL, "/"), maxBytes: maxBytes}
}

func (s *LocalStore) Validate(data []byte, declaredMIME, filename string) (Image, error) {
	return ValidateImage(data, declaredMIME, filename, s.maxBytes)
}

func (s *LocalStore) Save(ctx context.Context, ownerID, taskID int64, data []byte, declaredMIME, filename string) (string, error) {
	img, err := s.Validate(data, declaredMIME, filename)
	if err != nil {
		return "", err
	}

	ref := objectKey(ownerID, taskID, img.Ext)
	full, err := s.path(ref)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return ref, nil
}

// Delete removes the file and, when it was the last one, the task directory.
func (s *LocalStore) Delete(ctx context.Context, ref string) error {
	full, err := s.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove image: %w", err)
	}

	dir := filepath.Dir(full)
	entries, err := os.ReadDir(dir)
	if err == nil && len(entries) == 0 {
		_ = os.Remove(dir)
	}
	return nil
}

func (s *LocalStore) URL(ref string) string {
	return s.baseURL + "/" + ref
}

// path maps a ref onto the disk, refusing anything that escapes root.
func (s *LocalStore) path(ref string) (string, error) {
	rel, ok := strings.CutPrefix(filepath.ToSlash(ref), RefPrefix+"/")
	if !ok {
		return "", fmt.Errorf("image ref %q outside %s/", ref, RefPrefix)
	}
	full := filepath.Join(s.root, filepath.FromSlash(rel))
	root := filepath.Clean(s.root)
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", fmt.Errorf("image ref %q escapes upload root", ref)
	}
	return full, nil
}
