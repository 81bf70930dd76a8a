package blob

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tomerlieber/docflow/internal/apperr"
)

// FilesystemStore is the production Store, rooted at a directory on local
// disk. The example pack carries no Go S3/MinIO client, so this is the
// grounded stand-in for the object-store component (see DESIGN.md).
type FilesystemStore struct {
	root string
}

// NewFilesystemStore creates root (and any missing parents) if needed.
func NewFilesystemStore(root string) (*FilesystemStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "create blob root", err)
	}
	return &FilesystemStore{root: root}, nil
}

func (s *FilesystemStore) resolve(path string) (string, error) {
	root := filepath.Clean(s.root)
	full := filepath.Join(root, path)
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", apperr.New(apperr.KindValidation, "blob path escapes store root")
	}
	return full, nil
}

func (s *FilesystemStore) Put(ctx context.Context, path string, data io.Reader) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return apperr.Wrap(apperr.KindTransient, "create blob directory", err)
	}
	tmp := full + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return apperr.Wrap(apperr.KindTransient, "create temp blob file", err)
	}
	if _, err := io.Copy(f, data); err != nil {
		f.Close()
		os.Remove(tmp)
		return apperr.Wrap(apperr.KindTransient, "write blob", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return apperr.Wrap(apperr.KindTransient, "close blob file", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return apperr.Wrap(apperr.KindTransient, "finalize blob write", err)
	}
	return nil
}

func (s *FilesystemStore) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.Wrap(apperr.KindNotFound, "blob not found", err)
		}
		return nil, apperr.Wrap(apperr.KindTransient, "open blob", err)
	}
	return f, nil
}

func (s *FilesystemStore) Delete(ctx context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return apperr.Wrap(apperr.KindTransient, "delete blob", err)
	}
	return nil
}

func (s *FilesystemStore) Exists(ctx context.Context, path string) (bool, error) {
	full, err := s.resolve(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, apperr.Wrap(apperr.KindTransient, "stat blob", err)
}
