// Package uploads stores attachment payloads received by the ingestion
// endpoint. Payloads are never forwarded to the completion provider; only
// their original names are.
package uploads

import (
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// DirName is the scratch directory created under the system temp dir.
const DirName = "neurosci-ai-uploads"

type Store interface {
	// Save consumes r and returns where the payload was kept, or "" if it
	// was not kept.
	Save(name string, r io.Reader) (string, error)
}

// DirStore writes each payload to <dir>/<uuid>-<base name>.
type DirStore struct {
	dir string
}

func NewDirStore(dir string) *DirStore {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), DirName)
	}
	return &DirStore{dir: dir}
}

func (s *DirStore) Dir() string { return s.dir }

func (s *DirStore) Save(name string, r io.Reader) (path string, err error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create upload dir %s", s.dir)
	}

	path = filepath.Join(s.dir, uuid.NewString()+"-"+SafeName(name))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", errors.Wrap(err, "failed to create upload file")
	}

	_, cerr := io.Copy(f, r)
	if err = multierr.Append(cerr, f.Close()); err != nil {
		os.Remove(path)
		return "", errors.Wrapf(err, "failed to store %s", name)
	}
	return path, nil
}

// Discard drains payloads without keeping them.
type Discard struct{}

func (Discard) Save(_ string, r io.Reader) (string, error) {
	_, err := io.Copy(io.Discard, r)
	return "", err
}

// SafeName strips any directory components a client may have sent.
func SafeName(name string) string {
	base := filepath.Base(filepath.Clean("/" + filepath.FromSlash(name)))
	if base == "/" || base == "." || base == string(filepath.Separator) {
		return "file"
	}
	return base
}
