package db

import (
	"context"
	"os"
	"path/filepath"

	"github.com/RichardoC/neurosci-ai/internal/models"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// FileRepository keeps the conversation slot in a single JSON file.
type FileRepository struct {
	path   string
	logger *zap.Logger
}

func NewFile(path string, logger *zap.Logger) *FileRepository {
	return &FileRepository{path: path, logger: logger}
}

func (r *FileRepository) Load(_ context.Context) ([]models.Conversation, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return []models.Conversation{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", r.path)
	}
	return decodeOrEmpty(data, r.logger, r.path), nil
}

// Save writes to a temp file in the same directory and renames it over the
// slot, so readers never see a partial collection.
func (r *FileRepository) Save(_ context.Context, convs []models.Conversation) (err error) {
	data, err := encode(convs)
	if err != nil {
		return err
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	_, werr := tmp.Write(data)
	serr := tmp.Sync()
	if err = multierr.Combine(werr, serr, tmp.Close()); err != nil {
		return errors.Wrap(err, "failed to write conversation slot")
	}

	if err = os.Rename(tmp.Name(), r.path); err != nil {
		return errors.Wrapf(err, "failed to replace %s", r.path)
	}
	return nil
}

func (r *FileRepository) Close() error { return nil }
