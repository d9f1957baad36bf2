package repl

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/RichardoC/neurosci-ai/internal/models"
	"github.com/charmbracelet/glamour"
	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
)

// FormatSize renders a byte count as B, KB or MB with one decimal.
func FormatSize(bytes int64) string {
	switch {
	case bytes < 1024:
		return fmt.Sprintf("%d B", bytes)
	case bytes < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	}
}

// LoadUpload reads path into a staged upload, detecting its content type
// from the payload.
func LoadUpload(path string) (models.Upload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.Upload{}, errors.Wrapf(err, "cannot attach %s", path)
	}
	if info.IsDir() {
		return models.Upload{}, errors.Errorf("cannot attach %s: is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Upload{}, errors.Wrapf(err, "cannot read %s", path)
	}
	return models.Upload{
		Name:        filepath.Base(path),
		ContentType: mimetype.Detect(data).String(),
		Size:        int64(len(data)),
		Data:        data,
		Path:        path,
	}, nil
}

// Renderer turns reply text into terminal output.
type Renderer interface {
	Render(text string) string
}

// PlainRenderer prints replies unchanged.
type PlainRenderer struct{}

func (PlainRenderer) Render(text string) string { return text }

// MarkdownRenderer renders replies with glamour, falling back to the raw
// text when rendering fails.
type MarkdownRenderer struct {
	tr *glamour.TermRenderer
}

func NewMarkdownRenderer(width int) (*MarkdownRenderer, error) {
	tr, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create markdown renderer")
	}
	return &MarkdownRenderer{tr: tr}, nil
}

func (m *MarkdownRenderer) Render(text string) string {
	out, err := m.tr.Render(text)
	if err != nil {
		return text
	}
	return out
}
