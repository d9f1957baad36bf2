package repl

import (
	"os"
	"strings"

	"github.com/peterh/liner"
	"go.uber.org/zap"
)

// Terminal reads lines with history and line editing.
type Terminal struct {
	line        *liner.State
	historyFile string
	logger      *zap.Logger
}

// NewTerminal takes over the controlling terminal. historyFile may be empty
// to disable history persistence.
func NewTerminal(historyFile string, logger *zap.Logger) *Terminal {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	t := &Terminal{line: line, historyFile: historyFile, logger: logger}
	if historyFile != "" {
		if f, err := os.Open(historyFile); err == nil {
			if _, err := line.ReadHistory(f); err != nil {
				logger.Debug("Failed to read history", zap.Error(err))
			}
			f.Close()
		}
	}
	return t
}

func (t *Terminal) Prompt(prompt string) (string, error) {
	input, err := t.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		t.line.AppendHistory(input)
	}
	return input, nil
}

// Close writes the history file and restores the terminal.
func (t *Terminal) Close() error {
	if t.historyFile != "" {
		f, err := os.OpenFile(t.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			t.logger.Warn("Failed to save history", zap.Error(err), zap.String("path", t.historyFile))
		} else {
			if _, err := t.line.WriteHistory(f); err != nil {
				t.logger.Warn("Failed to write history", zap.Error(err))
			}
			f.Close()
		}
	}
	return t.line.Close()
}
