package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/RichardoC/neurosci-ai/internal/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// SlotKey is the name of the durable slot that holds the conversation collection.
const SlotKey = "chats"

// ConversationRepository persists the whole ordered conversation collection
// as a single value.
type ConversationRepository interface {
	// Load returns the stored collection, or an empty one if the slot is
	// absent or cannot be parsed. An error means the backing medium failed.
	Load(ctx context.Context) ([]models.Conversation, error)
	// Save overwrites the slot with convs.
	Save(ctx context.Context, convs []models.Conversation) error
	Close() error
}

// Open creates a repository for the named driver: "sqlite", "json" or "memory".
func Open(driver, path string, logger *zap.Logger) (ConversationRepository, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(path, logger)
	case "json":
		return NewFile(path, logger), nil
	case "memory":
		return NewMemory(logger), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

func encode(convs []models.Conversation) ([]byte, error) {
	if convs == nil {
		convs = []models.Conversation{}
	}
	data, err := json.Marshal(convs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode conversations")
	}
	return data, nil
}

// decode parses a slot value. Date fields are revived into time.Time by
// their declared types; both RFC 3339 with nanoseconds and the browser's
// millisecond form are accepted. Every other field, including a role this
// package does not know, passes through unchanged.
func decode(data []byte) ([]models.Conversation, error) {
	var convs []models.Conversation
	if err := json.Unmarshal(data, &convs); err != nil {
		return nil, errors.Wrap(err, "failed to decode conversations")
	}
	for i := range convs {
		if convs[i].Messages == nil {
			convs[i].Messages = []models.Message{}
		}
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	return convs, nil
}

// decodeOrEmpty implements the fail-closed half of Load shared by every backend.
func decodeOrEmpty(data []byte, logger *zap.Logger, source string) []models.Conversation {
	convs, err := decode(data)
	if err != nil {
		logger.Warn("Discarding unparsable conversation slot",
			zap.Error(err),
			zap.String("source", source))
		return []models.Conversation{}
	}
	return convs
}
