package db

import (
	"context"
	"sync"

	"github.com/RichardoC/neurosci-ai/internal/models"
	"go.uber.org/zap"
)

// MemoryRepository holds the encoded slot in memory. It goes through the
// same codec as the durable backends.
type MemoryRepository struct {
	mu     sync.Mutex
	value  []byte
	saves  int
	logger *zap.Logger
}

func NewMemory(logger *zap.Logger) *MemoryRepository {
	return &MemoryRepository{logger: logger}
}

func (r *MemoryRepository) Load(_ context.Context) ([]models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.value == nil {
		return []models.Conversation{}, nil
	}
	return decodeOrEmpty(r.value, r.logger, "memory"), nil
}

func (r *MemoryRepository) Save(_ context.Context, convs []models.Conversation) error {
	data, err := encode(convs)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.value = data
	r.saves++
	r.mu.Unlock()
	return nil
}

// SetRaw replaces the slot with an arbitrary value.
func (r *MemoryRepository) SetRaw(data []byte) {
	r.mu.Lock()
	r.value = data
	r.mu.Unlock()
}

// Saves reports how many times Save succeeded.
func (r *MemoryRepository) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

func (r *MemoryRepository) Close() error { return nil }
