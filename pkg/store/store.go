package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Store errors.
var (
	ErrNotFound        = errors.New("timer definition not found")
	ErrInvalidDuration = errors.New("timer duration must be greater than 0 seconds")
	ErrInvalidName     = errors.New("timer name must not be empty")
)

// Definition is a persisted timer.
type Definition struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Duration  int       `json:"duration"` // seconds
	SoundID   string    `json:"sound_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefinitionInput carries the writable fields of a Definition.
type DefinitionInput struct {
	Name     string `json:"name"`
	Duration int    `json:"duration"`
	SoundID  string `json:"sound_id,omitempty"`
}

// Validate checks the input the same way for create and update.
func (in DefinitionInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrInvalidName
	}
	if in.Duration <= 0 {
		return ErrInvalidDuration
	}
	return nil
}

// Store is the full CRUD surface for timer definitions.
type Store interface {
	List(ctx context.Context) ([]Definition, error)
	Get(ctx context.Context, id string) (Definition, error)
	Create(ctx context.Context, in DefinitionInput) (Definition, error)
	Update(ctx context.Context, id string, in DefinitionInput) (Definition, error)
	UpdateDuration(ctx context.Context, id string, seconds int) error
	Delete(ctx context.Context, id string) error
	Close() error
}
