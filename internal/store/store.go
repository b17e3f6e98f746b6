package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// Store defines the interface for cohort event storage.
type Store interface {
	AddEvent(ctx context.Context, group string, createdAt time.Time, convertedAt *time.Time) (*Event, error)
	MarkConverted(ctx context.Context, id int64, at time.Time) error
	ListEvents(ctx context.Context, group string) ([]*Event, error)
	GroupStats(ctx context.Context) ([]GroupStats, error)
	Close() error
}
