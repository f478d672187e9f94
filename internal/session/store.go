// Package session keeps inspection sessions between HTTP requests.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jo-hoe/signtracker/internal/inspection"
)

var ErrNotFound = errors.New("session not found")

type Store interface {
	Get(ctx context.Context, id string) (*inspection.Session, error)
	Save(ctx context.Context, s *inspection.Session) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// NewStore returns the store named by storeType. ttl bounds how long an idle
// session is kept; zero keeps it until deleted.
func NewStore(storeType, address string, ttl time.Duration) (Store, error) {
	switch storeType {
	case "", "memory":
		return NewMemoryStore(ttl), nil
	case "redis":
		return NewRedisStore(address, ttl)
	default:
		return nil, fmt.Errorf("unsupported session store: %s", storeType)
	}
}
