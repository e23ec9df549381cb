package kvstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrKeyNotFound is returned by Get for keys with no stored value.
// Callers on read paths generally treat any Store error as a cache miss.
var ErrKeyNotFound = errors.New("key not found")

// Store is the durable key -> string store used for all locally persisted
// state (plans, completion sets, water logs). Values are JSON strings.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// UserKey namespaces a base key per user, so that cached data of one
// account can never be read back for another.
func UserKey(baseKey, userID string) string {
	return fmt.Sprintf("%s::%s", baseKey, userID)
}
