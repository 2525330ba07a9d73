package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrCacheMiss = errors.New("cache: key not found")

// Service is the key/value store behind the correlation inputs. Values are
// stored as JSON unless they are strings.
type Service interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Get(ctx context.Context, key string, dest any) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (bool, error)
	Increment(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) (bool, error)
	Close() error
}

func encode(value any) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("cache encode: %w", err)
		}
		return b, nil
	}
}

func decode(data []byte, dest any) error {
	if s, ok := dest.(*string); ok {
		*s = string(data)
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache decode: %w", err)
	}
	return nil
}
