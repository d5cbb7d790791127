package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

func ConnectRedis(addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return rdb, nil
}

// Store encapsula leituras e escritas simples no Redis.
// Miss é sinalizado com ok=false, nunca com erro.
type Store struct {
	R *redis.Client
}

func NewStore(r *redis.Client) *Store { return &Store{R: r} }

func (s *Store) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.R.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *Store) SetBytes(ctx context.Context, key string, v []byte, ttl time.Duration) error {
	return s.R.Set(ctx, key, v, ttl).Err()
}

func (s *Store) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	b, ok, err := s.GetBytes(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (s *Store) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.SetBytes(ctx, key, b, ttl)
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.R.Del(ctx, keys...).Err()
}

// DelPrefix remove as chaves com o prefixo usando SCAN (nunca KEYS)
func (s *Store) DelPrefix(ctx context.Context, prefix string) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := s.R.Scan(ctx, cursor, prefix+"*", 200).Result()
		if err != nil {
			return removed, err
		}
		if len(keys) > 0 {
			n, err := s.R.Del(ctx, keys...).Result()
			if err != nil {
				return removed, err
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}
