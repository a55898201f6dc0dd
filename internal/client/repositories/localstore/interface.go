package localstore

import "context"

type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// List returns every pair whose key starts with prefix ("" for all).
	List(ctx context.Context, prefix string) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
