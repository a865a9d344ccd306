package kv

import "context"

type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
	// WithinTx runs fn against a repository whose writes become visible
	// together when fn returns nil, and are discarded otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}
