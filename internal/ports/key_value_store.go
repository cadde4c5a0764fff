package ports

import "context"

// KeyValueStore is one visitor's origin-scoped storage. Get returns an error
// wrapping domain.ErrValueNotFound when the key is absent.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}

// VisitorStorage hands out the key/value namespace of one visitor.
type VisitorStorage interface {
	ForVisitor(visitorID string) KeyValueStore
}
