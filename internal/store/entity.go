package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// Entity provides typed JSON storage for one kind of value under a key prefix.
type Entity[T any] struct {
	store  *Store
	prefix string
}

// NewEntity creates a new Entity instance for type T.
func NewEntity[T any](s *Store, prefix string) *Entity[T] {
	return &Entity[T]{store: s, prefix: prefix}
}

// Prefix is the key prefix shared by every entity of this kind.
func (e *Entity[T]) Prefix() string {
	return e.prefix
}

// Key returns the full storage key for id.
func (e *Entity[T]) Key(id string) string {
	return e.prefix + id
}

// ID strips the prefix from a storage key. ok is false for foreign keys.
func (e *Entity[T]) ID(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, e.prefix)
	return id, ok && id != ""
}

// Put creates or replaces the entity with the given ID.
func (e *Entity[T]) Put(ctx context.Context, id string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}
	return e.store.SetRaw(e.Key(id), data)
}

// Get retrieves an entity by ID.
// Returns ErrNotFound if the entity does not exist.
func (e *Entity[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := e.store.GetRaw(e.Key(id))
	if err != nil {
		return nil, err
	}
	return e.Decode(data)
}

// Decode unmarshals a stored value.
func (e *Entity[T]) Decode(data []byte) (*T, error) {
	var entity T
	if err := json.Unmarshal(data, &entity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity: %w", err)
	}
	return &entity, nil
}

// Delete deletes an entity by ID.
// This operation is idempotent - it does not return an error if the entity does not exist.
func (e *Entity[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.store.Delete(e.Key(id))
}

// List returns an iterator over all entities, keyed by ID.
// Undecodable values are skipped.
func (e *Entity[T]) List(ctx context.Context) iter.Seq2[string, *T] {
	return func(yield func(string, *T) bool) {
		_ = e.store.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(e.prefix)

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
				if ctx.Err() != nil {
					return ctx.Err()
				}

				id, ok := e.ID(string(it.Item().Key()))
				if !ok {
					continue
				}

				var entity T
				err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &entity)
				})
				if err != nil {
					continue
				}

				if !yield(id, &entity) {
					return errStopIteration
				}
			}
			return nil
		})
	}
}

var errStopIteration = errors.New("stop iteration")
