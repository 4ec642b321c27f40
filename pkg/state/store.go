// Package state stores per-session values (registration drafts, carts,
// pending uploads) behind a small key/value interface.
package state

import (
	"context"
	"errors"
	"time"
)

var (
	ErrKeyNotFound = errors.New("state: key not found")
	ErrStoreClosed = errors.New("state: store is closed")
	ErrInvalidData = errors.New("state: invalid data format")
)

// Store is a byte-oriented key/value store with optional expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	// Keys returns the live keys matching a glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)

	Close() error
}

// Bucket stores values of one type under a key prefix, encoded with a
// Codec. The zero TTL of the bucket means entries never expire.
type Bucket[T any] struct {
	store  Store
	codec  Codec
	prefix string
	ttl    time.Duration
}

// NewBucket creates a bucket over store. Keys are stored as prefix+key.
func NewBucket[T any](store Store, prefix string, ttl time.Duration) *Bucket[T] {
	return &Bucket[T]{
		store:  store,
		codec:  NewMsgPackCodec(),
		prefix: prefix,
		ttl:    ttl,
	}
}

// WithCodec replaces the default msgpack codec.
func (b *Bucket[T]) WithCodec(c Codec) *Bucket[T] {
	b.codec = c
	return b
}

// Load decodes the value stored under key.
func (b *Bucket[T]) Load(ctx context.Context, key string) (T, error) {
	var v T
	data, err := b.store.Get(ctx, b.prefix+key)
	if err != nil {
		return v, err
	}
	if err := b.codec.Unmarshal(data, &v); err != nil {
		return v, err
	}
	return v, nil
}

// Save encodes v and stores it under key, refreshing the bucket TTL.
func (b *Bucket[T]) Save(ctx context.Context, key string, v T) error {
	data, err := b.codec.Marshal(v)
	if err != nil {
		return err
	}
	return b.store.Set(ctx, b.prefix+key, data, b.ttl)
}

// Take loads the value under key and deletes it.
func (b *Bucket[T]) Take(ctx context.Context, key string) (T, error) {
	v, err := b.Load(ctx, key)
	if err != nil {
		return v, err
	}
	return v, b.store.Delete(ctx, b.prefix+key)
}

// Delete removes key.
func (b *Bucket[T]) Delete(ctx context.Context, key string) error {
	return b.store.Delete(ctx, b.prefix+key)
}

// Keys lists the bucket's keys without the prefix.
func (b *Bucket[T]) Keys(ctx context.Context) ([]string, error) {
	keys, err := b.store.Keys(ctx, b.prefix+"*")
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		keys[i] = k[len(b.prefix):]
	}
	return keys, nil
}
