// Package storage provides the key-value persistence boundary used by carts
// and the backends that implement it.
package storage

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
)

// PersistentStore is a durable string key-value store. Get reports whether the
// key exists; a missing key is not an error.
type PersistentStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Write is one entry of a batch. Delete removes Key instead of setting Value.
type Write struct {
	Key    string
	Value  string
	Delete bool
}

// BatchWriter is implemented by stores that can apply several writes so that
// either all of them land or none do.
type BatchWriter interface {
	WriteBatch(ctx context.Context, writes []Write) error
}

// WriteBatch applies writes through store's BatchWriter when it has one, and
// one key at a time otherwise. Failures are reported as *KeyError.
func WriteBatch(ctx context.Context, store PersistentStore, writes []Write) error {
	if len(writes) == 0 {
		return nil
	}
	if bw, ok := store.(BatchWriter); ok {
		err := bw.WriteBatch(ctx, writes)
		if err == nil {
			return nil
		}
		var keyErr *KeyError
		if errors.As(err, &keyErr) {
			return err
		}
		return &KeyError{Op: "write", Key: writes[0].Key, Err: err}
	}

	for _, w := range writes {
		if w.Delete {
			if err := store.Delete(ctx, w.Key); err != nil {
				return &KeyError{Op: "delete", Key: w.Key, Err: err}
			}
			continue
		}
		if err := store.Set(ctx, w.Key, w.Value); err != nil {
			return &KeyError{Op: "write", Key: w.Key, Err: err}
		}
	}
	return nil
}

// Namespaced prefixes every key of an underlying store.
type Namespaced struct {
	inner  PersistentStore
	prefix string
}

// Namespace scopes store to prefix followed by ":". The separator is always
// added, so "cart:a" and "cart:a:" name different namespaces.
func Namespace(store PersistentStore, prefix string) *Namespaced {
	if prefix != "" {
		prefix += ":"
	}
	return &Namespaced{inner: store, prefix: prefix}
}

func (n *Namespaced) Prefix() string { return n.prefix }

func (n *Namespaced) Get(ctx context.Context, key string) (string, bool, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *Namespaced) Set(ctx context.Context, key, value string) error {
	return n.inner.Set(ctx, n.prefix+key, value)
}

func (n *Namespaced) Delete(ctx context.Context, key string) error {
	return n.inner.Delete(ctx, n.prefix+key)
}

// WriteBatch prefixes the keys and hands the batch to the inner store.
func (n *Namespaced) WriteBatch(ctx context.Context, writes []Write) error {
	prefixed := make([]Write, len(writes))
	for i, w := range writes {
		w.Key = n.prefix + w.Key
		prefixed[i] = w
	}
	err := WriteBatch(ctx, n.inner, prefixed)
	var keyErr *KeyError
	if errors.As(err, &keyErr) {
		return &KeyError{Op: keyErr.Op, Key: strings.TrimPrefix(keyErr.Key, n.prefix), Err: keyErr.Err}
	}
	return err
}
