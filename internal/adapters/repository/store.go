// Package repository is the persistence gateway over the reports and users
// collections, backed by either a local key-value store or a remote
// document store.
package repository

import (
	"context"
	"encoding/json"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/model"
)

// Well-known local keys holding whole-collection JSON arrays.
const (
	KeyReports = model.CollectionReports
	KeyUsers   = model.CollectionUsers
)

// KVStore is the local-only store: get/set of whole-collection blobs.
type KVStore interface {
	// Get returns the blob stored under key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
}

// Event is one item of a change stream. A non-nil Err is terminal: the
// stream sends it once and then closes.
type Event struct {
	Change model.Change
	Err    error
}

// DocumentStore is a remote document service keyed by collection and id.
type DocumentStore interface {
	// Name identifies the backend in logs, metrics and errors.
	Name() string

	// List returns every document of a collection in no particular order.
	List(ctx context.Context, collection string) ([]json.RawMessage, error)

	// Get returns one document or ErrNotFound.
	Get(ctx context.Context, collection, id string) (json.RawMessage, error)

	// Set creates or replaces a document.
	Set(ctx context.Context, collection, id string, doc json.RawMessage) error

	// Delete removes documents by id and returns how many existed.
	// Missing ids are not an error.
	Delete(ctx context.Context, collection string, ids ...string) (int, error)

	// Replace atomically swaps the whole collection for docs (id -> document).
	Replace(ctx context.Context, collection string, docs map[string]json.RawMessage) error

	// Watch streams committed changes to a collection until ctx ends or the
	// backend disconnects.
	Watch(ctx context.Context, collection string) (<-chan Event, error)

	Close() error
}

// Kind tags which backend a Backend holds.
type Kind int

const (
	KindLocal Kind = iota
	KindRemote
)

func (k Kind) String() string {
	if k == KindRemote {
		return "remote"
	}
	return "local"
}

// Backend is either a local KVStore or a remote DocumentStore, chosen once
// at startup.
type Backend struct {
	kind   Kind
	local  KVStore
	remote DocumentStore
}

// LocalBackend wraps a local store.
func LocalBackend(kv KVStore) Backend {
	return Backend{kind: KindLocal, local: kv}
}

// RemoteBackend wraps a remote document store.
func RemoteBackend(ds DocumentStore) Backend {
	return Backend{kind: KindRemote, remote: ds}
}

// Kind reports which variant is held.
func (b Backend) Kind() Kind { return b.kind }

// Name is "local" or the remote store's name.
func (b Backend) Name() string {
	if b.kind == KindRemote {
		return b.remote.Name()
	}
	return KindLocal.String()
}

// SupportsPush reports whether the backend emits change notifications.
func (b Backend) SupportsPush() bool { return b.kind == KindRemote }
