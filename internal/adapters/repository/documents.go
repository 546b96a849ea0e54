package repository

import (
	"context"
	"encoding/json"
	"fmt"
)

// The helpers below are the only place that branches on the backend kind.

type docHeader struct {
	ID string `json:"id"`
}

func docID(doc json.RawMessage) string {
	var h docHeader
	if err := json.Unmarshal(doc, &h); err != nil {
		return ""
	}
	return h.ID
}

func (g *Gateway) list(ctx context.Context, collection string) ([]json.RawMessage, error) {
	if g.backend.kind == KindRemote {
		return g.backend.remote.List(ctx, collection)
	}
	return g.loadLocal(ctx, collection)
}

func (g *Gateway) get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	if g.backend.kind == KindRemote {
		return g.backend.remote.Get(ctx, collection, id)
	}
	docs, err := g.loadLocal(ctx, collection)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if docID(d) == id {
			return d, nil
		}
	}
	return nil, ErrNotFound
}

// set upserts by id. Locally a new id is appended, an existing one is
// replaced in place.
func (g *Gateway) set(ctx context.Context, collection, id string, doc json.RawMessage) error {
	if g.backend.kind == KindRemote {
		return g.backend.remote.Set(ctx, collection, id, doc)
	}
	g.localMu.Lock()
	defer g.localMu.Unlock()

	docs, err := g.loadLocal(ctx, collection)
	if err != nil {
		return err
	}
	return g.storeLocal(ctx, collection, upsert(docs, id, doc))
}

// modify rewrites one existing document with fn. Locally the read and the
// write happen under one lock so a concurrent delete is not undone. When fn
// returns a nil document nothing is written.
func (g *Gateway) modify(ctx context.Context, collection, id string, fn func(json.RawMessage) (json.RawMessage, error)) error {
	if g.backend.kind == KindRemote {
		cur, err := g.backend.remote.Get(ctx, collection, id)
		if err != nil {
			return err
		}
		next, err := fn(cur)
		if err != nil || next == nil {
			return err
		}
		return g.backend.remote.Set(ctx, collection, id, next)
	}
	g.localMu.Lock()
	defer g.localMu.Unlock()

	docs, err := g.loadLocal(ctx, collection)
	if err != nil {
		return err
	}
	for i, d := range docs {
		if docID(d) != id {
			continue
		}
		next, err := fn(d)
		if err != nil || next == nil {
			return err
		}
		docs[i] = next
		return g.storeLocal(ctx, collection, docs)
	}
	return ErrNotFound
}

func upsert(docs []json.RawMessage, id string, doc json.RawMessage) []json.RawMessage {
	for i, d := range docs {
		if docID(d) == id {
			docs[i] = doc
			return docs
		}
	}
	return append(docs, doc)
}

func (g *Gateway) del(ctx context.Context, collection string, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if g.backend.kind == KindRemote {
		return g.backend.remote.Delete(ctx, collection, ids...)
	}
	g.localMu.Lock()
	defer g.localMu.Unlock()

	docs, err := g.loadLocal(ctx, collection)
	if err != nil {
		return 0, err
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := docs[:0]
	for _, d := range docs {
		if _, ok := drop[docID(d)]; ok {
			continue
		}
		kept = append(kept, d)
	}
	removed := len(docs) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, g.storeLocal(ctx, collection, kept)
}

func (g *Gateway) replace(ctx context.Context, collection string, docs []json.RawMessage) error {
	if g.backend.kind == KindRemote {
		byID := make(map[string]json.RawMessage, len(docs))
		for _, d := range docs {
			byID[docID(d)] = d
		}
		return g.backend.remote.Replace(ctx, collection, byID)
	}
	g.localMu.Lock()
	defer g.localMu.Unlock()
	return g.storeLocal(ctx, collection, docs)
}

func (g *Gateway) loadLocal(ctx context.Context, key string) ([]json.RawMessage, error) {
	blob, ok, err := g.backend.local.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok || len(blob) == 0 {
		return []json.RawMessage{}, nil
	}
	var docs []json.RawMessage
	if err := json.Unmarshal(blob, &docs); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDocument, key, err)
	}
	return docs, nil
}

func (g *Gateway) storeLocal(ctx context.Context, key string, docs []json.RawMessage) error {
	if docs == nil {
		docs = []json.RawMessage{}
	}
	blob, err := json.Marshal(docs)
	if err != nil {
		return err
	}
	return g.backend.local.Set(ctx, key, blob)
}
