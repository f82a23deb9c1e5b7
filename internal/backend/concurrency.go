package backend

import (
	"context"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/model"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/store"
)

// writeGuard holds the registry rows one write has claimed.
type writeGuard struct {
	tx      *store.Tx
	entries []store.RegistryEntry
}

// guardWrite applies both concurrency mechanisms for a write that mutates
// the documents in self and depends on the documents behind refs:
//
//  1. registers a materialized conflict for self and for every referenced
//     document, so a row some other writer committed and never cleared
//     collides on the registry's unique constraint. Live writers on one
//     SQLite file are already serialized by the write lock and never see
//     each other's rows.
//  2. touches the lock marker of every referenced document, so a
//     concurrent delete of one of them serializes behind this transaction
//
// A registry collision is returned as a *store.ConflictError and must not be
// retried.
func (b *Backend) guardWrite(ctx context.Context, tx *store.Tx, self []store.RegistryEntry, refs []model.MeadowlarkId) (*writeGuard, error) {
	referenced, err := tx.ReferencedRegistryEntries(ctx, refs)
	if err != nil {
		return nil, err
	}

	entries := make([]store.RegistryEntry, 0, len(self)+len(referenced))
	entries = append(entries, self...)
	entries = append(entries, referenced...)

	if err := tx.RegisterConflicts(ctx, entries); err != nil {
		return nil, err
	}

	if _, err := tx.TouchReferencedDocuments(ctx, refs, b.tokenGen.Generate()); err != nil {
		return nil, err
	}

	return &writeGuard{tx: tx, entries: entries}, nil
}

// release clears the guard's registry rows. Called before commit; a rolled
// back transaction discards them anyway.
func (g *writeGuard) release(ctx context.Context) error {
	return g.tx.ClearConflicts(ctx, g.entries)
}
