package store

import (
	"context"
	"fmt"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/model"
)

// RegistryEntry is one materialized conflict token: the pair a write claims
// for the lifetime of its transaction.
type RegistryEntry struct {
	MeadowlarkId model.MeadowlarkId
	DocumentUuid model.DocumentUuid
}

// TouchReferencedDocuments writes token into the lock marker of every
// document claiming one of aliasIds. The write makes the transaction hold
// those rows, so a concurrent delete of a referenced document serializes
// behind it instead of leaving a dangling reference.
//
// Returns the number of documents touched.
func (t *Tx) TouchReferencedDocuments(ctx context.Context, aliasIds []model.MeadowlarkId, token string) (int64, error) {
	if len(aliasIds) == 0 {
		return 0, nil
	}

	args := []any{token}
	args = append(args, idArgs(aliasIds)...)
	res, err := t.tx.ExecContext(ctx, `
		UPDATE documents SET lock_token = ?
		WHERE document_uuid IN (
			SELECT document_uuid FROM aliases
			WHERE alias_meadowlark_id IN (`+placeholders(len(aliasIds))+`)
		)
	`, args...)
	if err != nil {
		return 0, fmt.Errorf("touch referenced documents: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("touch referenced documents: %w", err)
	}
	return n, nil
}

// ReferencedRegistryEntries resolves aliasIds to the (meadowlark_id,
// document_uuid) pairs of the documents that claim them.
func (t *Tx) ReferencedRegistryEntries(ctx context.Context, aliasIds []model.MeadowlarkId) ([]RegistryEntry, error) {
	entries := []RegistryEntry{}
	if len(aliasIds) == 0 {
		return entries, nil
	}

	rows, err := t.tx.QueryContext(ctx, `
		SELECT DISTINCT d.meadowlark_id, d.document_uuid
		FROM aliases a
		JOIN documents d ON d.document_uuid = a.document_uuid
		WHERE a.alias_meadowlark_id IN (`+placeholders(len(aliasIds))+`)
		ORDER BY d.document_uuid
	`, idArgs(aliasIds)...)
	if err != nil {
		return nil, fmt.Errorf("resolve referenced documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e RegistryEntry
		if err := rows.Scan(&e.MeadowlarkId, &e.DocumentUuid); err != nil {
			return nil, fmt.Errorf("scan referenced document: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate referenced documents: %w", err)
	}
	return entries, nil
}

// RegisterConflicts inserts one registry row per entry. If any pair is
// already registered it returns a *ConflictError naming that pair; the
// caller should abort rather than retry.
func (t *Tx) RegisterConflicts(ctx context.Context, entries []RegistryEntry) error {
	for _, e := range dedupeEntries(entries) {
		_, err := t.tx.ExecContext(ctx,
			`INSERT INTO concurrency_registry (meadowlark_id, document_uuid) VALUES (?, ?)`,
			string(e.MeadowlarkId), string(e.DocumentUuid),
		)
		if err != nil {
			if IsDuplicateKey(err) {
				return &ConflictError{MeadowlarkId: e.MeadowlarkId, DocumentUuid: e.DocumentUuid, Err: err}
			}
			return fmt.Errorf("register conflict: %w", err)
		}
	}
	return nil
}

// ClearConflicts removes the registry rows for entries.
func (t *Tx) ClearConflicts(ctx context.Context, entries []RegistryEntry) error {
	for _, e := range dedupeEntries(entries) {
		if _, err := t.tx.ExecContext(ctx,
			`DELETE FROM concurrency_registry WHERE meadowlark_id = ? AND document_uuid = ?`,
			string(e.MeadowlarkId), string(e.DocumentUuid),
		); err != nil {
			return fmt.Errorf("clear conflict: %w", err)
		}
	}
	return nil
}

// CountRegistryEntries returns the number of rows in the registry.
func (s *Store) CountRegistryEntries(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM concurrency_registry`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count registry entries: %w", err)
	}
	return n, nil
}

func dedupeEntries(entries []RegistryEntry) []RegistryEntry {
	seen := make(map[RegistryEntry]struct{}, len(entries))
	out := make([]RegistryEntry, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}
