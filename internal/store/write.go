package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/model"
)

// PutDocument inserts doc, or replaces the document that already has
// doc.MeadowlarkId. On replace the existing document_uuid and created_at are
// kept. The alias and outbound reference rows are rewritten to match doc.
//
// Returns true if a new row was inserted. The whole write runs in a
// savepoint so a failed attempt can be retried within the same transaction.
func (t *Tx) PutDocument(ctx context.Context, doc *model.MeadowlarkDocument) (inserted bool, err error) {
	err = t.savepoint(ctx, "put_document", func() error {
		var exists bool
		if err := t.tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM documents WHERE meadowlark_id = ?)`,
			string(doc.MeadowlarkId),
		).Scan(&exists); err != nil {
			return fmt.Errorf("check existing document: %w", err)
		}
		inserted = !exists

		identityJSON, err := json.Marshal(doc.DocumentIdentity)
		if err != nil {
			return fmt.Errorf("encode document identity: %w", err)
		}

		_, err = t.tx.ExecContext(ctx, `
			INSERT INTO documents
			(document_uuid, meadowlark_id, document_identity, project_name, resource_name,
			 resource_version, is_descriptor, validated, edfi_doc, created_by,
			 created_at, last_modified_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(meadowlark_id) DO UPDATE SET
				document_identity = excluded.document_identity,
				project_name      = excluded.project_name,
				resource_name     = excluded.resource_name,
				resource_version  = excluded.resource_version,
				is_descriptor     = excluded.is_descriptor,
				validated         = excluded.validated,
				edfi_doc          = excluded.edfi_doc,
				created_by        = excluded.created_by,
				last_modified_at  = excluded.last_modified_at
		`,
			string(doc.DocumentUuid),
			string(doc.MeadowlarkId),
			string(identityJSON),
			doc.ProjectName,
			doc.ResourceName,
			doc.ResourceVersion,
			doc.IsDescriptor,
			doc.Validated,
			string(doc.EdfiDoc),
			doc.CreatedBy,
			doc.CreatedAt,
			doc.LastModifiedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert document: %w", err)
		}

		// The row may predate this call, so read back the uuid it really has.
		if err := t.tx.QueryRowContext(ctx,
			`SELECT document_uuid, created_at FROM documents WHERE meadowlark_id = ?`,
			string(doc.MeadowlarkId),
		).Scan(&doc.DocumentUuid, &doc.CreatedAt); err != nil {
			return fmt.Errorf("read back document: %w", err)
		}

		return t.replaceLinks(ctx, doc)
	})
	if err != nil {
		return false, fmt.Errorf("put document: %w", err)
	}
	return inserted, nil
}

// ReplaceDocument overwrites the document with doc.DocumentUuid, including
// its meadowlark_id, as long as its stored last_modified_at is older than
// doc.LastModifiedAt. created_at is never changed. Alias and outbound
// reference rows are rewritten, so an identity change retires the old alias
// mapping in the same transaction that establishes the new one.
//
// Returns false if no row matched (missing or no longer older).
func (t *Tx) ReplaceDocument(ctx context.Context, doc *model.MeadowlarkDocument) (replaced bool, err error) {
	err = t.savepoint(ctx, "replace_document", func() error {
		identityJSON, err := json.Marshal(doc.DocumentIdentity)
		if err != nil {
			return fmt.Errorf("encode document identity: %w", err)
		}

		res, err := t.tx.ExecContext(ctx, `
			UPDATE documents SET
				meadowlark_id     = ?,
				document_identity = ?,
				project_name      = ?,
				resource_name     = ?,
				resource_version  = ?,
				is_descriptor     = ?,
				validated         = ?,
				edfi_doc          = ?,
				created_by        = ?,
				last_modified_at  = ?
			WHERE document_uuid = ? AND last_modified_at < ?
		`,
			string(doc.MeadowlarkId),
			string(identityJSON),
			doc.ProjectName,
			doc.ResourceName,
			doc.ResourceVersion,
			doc.IsDescriptor,
			doc.Validated,
			string(doc.EdfiDoc),
			doc.CreatedBy,
			doc.LastModifiedAt,
			string(doc.DocumentUuid),
			doc.LastModifiedAt,
		)
		if err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		replaced = n == 1
		if !replaced {
			return nil
		}

		if err := t.tx.QueryRowContext(ctx,
			`SELECT created_at FROM documents WHERE document_uuid = ?`,
			string(doc.DocumentUuid),
		).Scan(&doc.CreatedAt); err != nil {
			return fmt.Errorf("read back document: %w", err)
		}

		return t.replaceLinks(ctx, doc)
	})
	if err != nil {
		return false, fmt.Errorf("replace document: %w", err)
	}
	return replaced, nil
}

// DeleteDocument removes a document by surrogate key. Alias and outbound
// reference rows go with it via ON DELETE CASCADE. Returns false if no row
// was deleted.
func (t *Tx) DeleteDocument(ctx context.Context, documentUuid model.DocumentUuid) (deleted bool, err error) {
	err = t.savepoint(ctx, "delete_document", func() error {
		res, err := t.tx.ExecContext(ctx,
			`DELETE FROM documents WHERE document_uuid = ?`,
			string(documentUuid),
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted = n == 1
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	return deleted, nil
}

// replaceLinks rewrites the alias and outbound_refs rows of doc. A
// PRIMARY KEY violation on aliases means another document already claims
// one of doc's aliases.
func (t *Tx) replaceLinks(ctx context.Context, doc *model.MeadowlarkDocument) error {
	uuid := string(doc.DocumentUuid)

	if _, err := t.tx.ExecContext(ctx, `DELETE FROM aliases WHERE document_uuid = ?`, uuid); err != nil {
		return fmt.Errorf("clear aliases: %w", err)
	}
	for i, alias := range doc.AliasMeadowlarkIds {
		if _, err := t.tx.ExecContext(ctx,
			`INSERT INTO aliases (alias_meadowlark_id, document_uuid, position) VALUES (?, ?, ?)`,
			string(alias), uuid, i,
		); err != nil {
			return fmt.Errorf("insert alias %s: %w", alias, err)
		}
	}

	if _, err := t.tx.ExecContext(ctx, `DELETE FROM outbound_refs WHERE document_uuid = ?`, uuid); err != nil {
		return fmt.Errorf("clear outbound refs: %w", err)
	}
	for i, ref := range doc.OutboundRefs {
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO outbound_refs (document_uuid, referenced_meadowlark_id, position)
			VALUES (?, ?, ?)
			ON CONFLICT DO NOTHING
		`, uuid, string(ref), i); err != nil {
			return fmt.Errorf("insert outbound ref %s: %w", ref, err)
		}
	}

	return nil
}
