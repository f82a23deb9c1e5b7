package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/model"
)

const documentColumns = `
	document_uuid, meadowlark_id, document_identity, project_name, resource_name,
	resource_version, is_descriptor, validated, edfi_doc, created_by,
	created_at, last_modified_at`

// GetDocument loads a document by its surrogate key outside any transaction.
// Returns ErrNotFound if no such document exists.
func (s *Store) GetDocument(ctx context.Context, documentUuid model.DocumentUuid) (*model.MeadowlarkDocument, error) {
	return findDocument(ctx, s.db, "document_uuid", string(documentUuid))
}

// CountDocuments returns the number of stored documents, optionally limited
// to one resource name.
func (s *Store) CountDocuments(ctx context.Context, resourceName string) (int, error) {
	query := `SELECT COUNT(*) FROM documents`
	var args []any
	if resourceName != "" {
		query += ` WHERE resource_name = ?`
		args = append(args, resourceName)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// FindByMeadowlarkId loads the document whose own id is meadowlarkId.
// Returns ErrNotFound if no such document exists.
func (t *Tx) FindByMeadowlarkId(ctx context.Context, meadowlarkId model.MeadowlarkId) (*model.MeadowlarkDocument, error) {
	return findDocument(ctx, t.tx, "meadowlark_id", string(meadowlarkId))
}

// FindByDocumentUuid loads a document by surrogate key.
// Returns ErrNotFound if no such document exists.
func (t *Tx) FindByDocumentUuid(ctx context.Context, documentUuid model.DocumentUuid) (*model.MeadowlarkDocument, error) {
	return findDocument(ctx, t.tx, "document_uuid", string(documentUuid))
}

// FindAliasOwner returns the document that claims aliasId, or ErrNotFound.
func (t *Tx) FindAliasOwner(ctx context.Context, aliasId model.MeadowlarkId) (*model.BlockingDocument, error) {
	var b model.BlockingDocument
	err := t.tx.QueryRowContext(ctx, `
		SELECT d.document_uuid, d.meadowlark_id, d.resource_name, d.project_name, d.resource_version
		FROM aliases a
		JOIN documents d ON d.document_uuid = a.document_uuid
		WHERE a.alias_meadowlark_id = ?
	`, string(aliasId)).Scan(&b.DocumentUuid, &b.MeadowlarkId, &b.ResourceName, &b.ProjectName, &b.ResourceVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find alias owner: %w", err)
	}
	return &b, nil
}

// FindExistingAliases returns the subset of ids that some document claims as
// an alias. The batch is answered by one membership query.
func (t *Tx) FindExistingAliases(ctx context.Context, ids []model.MeadowlarkId) (map[model.MeadowlarkId]struct{}, error) {
	found := make(map[model.MeadowlarkId]struct{}, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	rows, err := t.tx.QueryContext(ctx,
		`SELECT alias_meadowlark_id FROM aliases WHERE alias_meadowlark_id IN (`+placeholders(len(ids))+`)`,
		idArgs(ids)...,
	)
	if err != nil {
		return nil, fmt.Errorf("find existing aliases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		found[model.MeadowlarkId(id)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aliases: %w", err)
	}
	return found, nil
}

// FindReferringDocuments returns up to limit documents, other than
// excludeUuid, whose outbound references include any of the given alias ids.
// Results are ordered by document_uuid for stable diagnostics.
func (t *Tx) FindReferringDocuments(ctx context.Context, aliasIds []model.MeadowlarkId, excludeUuid model.DocumentUuid, limit int) ([]model.BlockingDocument, error) {
	blocking := []model.BlockingDocument{}
	if len(aliasIds) == 0 || limit <= 0 {
		return blocking, nil
	}

	args := idArgs(aliasIds)
	args = append(args, string(excludeUuid), limit)
	rows, err := t.tx.QueryContext(ctx, `
		SELECT DISTINCT d.document_uuid, d.meadowlark_id, d.resource_name, d.project_name, d.resource_version
		FROM outbound_refs r
		JOIN documents d ON d.document_uuid = r.document_uuid
		WHERE r.referenced_meadowlark_id IN (`+placeholders(len(aliasIds))+`)
		  AND d.document_uuid <> ?
		ORDER BY d.document_uuid
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("find referring documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b model.BlockingDocument
		if err := rows.Scan(&b.DocumentUuid, &b.MeadowlarkId, &b.ResourceName, &b.ProjectName, &b.ResourceVersion); err != nil {
			return nil, fmt.Errorf("scan referring document: %w", err)
		}
		blocking = append(blocking, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate referring documents: %w", err)
	}
	return blocking, nil
}

// findDocument loads one document row plus its alias and reference rows.
// column is always a trusted constant.
func findDocument(ctx context.Context, q querier, column, value string) (*model.MeadowlarkDocument, error) {
	var (
		doc          model.MeadowlarkDocument
		identityJSON string
		edfiDoc      string
	)
	err := q.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE `+column+` = ?`,
		value,
	).Scan(
		&doc.DocumentUuid,
		&doc.MeadowlarkId,
		&identityJSON,
		&doc.ProjectName,
		&doc.ResourceName,
		&doc.ResourceVersion,
		&doc.IsDescriptor,
		&doc.Validated,
		&edfiDoc,
		&doc.CreatedBy,
		&doc.CreatedAt,
		&doc.LastModifiedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find document by %s: %w", column, err)
	}

	if err := json.Unmarshal([]byte(identityJSON), &doc.DocumentIdentity); err != nil {
		return nil, fmt.Errorf("decode document identity: %w", err)
	}
	doc.EdfiDoc = json.RawMessage(edfiDoc)

	doc.AliasMeadowlarkIds, err = loadIds(ctx, q,
		`SELECT alias_meadowlark_id FROM aliases WHERE document_uuid = ? ORDER BY position`,
		doc.DocumentUuid)
	if err != nil {
		return nil, fmt.Errorf("load aliases: %w", err)
	}

	doc.OutboundRefs, err = loadIds(ctx, q,
		`SELECT referenced_meadowlark_id FROM outbound_refs WHERE document_uuid = ? ORDER BY position`,
		doc.DocumentUuid)
	if err != nil {
		return nil, fmt.Errorf("load outbound refs: %w", err)
	}

	return &doc, nil
}

func loadIds(ctx context.Context, q querier, query string, documentUuid model.DocumentUuid) ([]model.MeadowlarkId, error) {
	rows, err := q.QueryContext(ctx, query, string(documentUuid))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []model.MeadowlarkId{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, model.MeadowlarkId(id))
	}
	return ids, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func idArgs(ids []model.MeadowlarkId) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = string(id)
	}
	return args
}
