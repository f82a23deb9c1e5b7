package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/model"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestDocument creates a document with minimal required fields.
func createTestDocument(uuid, meadowlarkId string, aliases []string, refs []string, ts int64) *model.MeadowlarkDocument {
	doc := &model.MeadowlarkDocument{
		DocumentUuid:     model.DocumentUuid(uuid),
		MeadowlarkId:     model.MeadowlarkId(meadowlarkId),
		DocumentIdentity: model.DocumentIdentity{{Name: "id", Value: meadowlarkId}},
		ProjectName:      "Ed-Fi",
		ResourceName:     "Thing",
		ResourceVersion:  "3.3.1-b",
		EdfiDoc:          json.RawMessage(`{"name":"` + meadowlarkId + `"}`),
		CreatedBy:        "tester",
		CreatedAt:        ts,
		LastModifiedAt:   ts,
	}
	for _, a := range aliases {
		doc.AliasMeadowlarkIds = append(doc.AliasMeadowlarkIds, model.MeadowlarkId(a))
	}
	for _, r := range refs {
		doc.OutboundRefs = append(doc.OutboundRefs, model.MeadowlarkId(r))
	}
	return doc
}

// putTestDocument writes doc in its own transaction.
func putTestDocument(t *testing.T, s *Store, doc *model.MeadowlarkDocument) {
	t.Helper()
	err := s.WithTx(context.Background(), func(tx *Tx) error {
		_, err := tx.PutDocument(context.Background(), doc)
		return err
	})
	require.NoError(t, err)
}
