package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/model"
)

func TestGetDocument_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetDocument(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetDocument_RoundTripsFields(t *testing.T) {
	s := createTestStore(t)
	doc := createTestDocument("uuid-1", "mid-1", []string{"mid-1", "super"}, []string{"r2", "r1"}, 42)
	doc.IsDescriptor = true
	doc.Validated = true
	putTestDocument(t, s, doc)

	got, err := s.GetDocument(context.Background(), "uuid-1")
	require.NoError(t, err)
	assert.Equal(t, doc.DocumentIdentity, got.DocumentIdentity)
	assert.True(t, got.IsDescriptor)
	assert.True(t, got.Validated)
	assert.Equal(t, "tester", got.CreatedBy)
	// Insertion order is kept, not sorted.
	assert.Equal(t, []model.MeadowlarkId{"r2", "r1"}, got.OutboundRefs)
	assert.Equal(t, []model.MeadowlarkId{"mid-1", "super"}, got.AliasMeadowlarkIds)
}

func TestTx_Lookups(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	putTestDocument(t, s, createTestDocument("uuid-school", "school", []string{"school", "edorg"}, nil, 1))
	putTestDocument(t, s, createTestDocument("uuid-week", "week", []string{"week"}, []string{"edorg"}, 2))
	putTestDocument(t, s, createTestDocument("uuid-self", "self", []string{"self"}, []string{"self", "school"}, 3))

	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		doc, err := tx.FindByMeadowlarkId(ctx, "school")
		require.NoError(t, err)
		assert.Equal(t, model.DocumentUuid("uuid-school"), doc.DocumentUuid)

		_, err = tx.FindByMeadowlarkId(ctx, "edorg")
		assert.ErrorIs(t, err, ErrNotFound)

		doc, err = tx.FindByDocumentUuid(ctx, "uuid-week")
		require.NoError(t, err)
		assert.Equal(t, model.MeadowlarkId("week"), doc.MeadowlarkId)

		owner, err := tx.FindAliasOwner(ctx, "edorg")
		require.NoError(t, err)
		assert.Equal(t, model.DocumentUuid("uuid-school"), owner.DocumentUuid)

		_, err = tx.FindAliasOwner(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)

		found, err := tx.FindExistingAliases(ctx, []model.MeadowlarkId{"edorg", "missing", "week"})
		require.NoError(t, err)
		assert.Len(t, found, 2)
		assert.Contains(t, found, model.MeadowlarkId("edorg"))
		assert.Contains(t, found, model.MeadowlarkId("week"))

		referrers, err := tx.FindReferringDocuments(ctx, []model.MeadowlarkId{"school", "edorg"}, "uuid-school", 5)
		require.NoError(t, err)
		require.Len(t, referrers, 2)
		assert.Equal(t, model.DocumentUuid("uuid-self"), referrers[0].DocumentUuid)
		assert.Equal(t, model.DocumentUuid("uuid-week"), referrers[1].DocumentUuid)

		// Self references never block.
		referrers, err = tx.FindReferringDocuments(ctx, []model.MeadowlarkId{"self"}, "uuid-self", 5)
		require.NoError(t, err)
		assert.Empty(t, referrers)

		referrers, err = tx.FindReferringDocuments(ctx, []model.MeadowlarkId{"school", "edorg"}, "", 1)
		require.NoError(t, err)
		assert.Len(t, referrers, 1)
		return nil
	}))
}

func TestFindExistingAliases_Empty(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		found, err := tx.FindExistingAliases(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, found)
		return nil
	}))
}

func TestCountDocuments(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	n, err := s.CountDocuments(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	putTestDocument(t, s, createTestDocument("uuid-1", "mid-1", nil, nil, 1))
	other := createTestDocument("uuid-2", "mid-2", nil, nil, 1)
	other.ResourceName = "Other"
	putTestDocument(t, s, other)

	n, err = s.CountDocuments(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.CountDocuments(ctx, "Other")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
