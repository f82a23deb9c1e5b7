package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/identity"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/model"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/testutil"
)

func TestUpdate_Success(t *testing.T) {
	f := newFixture(t)
	uuid := f.mustInsert(schoolResource, schoolInfo("123"))
	createdAt := f.stored(uuid).CreatedAt

	outcome := f.update(uuid, schoolResource, schoolInfo("123"), payload(map[string]any{"nameOfInstitution": "New"}), true)
	require.Equal(t, UpdateSuccess, outcome.Response())
	assert.Equal(t, uuid, outcome.Summary().DocumentUuid)

	doc := f.stored(uuid)
	assert.JSONEq(t, `{"nameOfInstitution":"New"}`, string(doc.EdfiDoc))
	assert.Equal(t, createdAt, doc.CreatedAt)
	assert.Equal(t, f.clock.Current(), doc.LastModifiedAt)
	assert.Zero(t, f.registryCount())
}

func TestUpdate_NotExists(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		uuid model.DocumentUuid
	}{
		{"unknown uuid", testutil.SequentialUUID(42)},
		{"malformed uuid", "not-a-uuid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := f.update(tt.uuid, schoolResource, schoolInfo("1"), payload(map[string]any{}), false)
			assert.Equal(t, UpdateFailureNotExists, outcome.Response())
		})
	}
}

func TestUpdate_StaleRequestRejected(t *testing.T) {
	f := newFixture(t)
	uuid := f.mustInsert(schoolResource, schoolInfo("123"))
	before := f.stored(uuid)

	tests := []struct {
		name string
		ts   int64
	}{
		{"equal timestamp", before.LastModifiedAt},
		{"older timestamp", before.LastModifiedAt - 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := schoolInfo("123")
			info.RequestTimestamp = tt.ts
			outcome := f.update(uuid, schoolResource, info, payload(map[string]any{"changed": true}), true)
			assert.Equal(t, UpdateFailureWriteConflict, outcome.Response())

			after := f.stored(uuid)
			assert.Equal(t, before.EdfiDoc, after.EdfiDoc)
			assert.Equal(t, before.LastModifiedAt, after.LastModifiedAt)
			assert.Equal(t, before.CreatedAt, after.CreatedAt)
		})
	}
}

func TestUpdate_ImmutableIdentity(t *testing.T) {
	f := newFixture(t)
	uuid := f.mustInsert(schoolResource, schoolInfo("123"))

	outcome := f.update(uuid, schoolResource, schoolInfo("456"), payload(map[string]any{}), true)
	assert.Equal(t, UpdateFailureImmutableIdentity, outcome.Response())
	assert.NotEmpty(t, outcome.Summary().FailureMessage)

	assert.Equal(t, identity.ForDocument(schoolResource, ident("schoolId", "123")), f.stored(uuid).MeadowlarkId)
}

func TestUpdate_ReferenceFailure(t *testing.T) {
	f := newFixture(t)
	f.mustInsert(schoolResource, schoolInfo("1"))
	uuid := f.mustInsert(academicWeekResource, academicWeekInfo("W1", schoolRef("1")))

	outcome := f.update(uuid, academicWeekResource, academicWeekInfo("W1", schoolRef("2")), payload(map[string]any{}), true)
	failure, ok := outcome.(UpdateReferenceFailure)
	require.True(t, ok, "got %s", outcome.Response())
	require.Len(t, failure.Failures, 1)
	assert.Equal(t, ident("schoolId", "2"), failure.Failures[0].Identity)

	// Not validated: accepted.
	outcome = f.update(uuid, academicWeekResource, academicWeekInfo("W1", schoolRef("2")), payload(map[string]any{}), false)
	assert.Equal(t, UpdateSuccess, outcome.Response())
	assert.False(t, f.stored(uuid).Validated)
}

func TestUpdate_ReplacesOutboundRefs(t *testing.T) {
	f := newFixture(t)
	f.mustInsert(schoolResource, schoolInfo("1"))
	f.mustInsert(schoolResource, schoolInfo("2"))
	uuid := f.mustInsert(academicWeekResource, academicWeekInfo("W1", schoolRef("1")))

	outcome := f.update(uuid, academicWeekResource, academicWeekInfo("W1", schoolRef("2")), payload(map[string]any{}), true)
	require.Equal(t, UpdateSuccess, outcome.Response())
	assert.Equal(t, []model.MeadowlarkId{identity.ForReference(schoolRef("2"))}, f.stored(uuid).OutboundRefs)
}

func TestUpdate_IdentityChangeAllowed(t *testing.T) {
	f := newFixture(t)
	f.mustInsert(schoolResource, schoolInfo("1"))
	uuid := f.mustInsert(sessionResource, sessionInfo("Fall", schoolRef("1")))
	createdAt := f.stored(uuid).CreatedAt

	outcome := f.update(uuid, sessionResource, sessionInfo("Spring", schoolRef("1")), payload(map[string]any{"sessionName": "Spring"}), true)
	require.Equal(t, UpdateSuccess, outcome.Response())

	doc := f.stored(uuid)
	newId := identity.ForDocument(sessionResource, ident("sessionName", "Spring"))
	assert.Equal(t, newId, doc.MeadowlarkId)
	assert.Equal(t, []model.MeadowlarkId{newId}, doc.AliasMeadowlarkIds)
	assert.Equal(t, createdAt, doc.CreatedAt)

	// The old identity is gone and may be reused.
	outcome = f.upsert(sessionResource, sessionInfo("Fall", schoolRef("1")), true)
	assert.Equal(t, InsertSuccess, outcome.Response())
}

func TestUpdate_IdentityChangeOntoClaimedIdentity(t *testing.T) {
	f := newFixture(t)
	f.mustInsert(schoolResource, schoolInfo("1"))
	fallUuid := f.mustInsert(sessionResource, sessionInfo("Fall", schoolRef("1")))
	springUuid := f.mustInsert(sessionResource, sessionInfo("Spring", schoolRef("1")))

	outcome := f.update(fallUuid, sessionResource, sessionInfo("Spring", schoolRef("1")), payload(map[string]any{}), true)
	conflict, ok := outcome.(UpdateConflict)
	require.True(t, ok, "got %s", outcome.Response())
	require.Len(t, conflict.BlockingDocuments, 1)
	assert.Equal(t, springUuid, conflict.BlockingDocuments[0].DocumentUuid)

	assert.Equal(t, identity.ForDocument(sessionResource, ident("sessionName", "Fall")), f.stored(fallUuid).MeadowlarkId)
}

func TestUpdate_IdentityChangeWithReferrersRequiresCascade(t *testing.T) {
	f := newFixture(t)
	f.mustInsert(schoolResource, schoolInfo("1"))
	sessionUuid := f.mustInsert(sessionResource, sessionInfo("Fall", schoolRef("1")))
	sessionRef := model.DocumentReference{ProjectName: "Ed-Fi", ResourceName: "Session", DocumentIdentity: ident("sessionName", "Fall")}
	weekUuid := f.mustInsert(academicWeekResource, academicWeekInfo("W1", sessionRef))

	outcome := f.update(sessionUuid, sessionResource, sessionInfo("Winter", schoolRef("1")), payload(map[string]any{}), true)
	cascade, ok := outcome.(UpdateCascade)
	require.True(t, ok, "got %s", outcome.Response())
	assert.Equal(t, UpdateCascadeRequired, cascade.Response())
	require.Len(t, cascade.BlockingDocuments, 1)
	assert.Equal(t, weekUuid, cascade.BlockingDocuments[0].DocumentUuid)

	// Rolled back: the old identity is intact.
	assert.Equal(t, identity.ForDocument(sessionResource, ident("sessionName", "Fall")), f.stored(sessionUuid).MeadowlarkId)
	assert.Zero(t, f.registryCount())
}

func TestUpdate_SameIdentityWithReferrersSucceeds(t *testing.T) {
	f := newFixture(t)
	schoolUuid := f.mustInsert(schoolResource, schoolInfo("1"))
	f.mustInsert(academicWeekResource, academicWeekInfo("W1", schoolRef("1")))

	outcome := f.update(schoolUuid, schoolResource, schoolInfo("1"), payload(map[string]any{"x": 1}), true)
	assert.Equal(t, UpdateSuccess, outcome.Response())
}
