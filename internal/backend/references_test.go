package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/model"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/store"
)

func TestValidateReferences(t *testing.T) {
	f := newFixture(t)
	f.mustInsert(schoolResource, schoolInfo("1"))
	f.mustInsert(gradeLevelResource, model.DocumentInfo{DocumentIdentity: ident("descriptor", "uri://a#First")})

	tests := []struct {
		name        string
		documents   []model.DocumentReference
		descriptors []model.DocumentReference
		want        []model.MissingIdentity
	}{
		{
			name: "no references",
			want: []model.MissingIdentity{},
		},
		{
			name:        "all present",
			documents:   []model.DocumentReference{schoolRef("1"), edorgRef("1")},
			descriptors: []model.DocumentReference{gradeLevelRef("uri://a#First")},
			want:        []model.MissingIdentity{},
		},
		{
			name:      "missing kept in reference order",
			documents: []model.DocumentReference{schoolRef("3"), schoolRef("1"), schoolRef("2")},
			want: []model.MissingIdentity{
				{ResourceName: "School", Identity: ident("schoolId", "3")},
				{ResourceName: "School", Identity: ident("schoolId", "2")},
			},
		},
		{
			name:      "duplicate missing reported once",
			documents: []model.DocumentReference{schoolRef("9"), schoolRef("9")},
			want:      []model.MissingIdentity{{ResourceName: "School", Identity: ident("schoolId", "9")}},
		},
		{
			name:        "documents before descriptors",
			documents:   []model.DocumentReference{edorgRef("5")},
			descriptors: []model.DocumentReference{gradeLevelRef("uri://a#Second")},
			want: []model.MissingIdentity{
				{ResourceName: "EducationOrganization", Identity: ident("educationOrganizationId", "5")},
				{ResourceName: "GradeLevelDescriptor", Identity: ident("descriptor", "uri://a#Second")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, f.store.WithTx(f.ctx, func(tx *store.Tx) error {
				got, err := validateReferences(f.ctx, tx, tt.documents, tt.descriptors)
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return nil
			}))
		})
	}
}
