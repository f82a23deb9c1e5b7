package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/model"
)

func TestAliasesNonSubclass(t *testing.T) {
	info := model.DocumentInfo{DocumentIdentity: identity("schoolId", "123")}

	aliases := Aliases(schoolResource, info)

	require.Len(t, aliases, 1)
	assert.Equal(t, ForDocument(schoolResource, info.DocumentIdentity), aliases[0])
}

func TestAliasesSubclass(t *testing.T) {
	schoolIdentity := identity("schoolId", "123")
	superclass := SuperclassForm("Ed-Fi", "EducationOrganization", schoolIdentity, "schoolId", "educationOrganizationId")
	info := model.DocumentInfo{
		DocumentIdentity: schoolIdentity,
		SuperclassInfo:   &superclass,
	}

	aliases := Aliases(schoolResource, info)

	require.Len(t, aliases, 2)
	assert.Equal(t, ForDocument(schoolResource, schoolIdentity), aliases[0], "self id comes first")
	assert.Equal(t,
		MeadowlarkIdFor("Ed-Fi", "EducationOrganization", false, identity("educationOrganizationId", "123")),
		aliases[1],
	)
}

func TestSubclassAliasMatchesSuperclassReference(t *testing.T) {
	// A School satisfies a reference to EducationOrganization with the same id
	schoolIdentity := identity("schoolId", "123")
	superclass := SuperclassForm("Ed-Fi", "EducationOrganization", schoolIdentity, "schoolId", "educationOrganizationId")
	aliases := Aliases(schoolResource, model.DocumentInfo{DocumentIdentity: schoolIdentity, SuperclassInfo: &superclass})

	ref := model.DocumentReference{
		ProjectName:      "Ed-Fi",
		ResourceName:     "EducationOrganization",
		DocumentIdentity: identity("educationOrganizationId", "123"),
	}

	assert.Contains(t, aliases, ForReference(ref))
}

func TestSuperclassFormWithoutRename(t *testing.T) {
	assoc := identity("programName", "P1", "studentUniqueId", "S1")

	superclass := SuperclassForm("Ed-Fi", "GeneralStudentProgramAssociation", assoc, "", "")

	assert.Equal(t, assoc.Canonical(), superclass.DocumentIdentity)
	assert.Equal(t, "GeneralStudentProgramAssociation", superclass.ResourceName)
}

func TestSuperclassFormDoesNotMutateInput(t *testing.T) {
	schoolIdentity := identity("schoolId", "123")

	SuperclassForm("Ed-Fi", "EducationOrganization", schoolIdentity, "schoolId", "educationOrganizationId")

	assert.Equal(t, "schoolId", schoolIdentity[0].Name)
}

func TestOutboundRefsDeduplicates(t *testing.T) {
	school := model.DocumentReference{ProjectName: "Ed-Fi", ResourceName: "School", DocumentIdentity: identity("schoolId", "123")}
	descriptor := model.DocumentReference{
		ProjectName:      "Ed-Fi",
		ResourceName:     "GradeLevelDescriptor",
		DocumentIdentity: identity("descriptor", "uri://ed-fi.org/GradeLevelDescriptor#First Grade"),
		IsDescriptor:     true,
	}
	info := model.DocumentInfo{
		DocumentReferences:   []model.DocumentReference{school, school},
		DescriptorReferences: []model.DocumentReference{descriptor},
	}

	refs := OutboundRefs(info)

	assert.Equal(t, []model.MeadowlarkId{ForReference(school), ForReference(descriptor)}, refs)
}

func TestOutboundRefsEmpty(t *testing.T) {
	refs := OutboundRefs(model.DocumentInfo{})
	assert.NotNil(t, refs)
	assert.Empty(t, refs)
}
