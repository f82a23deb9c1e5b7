package identity

import "github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/model"

// Aliases returns the ids under which a document may be referenced: its own
// id first, then its superclass-form id when it is a subclass.
func Aliases(resourceInfo model.ResourceInfo, documentInfo model.DocumentInfo) []model.MeadowlarkId {
	aliases := []model.MeadowlarkId{ForDocument(resourceInfo, documentInfo.DocumentIdentity)}
	if documentInfo.SuperclassInfo != nil {
		aliases = append(aliases, ForSuperclass(*documentInfo.SuperclassInfo))
	}
	return aliases
}

// SuperclassForm builds the SuperclassInfo of a subclass document whose
// identity element renamedFrom corresponds to renamedTo in the superclass.
// An empty renamedFrom means the identity carries over unchanged.
//
// Example: SuperclassForm("Ed-Fi", "EducationOrganization", schoolIdentity,
// "schoolId", "educationOrganizationId").
func SuperclassForm(projectName, resourceName string, documentIdentity model.DocumentIdentity, renamedFrom, renamedTo string) model.SuperclassInfo {
	superIdentity := documentIdentity
	if renamedFrom != "" {
		superIdentity = documentIdentity.Rename(renamedFrom, renamedTo)
	}
	return model.SuperclassInfo{
		ProjectName:      projectName,
		ResourceName:     resourceName,
		DocumentIdentity: superIdentity.Canonical(),
	}
}

// OutboundRefs returns the distinct MeadowlarkIds a document references, in
// first-seen order: document references, then descriptor references.
func OutboundRefs(documentInfo model.DocumentInfo) []model.MeadowlarkId {
	ids := ForReferences(documentInfo.AllReferences())
	seen := make(map[model.MeadowlarkId]struct{}, len(ids))
	out := make([]model.MeadowlarkId, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
