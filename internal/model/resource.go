package model

// ResourceInfo describes the resource type of a document.
type ResourceInfo struct {
	// ProjectName is the MetaEd project the resource is defined in, e.g. "Ed-Fi".
	ProjectName string `json:"projectName" yaml:"projectName"`

	// ResourceName is usually the MetaEd entity name. Descriptors carry a
	// "Descriptor" suffix.
	ResourceName string `json:"resourceName" yaml:"resourceName"`

	// ResourceVersion is the project version, e.g. "3.3.1-b". It is stored
	// but is not part of the MeadowlarkId.
	ResourceVersion string `json:"resourceVersion" yaml:"resourceVersion"`

	IsDescriptor bool `json:"isDescriptor" yaml:"isDescriptor"`

	// AllowIdentityUpdates permits an update to change the document identity.
	AllowIdentityUpdates bool `json:"allowIdentityUpdates" yaml:"allowIdentityUpdates"`
}

// DocumentReference is a link from one document to another, expressed as
// the identity of the referenced document.
type DocumentReference struct {
	ProjectName      string           `json:"projectName" yaml:"projectName"`
	ResourceName     string           `json:"resourceName" yaml:"resourceName"`
	DocumentIdentity DocumentIdentity `json:"documentIdentity" yaml:"documentIdentity"`
	IsDescriptor     bool             `json:"isDescriptor" yaml:"isDescriptor"`
}

// SuperclassInfo is the superclass form of a subclass document's identity.
// Only one level of subclassing exists.
//
// Example: School is a subclass of EducationOrganization with schoolId
// renamed from educationOrganizationId. The SuperclassInfo of a School with
// schoolId=123 has ResourceName "EducationOrganization" and identity
// educationOrganizationId=123.
type SuperclassInfo struct {
	ProjectName      string           `json:"projectName" yaml:"projectName"`
	ResourceName     string           `json:"resourceName" yaml:"resourceName"`
	DocumentIdentity DocumentIdentity `json:"documentIdentity" yaml:"documentIdentity"`
}

// DocumentInfo is the information extracted from an API document before it
// reaches the engine.
type DocumentInfo struct {
	DocumentIdentity DocumentIdentity `json:"documentIdentity" yaml:"documentIdentity"`

	// DocumentReferences are references to other non-descriptor documents.
	DocumentReferences []DocumentReference `json:"documentReferences" yaml:"documentReferences"`

	// DescriptorReferences are top-level descriptor values of the document.
	DescriptorReferences []DocumentReference `json:"descriptorReferences" yaml:"descriptorReferences"`

	// SuperclassInfo is set only when the resource is a subclass.
	SuperclassInfo *SuperclassInfo `json:"superclassInfo,omitempty" yaml:"superclassInfo,omitempty"`

	// RequestTimestamp is the monotonic time of the request in milliseconds.
	// It becomes lastModifiedAt and is the basis of stale update detection.
	RequestTimestamp int64 `json:"requestTimestamp" yaml:"requestTimestamp"`
}

// AllReferences returns document references followed by descriptor references.
func (d DocumentInfo) AllReferences() []DocumentReference {
	refs := make([]DocumentReference, 0, len(d.DocumentReferences)+len(d.DescriptorReferences))
	refs = append(refs, d.DocumentReferences...)
	refs = append(refs, d.DescriptorReferences...)
	return refs
}
