package model

import "encoding/json"

// MeadowlarkDocument is the persisted record of an API document.
type MeadowlarkDocument struct {
	DocumentUuid     DocumentUuid     `json:"documentUuid"`
	MeadowlarkId     MeadowlarkId     `json:"meadowlarkId"`
	DocumentIdentity DocumentIdentity `json:"documentIdentity"`
	ProjectName      string           `json:"projectName"`
	ResourceName     string           `json:"resourceName"`
	ResourceVersion  string           `json:"resourceVersion"`
	IsDescriptor     bool             `json:"isDescriptor"`

	// EdfiDoc is the API document itself, stored as given.
	EdfiDoc json.RawMessage `json:"edfiDoc"`

	// OutboundRefs are the MeadowlarkIds of every document and descriptor
	// this document references.
	OutboundRefs []MeadowlarkId `json:"outboundRefs"`

	// AliasMeadowlarkIds are the ids this document satisfies during
	// reference validation: always its own id, plus the superclass form of
	// its id when it is a subclass.
	AliasMeadowlarkIds []MeadowlarkId `json:"aliasMeadowlarkIds"`

	// Validated is true when references were checked on the last write.
	Validated bool `json:"validated"`

	CreatedBy      string `json:"createdBy"`
	CreatedAt      int64  `json:"createdAt"`
	LastModifiedAt int64  `json:"lastModifiedAt"`
}

// BlockingDocument identifies a document that caused a write to fail.
type BlockingDocument struct {
	DocumentUuid    DocumentUuid `json:"documentUuid"`
	MeadowlarkId    MeadowlarkId `json:"meadowlarkId"`
	ResourceName    string       `json:"resourceName"`
	ProjectName     string       `json:"projectName"`
	ResourceVersion string       `json:"resourceVersion"`
}

// MissingIdentity describes a reference whose target does not exist.
type MissingIdentity struct {
	ResourceName string           `json:"resourceName"`
	Identity     DocumentIdentity `json:"identity"`
}

// MaxBlockingDocuments caps the blocking documents reported on a failure.
const MaxBlockingDocuments = 5
