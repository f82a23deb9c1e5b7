package model

import "encoding/json"

// UpsertRequest inserts a document, or replaces the document that already
// has the same MeadowlarkId.
type UpsertRequest struct {
	MeadowlarkId MeadowlarkId
	ResourceInfo ResourceInfo
	DocumentInfo DocumentInfo
	EdfiDoc      json.RawMessage

	// DocumentUuidForInsert is used only when the upsert is an insert. When
	// empty the backend assigns one.
	DocumentUuidForInsert DocumentUuid

	ValidateDocumentReferencesExist bool
	CreatedBy                       string
	TraceId                         TraceId
}

// UpdateRequest replaces the document with the given DocumentUuid.
type UpdateRequest struct {
	DocumentUuid DocumentUuid
	MeadowlarkId MeadowlarkId
	ResourceInfo ResourceInfo
	DocumentInfo DocumentInfo
	EdfiDoc      json.RawMessage

	ValidateDocumentReferencesExist bool
	CreatedBy                       string
	TraceId                         TraceId
}

// DeleteRequest removes the document with the given DocumentUuid.
type DeleteRequest struct {
	DocumentUuid DocumentUuid
	ResourceInfo ResourceInfo

	// ValidateNoReferencesToDocument blocks the delete while other
	// documents reference it.
	ValidateNoReferencesToDocument bool
	TraceId                        TraceId
}

// GetRequest reads the document with the given DocumentUuid.
type GetRequest struct {
	DocumentUuid DocumentUuid
	ResourceInfo ResourceInfo
	TraceId      TraceId
}
