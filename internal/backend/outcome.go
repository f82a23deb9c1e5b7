package backend

import (
	"encoding/json"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/model"
)

// ResponseCode is the outcome tag reported to callers.
type ResponseCode string

const (
	InsertSuccess                  ResponseCode = "INSERT_SUCCESS"
	UpdateSuccess                  ResponseCode = "UPDATE_SUCCESS"
	InsertFailureReference         ResponseCode = "INSERT_FAILURE_REFERENCE"
	UpdateFailureReference         ResponseCode = "UPDATE_FAILURE_REFERENCE"
	InsertFailureConflict          ResponseCode = "INSERT_FAILURE_CONFLICT"
	UpsertFailureWriteConflict     ResponseCode = "UPSERT_FAILURE_WRITE_CONFLICT"
	UpdateFailureNotExists         ResponseCode = "UPDATE_FAILURE_NOT_EXISTS"
	UpdateFailureImmutableIdentity ResponseCode = "UPDATE_FAILURE_IMMUTABLE_IDENTITY"
	UpdateFailureWriteConflict     ResponseCode = "UPDATE_FAILURE_WRITE_CONFLICT"
	UpdateFailureConflict          ResponseCode = "UPDATE_FAILURE_CONFLICT"
	UpdateCascadeRequired          ResponseCode = "UPDATE_CASCADE_REQUIRED"
	DeleteSuccess                  ResponseCode = "DELETE_SUCCESS"
	DeleteFailureNotExists         ResponseCode = "DELETE_FAILURE_NOT_EXISTS"
	DeleteFailureReference         ResponseCode = "DELETE_FAILURE_REFERENCE"
	DeleteFailureWriteConflict     ResponseCode = "DELETE_FAILURE_WRITE_CONFLICT"
	GetSuccess                     ResponseCode = "GET_SUCCESS"
	GetFailureNotExists            ResponseCode = "GET_FAILURE_NOT_EXISTS"
	UnknownFailure                 ResponseCode = "UNKNOWN_FAILURE"
)

// IsSuccess reports whether code is one of the success responses.
func IsSuccess(code ResponseCode) bool {
	switch code {
	case InsertSuccess, UpdateSuccess, DeleteSuccess, GetSuccess:
		return true
	}
	return false
}

// Summary is the flat result shape handed to outer layers (CLI, harness,
// an HTTP front end). Only the fields relevant to the outcome are set.
type Summary struct {
	Response          ResponseCode             `json:"response" yaml:"response"`
	DocumentUuid      model.DocumentUuid       `json:"documentUuid,omitempty" yaml:"documentUuid,omitempty"`
	FailureMessage    string                   `json:"failureMessage,omitempty" yaml:"failureMessage,omitempty"`
	Failures          []model.MissingIdentity  `json:"failures,omitempty" yaml:"failures,omitempty"`
	BlockingDocuments []model.BlockingDocument `json:"blockingDocuments,omitempty" yaml:"blockingDocuments,omitempty"`
	Document          json.RawMessage          `json:"document,omitempty" yaml:"-"`
	CreatedAt         int64                    `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	LastModifiedAt    int64                    `json:"lastModifiedAt,omitempty" yaml:"lastModifiedAt,omitempty"`
}

// Outcome is implemented by every variant of every operation.
type Outcome interface {
	Response() ResponseCode
	Summary() Summary
}

// ---------------------------------------------------------------------------
// Upsert
// ---------------------------------------------------------------------------

// UpsertOutcome is one of UpsertInserted, UpsertUpdated,
// UpsertReferenceFailure, UpsertConflict, UpsertWriteConflict or
// UpsertUnknownFailure.
type UpsertOutcome interface {
	Outcome
	upsertOutcome()
}

type UpsertInserted struct {
	DocumentUuid model.DocumentUuid
}

type UpsertUpdated struct {
	DocumentUuid model.DocumentUuid
}

// UpsertReferenceFailure reports missing referenced documents. IsInsert
// selects between the insert and update response codes.
type UpsertReferenceFailure struct {
	IsInsert          bool
	Failures          []model.MissingIdentity
	BlockingDocuments []model.BlockingDocument
}

// UpsertConflict reports that a subclass insert collided with another
// document already claiming the same superclass identity.
type UpsertConflict struct {
	FailureMessage    string
	BlockingDocuments []model.BlockingDocument
}

type UpsertWriteConflict struct {
	FailureMessage string
}

type UpsertUnknownFailure struct {
	FailureMessage string
}

func (UpsertInserted) Response() ResponseCode { return InsertSuccess }
func (UpsertUpdated) Response() ResponseCode  { return UpdateSuccess }
func (o UpsertReferenceFailure) Response() ResponseCode {
	if o.IsInsert {
		return InsertFailureReference
	}
	return UpdateFailureReference
}
func (UpsertConflict) Response() ResponseCode       { return InsertFailureConflict }
func (UpsertWriteConflict) Response() ResponseCode  { return UpsertFailureWriteConflict }
func (UpsertUnknownFailure) Response() ResponseCode { return UnknownFailure }

func (o UpsertInserted) Summary() Summary {
	return Summary{Response: o.Response(), DocumentUuid: o.DocumentUuid}
}
func (o UpsertUpdated) Summary() Summary {
	return Summary{Response: o.Response(), DocumentUuid: o.DocumentUuid}
}
func (o UpsertReferenceFailure) Summary() Summary {
	return Summary{
		Response:          o.Response(),
		FailureMessage:    referenceFailureMessage,
		Failures:          o.Failures,
		BlockingDocuments: o.BlockingDocuments,
	}
}
func (o UpsertConflict) Summary() Summary {
	return Summary{Response: o.Response(), FailureMessage: o.FailureMessage, BlockingDocuments: o.BlockingDocuments}
}
func (o UpsertWriteConflict) Summary() Summary {
	return Summary{Response: o.Response(), FailureMessage: o.FailureMessage}
}
func (o UpsertUnknownFailure) Summary() Summary {
	return Summary{Response: o.Response(), FailureMessage: o.FailureMessage}
}

func (UpsertInserted) upsertOutcome()         {}
func (UpsertUpdated) upsertOutcome()          {}
func (UpsertReferenceFailure) upsertOutcome() {}
func (UpsertConflict) upsertOutcome()         {}
func (UpsertWriteConflict) upsertOutcome()    {}
func (UpsertUnknownFailure) upsertOutcome()   {}

// ---------------------------------------------------------------------------
// Update
// ---------------------------------------------------------------------------

// UpdateOutcome is one of UpdateSucceeded, UpdateNotExists,
// UpdateImmutableIdentity, UpdateReferenceFailure, UpdateWriteConflict,
// UpdateConflict, UpdateCascade or UpdateUnknownFailure.
type UpdateOutcome interface {
	Outcome
	updateOutcome()
}

type UpdateSucceeded struct {
	DocumentUuid model.DocumentUuid
}

type UpdateNotExists struct{}

type UpdateImmutableIdentity struct {
	FailureMessage string
}

type UpdateReferenceFailure struct {
	Failures          []model.MissingIdentity
	BlockingDocuments []model.BlockingDocument
}

type UpdateWriteConflict struct {
	FailureMessage string
}

// UpdateConflict reports that the new identity of an identity-changing
// update is already claimed by another document.
type UpdateConflict struct {
	FailureMessage    string
	BlockingDocuments []model.BlockingDocument
}

// UpdateCascade reports that an identity change would orphan references
// held by other documents. The cascade itself is not performed.
type UpdateCascade struct {
	BlockingDocuments []model.BlockingDocument
}

type UpdateUnknownFailure struct {
	FailureMessage string
}

func (UpdateSucceeded) Response() ResponseCode         { return UpdateSuccess }
func (UpdateNotExists) Response() ResponseCode         { return UpdateFailureNotExists }
func (UpdateImmutableIdentity) Response() ResponseCode { return UpdateFailureImmutableIdentity }
func (UpdateReferenceFailure) Response() ResponseCode  { return UpdateFailureReference }
func (UpdateWriteConflict) Response() ResponseCode     { return UpdateFailureWriteConflict }
func (UpdateConflict) Response() ResponseCode          { return UpdateFailureConflict }
func (UpdateCascade) Response() ResponseCode           { return UpdateCascadeRequired }
func (UpdateUnknownFailure) Response() ResponseCode    { return UnknownFailure }

func (o UpdateSucceeded) Summary() Summary {
	return Summary{Response: o.Response(), DocumentUuid: o.DocumentUuid}
}
func (o UpdateNotExists) Summary() Summary { return Summary{Response: o.Response()} }
func (o UpdateImmutableIdentity) Summary() Summary {
	return Summary{Response: o.Response(), FailureMessage: o.FailureMessage}
}
func (o UpdateReferenceFailure) Summary() Summary {
	return Summary{
		Response:          o.Response(),
		FailureMessage:    referenceFailureMessage,
		Failures:          o.Failures,
		BlockingDocuments: o.BlockingDocuments,
	}
}
func (o UpdateWriteConflict) Summary() Summary {
	return Summary{Response: o.Response(), FailureMessage: o.FailureMessage}
}
func (o UpdateConflict) Summary() Summary {
	return Summary{Response: o.Response(), FailureMessage: o.FailureMessage, BlockingDocuments: o.BlockingDocuments}
}
func (o UpdateCascade) Summary() Summary {
	return Summary{Response: o.Response(), BlockingDocuments: o.BlockingDocuments}
}
func (o UpdateUnknownFailure) Summary() Summary {
	return Summary{Response: o.Response(), FailureMessage: o.FailureMessage}
}

func (UpdateSucceeded) updateOutcome()         {}
func (UpdateNotExists) updateOutcome()         {}
func (UpdateImmutableIdentity) updateOutcome() {}
func (UpdateReferenceFailure) updateOutcome()  {}
func (UpdateWriteConflict) updateOutcome()     {}
func (UpdateConflict) updateOutcome()          {}
func (UpdateCascade) updateOutcome()           {}
func (UpdateUnknownFailure) updateOutcome()    {}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

// DeleteOutcome is one of DeleteSucceeded, DeleteNotExists,
// DeleteReferenceFailure, DeleteWriteConflict or DeleteUnknownFailure.
type DeleteOutcome interface {
	Outcome
	deleteOutcome()
}

type DeleteSucceeded struct{}

type DeleteNotExists struct{}

type DeleteReferenceFailure struct {
	BlockingDocuments []model.BlockingDocument
}

type DeleteWriteConflict struct {
	FailureMessage string
}

type DeleteUnknownFailure struct {
	FailureMessage string
}

func (DeleteSucceeded) Response() ResponseCode        { return DeleteSuccess }
func (DeleteNotExists) Response() ResponseCode        { return DeleteFailureNotExists }
func (DeleteReferenceFailure) Response() ResponseCode { return DeleteFailureReference }
func (DeleteWriteConflict) Response() ResponseCode    { return DeleteFailureWriteConflict }
func (DeleteUnknownFailure) Response() ResponseCode   { return UnknownFailure }

func (o DeleteSucceeded) Summary() Summary { return Summary{Response: o.Response()} }
func (o DeleteNotExists) Summary() Summary { return Summary{Response: o.Response()} }
func (o DeleteReferenceFailure) Summary() Summary {
	return Summary{
		Response:          o.Response(),
		FailureMessage:    "Delete failed due to existing references to the document",
		BlockingDocuments: o.BlockingDocuments,
	}
}
func (o DeleteWriteConflict) Summary() Summary {
	return Summary{Response: o.Response(), FailureMessage: o.FailureMessage}
}
func (o DeleteUnknownFailure) Summary() Summary {
	return Summary{Response: o.Response(), FailureMessage: o.FailureMessage}
}

func (DeleteSucceeded) deleteOutcome()        {}
func (DeleteNotExists) deleteOutcome()        {}
func (DeleteReferenceFailure) deleteOutcome() {}
func (DeleteWriteConflict) deleteOutcome()    {}
func (DeleteUnknownFailure) deleteOutcome()   {}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

// GetOutcome is one of GetFound, GetNotExists or GetUnknownFailure.
type GetOutcome interface {
	Outcome
	getOutcome()
}

// GetFound carries the stored payload with its surrogate id merged in as
// "id".
type GetFound struct {
	DocumentUuid   model.DocumentUuid
	EdfiDoc        json.RawMessage
	CreatedAt      int64
	LastModifiedAt int64
}

type GetNotExists struct{}

type GetUnknownFailure struct {
	FailureMessage string
}

func (GetFound) Response() ResponseCode          { return GetSuccess }
func (GetNotExists) Response() ResponseCode      { return GetFailureNotExists }
func (GetUnknownFailure) Response() ResponseCode { return UnknownFailure }

func (o GetFound) Summary() Summary {
	return Summary{
		Response:       o.Response(),
		DocumentUuid:   o.DocumentUuid,
		Document:       o.EdfiDoc,
		CreatedAt:      o.CreatedAt,
		LastModifiedAt: o.LastModifiedAt,
	}
}
func (o GetNotExists) Summary() Summary { return Summary{Response: o.Response()} }
func (o GetUnknownFailure) Summary() Summary {
	return Summary{Response: o.Response(), FailureMessage: o.FailureMessage}
}

func (GetFound) getOutcome()          {}
func (GetNotExists) getOutcome()      {}
func (GetUnknownFailure) getOutcome() {}

const (
	referenceFailureMessage = "Reference validation failed"
	writeConflictMessage    = "Write conflict due to concurrent access to this or related resources"
)
