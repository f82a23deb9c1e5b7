package store

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/model"
)

// ErrNotFound is returned by point lookups that match no document.
var ErrNotFound = errors.New("document not found")

// IsWriteConflict reports whether err is a transient lock conflict from the
// database (SQLITE_BUSY or SQLITE_LOCKED). These are worth retrying.
func IsWriteConflict(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
}

// IsDuplicateKey reports whether err is a UNIQUE or PRIMARY KEY violation.
func IsDuplicateKey(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
		se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// ConflictError reports that a concurrency registry entry already existed,
// meaning another in-flight write holds the same document.
type ConflictError struct {
	MeadowlarkId model.MeadowlarkId
	DocumentUuid model.DocumentUuid
	Err          error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrent write on document %s (%s): %v", e.DocumentUuid, e.MeadowlarkId, e.Err)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// IsConflict reports whether err is or wraps a *ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
