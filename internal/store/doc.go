// Package store provides the SQLite-backed storage gateway for Meadowlark
// documents.
//
// The store holds four tables:
//   - documents: one row per document, keyed by document_uuid, with a
//     UNIQUE meadowlark_id
//   - aliases: alias MeadowlarkId -> document_uuid. The alias is the primary
//     key, so no two documents can claim the same superclass identity
//   - outbound_refs: (document_uuid, referenced_meadowlark_id), indexed on
//     the referenced id for "who references me" lookups
//   - concurrency_registry: (meadowlark_id, document_uuid) with a UNIQUE
//     constraint, used as a materialized conflict token inside a write
//
// Foreign keys cascade alias and outbound_ref rows when a document is
// deleted. References *to* a document are not foreign keys: a delete without
// reference validation leaves them dangling by design of the API.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous: from Config.Synchronous (write consistency)
//   - _txlock: from Config.TxLock (read consistency); "immediate" takes the
//     write lock at BEGIN so read-then-write transactions serialize
//   - busy_timeout: wait for locks up to Config.BusyTimeout
//   - foreign_keys=ON
//
// Errors from the driver are classified by IsWriteConflict and
// IsDuplicateKey so callers can decide what to retry.
package store
