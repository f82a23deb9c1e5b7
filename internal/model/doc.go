// Package model provides the types shared by every layer of the document
// persistence engine.
//
// This package contains type definitions only. All other internal packages
// import model; model imports nothing internal.
//
// Key design constraints:
//   - A document is addressed two ways: by its MeadowlarkId (derived from its
//     natural key, see internal/identity) and by its DocumentUuid (a stable
//     surrogate assigned on insert)
//   - Document payloads (EdfiDoc) are opaque JSON; the engine never inspects
//     them beyond the externally extracted DocumentInfo
//   - All JSON tags use camelCase to match the documents the API serves
package model
