package model

import (
	"slices"
	"strings"
)

// MeadowlarkId is the deterministic identifier of a document computed from
// its project, resource name and document identity.
type MeadowlarkId string

// DocumentUuid is the server-assigned surrogate key of a document. It never
// changes for the life of the document, including across identity updates.
type DocumentUuid string

// TraceId correlates log lines for one request.
type TraceId string

// DocumentElement is one name/value pair of a document's natural key.
type DocumentElement struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// DocumentIdentity is the natural key of a document. Element order is not
// significant to callers; Canonical returns the ordering used for hashing.
type DocumentIdentity []DocumentElement

// Canonical returns a copy of the identity stably sorted by element name.
func (d DocumentIdentity) Canonical() DocumentIdentity {
	out := make(DocumentIdentity, len(d))
	copy(out, d)
	slices.SortStableFunc(out, func(a, b DocumentElement) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Rename returns a copy of the identity where an element named from is
// renamed to. Elements with other names are unchanged.
func (d DocumentIdentity) Rename(from, to string) DocumentIdentity {
	out := make(DocumentIdentity, len(d))
	for i, e := range d {
		if e.Name == from {
			e.Name = to
		}
		out[i] = e
	}
	return out
}

// Map returns the identity as a name to value map.
func (d DocumentIdentity) Map() map[string]string {
	m := make(map[string]string, len(d))
	for _, e := range d {
		m[e.Name] = e.Value
	}
	return m
}

// IdentityFromMap builds a canonical DocumentIdentity from a name to value map.
func IdentityFromMap(m map[string]string) DocumentIdentity {
	d := make(DocumentIdentity, 0, len(m))
	for k, v := range m {
		d = append(d, DocumentElement{Name: k, Value: v})
	}
	return d.Canonical()
}
