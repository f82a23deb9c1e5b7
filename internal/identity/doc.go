// Package identity computes MeadowlarkIds and alias sets.
//
// A MeadowlarkId is a pure function of (project name, resource name,
// canonical document identity). Every call site that needs an id for a
// document, a reference target, or a superclass alias goes through this
// package so that lookups by any of them agree.
//
// Hash input format (identity elements sorted by name, NFC normalized):
//
//	projectName#resourceName#name1=value1#name2=value2
//
// The hash is SHAKE256 over exactly that string, truncated to 224 bits and
// encoded as unpadded base64url (38 characters).
package identity
