package identity

import (
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
	"golang.org/x/text/unicode/norm"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/model"
)

const (
	hashBytes        = 28 // 224 bits
	separator        = "#"
	descriptorSuffix = "Descriptor"
)

// MeadowlarkIdLength is the length of an encoded MeadowlarkId.
var MeadowlarkIdLength = base64.RawURLEncoding.EncodedLen(hashBytes)

// hash computes SHAKE256(data) truncated to 224 bits, base64url encoded
// without padding.
func hash(data string) string {
	h := sha3.NewShake256()
	h.Write([]byte(data))

	out := make([]byte, hashBytes)
	h.Read(out)
	return base64.RawURLEncoding.EncodeToString(out)
}

// NormalizeDescriptorSuffix returns the resource name ending in exactly one
// "Descriptor" suffix.
func NormalizeDescriptorSuffix(resourceName string) string {
	return strings.TrimSuffix(resourceName, descriptorSuffix) + descriptorSuffix
}

// hashInput builds the canonical string that is hashed into a MeadowlarkId.
func hashInput(projectName, resourceName string, isDescriptor bool, documentIdentity model.DocumentIdentity) string {
	if isDescriptor {
		resourceName = NormalizeDescriptorSuffix(resourceName)
	}

	var b strings.Builder
	b.WriteString(norm.NFC.String(projectName))
	b.WriteString(separator)
	b.WriteString(norm.NFC.String(resourceName))
	for _, element := range documentIdentity.Canonical() {
		b.WriteString(separator)
		b.WriteString(norm.NFC.String(element.Name))
		b.WriteByte('=')
		b.WriteString(norm.NFC.String(element.Value))
	}
	return b.String()
}

// MeadowlarkIdFor computes the MeadowlarkId of a document of the given
// resource with the given identity.
//
// Panics if documentIdentity is empty for a non-descriptor resource: every
// such resource has a natural key, so an empty one is an extraction bug.
func MeadowlarkIdFor(projectName, resourceName string, isDescriptor bool, documentIdentity model.DocumentIdentity) model.MeadowlarkId {
	if len(documentIdentity) == 0 && !isDescriptor {
		panic(fmt.Sprintf("identity: empty document identity for %s.%s", projectName, resourceName))
	}
	return model.MeadowlarkId(hash(hashInput(projectName, resourceName, isDescriptor, documentIdentity)))
}

// ForDocument computes the MeadowlarkId of a document.
func ForDocument(resourceInfo model.ResourceInfo, documentIdentity model.DocumentIdentity) model.MeadowlarkId {
	return MeadowlarkIdFor(resourceInfo.ProjectName, resourceInfo.ResourceName, resourceInfo.IsDescriptor, documentIdentity)
}

// ForReference computes the MeadowlarkId of the target of a reference.
func ForReference(ref model.DocumentReference) model.MeadowlarkId {
	return MeadowlarkIdFor(ref.ProjectName, ref.ResourceName, ref.IsDescriptor, ref.DocumentIdentity)
}

// ForSuperclass computes the superclass-form MeadowlarkId of a subclass
// document. Descriptors are never superclasses.
func ForSuperclass(info model.SuperclassInfo) model.MeadowlarkId {
	return MeadowlarkIdFor(info.ProjectName, info.ResourceName, false, info.DocumentIdentity)
}

// ForReferences converts references to MeadowlarkIds, preserving order so
// that result[i] is the id of refs[i].
func ForReferences(refs []model.DocumentReference) []model.MeadowlarkId {
	ids := make([]model.MeadowlarkId, len(refs))
	for i, ref := range refs {
		ids[i] = ForReference(ref)
	}
	return ids
}

// IsValidMeadowlarkId reports whether s has the form of a MeadowlarkId.
func IsValidMeadowlarkId(s string) bool {
	if len(s) != MeadowlarkIdLength {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(s)
	return err == nil
}
