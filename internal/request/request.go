// Package request turns resource-named document descriptions, as written in
// scenario and request files, into backend requests using a catalog.
package request

import (
	"encoding/json"
	"fmt"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/catalog"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/identity"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/model"
)

// Reference names a referenced document by resource and identity values.
type Reference struct {
	Resource string            `yaml:"resource" json:"resource"`
	Identity map[string]string `yaml:"identity" json:"identity"`
}

// Document describes a document to write.
type Document struct {
	Resource    string            `yaml:"resource" json:"resource"`
	Identity    map[string]string `yaml:"identity" json:"identity"`
	References  []Reference       `yaml:"references,omitempty" json:"references,omitempty"`
	Descriptors []Reference       `yaml:"descriptors,omitempty" json:"descriptors,omitempty"`

	// Body is the API document. Identity values missing from it are added.
	Body map[string]any `yaml:"body,omitempty" json:"body,omitempty"`
}

// Builder builds backend requests against one catalog.
type Builder struct {
	catalog   *catalog.Catalog
	createdBy string
}

// NewBuilder returns a builder that stamps createdBy on writes.
func NewBuilder(c *catalog.Catalog, createdBy string) *Builder {
	return &Builder{catalog: c, createdBy: createdBy}
}

// Catalog returns the builder's catalog.
func (b *Builder) Catalog() *catalog.Catalog {
	return b.catalog
}

// MeadowlarkId computes the id of doc without building a request.
func (b *Builder) MeadowlarkId(resourceName string, values map[string]string) (model.MeadowlarkId, error) {
	r, err := b.lookup(resourceName)
	if err != nil {
		return "", err
	}
	return r.MeadowlarkId(values)
}

// Upsert builds an upsert request for doc at request time ts.
func (b *Builder) Upsert(doc Document, validate bool, ts int64, traceId model.TraceId) (model.UpsertRequest, error) {
	resource, info, edfiDoc, err := b.document(doc, ts)
	if err != nil {
		return model.UpsertRequest{}, err
	}
	return model.UpsertRequest{
		MeadowlarkId:                    identity.ForDocument(resource.Info, info.DocumentIdentity),
		ResourceInfo:                    resource.Info,
		DocumentInfo:                    info,
		EdfiDoc:                         edfiDoc,
		ValidateDocumentReferencesExist: validate,
		CreatedBy:                       b.createdBy,
		TraceId:                         traceId,
	}, nil
}

// Update builds an update of the document with documentUuid to doc.
func (b *Builder) Update(documentUuid model.DocumentUuid, doc Document, validate bool, ts int64, traceId model.TraceId) (model.UpdateRequest, error) {
	resource, info, edfiDoc, err := b.document(doc, ts)
	if err != nil {
		return model.UpdateRequest{}, err
	}
	return model.UpdateRequest{
		DocumentUuid:                    documentUuid,
		MeadowlarkId:                    identity.ForDocument(resource.Info, info.DocumentIdentity),
		ResourceInfo:                    resource.Info,
		DocumentInfo:                    info,
		EdfiDoc:                         edfiDoc,
		ValidateDocumentReferencesExist: validate,
		CreatedBy:                       b.createdBy,
		TraceId:                         traceId,
	}, nil
}

// Delete builds a delete of the document with documentUuid.
func (b *Builder) Delete(resourceName string, documentUuid model.DocumentUuid, validate bool, traceId model.TraceId) (model.DeleteRequest, error) {
	r, err := b.lookup(resourceName)
	if err != nil {
		return model.DeleteRequest{}, err
	}
	return model.DeleteRequest{
		DocumentUuid:                   documentUuid,
		ResourceInfo:                   r.Info,
		ValidateNoReferencesToDocument: validate,
		TraceId:                        traceId,
	}, nil
}

// Get builds a read of the document with documentUuid.
func (b *Builder) Get(resourceName string, documentUuid model.DocumentUuid, traceId model.TraceId) (model.GetRequest, error) {
	r, err := b.lookup(resourceName)
	if err != nil {
		return model.GetRequest{}, err
	}
	return model.GetRequest{
		DocumentUuid: documentUuid,
		ResourceInfo: r.Info,
		TraceId:      traceId,
	}, nil
}

func (b *Builder) document(doc Document, ts int64) (*catalog.Resource, model.DocumentInfo, json.RawMessage, error) {
	resource, err := b.lookup(doc.Resource)
	if err != nil {
		return nil, model.DocumentInfo{}, nil, err
	}

	refs, err := b.references(doc.References, false)
	if err != nil {
		return nil, model.DocumentInfo{}, nil, err
	}
	descriptors, err := b.references(doc.Descriptors, true)
	if err != nil {
		return nil, model.DocumentInfo{}, nil, err
	}

	info, err := resource.DocumentInfo(doc.Identity, refs, descriptors, ts)
	if err != nil {
		return nil, model.DocumentInfo{}, nil, err
	}

	edfiDoc, err := body(doc)
	if err != nil {
		return nil, model.DocumentInfo{}, nil, err
	}
	return resource, info, edfiDoc, nil
}

func (b *Builder) references(refs []Reference, descriptors bool) ([]model.DocumentReference, error) {
	out := make([]model.DocumentReference, 0, len(refs))
	for i, ref := range refs {
		r, err := b.lookup(ref.Resource)
		if err != nil {
			return nil, fmt.Errorf("reference %d: %w", i, err)
		}
		if r.Info.IsDescriptor != descriptors {
			if descriptors {
				return nil, fmt.Errorf("reference %d: %s is not a descriptor", i, ref.Resource)
			}
			return nil, fmt.Errorf("reference %d: %s is a descriptor, list it under descriptors", i, ref.Resource)
		}
		docRef, err := r.Reference(ref.Identity)
		if err != nil {
			return nil, fmt.Errorf("reference %d: %w", i, err)
		}
		out = append(out, docRef)
	}
	return out, nil
}

func (b *Builder) lookup(name string) (*catalog.Resource, error) {
	r, ok := b.catalog.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown resource %q", name)
	}
	return r, nil
}

func body(doc Document) (json.RawMessage, error) {
	merged := make(map[string]any, len(doc.Body)+len(doc.Identity))
	for k, v := range doc.Body {
		merged[k] = v
	}
	for k, v := range doc.Identity {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encoding body: %w", err)
	}
	return data, nil
}
