package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/model"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/store"
)

// Get reads one document by surrogate key. No transaction or locking is
// involved.
func (b *Backend) Get(ctx context.Context, req model.GetRequest) GetOutcome {
	start := time.Now()
	logger := b.logger.With("trace_id", req.TraceId, "document_uuid", req.DocumentUuid)

	outcome := b.get(ctx, req)
	if f, ok := outcome.(GetUnknownFailure); ok {
		logger.Error("get failed", "error", f.FailureMessage)
	}

	b.metrics.observe("get", outcome.Response(), start)
	logger.Debug("get finished", "response", outcome.Response())
	return outcome
}

func (b *Backend) get(ctx context.Context, req model.GetRequest) GetOutcome {
	if !IsValidDocumentUuid(req.DocumentUuid) {
		return GetNotExists{}
	}

	doc, err := b.store.GetDocument(ctx, req.DocumentUuid)
	if errors.Is(err, store.ErrNotFound) {
		return GetNotExists{}
	}
	if err != nil {
		return GetUnknownFailure{FailureMessage: err.Error()}
	}

	payload, err := withId(doc.EdfiDoc, doc.DocumentUuid)
	if err != nil {
		return GetUnknownFailure{FailureMessage: err.Error()}
	}

	return GetFound{
		DocumentUuid:   doc.DocumentUuid,
		EdfiDoc:        payload,
		CreatedAt:      doc.CreatedAt,
		LastModifiedAt: doc.LastModifiedAt,
	}
}

// withId returns the JSON object edfiDoc with "id" set to documentUuid.
func withId(edfiDoc json.RawMessage, documentUuid model.DocumentUuid) (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if len(edfiDoc) > 0 {
		if err := json.Unmarshal(edfiDoc, &fields); err != nil {
			return nil, fmt.Errorf("stored document is not a JSON object: %w", err)
		}
	}

	id, err := json.Marshal(string(documentUuid))
	if err != nil {
		return nil, err
	}
	fields["id"] = id

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return out, nil
}
