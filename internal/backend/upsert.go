package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/identity"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/model"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/store"
)

// Upsert inserts the document identified by req.MeadowlarkId, or replaces
// it if it already exists.
func (b *Backend) Upsert(ctx context.Context, req model.UpsertRequest) UpsertOutcome {
	start := time.Now()
	logger := b.logger.With("trace_id", req.TraceId, "meadowlark_id", req.MeadowlarkId)
	logger.Debug("upsert starting", "resource", req.ResourceInfo.ResourceName)

	outcome := b.upsert(ctx, req, logger)

	b.metrics.observe("upsert", outcome.Response(), start)
	logger.Info("upsert finished", "response", outcome.Response())
	return outcome
}

func (b *Backend) upsert(ctx context.Context, req model.UpsertRequest, logger *slog.Logger) UpsertOutcome {
	var outcome UpsertOutcome
	err := b.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		outcome, err = b.upsertInTx(ctx, tx, req, logger)
		if err != nil {
			return err
		}
		switch outcome.(type) {
		case UpsertInserted, UpsertUpdated:
			return nil
		default:
			return errAborted
		}
	})

	switch {
	case err == nil, errors.Is(err, errAborted):
		return outcome
	case isWriteConflict(err):
		logger.Warn("upsert write conflict", "error", err)
		return UpsertWriteConflict{FailureMessage: writeConflictMessage}
	default:
		logger.Error("upsert failed", "error", err)
		return UpsertUnknownFailure{FailureMessage: err.Error()}
	}
}

func (b *Backend) upsertInTx(ctx context.Context, tx *store.Tx, req model.UpsertRequest, logger *slog.Logger) (UpsertOutcome, error) {
	existing, err := tx.FindByMeadowlarkId(ctx, req.MeadowlarkId)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	isInsert := existing == nil

	// A new subclass document may not take a superclass identity already
	// claimed by a different subclass.
	if isInsert && req.DocumentInfo.SuperclassInfo != nil {
		conflict, err := superclassConflict(ctx, tx, *req.DocumentInfo.SuperclassInfo, req.ResourceInfo, "")
		if err != nil {
			return nil, err
		}
		if conflict != nil {
			logger.Warn("insert conflicts with existing superclass identity",
				"blocking_document_uuid", conflict.BlockingDocuments[0].DocumentUuid)
			return *conflict, nil
		}
	}

	if req.ValidateDocumentReferencesExist {
		failures, err := validateReferences(ctx, tx, req.DocumentInfo.DocumentReferences, req.DocumentInfo.DescriptorReferences)
		if err != nil {
			return nil, err
		}
		if len(failures) > 0 {
			logger.Debug("upsert failed due to invalid references", "missing", len(failures))
			blocking, err := tx.FindReferringDocuments(ctx, []model.MeadowlarkId{req.MeadowlarkId}, "", model.MaxBlockingDocuments)
			if err != nil {
				return nil, err
			}
			return UpsertReferenceFailure{IsInsert: isInsert, Failures: failures, BlockingDocuments: blocking}, nil
		}
	}

	documentUuid := req.DocumentUuidForInsert
	if !isInsert {
		documentUuid = existing.DocumentUuid
	} else if documentUuid == "" {
		documentUuid = b.uuidGen.Generate()
	}

	ts := b.requestTime(req.DocumentInfo.RequestTimestamp)
	doc := documentFrom(req.ResourceInfo, req.DocumentInfo, documentUuid, req.MeadowlarkId, req.EdfiDoc,
		req.ValidateDocumentReferencesExist, req.CreatedBy, ts)

	guard, err := b.guardWrite(ctx, tx,
		[]store.RegistryEntry{{MeadowlarkId: doc.MeadowlarkId, DocumentUuid: doc.DocumentUuid}},
		doc.OutboundRefs)
	if err != nil {
		return nil, err
	}

	logger.Debug("upserting document", "document_uuid", doc.DocumentUuid, "insert", isInsert)

	var inserted bool
	err = b.finalWrite(ctx, "upsert", logger, func() error {
		var err error
		inserted, err = tx.PutDocument(ctx, doc)
		return err
	})
	if err != nil {
		// Another document took the superclass alias between our check and
		// the write.
		if store.IsDuplicateKey(err) && req.DocumentInfo.SuperclassInfo != nil {
			conflict, lookupErr := superclassConflict(ctx, tx, *req.DocumentInfo.SuperclassInfo, req.ResourceInfo, doc.DocumentUuid)
			if lookupErr == nil && conflict != nil {
				return *conflict, nil
			}
		}
		return nil, err
	}

	if inserted != isInsert {
		logger.Error("upsert matched unexpectedly",
			"document_uuid", doc.DocumentUuid, "expected_insert", isInsert, "inserted", inserted)
		return UpsertUnknownFailure{
			FailureMessage: fmt.Sprintf("Expected insert=%t for meadowlarkId %s", isInsert, doc.MeadowlarkId),
		}, nil
	}

	if err := guard.release(ctx); err != nil {
		return nil, err
	}

	if inserted {
		return UpsertInserted{DocumentUuid: doc.DocumentUuid}, nil
	}
	return UpsertUpdated{DocumentUuid: doc.DocumentUuid}, nil
}

// superclassConflict returns an UpsertConflict if the superclass alias of
// info is claimed by a document other than self.
func superclassConflict(ctx context.Context, tx *store.Tx, info model.SuperclassInfo, resourceInfo model.ResourceInfo, self model.DocumentUuid) (*UpsertConflict, error) {
	owner, err := tx.FindAliasOwner(ctx, identity.ForSuperclass(info))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if owner.DocumentUuid == self {
		return nil, nil
	}
	return &UpsertConflict{
		FailureMessage: fmt.Sprintf("Insert failed: the identity is in use by '%s' which is also a(n) '%s'",
			owner.ResourceName, info.ResourceName),
		BlockingDocuments: []model.BlockingDocument{*owner},
	}, nil
}

// documentFrom builds the record to persist. createdAt is ts here; the
// store keeps the original value when the row already exists.
func documentFrom(
	resourceInfo model.ResourceInfo,
	documentInfo model.DocumentInfo,
	documentUuid model.DocumentUuid,
	meadowlarkId model.MeadowlarkId,
	edfiDoc []byte,
	validated bool,
	createdBy string,
	ts int64,
) *model.MeadowlarkDocument {
	return &model.MeadowlarkDocument{
		DocumentUuid:       documentUuid,
		MeadowlarkId:       meadowlarkId,
		DocumentIdentity:   documentInfo.DocumentIdentity.Canonical(),
		ProjectName:        resourceInfo.ProjectName,
		ResourceName:       resourceInfo.ResourceName,
		ResourceVersion:    resourceInfo.ResourceVersion,
		IsDescriptor:       resourceInfo.IsDescriptor,
		EdfiDoc:            edfiDoc,
		OutboundRefs:       identity.OutboundRefs(documentInfo),
		AliasMeadowlarkIds: identity.Aliases(resourceInfo, documentInfo),
		Validated:          validated,
		CreatedBy:          createdBy,
		CreatedAt:          ts,
		LastModifiedAt:     ts,
	}
}
