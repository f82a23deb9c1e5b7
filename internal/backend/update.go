package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/model"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/store"
)

// Update replaces the document with req.DocumentUuid.
//
// Checks run in this order: existence, staleness of the request timestamp,
// identity immutability, reference existence, then (for an allowed identity
// change) ownership of the new identity and references to the old one.
func (b *Backend) Update(ctx context.Context, req model.UpdateRequest) UpdateOutcome {
	start := time.Now()
	logger := b.logger.With("trace_id", req.TraceId, "document_uuid", req.DocumentUuid)
	logger.Debug("update starting", "resource", req.ResourceInfo.ResourceName)

	outcome := b.update(ctx, req, logger)

	b.metrics.observe("update", outcome.Response(), start)
	logger.Info("update finished", "response", outcome.Response())
	return outcome
}

func (b *Backend) update(ctx context.Context, req model.UpdateRequest, logger *slog.Logger) UpdateOutcome {
	if !IsValidDocumentUuid(req.DocumentUuid) {
		return UpdateNotExists{}
	}

	var outcome UpdateOutcome
	err := b.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		outcome, err = b.updateInTx(ctx, tx, req, logger)
		if err != nil {
			return err
		}
		if _, ok := outcome.(UpdateSucceeded); ok {
			return nil
		}
		return errAborted
	})

	switch {
	case err == nil, errors.Is(err, errAborted):
		return outcome
	case isWriteConflict(err):
		logger.Warn("update write conflict", "error", err)
		return UpdateWriteConflict{FailureMessage: writeConflictMessage}
	default:
		logger.Error("update failed", "error", err)
		return UpdateUnknownFailure{FailureMessage: err.Error()}
	}
}

func (b *Backend) updateInTx(ctx context.Context, tx *store.Tx, req model.UpdateRequest, logger *slog.Logger) (UpdateOutcome, error) {
	existing, err := tx.FindByDocumentUuid(ctx, req.DocumentUuid)
	if errors.Is(err, store.ErrNotFound) {
		return UpdateNotExists{}, nil
	}
	if err != nil {
		return nil, err
	}

	ts := b.requestTime(req.DocumentInfo.RequestTimestamp)
	if ts <= existing.LastModifiedAt {
		logger.Debug("stale update rejected", "request_timestamp", ts, "last_modified_at", existing.LastModifiedAt)
		return UpdateWriteConflict{
			FailureMessage: fmt.Sprintf("Request timestamp %d is not newer than the stored document", ts),
		}, nil
	}

	identityChanged := existing.MeadowlarkId != req.MeadowlarkId
	if identityChanged && !req.ResourceInfo.AllowIdentityUpdates {
		return UpdateImmutableIdentity{
			FailureMessage: "The identity of the resource does not match the identity in the updated document",
		}, nil
	}

	if req.ValidateDocumentReferencesExist {
		failures, err := validateReferences(ctx, tx, req.DocumentInfo.DocumentReferences, req.DocumentInfo.DescriptorReferences)
		if err != nil {
			return nil, err
		}
		if len(failures) > 0 {
			logger.Debug("update failed due to invalid references", "missing", len(failures))
			blocking, err := tx.FindReferringDocuments(ctx, []model.MeadowlarkId{req.MeadowlarkId}, "", model.MaxBlockingDocuments)
			if err != nil {
				return nil, err
			}
			return UpdateReferenceFailure{Failures: failures, BlockingDocuments: blocking}, nil
		}
	}

	doc := documentFrom(req.ResourceInfo, req.DocumentInfo, req.DocumentUuid, req.MeadowlarkId, req.EdfiDoc,
		req.ValidateDocumentReferencesExist, req.CreatedBy, ts)
	doc.CreatedAt = existing.CreatedAt

	registry := []store.RegistryEntry{{MeadowlarkId: existing.MeadowlarkId, DocumentUuid: existing.DocumentUuid}}

	if identityChanged {
		outcome, err := b.checkIdentityChange(ctx, tx, existing, doc)
		if err != nil || outcome != nil {
			return outcome, err
		}
		registry = append(registry, store.RegistryEntry{MeadowlarkId: doc.MeadowlarkId, DocumentUuid: doc.DocumentUuid})
		logger.Info("changing document identity", "old_meadowlark_id", existing.MeadowlarkId, "new_meadowlark_id", doc.MeadowlarkId)
	}

	guard, err := b.guardWrite(ctx, tx, registry, doc.OutboundRefs)
	if err != nil {
		return nil, err
	}

	var replaced bool
	err = b.finalWrite(ctx, "update", logger, func() error {
		var err error
		replaced, err = tx.ReplaceDocument(ctx, doc)
		return err
	})
	if err != nil {
		if store.IsDuplicateKey(err) {
			blocking, lookupErr := identityOwners(ctx, tx, doc)
			if lookupErr == nil && len(blocking) > 0 {
				return UpdateConflict{FailureMessage: identityInUseMessage, BlockingDocuments: blocking}, nil
			}
		}
		return nil, err
	}
	if !replaced {
		return UpdateWriteConflict{FailureMessage: writeConflictMessage}, nil
	}

	if err := guard.release(ctx); err != nil {
		return nil, err
	}

	return UpdateSucceeded{DocumentUuid: doc.DocumentUuid}, nil
}

const identityInUseMessage = "Update failed: the new identity is in use by another document"

// checkIdentityChange decides whether existing may take on the identity of
// doc. Returns a non-nil outcome when it may not.
func (b *Backend) checkIdentityChange(ctx context.Context, tx *store.Tx, existing, doc *model.MeadowlarkDocument) (UpdateOutcome, error) {
	blocking, err := identityOwners(ctx, tx, doc)
	if err != nil {
		return nil, err
	}
	if len(blocking) > 0 {
		return UpdateConflict{FailureMessage: identityInUseMessage, BlockingDocuments: blocking}, nil
	}

	// Aliases the document gives up; references to them would dangle.
	kept := distinct(doc.AliasMeadowlarkIds)
	var retired []model.MeadowlarkId
	for _, alias := range existing.AliasMeadowlarkIds {
		if _, ok := kept[alias]; !ok {
			retired = append(retired, alias)
		}
	}

	referrers, err := tx.FindReferringDocuments(ctx, retired, existing.DocumentUuid, model.MaxBlockingDocuments)
	if err != nil {
		return nil, err
	}
	if len(referrers) > 0 {
		return UpdateCascade{BlockingDocuments: referrers}, nil
	}
	return nil, nil
}

// identityOwners returns the documents other than doc that claim any of
// doc's aliases.
func identityOwners(ctx context.Context, tx *store.Tx, doc *model.MeadowlarkDocument) ([]model.BlockingDocument, error) {
	var owners []model.BlockingDocument
	seen := make(map[model.DocumentUuid]struct{})
	for _, alias := range doc.AliasMeadowlarkIds {
		owner, err := tx.FindAliasOwner(ctx, alias)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if owner.DocumentUuid == doc.DocumentUuid {
			continue
		}
		if _, ok := seen[owner.DocumentUuid]; ok {
			continue
		}
		seen[owner.DocumentUuid] = struct{}{}
		owners = append(owners, *owner)
	}

	// The new id may belong to a document whose aliases were never written.
	if existing, err := tx.FindByMeadowlarkId(ctx, doc.MeadowlarkId); err == nil {
		if _, ok := seen[existing.DocumentUuid]; !ok && existing.DocumentUuid != doc.DocumentUuid {
			owners = append(owners, blockingFrom(existing))
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	return owners, nil
}

func blockingFrom(doc *model.MeadowlarkDocument) model.BlockingDocument {
	return model.BlockingDocument{
		DocumentUuid:    doc.DocumentUuid,
		MeadowlarkId:    doc.MeadowlarkId,
		ResourceName:    doc.ResourceName,
		ProjectName:     doc.ProjectName,
		ResourceVersion: doc.ResourceVersion,
	}
}
