package backend

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/model"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/store"
)

// Delete removes the document with req.DocumentUuid. With
// req.ValidateNoReferencesToDocument set, the delete is refused while any
// other document references one of its aliases. Without it, such
// references are left dangling.
func (b *Backend) Delete(ctx context.Context, req model.DeleteRequest) DeleteOutcome {
	start := time.Now()
	logger := b.logger.With("trace_id", req.TraceId, "document_uuid", req.DocumentUuid)
	logger.Debug("delete starting", "resource", req.ResourceInfo.ResourceName)

	outcome := b.delete(ctx, req, logger)

	b.metrics.observe("delete", outcome.Response(), start)
	logger.Info("delete finished", "response", outcome.Response())
	return outcome
}

func (b *Backend) delete(ctx context.Context, req model.DeleteRequest, logger *slog.Logger) DeleteOutcome {
	if !IsValidDocumentUuid(req.DocumentUuid) {
		return DeleteNotExists{}
	}

	var outcome DeleteOutcome
	err := b.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		outcome, err = b.deleteInTx(ctx, tx, req, logger)
		if err != nil {
			return err
		}
		if _, ok := outcome.(DeleteSucceeded); ok {
			return nil
		}
		return errAborted
	})

	switch {
	case err == nil, errors.Is(err, errAborted):
		return outcome
	case isWriteConflict(err):
		logger.Warn("delete write conflict", "error", err)
		return DeleteWriteConflict{FailureMessage: writeConflictMessage}
	default:
		logger.Error("delete failed", "error", err)
		return DeleteUnknownFailure{FailureMessage: err.Error()}
	}
}

func (b *Backend) deleteInTx(ctx context.Context, tx *store.Tx, req model.DeleteRequest, logger *slog.Logger) (DeleteOutcome, error) {
	existing, err := tx.FindByDocumentUuid(ctx, req.DocumentUuid)
	if errors.Is(err, store.ErrNotFound) {
		return DeleteNotExists{}, nil
	}
	if err != nil {
		return nil, err
	}

	if req.ValidateNoReferencesToDocument {
		referrers, err := tx.FindReferringDocuments(ctx, existing.AliasMeadowlarkIds, existing.DocumentUuid, model.MaxBlockingDocuments)
		if err != nil {
			return nil, err
		}
		if len(referrers) > 0 {
			logger.Debug("delete blocked by referring documents", "referrers", len(referrers))
			return DeleteReferenceFailure{BlockingDocuments: referrers}, nil
		}
	}

	// A delete depends on no other document, so only its own row is guarded.
	guard, err := b.guardWrite(ctx, tx,
		[]store.RegistryEntry{{MeadowlarkId: existing.MeadowlarkId, DocumentUuid: existing.DocumentUuid}},
		nil)
	if err != nil {
		return nil, err
	}

	var deleted bool
	err = b.finalWrite(ctx, "delete", logger, func() error {
		var err error
		deleted, err = tx.DeleteDocument(ctx, existing.DocumentUuid)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !deleted {
		return DeleteNotExists{}, nil
	}

	if err := guard.release(ctx); err != nil {
		return nil, err
	}
	return DeleteSucceeded{}, nil
}
