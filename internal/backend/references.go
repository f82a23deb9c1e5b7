package backend

import (
	"context"
	"fmt"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/identity"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/model"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/store"
)

// validateReferences confirms every document and descriptor reference
// resolves, through the alias index, to a stored document. It returns one
// MissingIdentity per distinct missing target, in reference order.
//
// All targets are checked in a single membership query. Ids are computed in
// input order so each missing id maps back to the reference that produced
// it.
func validateReferences(ctx context.Context, tx *store.Tx, documentRefs, descriptorRefs []model.DocumentReference) ([]model.MissingIdentity, error) {
	refs := make([]model.DocumentReference, 0, len(documentRefs)+len(descriptorRefs))
	refs = append(refs, documentRefs...)
	refs = append(refs, descriptorRefs...)

	ids := identity.ForReferences(refs)
	found, err := tx.FindExistingAliases(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("validate references: %w", err)
	}

	missing := []model.MissingIdentity{}
	if len(found) == len(distinct(ids)) {
		return missing, nil
	}

	reported := make(map[model.MeadowlarkId]struct{})
	for i, id := range ids {
		if _, ok := found[id]; ok {
			continue
		}
		if _, ok := reported[id]; ok {
			continue
		}
		reported[id] = struct{}{}
		missing = append(missing, model.MissingIdentity{
			ResourceName: refs[i].ResourceName,
			Identity:     refs[i].DocumentIdentity,
		})
	}
	return missing, nil
}

func distinct(ids []model.MeadowlarkId) map[model.MeadowlarkId]struct{} {
	set := make(map[model.MeadowlarkId]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
