// Package backend implements the document persistence protocols: Upsert,
// Update, Delete and Get.
//
// Each write runs in exactly one store transaction and follows the same
// shape:
//
//  1. read what the decision needs (existing document, alias owners)
//  2. validate (identity rules, reference existence, referrers)
//  3. register materialized conflicts for every document the write depends on
//  4. touch the lock marker of every referenced document
//  5. perform the final write, retried on transient write conflicts
//  6. clear the registry rows and commit
//
// Any outcome other than success rolls the transaction back. Business
// outcomes are returned as tagged values (UpsertOutcome, UpdateOutcome,
// DeleteOutcome, GetOutcome); Go errors never escape the protocol methods.
package backend
