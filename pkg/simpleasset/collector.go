package simpleasset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Collector is the commit-time reference-count garbage collector. It is pure
// diff logic over an explicit ChangeSet: the transaction manager owns change
// tracking, the collector owns the decrement-and-delete consequences.
//
// Collect must run against the same before/after view the transaction
// manager computed for the commit, and all counter updates and deletions it
// performs are applied within one repository transaction. Blob reclamation
// for zero-count assets happens after that transaction commits; a failed
// blob delete is reported through the event sink and logged, never allowed
// to abort the commit.
type Collector struct {
	repo     Repository
	backends func(name string) (BlobStore, error)
	sink     EventSink
	logger   *slog.Logger
}

// NewCollector creates a collector. backends resolves a storage key to the
// blob store holding the asset's bytes.
func NewCollector(repo Repository, backends func(string) (BlobStore, error), sink EventSink, logger *slog.Logger) *Collector {
	if sink == nil {
		sink = NewNoopEventSink()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{repo: repo, backends: backends, sink: sink, logger: logger}
}

// refKey dedupes decrements within one commit: an asset removed from the
// same field of the same record is decremented at most once, even when the
// record shows up in both the update and the deletion pass.
type refKey struct {
	record uuid.UUID
	column string
	asset  uuid.UUID
}

// Collect applies the reference-count consequences of one commit.
//
// The deletion pass runs first and fully supersedes the update pass for a
// record's fields: a record that is both updated and deleted in the same
// flush decrements each (field, asset) pair exactly once. The same asset
// referenced from two different fields decrements once per field.
func (c *Collector) Collect(ctx context.Context, cs ChangeSet) error {
	seen := make(map[refKey]struct{})
	var reclaimed []*Asset

	err := c.repo.WithTx(ctx, func(tx Repository) error {
		for _, rec := range cs.Deletions {
			for column, fc := range rec.Fields {
				for _, id := range fc.Before {
					key := refKey{record: rec.RecordID, column: column, asset: id}
					if _, done := seen[key]; done {
						continue
					}
					seen[key] = struct{}{}

					if err := c.release(ctx, tx, id, &reclaimed); err != nil {
						return err
					}
				}
			}
		}

		for _, rec := range cs.Updates {
			for column, fc := range rec.Fields {
				for _, id := range removedIDs(fc.Before, fc.After) {
					key := refKey{record: rec.RecordID, column: column, asset: id}
					if _, done := seen[key]; done {
						continue
					}
					seen[key] = struct{}{}

					if err := c.release(ctx, tx, id, &reclaimed); err != nil {
						return err
					}
				}
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	// Physical reclamation is best-effort and off the commit's critical
	// path. Record deletion is authoritative; a leaked blob is storage
	// waste, not a correctness violation.
	for _, asset := range reclaimed {
		c.deleteBlob(ctx, asset)

		if err := c.sink.AssetDeleted(ctx, asset.ID); err != nil {
			c.logger.Error("asset deleted event failed", "asset_id", asset.ID, "err", err)
		}
	}

	return nil
}

// release decrements one reference. At zero the asset record is deleted in
// the same transaction and queued for blob reclamation.
func (c *Collector) release(ctx context.Context, tx Repository, id uuid.UUID, reclaimed *[]*Asset) error {
	counter, err := tx.DecrementAssetCounter(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAssetNotFound) {
			// A referenced asset that no longer exists means an earlier
			// commit miscounted. Fail the transaction loudly.
			return &IntegrityError{AssetID: id, Err: err}
		}
		return &AssetError{AssetID: id, Op: "decrement", Err: err}
	}

	if counter > 0 {
		return nil
	}

	asset, err := tx.GetAsset(ctx, id)
	if err != nil {
		return &AssetError{AssetID: id, Op: "reclaim", Err: err}
	}

	if err := tx.DeleteAsset(ctx, id); err != nil {
		return &AssetError{AssetID: id, Op: "delete", Err: err}
	}

	*reclaimed = append(*reclaimed, asset)
	return nil
}

func (c *Collector) deleteBlob(ctx context.Context, asset *Asset) {
	backend, err := c.backends(asset.StorageKey)
	if err != nil {
		c.reportBlobFailure(ctx, asset, err)
		return
	}

	if err := backend.Delete(ctx, asset.Path); err != nil {
		c.reportBlobFailure(ctx, asset, err)
	}
}

func (c *Collector) reportBlobFailure(ctx context.Context, asset *Asset, err error) {
	c.logger.Error("asset blob remove failed",
		"backend", asset.StorageKey, "path", asset.Path, "err", err)

	if sinkErr := c.sink.BlobDeleteFailed(ctx, asset.StorageKey, asset.Path, err); sinkErr != nil {
		c.logger.Error("blob delete failed event not delivered",
			"backend", asset.StorageKey, "path", asset.Path, "err", sinkErr)
	}
}

// removedIDs computes before − after by identity, preserving before-order.
func removedIDs(before, after []uuid.UUID) []uuid.UUID {
	if len(before) == 0 {
		return nil
	}

	kept := make(map[uuid.UUID]struct{}, len(after))
	for _, id := range after {
		kept[id] = struct{}{}
	}

	var removed []uuid.UUID
	for _, id := range before {
		if _, ok := kept[id]; !ok {
			removed = append(removed, id)
		}
	}
	return removed
}

// BuildDeletion captures a record scheduled for deletion as a change-set
// entry: every asset-bearing column with its current reference list.
func BuildDeletion(bearer AssetBearer) RecordChange {
	fields := make(map[string]FieldChange)
	for _, column := range bearer.AssetColumns() {
		refs := bearer.AssetRefs(column)
		if len(refs) == 0 {
			continue
		}
		fields[column] = FieldChange{Before: RefIDs(refs)}
	}
	return RecordChange{RecordID: bearer.RecordID(), Fields: fields}
}

// BuildUpdate captures a record's changed columns as a change-set entry.
// before holds the committed reference lists keyed by column; columns whose
// value is unchanged should be omitted by the caller.
func BuildUpdate(bearer AssetBearer, before map[string][]uuid.UUID) (RecordChange, error) {
	fields := make(map[string]FieldChange)
	columns := bearer.AssetColumns()

	for column, prev := range before {
		found := false
		for _, c := range columns {
			if c == column {
				found = true
				break
			}
		}
		if !found {
			return RecordChange{}, fmt.Errorf("column %q is not asset-bearing on record %s", column, bearer.RecordID())
		}

		fields[column] = FieldChange{
			Before: prev,
			After:  RefIDs(bearer.AssetRefs(column)),
		}
	}

	return RecordChange{RecordID: bearer.RecordID(), Fields: fields}, nil
}
