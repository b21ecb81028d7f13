package store

import (
	"context"
	"fmt"
)

// ApplyUpsert commits an Item upsert (create or update/rename/move/undelete)
// together with its ChangeEvent in a single transaction. event may be nil
// for the no-other-change SKIP case — the item row is still refreshed
// (e.g. to clear a stale modified-at) but no audit row is produced.
// Returns the item's internal id, assigned or reused.
func (s *Store) ApplyUpsert(ctx context.Context, item *Item, event *ChangeEvent) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin apply-upsert tx: %w", err)
	}

	var isDeleted int
	if item.IsDeleted {
		isDeleted = 1
	}

	var internalID int64

	row := tx.StmtContext(ctx, s.itemStmts.upsert).QueryRowContext(ctx,
		item.DriveID, item.ExternalID, item.Name, string(item.Kind),
		item.ParentInternalID, item.Path, item.CreatedAt, item.ModifiedAt, isDeleted)

	if err := row.Scan(&internalID); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("store: upsert item %s/%s: %w", item.DriveID, item.ExternalID, err)
	}

	if event != nil {
		event.ItemInternalID = internalID

		_, err := tx.StmtContext(ctx, s.eventStmts.append).ExecContext(ctx,
			internalID, string(event.Kind), event.OldName, event.NewName,
			event.OldParentInternalID, event.NewParentInternalID, event.Timestamp)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("store: append event for item %d: %w", internalID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit apply-upsert: %w", err)
	}

	return internalID, nil
}

// ApplyDelete marks an item deleted and appends its DELETE event
// atomically. Only called when the item is known and not already
// deleted.
func (s *Store) ApplyDelete(ctx context.Context, internalID int64, event *ChangeEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin apply-delete tx: %w", err)
	}

	if _, err := tx.StmtContext(ctx, s.itemStmts.markDeleted).ExecContext(ctx, event.Timestamp, internalID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("store: mark deleted %d: %w", internalID, err)
	}

	event.ItemInternalID = internalID

	_, err = tx.StmtContext(ctx, s.eventStmts.append).ExecContext(ctx,
		internalID, string(event.Kind), event.OldName, event.NewName,
		event.OldParentInternalID, event.NewParentInternalID, event.Timestamp)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("store: append delete event for item %d: %w", internalID, err)
	}

	return tx.Commit()
}

// BulkUpsert upserts every item in batch as a single transaction. Unlike
// ApplyUpsert, this has no paired ChangeEvent per row — it exists for
// callers that need to seed or repair item rows in bulk outside the
// per-item classify-and-apply path (e.g. a bulk metadata backfill), not
// for the Reconciliation Engine's own algorithm, which commits each item
// with its event in its own transaction. Returns the assigned/reused
// internal ids in batch order; on any failure the whole batch rolls back
// and no ids are returned.
func (s *Store) BulkUpsert(ctx context.Context, batch []*Item) ([]int64, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin bulk-upsert tx: %w", err)
	}

	ids := make([]int64, len(batch))
	stmt := tx.StmtContext(ctx, s.itemStmts.upsert)

	for i, item := range batch {
		var isDeleted int
		if item.IsDeleted {
			isDeleted = 1
		}

		row := stmt.QueryRowContext(ctx,
			item.DriveID, item.ExternalID, item.Name, string(item.Kind),
			item.ParentInternalID, item.Path, item.CreatedAt, item.ModifiedAt, isDeleted)

		if err := row.Scan(&ids[i]); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("store: bulk upsert item %s/%s: %w", item.DriveID, item.ExternalID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit bulk-upsert: %w", err)
	}

	return ids, nil
}

// AppendMany appends every event in batch as a single transaction. Each
// event's ItemInternalID must already be set by the caller.
func (s *Store) AppendMany(ctx context.Context, batch []*ChangeEvent) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin append-many tx: %w", err)
	}

	stmt := tx.StmtContext(ctx, s.eventStmts.append)

	for _, event := range batch {
		_, err := stmt.ExecContext(ctx,
			event.ItemInternalID, string(event.Kind), event.OldName, event.NewName,
			event.OldParentInternalID, event.NewParentInternalID, event.Timestamp)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("store: append event for item %d: %w", event.ItemInternalID, err)
		}
	}

	return tx.Commit()
}
