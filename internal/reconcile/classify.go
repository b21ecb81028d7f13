package reconcile

import (
	"context"
	"fmt"

	"github.com/tonimelisma/drive-mirror/internal/provider"
	"github.com/tonimelisma/drive-mirror/internal/store"
)

// classifyAndApply implements the classify-and-apply step for one
// observed item, committing the Item mutation and its ChangeEvent (if
// any) atomically via the repository. forceNilParent is set only on the
// second attempt at a previously-deferred item, per the defer-and-
// replay-once policy: the parent never arrived, so the item is upserted
// with a null parent and a warning is logged by the caller.
func (e *Engine) classifyAndApply(ctx context.Context, driveKey string, obs provider.Item, forceNilParent bool) (changed bool, err error) {
	if obs.Tombstone {
		return e.applyTombstone(ctx, driveKey, obs)
	}

	return e.applyLive(ctx, driveKey, obs, forceNilParent)
}

func (e *Engine) applyTombstone(ctx context.Context, driveKey string, obs provider.Item) (bool, error) {
	prev, err := e.repo.LookupByExternalID(ctx, driveKey, obs.ExternalID)
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", obs.ExternalID, err)
	}

	if prev == nil || prev.IsDeleted {
		return false, nil
	}

	oldName := prev.Name
	event := &store.ChangeEvent{Kind: store.EventDelete, OldName: &oldName, Timestamp: nowNano()}

	if err := e.repo.ApplyDelete(ctx, prev.InternalID, event); err != nil {
		return false, fmt.Errorf("apply delete for %s: %w", obs.ExternalID, err)
	}

	return true, nil
}

func (e *Engine) applyLive(ctx context.Context, driveKey string, obs provider.Item, forceNilParent bool) (bool, error) {
	parentInternalID, err := e.resolveParent(ctx, driveKey, obs, forceNilParent)
	if err != nil {
		return false, err
	}

	path, err := e.materializePath(ctx, parentInternalID, obs.Name)
	if err != nil {
		return false, fmt.Errorf("materialize path for %s: %w", obs.ExternalID, err)
	}

	kind := store.KindFile
	if obs.IsFolder {
		kind = store.KindFolder
	}

	prev, err := e.repo.LookupByExternalID(ctx, driveKey, obs.ExternalID)
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", obs.ExternalID, err)
	}

	if prev == nil {
		return e.applyCreate(ctx, driveKey, obs, kind, parentInternalID, path)
	}

	return e.applyExisting(ctx, obs, prev, kind, parentInternalID, path)
}

// resolveParent looks up the internal id of obs's parent. An absent
// parent external id means obs is a drive root entry. An unresolvable
// parent — unknown, or known but soft-deleted — defers the item unless
// forceNilParent is set, in which case the item is upserted with
// parent_internal_id = null. A tombstoned parent is treated the same as
// an unknown one rather than silently attaching to it: a live item must
// never end up parented under a deleted one, and the provider will
// either re-send the real (live) parent before this item's next mutation
// or never resolve it, in which case the same null-parent-and-warn
// fallback used for a missing parent applies.
func (e *Engine) resolveParent(ctx context.Context, driveKey string, obs provider.Item, forceNilParent bool) (*int64, error) {
	if obs.ParentExternalID == "" {
		return nil, nil
	}

	if forceNilParent {
		return nil, nil
	}

	parent, err := e.repo.LookupByExternalID(ctx, driveKey, obs.ParentExternalID)
	if err != nil {
		return nil, fmt.Errorf("lookup parent %s: %w", obs.ParentExternalID, err)
	}

	if parent == nil || parent.IsDeleted {
		return nil, errParentUnresolved
	}

	return &parent.InternalID, nil
}

func (e *Engine) applyCreate(ctx context.Context, driveKey string, obs provider.Item, kind store.Kind, parentInternalID *int64, path string) (bool, error) {
	ts := fallbackTimestamp(obs.ModifiedAtUnix)

	item := &store.Item{
		DriveID:          driveKey,
		ExternalID:       obs.ExternalID,
		Name:             obs.Name,
		Kind:             kind,
		ParentInternalID: parentInternalID,
		Path:             path,
		CreatedAt:        ts,
		ModifiedAt:       ts,
	}

	newName := obs.Name
	event := &store.ChangeEvent{
		Kind:                store.EventCreate,
		NewName:             &newName,
		NewParentInternalID: parentInternalID,
		Timestamp:           nowNano(),
	}

	if _, err := e.repo.ApplyUpsert(ctx, item, event); err != nil {
		return false, fmt.Errorf("apply create for %s: %w", obs.ExternalID, err)
	}

	return true, nil
}

// applyExisting classifies the change kind for a previously-observed item
// by a name_changed/parent_changed truth table — parent change dominates
// name change when both fire, and an undelete (the item was tombstoned,
// then re-observed with no other change) is tracked as an UPDATE rather
// than a silent SKIP, since it is CREATE-equivalent from an observer's
// point of view.
func (e *Engine) applyExisting(ctx context.Context, obs provider.Item, prev *store.Item, kind store.Kind, parentInternalID *int64, path string) (bool, error) {
	nameChanged := obs.Name != prev.Name
	parentChanged := !sameParent(parentInternalID, prev.ParentInternalID)
	wasDeleted := prev.IsDeleted

	// Only a provider-reported modified-at can signal a metadata-only
	// UPDATE; an absent one must not fall back to wall-clock time here,
	// or every re-observation of an unchanged item would wrongly look
	// like new metadata and break the SKIP/idempotence contract.
	newModifiedAt := prev.ModifiedAt
	if obs.ModifiedAtUnix != 0 {
		newModifiedAt = fallbackTimestamp(obs.ModifiedAtUnix)
	}

	item := &store.Item{
		DriveID:          prev.DriveID,
		ExternalID:       obs.ExternalID,
		Name:             obs.Name,
		Kind:             kind,
		ParentInternalID: parentInternalID,
		Path:             path,
		CreatedAt:        prev.CreatedAt,
		ModifiedAt:       newModifiedAt,
		IsDeleted:        false,
	}

	event := classifyEvent(prev, obs, nameChanged, parentChanged, wasDeleted, parentInternalID, newModifiedAt)

	if _, err := e.repo.ApplyUpsert(ctx, item, event); err != nil {
		return false, fmt.Errorf("apply update for %s: %w", obs.ExternalID, err)
	}

	return event != nil, nil
}

// classifyEvent decides the ChangeEvent kind (or nil for SKIP) from the
// name_changed/parent_changed truth table, populating only the old/new
// fields the table specifies for each kind.
func classifyEvent(prev *store.Item, obs provider.Item, nameChanged, parentChanged, wasDeleted bool, newParentInternalID *int64, newModifiedAt int64) *store.ChangeEvent {
	ts := nowNano()

	switch {
	case !nameChanged && !parentChanged:
		if wasDeleted || newModifiedAt > prev.ModifiedAt {
			return &store.ChangeEvent{Kind: store.EventUpdate, Timestamp: ts}
		}

		return nil // SKIP: no event

	case nameChanged && !parentChanged:
		oldName, newName := prev.Name, obs.Name

		return &store.ChangeEvent{Kind: store.EventRename, OldName: &oldName, NewName: &newName, Timestamp: ts}

	case !nameChanged && parentChanged:
		return &store.ChangeEvent{
			Kind:                store.EventMove,
			OldParentInternalID: prev.ParentInternalID,
			NewParentInternalID: newParentInternalID,
			Timestamp:           ts,
		}

	default: // both changed
		oldName, newName := prev.Name, obs.Name

		return &store.ChangeEvent{
			Kind:                store.EventMove,
			OldName:             &oldName,
			NewName:             &newName,
			OldParentInternalID: prev.ParentInternalID,
			NewParentInternalID: newParentInternalID,
			Timestamp:           ts,
		}
	}
}

// sameParent reports whether two nullable parent internal ids refer to
// the same parent (both nil, or both non-nil with equal values).
func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}

	return *a == *b
}
