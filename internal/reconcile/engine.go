// Package reconcile implements the Reconciliation Engine (C5): the
// classify-and-apply state machine that turns a provider delta feed into
// Item mutations and ChangeEvent rows, advancing the drive cursor only
// once an entire page has committed. Parents are resolved by store lookup
// (each item commits before the next is classified), with a
// defer-and-replay-once pass for parents not yet seen; path
// materialization, the transaction-per-outcome shape, and keeping the
// cursor commit separate from item commits follow the same pattern used
// elsewhere in this codebase's sync machinery.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tonimelisma/drive-mirror/internal/ident"
	"github.com/tonimelisma/drive-mirror/internal/provider"
	"github.com/tonimelisma/drive-mirror/internal/store"
)

// errParentUnresolved signals that an item's parent could not be found
// yet, triggering the defer-and-replay-once policy below.
var errParentUnresolved = errors.New("reconcile: parent not yet observed")

// gateway is the narrow subset of provider.Client the engine depends on.
type gateway interface {
	DeltaAll(ctx context.Context, driveID ident.ID, cursor string) ([]provider.Item, string, error)
}

// repository is the narrow subset of store.Store the engine depends on,
// letting tests supply an in-memory fake without a real SQLite handle.
type repository interface {
	LookupByExternalID(ctx context.Context, driveID, externalID string) (*store.Item, error)
	LookupByInternalID(ctx context.Context, internalID int64) (*store.Item, error)
	ApplyUpsert(ctx context.Context, item *store.Item, event *store.ChangeEvent) (int64, error)
	ApplyDelete(ctx context.Context, internalID int64, event *store.ChangeEvent) error
	GetCursor(ctx context.Context, driveID string) (string, error)
	SetCursor(ctx context.Context, driveID, cursor string) error
	ClearCursor(ctx context.Context, driveID string) error
}

// Engine is the Reconciliation Engine. Safe for concurrent use across
// distinct drive ids; the caller (internal/worker) is responsible for
// serializing calls for the same drive id.
type Engine struct {
	repo   repository
	gw     gateway
	logger *slog.Logger
}

// New builds an Engine over a real store.Store and provider.Client.
func New(repo *store.Store, gw *provider.Client, logger *slog.Logger) *Engine {
	return newEngine(repo, gw, logger)
}

func newEngine(repo repository, gw gateway, logger *slog.Logger) *Engine {
	return &Engine{repo: repo, gw: gw, logger: logger}
}

// Result reports what one reconciliation pass did.
type Result struct {
	ItemsProcessed  int
	ChangesDetected int
}

// Reconcile runs the full algorithm for one drive: fetch the delta feed
// from the stored cursor, classify and apply every item in order, and
// advance the cursor only if the entire page committed without a fatal
// error.
func (e *Engine) Reconcile(ctx context.Context, driveID ident.ID) (Result, error) {
	driveKey := driveID.String()

	cursor, err := e.repo.GetCursor(ctx, driveKey)
	if err != nil {
		return Result{}, fmt.Errorf("reconcile: get cursor for %s: %w", driveKey, err)
	}

	items, finalCursor, err := e.gw.DeltaAll(ctx, driveID, cursor)
	if errors.Is(err, provider.ErrGone) && cursor != "" {
		e.logger.Warn("delta cursor discarded by provider, restarting with a full sync",
			slog.String("drive_id", driveKey))

		items, finalCursor, err = e.gw.DeltaAll(ctx, driveID, "")
	}

	if err != nil {
		return Result{}, fmt.Errorf("reconcile: fetch delta for %s: %w", driveKey, err)
	}

	result, err := e.applyPage(ctx, driveKey, items)
	if err != nil {
		// Cursor-monotonicity contract: a fatal item error aborts the pass
		// without touching the cursor at all.
		return Result{}, err
	}

	if err := e.repo.SetCursor(ctx, driveKey, finalCursor); err != nil {
		return Result{}, fmt.Errorf("reconcile: advance cursor for %s: %w", driveKey, err)
	}

	e.logger.Info("reconciliation pass complete",
		slog.String("drive_id", driveKey),
		slog.Int("items_processed", result.ItemsProcessed),
		slog.Int("changes_detected", result.ChangesDetected),
		slog.String("cursor", finalCursor))

	return result, nil
}

// PerformInitialSync implements perform_initial_sync: clear the cursor,
// forcing the next delta fetch to be a full sync, then run the normal
// algorithm. The first pass emits a CREATE event for every observed
// item.
func (e *Engine) PerformInitialSync(ctx context.Context, driveID ident.ID) (Result, error) {
	if err := e.repo.ClearCursor(ctx, driveID.String()); err != nil {
		return Result{}, fmt.Errorf("reconcile: clear cursor for %s: %w", driveID, err)
	}

	return e.Reconcile(ctx, driveID)
}

// applyPage classifies and applies every item in order, deferring items
// whose parent is not yet resolvable and replaying the deferred set once
// after the page.
func (e *Engine) applyPage(ctx context.Context, driveKey string, items []provider.Item) (Result, error) {
	var result Result

	var pending []provider.Item

	for i := range items {
		changed, err := e.classifyAndApply(ctx, driveKey, items[i], false)
		if err != nil {
			if errors.Is(err, errParentUnresolved) {
				pending = append(pending, items[i])
				continue
			}

			return Result{}, fmt.Errorf("reconcile: classify item %s: %w", items[i].ExternalID, err)
		}

		result.ItemsProcessed++
		if changed {
			result.ChangesDetected++
		}
	}

	for i := range pending {
		changed, err := e.classifyAndApply(ctx, driveKey, pending[i], false)
		if err != nil {
			if !errors.Is(err, errParentUnresolved) {
				return Result{}, fmt.Errorf("reconcile: replay item %s: %w", pending[i].ExternalID, err)
			}

			e.logger.Warn("parent still unresolved after replay, upserting with null parent",
				slog.String("drive_id", driveKey), slog.String("external_id", pending[i].ExternalID),
				slog.String("parent_external_id", pending[i].ParentExternalID))

			changed, err = e.classifyAndApply(ctx, driveKey, pending[i], true)
			if err != nil {
				return Result{}, fmt.Errorf("reconcile: force-apply item %s: %w", pending[i].ExternalID, err)
			}
		}

		result.ItemsProcessed++
		if changed {
			result.ChangesDetected++
		}
	}

	return result, nil
}
