// Package store implements the State Store (C1): the SQLite-backed
// repositories for items, change events, drive cursors, and subscriptions,
// plus the atomic apply-one-item transaction the Reconciliation Engine
// relies on. The prepared-statement grouping, pragma setup, sole-writer
// discipline, and transaction-per-outcome shape all follow the same
// pattern as the rest of this codebase's storage layer.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure-Go driver, registers as "sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const walJournalSizeLimit = 67108864 // 64 MiB

// Store is the SQLite-backed State Store. The database handle is
// single-writer (SetMaxOpenConns(1)): the per-drive serialization
// invariant enforced upstream means concurrent writers to the same
// drive never happen, and a single connection gives us simple, correct
// transaction semantics without a separate application-level lock.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	itemStmts         itemStatements
	eventStmts        eventStatements
	cursorStmts       cursorStatements
	subscriptionStmts subscriptionStatements
}

type itemStatements struct {
	lookupByExternal, lookupByInternal, upsert, markDeleted, childrenOf *sql.Stmt
}

type eventStatements struct {
	append, historyOf *sql.Stmt
}

type cursorStatements struct {
	get, set, clear *sql.Stmt
}

type subscriptionStatements struct {
	findByResource, findByProviderID, upsert, updateExpiry, deleteByID, deleteExpired, listExpiredCandidates *sql.Stmt
}

// Open opens (creating if absent) the SQLite database at dsn, applies
// pragmas and migrations, and prepares all repository statements.
// Tests use ":memory:" (safe here since the handle holds one connection).
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	logger.Info("opening state store", slog.String("dsn", dsn))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err := setPragmas(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, logger: logger}

	if err := s.prepareStatements(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: prepare statements: %w", err)
	}

	logger.Info("state store ready")

	return s, nil
}

func setPragmas(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	pragmas := []struct{ sql, desc string }{
		{"PRAGMA journal_mode = WAL", "WAL mode"},
		{"PRAGMA synchronous = FULL", "synchronous FULL"},
		{"PRAGMA foreign_keys = ON", "foreign keys"},
		{fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit), "journal size limit"},
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p.sql); err != nil {
			return fmt.Errorf("store: set pragma %s: %w", p.desc, err)
		}

		logger.Debug("pragma set", slog.String("pragma", p.desc))
	}

	return nil
}

// runMigrations applies embedded SQL migrations via goose's Provider API.
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("store: migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("store: migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("store: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path), slog.Duration("duration", r.Duration))
	}

	return nil
}

const (
	sqlLookupByExternal = `SELECT internal_id, drive_id, external_id, name, kind,
		parent_internal_id, path, created_at, modified_at, is_deleted
		FROM items WHERE drive_id = ? AND external_id = ?`

	sqlLookupByInternal = `SELECT internal_id, drive_id, external_id, name, kind,
		parent_internal_id, path, created_at, modified_at, is_deleted
		FROM items WHERE internal_id = ?`

	sqlUpsertItem = `INSERT INTO items
		(drive_id, external_id, name, kind, parent_internal_id, path, created_at, modified_at, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(drive_id, external_id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			parent_internal_id = excluded.parent_internal_id,
			path = excluded.path,
			modified_at = excluded.modified_at,
			is_deleted = excluded.is_deleted
		RETURNING internal_id`

	sqlMarkDeleted = `UPDATE items SET is_deleted = 1, modified_at = ? WHERE internal_id = ?`

	sqlChildrenOf = `SELECT internal_id, drive_id, external_id, name, kind,
		parent_internal_id, path, created_at, modified_at, is_deleted
		FROM items WHERE parent_internal_id = ? AND is_deleted = 0`

	sqlAppendEvent = `INSERT INTO change_events
		(item_internal_id, kind, old_name, new_name, old_parent_internal_id, new_parent_internal_id, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	sqlHistoryOf = `SELECT internal_id, item_internal_id, kind, old_name, new_name,
		old_parent_internal_id, new_parent_internal_id, timestamp
		FROM change_events WHERE item_internal_id = ? ORDER BY timestamp DESC, internal_id DESC`

	sqlGetCursor = `SELECT cursor FROM drive_cursors WHERE drive_id = ?`

	sqlSetCursor = `INSERT INTO drive_cursors (drive_id, cursor, last_sync_at) VALUES (?, ?, ?)
		ON CONFLICT(drive_id) DO UPDATE SET cursor = excluded.cursor, last_sync_at = excluded.last_sync_at`

	sqlClearCursor = `INSERT INTO drive_cursors (drive_id, cursor, last_sync_at) VALUES (?, '', 0)
		ON CONFLICT(drive_id) DO UPDATE SET cursor = '', last_sync_at = 0`

	sqlFindSubByResource = `SELECT provider_id, resource, shared_secret, expiry, created_at
		FROM subscriptions WHERE resource = ? ORDER BY created_at DESC LIMIT 1`

	sqlFindSubByProviderID = `SELECT provider_id, resource, shared_secret, expiry, created_at
		FROM subscriptions WHERE provider_id = ?`

	sqlUpsertSub = `INSERT INTO subscriptions (provider_id, resource, shared_secret, expiry, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(provider_id) DO UPDATE SET
			resource = excluded.resource, shared_secret = excluded.shared_secret, expiry = excluded.expiry`

	sqlUpdateSubExpiry = `UPDATE subscriptions SET expiry = ? WHERE provider_id = ?`

	sqlDeleteSub = `DELETE FROM subscriptions WHERE provider_id = ?`

	sqlDeleteExpiredSubs = `DELETE FROM subscriptions WHERE expiry < ?`

	sqlListExpiredCandidates = `SELECT provider_id, resource, shared_secret, expiry, created_at
		FROM subscriptions WHERE expiry < ?`
)

func (s *Store) prepareStatements(ctx context.Context) error {
	defs := []struct {
		dest **sql.Stmt
		sql  string
		name string
	}{
		{&s.itemStmts.lookupByExternal, sqlLookupByExternal, "lookupByExternal"},
		{&s.itemStmts.lookupByInternal, sqlLookupByInternal, "lookupByInternal"},
		{&s.itemStmts.upsert, sqlUpsertItem, "upsertItem"},
		{&s.itemStmts.markDeleted, sqlMarkDeleted, "markDeleted"},
		{&s.itemStmts.childrenOf, sqlChildrenOf, "childrenOf"},
		{&s.eventStmts.append, sqlAppendEvent, "appendEvent"},
		{&s.eventStmts.historyOf, sqlHistoryOf, "historyOf"},
		{&s.cursorStmts.get, sqlGetCursor, "getCursor"},
		{&s.cursorStmts.set, sqlSetCursor, "setCursor"},
		{&s.cursorStmts.clear, sqlClearCursor, "clearCursor"},
		{&s.subscriptionStmts.findByResource, sqlFindSubByResource, "findSubByResource"},
		{&s.subscriptionStmts.findByProviderID, sqlFindSubByProviderID, "findSubByProviderID"},
		{&s.subscriptionStmts.upsert, sqlUpsertSub, "upsertSub"},
		{&s.subscriptionStmts.updateExpiry, sqlUpdateSubExpiry, "updateSubExpiry"},
		{&s.subscriptionStmts.deleteByID, sqlDeleteSub, "deleteSub"},
		{&s.subscriptionStmts.deleteExpired, sqlDeleteExpiredSubs, "deleteExpiredSubs"},
		{&s.subscriptionStmts.listExpiredCandidates, sqlListExpiredCandidates, "listExpiredCandidates"},
	}

	for _, d := range defs {
		stmt, err := s.db.PrepareContext(ctx, d.sql)
		if err != nil {
			return fmt.Errorf("prepare %s: %w", d.name, err)
		}

		*d.dest = stmt
	}

	return nil
}

func scanItem(row interface{ Scan(...any) error }) (*Item, error) {
	item := &Item{}

	var kind string

	var isDeleted int

	err := row.Scan(&item.InternalID, &item.DriveID, &item.ExternalID, &item.Name, &kind,
		&item.ParentInternalID, &item.Path, &item.CreatedAt, &item.ModifiedAt, &isDeleted)
	if err != nil {
		return nil, err
	}

	item.Kind = Kind(kind)
	item.IsDeleted = isDeleted != 0

	return item, nil
}

// LookupByExternalID returns the item for (driveID, externalID), or
// (nil, nil) if none exists — including tombstoned items, since external
// ids stay unique across the store even after deletion.
func (s *Store) LookupByExternalID(ctx context.Context, driveID, externalID string) (*Item, error) {
	item, err := scanItem(s.itemStmts.lookupByExternal.QueryRowContext(ctx, driveID, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // nil item means "unknown", matching CREATE branch
	}

	if err != nil {
		return nil, fmt.Errorf("store: lookup by external id %s/%s: %w", driveID, externalID, err)
	}

	return item, nil
}

// LookupByInternalID returns the item with the given internal id.
func (s *Store) LookupByInternalID(ctx context.Context, internalID int64) (*Item, error) {
	item, err := scanItem(s.itemStmts.lookupByInternal.QueryRowContext(ctx, internalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil
	}

	if err != nil {
		return nil, fmt.Errorf("store: lookup by internal id %d: %w", internalID, err)
	}

	return item, nil
}

// ChildrenOf returns all non-deleted children of parentInternalID.
func (s *Store) ChildrenOf(ctx context.Context, parentInternalID int64) ([]*Item, error) {
	rows, err := s.itemStmts.childrenOf.QueryContext(ctx, parentInternalID)
	if err != nil {
		return nil, fmt.Errorf("store: children of %d: %w", parentInternalID, err)
	}
	defer rows.Close()

	var items []*Item

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan child row: %w", err)
		}

		items = append(items, item)
	}

	return items, rows.Err()
}

// HistoryOf returns the change event history for an item, newest first.
func (s *Store) HistoryOf(ctx context.Context, itemInternalID int64) ([]*ChangeEvent, error) {
	rows, err := s.eventStmts.historyOf.QueryContext(ctx, itemInternalID)
	if err != nil {
		return nil, fmt.Errorf("store: history of %d: %w", itemInternalID, err)
	}
	defer rows.Close()

	var events []*ChangeEvent

	for rows.Next() {
		ev := &ChangeEvent{}
		if err := rows.Scan(&ev.InternalID, &ev.ItemInternalID, &ev.Kind, &ev.OldName, &ev.NewName,
			&ev.OldParentInternalID, &ev.NewParentInternalID, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("store: scan event row: %w", err)
		}

		events = append(events, ev)
	}

	return events, rows.Err()
}

// GetCursor returns the stored delta cursor for a drive, or "" if absent.
func (s *Store) GetCursor(ctx context.Context, driveID string) (string, error) {
	var cursor string

	err := s.cursorStmts.get.QueryRowContext(ctx, driveID).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("store: get cursor %s: %w", driveID, err)
	}

	return cursor, nil
}

// SetCursor persists the cursor for a drive after a successful pass.
func (s *Store) SetCursor(ctx context.Context, driveID, cursor string) error {
	_, err := s.cursorStmts.set.ExecContext(ctx, driveID, cursor, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("store: set cursor %s: %w", driveID, err)
	}

	return nil
}

// ClearCursor forces the next sync for driveID to be a full sync.
func (s *Store) ClearCursor(ctx context.Context, driveID string) error {
	_, err := s.cursorStmts.clear.ExecContext(ctx, driveID)
	if err != nil {
		return fmt.Errorf("store: clear cursor %s: %w", driveID, err)
	}

	return nil
}

// Close closes all prepared statements and the database handle.
func (s *Store) Close() error {
	stmts := []*sql.Stmt{
		s.itemStmts.lookupByExternal, s.itemStmts.lookupByInternal, s.itemStmts.upsert,
		s.itemStmts.markDeleted, s.itemStmts.childrenOf,
		s.eventStmts.append, s.eventStmts.historyOf,
		s.cursorStmts.get, s.cursorStmts.set, s.cursorStmts.clear,
		s.subscriptionStmts.findByResource, s.subscriptionStmts.findByProviderID,
		s.subscriptionStmts.upsert, s.subscriptionStmts.updateExpiry,
		s.subscriptionStmts.deleteByID, s.subscriptionStmts.deleteExpired,
		s.subscriptionStmts.listExpiredCandidates,
	}

	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}

	return nil
}
