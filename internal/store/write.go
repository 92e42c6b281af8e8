package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/feedsync/internal/activity"
)

// UpsertActivities writes activities for an account in one transaction.
// An existing row with the same ID is overwritten: the newer fetch wins.
func (s *Store) UpsertActivities(ctx context.Context, accountID string, activities []activity.Activity) error {
	if len(activities) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert activities: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO activities
		(account_id, id, kind, timestamp, slug, from_slug, to_slug, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, id) DO UPDATE SET
			kind = excluded.kind,
			timestamp = excluded.timestamp,
			slug = excluded.slug,
			from_slug = excluded.from_slug,
			to_slug = excluded.to_slug,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("upsert activities: prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for _, a := range activities {
		payload, err := marshalPayload(a)
		if err != nil {
			return fmt.Errorf("upsert activities: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			accountID,
			a.ID,
			string(a.Kind),
			a.Timestamp,
			a.Slug,
			a.From,
			a.To,
			payload,
			now,
		); err != nil {
			return fmt.Errorf("upsert activities: insert %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upsert activities: commit: %w", err)
	}
	return nil
}

// WriteScopeList replaces the persisted ID list for a scope.
// A nil loadedAll keeps the previously stored flag.
func (s *Store) WriteScopeList(ctx context.Context, accountID, slug string, ids []string, loadedAll *bool) error {
	idsJSON, err := marshalIDs(ids)
	if err != nil {
		return fmt.Errorf("write scope list: %w", err)
	}

	now := time.Now().UnixMilli()
	if loadedAll == nil {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO scope_lists (account_id, slug, ids, loaded_all, updated_at)
			VALUES (?, ?, ?, 0, ?)
			ON CONFLICT(account_id, slug) DO UPDATE SET
				ids = excluded.ids,
				updated_at = excluded.updated_at
		`, accountID, slug, idsJSON, now)
	} else {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO scope_lists (account_id, slug, ids, loaded_all, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(account_id, slug) DO UPDATE SET
				ids = excluded.ids,
				loaded_all = excluded.loaded_all,
				updated_at = excluded.updated_at
		`, accountID, slug, idsJSON, boolToInt(*loadedAll), now)
	}
	if err != nil {
		return fmt.Errorf("write scope list: %w", err)
	}
	return nil
}

// DeleteAccount removes every activity and scope list of an account.
func (s *Store) DeleteAccount(ctx context.Context, accountID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete account: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM activities WHERE account_id = ?`, accountID); err != nil {
		return fmt.Errorf("delete account: activities: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM scope_lists WHERE account_id = ?`, accountID); err != nil {
		return fmt.Errorf("delete account: scope lists: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete account: commit: %w", err)
	}
	return nil
}
