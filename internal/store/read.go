package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/feedsync/internal/activity"
)

// ScopeList is the persisted ID list of one feed scope.
type ScopeList struct {
	IDs       []string
	LoadedAll bool
}

// scopeClause matches rows belonging to a scope; an empty slug matches all.
// Takes the slug four times.
const scopeClause = `(? = '' OR slug = ? OR from_slug = ? OR to_slug = ?)`

// ReadActivity retrieves a single activity by ID.
// Returns ErrNotFound if absent.
func (s *Store) ReadActivity(ctx context.Context, accountID, id string) (activity.Activity, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM activities
		WHERE account_id = ? AND id = ?
	`, accountID, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return activity.Activity{}, ErrNotFound
	}
	if err != nil {
		return activity.Activity{}, fmt.Errorf("read activity %s: %w", id, err)
	}
	return unmarshalPayload(payload)
}

// ReadPage returns up to limit activities of a scope strictly older than
// before (newest first). A nil before starts at the newest activity.
func (s *Store) ReadPage(ctx context.Context, accountID, slug string, before *activity.Activity, limit int) ([]activity.Activity, error) {
	if limit <= 0 {
		return []activity.Activity{}, nil
	}

	query := `
		SELECT payload FROM activities
		WHERE account_id = ?
		  AND ` + scopeClause
	args := []any{accountID, slug, slug, slug, slug}
	if before != nil {
		query += `
		  AND (timestamp < ? OR (timestamp = ? AND id < ?))`
		args = append(args, before.Timestamp, before.Timestamp, before.ID)
	}
	query += `
		ORDER BY timestamp DESC, id COLLATE BINARY DESC
		LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query page: %w", err)
	}
	defer rows.Close()

	return scanActivities(rows)
}

// ReadScopeIDs returns every cached ID of a scope in feed order.
func (s *Store) ReadScopeIDs(ctx context.Context, accountID, slug string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM activities
		WHERE account_id = ?
		  AND `+scopeClause+`
		ORDER BY timestamp DESC, id COLLATE BINARY DESC
	`, accountID, slug, slug, slug, slug)
	if err != nil {
		return nil, fmt.Errorf("query scope ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan scope id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scope ids: %w", err)
	}
	return ids, nil
}

// ReadScopeList returns the persisted list of a scope.
// Returns ErrNotFound if the scope was never persisted.
func (s *Store) ReadScopeList(ctx context.Context, accountID, slug string) (ScopeList, error) {
	var (
		idsJSON   string
		loadedAll int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT ids, loaded_all FROM scope_lists
		WHERE account_id = ? AND slug = ?
	`, accountID, slug).Scan(&idsJSON, &loadedAll)
	if errors.Is(err, sql.ErrNoRows) {
		return ScopeList{}, ErrNotFound
	}
	if err != nil {
		return ScopeList{}, fmt.Errorf("read scope list: %w", err)
	}

	ids, err := unmarshalIDs(idsJSON)
	if err != nil {
		return ScopeList{}, fmt.Errorf("read scope list: %w", err)
	}
	return ScopeList{IDs: ids, LoadedAll: loadedAll != 0}, nil
}

func scanActivities(rows *sql.Rows) ([]activity.Activity, error) {
	out := []activity.Activity{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a, err := unmarshalPayload(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}
	return out, nil
}
