package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// DefaultResolutionsLimit caps ListResolutions when no limit is given
const DefaultResolutionsLimit = 50

// RecordResolution stores a resolution outcome, assigning an ID if missing
func (db *DB) RecordResolution(ctx context.Context, r *Resolution) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	keywords := r.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	var runID *uuid.UUID
	if r.RunID != uuid.Nil {
		runID = &r.RunID
	}

	err := db.pool.QueryRow(ctx,
		`INSERT INTO careers_resolutions
		   (id, run_id, company, status, url, similarity, method, keywords, error_message, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at`,
		r.ID, runID, r.Company, r.Status, nullIfEmpty(r.URL), r.Similarity,
		nullIfEmpty(r.Method), keywords, nullIfEmpty(r.ErrorMessage), r.DurationMs,
	).Scan(&r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record resolution for %s: %w", r.Company, err)
	}
	return nil
}

// ListResolutions retrieves recorded resolutions with optional filters, newest first
func (db *DB) ListResolutions(ctx context.Context, filters ResolutionFilters) ([]Resolution, error) {
	query, args := buildResolutionsQuery(filters)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list resolutions: %w", err)
	}
	defer rows.Close()

	var out []Resolution
	for rows.Next() {
		var (
			r                  Resolution
			runID              *uuid.UUID
			url, method, errMs *string
		)
		if err := rows.Scan(&r.ID, &runID, &r.Company, &r.Status, &url, &r.Similarity,
			&method, &r.Keywords, &errMs, &r.DurationMs, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan resolution: %w", err)
		}
		if runID != nil {
			r.RunID = *runID
		}
		r.URL = derefString(url)
		r.Method = derefString(method)
		r.ErrorMessage = derefString(errMs)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate resolutions: %w", err)
	}
	return out, nil
}

func buildResolutionsQuery(filters ResolutionFilters) (string, []any) {
	if filters.Limit <= 0 {
		filters.Limit = DefaultResolutionsLimit
	}

	query := `SELECT id, run_id, company, status, url, similarity, method, keywords,
		error_message, duration_ms, created_at
		FROM careers_resolutions WHERE 1=1`
	args := []any{}
	argNum := 1

	if filters.RunID != uuid.Nil {
		query += fmt.Sprintf(" AND run_id = $%d", argNum)
		args = append(args, filters.RunID)
		argNum++
	}
	if filters.Company != "" {
		query += fmt.Sprintf(" AND company ILIKE $%d", argNum)
		args = append(args, "%"+filters.Company+"%")
		argNum++
	}
	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, filters.Status)
		argNum++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argNum)
	args = append(args, filters.Limit)
	return query, args
}
