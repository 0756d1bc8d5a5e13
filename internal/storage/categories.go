package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ledger/internal/core"
)

// ListExpenseCategories returns the category metadata ordered by name.
func (s *Store) ListExpenseCategories(ctx context.Context) ([]core.ExpenseCategory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, category, type, created_at FROM expense_categories ORDER BY category ASC`)
	if err != nil {
		return nil, fmt.Errorf("list expense categories: %w", err)
	}
	defer rows.Close()

	cats := []core.ExpenseCategory{}
	for rows.Next() {
		var (
			c         core.ExpenseCategory
			class     string
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.Category, &class, &createdAt); err != nil {
			return nil, fmt.Errorf("scan expense category: %w", err)
		}
		c.Classification = core.Classification(class)
		c.CreatedAt = parseTimestamp(createdAt)
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// UpsertExpenseCategory adds a category or changes its classification.
func (s *Store) UpsertExpenseCategory(ctx context.Context, category string, class core.Classification) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return fmt.Errorf("%w: %w", core.ErrValidation, core.ErrEmptyCategory)
	}
	if err := class.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expense_categories (category, type, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(category) DO UPDATE SET type = excluded.type`,
		category, string(class), timestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("upsert expense category %q: %w", category, err)
	}
	return nil
}
