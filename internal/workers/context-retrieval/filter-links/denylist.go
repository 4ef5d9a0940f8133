// internal/workers/context-retrieval/filter-links/denylist.go
package filterlinks

import (
	"context"
	"database/sql"
	"fmt"
)

const denylistQuery = `SELECT pattern FROM link_denylist WHERE enabled = true ORDER BY pattern`

// DenylistSource supplies denylist patterns from outside the config file.
type DenylistSource interface {
	LoadDenylist(ctx context.Context) ([]string, error)
}

// PostgresDenylist reads patterns from the link_denylist table.
type PostgresDenylist struct {
	db *sql.DB
}

func NewPostgresDenylist(db *sql.DB) *PostgresDenylist {
	return &PostgresDenylist{db: db}
}

func (p *PostgresDenylist) LoadDenylist(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, denylistQuery)
	if err != nil {
		return nil, fmt.Errorf("query denylist: %w", err)
	}
	defer rows.Close()

	var patterns []string
	for rows.Next() {
		var pattern string
		if err := rows.Scan(&pattern); err != nil {
			return nil, fmt.Errorf("scan denylist row: %w", err)
		}
		patterns = append(patterns, pattern)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate denylist: %w", err)
	}
	return patterns, nil
}
