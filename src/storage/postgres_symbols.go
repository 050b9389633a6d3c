package storage

import (
	"context"
	"fmt"
	"regexp"
)

// Info: Separate file for watchlist expansion specific to Postgres

// A watchlist entry of the form schema.table.field names a column of tickers,
// e.g. public.portfolio_stocks.symbol.
var tableRefPattern = regexp.MustCompile(`^(\w+)\.(\w+)\.(\w+)$`)

var identifierPattern = regexp.MustCompile(`^\w+$`)

// -----------------------------------------------------------------------------

// ResolveSymbols expands table references in entries into the distinct
// symbols stored there. Plain tickers pass through. Order is kept and
// duplicates are dropped.
func (d *PostgresDB) ResolveSymbols(ctx context.Context, entries []string) ([]string, error) {
	seen := make(map[string]bool)
	var symbols []string
	add := func(sym string) {
		if sym != "" && !seen[sym] {
			seen[sym] = true
			symbols = append(symbols, sym)
		}
	}

	for _, entry := range entries {
		matches := tableRefPattern.FindStringSubmatch(entry)
		if len(matches) != 4 {
			add(entry)
			continue
		}

		loaded, err := d.GetSymbolsFromTable(ctx, matches[1], matches[2], matches[3])
		if err != nil {
			return symbols, fmt.Errorf("failed to load symbols from %s: %w", entry, err)
		}
		d.Logger.Info("Loaded %d symbols from %s", len(loaded), entry)
		for _, sym := range loaded {
			add(sym)
		}
	}

	return symbols, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) GetSymbolsFromTable(ctx context.Context, schema, table, field string) ([]string, error) {
	// Identifiers are \w+ from the pattern and quoted below
	query := fmt.Sprintf(`SELECT DISTINCT "%s" FROM "%s"."%s" WHERE "%s" IS NOT NULL`, field, schema, table, field)

	rows, err := d.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		if s != "" {
			symbols = append(symbols, s)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return symbols, nil
}
