package store

import (
	"database/sql"
	"fmt"
	"math"
)

// AggregateOutcomes folds (pattern_id, was_accepted) rows into a Summary.
// Shared by the SQLite and Postgres stat stores so both backends report
// identical aggregates.
func AggregateOutcomes(rows *sql.Rows) (*Summary, error) {
	sum := &Summary{Patterns: make(map[string]PatternSummary)}
	for rows.Next() {
		var patternID string
		var accepted sql.NullBool
		if err := rows.Scan(&patternID, &accepted); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}

		sum.Total++
		switch {
		case !accepted.Valid:
			sum.Pending++
		case accepted.Bool:
			sum.Accepted++
		default:
			sum.Rejected++
		}

		ps := sum.Patterns[patternID]
		ps.Total++
		if accepted.Valid && accepted.Bool {
			ps.Accepted++
		}
		sum.Patterns[patternID] = ps
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if resolved := sum.Accepted + sum.Rejected; resolved > 0 {
		sum.AcceptanceRate = math.Round(float64(sum.Accepted)/float64(resolved)*1e4) / 1e4
	}
	return sum, nil
}
