package interfaces

import "github.com/antigravity-dev/ragforge/internal/models"

// MatchingEngine computes cross-source relationships between two sets of
// NormalizedItems (conventionally A = tickets, B = pages), writing the
// resulting Relationships back onto both endpoints' items in place and
// returning the flat list of emitted Matches.
type MatchingEngine interface {
	Match(a, b []*models.NormalizedItem, minScore float64) ([]models.Match, error)
}
