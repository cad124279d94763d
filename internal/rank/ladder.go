// Package rank resolves cumulative point totals to ladder tiers.
package rank

import (
	"fmt"
	"sort"

	"mahjong-tracker/internal/domain"
)

// Ladder is an immutable, ordered tier list. It is rebuilt wholesale from a
// configuration snapshot; a Ladder is never mutated after construction.
type Ladder struct {
	tiers []domain.RankTier
}

// NewLadder copies and sorts the tiers by RankOrder and materializes each
// tier's MinorRank from its display name.
func NewLadder(tiers []domain.RankTier) *Ladder {
	sorted := make([]domain.RankTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].RankOrder < sorted[j].RankOrder
	})
	for i := range sorted {
		if sorted[i].MinorRank == 0 {
			sorted[i].MinorRank = ParseMinorRank(sorted[i].RankName, sorted[i].MinorRankType)
		}
	}
	if len(sorted) == 0 {
		return DefaultLadder()
	}
	return &Ladder{tiers: sorted}
}

// Tiers returns the sorted tier set.
func (l *Ladder) Tiers() []domain.RankTier {
	return l.tiers
}

// Resolve maps a point total to its tier: the first tier, in ascending rank
// order, whose range contains points. When nothing matches (a configuration
// gap, or points beyond the highest tier) it falls back to the lowest tier
// so display paths never fail; Validate is the strict check and must be run
// at load time.
func (l *Ladder) Resolve(points int) domain.RankTier {
	for _, t := range l.tiers {
		if points >= t.MinPoints && points <= t.MaxPoints {
			return t
		}
	}
	return l.tiers[0]
}

// Validate checks that the tier set partitions [0, maxPoints of last tier]
// with no gaps and no overlaps: the first tier starts at 0, every tier has
// MinPoints < MaxPoints, and each tier starts right after the previous one.
func (l *Ladder) Validate() error {
	if len(l.tiers) == 0 {
		return fmt.Errorf("rank ladder has no tiers")
	}
	if l.tiers[0].MinPoints != 0 {
		return fmt.Errorf("lowest tier %q starts at %d, want 0", l.tiers[0].RankName, l.tiers[0].MinPoints)
	}
	for i, t := range l.tiers {
		if t.MinPoints >= t.MaxPoints {
			return fmt.Errorf("tier %q has empty range [%d, %d]", t.RankName, t.MinPoints, t.MaxPoints)
		}
		if i > 0 {
			prev := l.tiers[i-1]
			if t.RankOrder <= prev.RankOrder {
				return fmt.Errorf("tier %q rank order %d not strictly increasing after %q", t.RankName, t.RankOrder, prev.RankName)
			}
			if t.MinPoints != prev.MaxPoints+1 {
				return fmt.Errorf("gap or overlap between %q (max %d) and %q (min %d)", prev.RankName, prev.MaxPoints, t.RankName, t.MinPoints)
			}
		}
	}
	return nil
}

var cjkNumerals = map[rune]int{
	'一': 1, '二': 2, '三': 3, '四': 4, '五': 5,
	'六': 6, '七': 7, '八': 8, '九': 9,
}

// ParseMinorRank recovers the 1-9 sub-rank from a CJK numeral embedded in a
// tier's display name (e.g. 雀豪三 or 雀圣二星). It returns 1 for none-type
// tiers and for names with no numeral.
func ParseMinorRank(name string, typ domain.MinorRankType) int {
	if typ != domain.MinorRankDan && typ != domain.MinorRankStar {
		return 1
	}
	for _, r := range name {
		if n, ok := cjkNumerals[r]; ok {
			return n
		}
	}
	return 1
}

// DefaultLadder is the fail-safe single-tier ladder used when tier
// configuration is missing or malformed.
func DefaultLadder() *Ladder {
	return NewLadder([]domain.RankTier{
		{
			RankName:      "雀士一",
			MinPoints:     0,
			MaxPoints:     1 << 30,
			RankOrder:     1,
			MajorRank:     "雀士",
			MinorRankType: domain.MinorRankDan,
		},
	})
}
