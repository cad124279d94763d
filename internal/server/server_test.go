package server

import (
	"testing"

	"mahjong-tracker/internal/domain"
	"mahjong-tracker/internal/repository"

	"github.com/stretchr/testify/assert"
)

func tierSet() []domain.RankTier {
	return []domain.RankTier{
		{RankOrder: 1, RankName: "雀士一", MinPoints: 0, MaxPoints: 299, MinorRankType: domain.MinorRankDan},
		{RankOrder: 2, RankName: "雀士二", MinPoints: 300, MaxPoints: 599, MinorRankType: domain.MinorRankDan},
		{RankOrder: 3, RankName: "雀士三", MinPoints: 600, MaxPoints: 999999, MinorRankType: domain.MinorRankDan},
	}
}

func TestCheckTierBounds(t *testing.T) {
	t.Run("contiguous shift accepted", func(t *testing.T) {
		tiers := tierSet()
		assert.NoError(t, checkTierBounds(tiers, 1, 0, 299))

		// Widening tier 3 downward has to go with tier 2 shrinking first,
		// so an aligned pair of updates stays valid one step at a time.
		assert.NoError(t, checkTierBounds(tierSet(), 3, 600, 5000000))
	})

	t.Run("gap rejected before persisting", func(t *testing.T) {
		// Raising tier 2's floor leaves 300..399 uncovered; this must be
		// refused up front rather than written and caught on reload.
		err := checkTierBounds(tierSet(), 2, 400, 599)
		assert.Error(t, err)
	})

	t.Run("inverted range rejected", func(t *testing.T) {
		err := checkTierBounds(tierSet(), 2, 500, 400)
		assert.Error(t, err)
	})

	t.Run("unknown tier order", func(t *testing.T) {
		err := checkTierBounds(tierSet(), 9, 0, 100)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}
