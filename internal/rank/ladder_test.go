package rank

import (
	"testing"

	"mahjong-tracker/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTiers() []domain.RankTier {
	return []domain.RankTier{
		{RankOrder: 1, RankName: "雀士一", MinPoints: 0, MaxPoints: 299, MajorRank: "雀士", MinorRankType: domain.MinorRankDan},
		{RankOrder: 2, RankName: "雀士二", MinPoints: 300, MaxPoints: 599, MajorRank: "雀士", MinorRankType: domain.MinorRankDan},
		{RankOrder: 3, RankName: "雀士三", MinPoints: 600, MaxPoints: 999, MajorRank: "雀士", MinorRankType: domain.MinorRankDan},
		{RankOrder: 4, RankName: "雀杰一", MinPoints: 1000, MaxPoints: 1999, MajorRank: "雀杰", MinorRankType: domain.MinorRankDan},
		{RankOrder: 5, RankName: "雀圣一星", MinPoints: 2000, MaxPoints: 2999, MajorRank: "雀圣", MinorRankType: domain.MinorRankStar},
		{RankOrder: 6, RankName: "魂天", MinPoints: 3000, MaxPoints: 4199, MajorRank: "魂天", MinorRankType: domain.MinorRankNone},
	}
}

func TestLadderResolve(t *testing.T) {
	ladder := NewLadder(testTiers())
	require.NoError(t, ladder.Validate())

	tests := []struct {
		name   string
		points int
		want   string
	}{
		{"zero points", 0, "雀士一"},
		{"tier upper bound", 299, "雀士一"},
		{"tier lower bound", 300, "雀士二"},
		{"mid tier", 1500, "雀杰一"},
		{"highest tier", 4199, "魂天"},
		{"above top falls back to lowest", 5000, "雀士一"},
		{"negative falls back to lowest", -50, "雀士一"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ladder.Resolve(tt.points).RankName)
		})
	}
}

func TestLadderCoverage(t *testing.T) {
	ladder := NewLadder(testTiers())
	require.NoError(t, ladder.Validate())

	// Every point value in [0, top maxPoints] resolves to exactly one tier.
	tiers := ladder.Tiers()
	top := tiers[len(tiers)-1].MaxPoints
	for p := 0; p <= top; p++ {
		matches := 0
		for _, tier := range tiers {
			if p >= tier.MinPoints && p <= tier.MaxPoints {
				matches++
			}
		}
		require.Equalf(t, 1, matches, "point %d matched %d tiers", p, matches)
	}
}

func TestLadderValidateRejectsGapsAndOverlaps(t *testing.T) {
	gap := testTiers()
	gap[2].MinPoints = 700 // leaves 600..699 uncovered
	assert.Error(t, NewLadder(gap).Validate())

	overlap := testTiers()
	overlap[3].MinPoints = 900
	assert.Error(t, NewLadder(overlap).Validate())

	notFromZero := testTiers()
	notFromZero[0].MinPoints = 10
	assert.Error(t, NewLadder(notFromZero).Validate())

	empty := testTiers()
	empty[1].MaxPoints = empty[1].MinPoints
	assert.Error(t, NewLadder(empty).Validate())
}

func TestParseMinorRank(t *testing.T) {
	tests := []struct {
		name string
		typ  domain.MinorRankType
		want int
	}{
		{"雀士一", domain.MinorRankDan, 1},
		{"雀士三", domain.MinorRankDan, 3},
		{"雀豪九", domain.MinorRankDan, 9},
		{"雀圣二星", domain.MinorRankStar, 2},
		{"魂天", domain.MinorRankNone, 1},
		{"雀士", domain.MinorRankDan, 1},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, ParseMinorRank(tt.name, tt.typ), "name %q", tt.name)
	}
}

func TestNewLadderMaterializesMinorRank(t *testing.T) {
	ladder := NewLadder(testTiers())
	tiers := ladder.Tiers()
	assert.Equal(t, 2, tiers[1].MinorRank)
	assert.Equal(t, 1, tiers[5].MinorRank)
}

func TestDefaultLadderIsValid(t *testing.T) {
	ladder := DefaultLadder()
	require.NoError(t, ladder.Validate())
	assert.Equal(t, 1, ladder.Resolve(123456).RankOrder)
}
