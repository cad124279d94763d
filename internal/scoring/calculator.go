// Package scoring turns raw four-player score vectors into signed rank-point
// deltas.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"mahjong-tracker/internal/domain"
	"mahjong-tracker/internal/rank"
)

// Calculator computes per-seat rank points for one game under a fixed
// configuration generation. Calculators are cheap; build a fresh one per
// config snapshot rather than mutating in place.
type Calculator struct {
	cfg    domain.GameConfig
	ladder *rank.Ladder
}

func NewCalculator(cfg domain.GameConfig, ladder *rank.Ladder) *Calculator {
	return &Calculator{cfg: cfg, ladder: ladder}
}

// Compute validates the score vector and produces one MahjongCalculation per
// seat, indexed by original seat order. preGamePoints supplies each player's
// cumulative points before this game; missing players default to the
// configured initial points. Positions are assigned by descending score;
// equal scores are broken by lower seat index (an explicit comparator, not
// sort stability).
func (c *Calculator) Compute(
	scores [domain.SeatCount]int,
	playerIDs [domain.SeatCount]string,
	preGamePoints map[string]int,
) ([domain.SeatCount]domain.MahjongCalculation, error) {
	var results [domain.SeatCount]domain.MahjongCalculation

	if !ValidateScores(scores, c.cfg.TotalPoints) {
		return results, fmt.Errorf("%w: total must equal %d", ErrInvalidScoreSum, c.cfg.TotalPoints)
	}

	order := [domain.SeatCount]int{0, 1, 2, 3}
	sort.Slice(order[:], func(i, j int) bool {
		a, b := order[i], order[j]
		if scores[a] != scores[b] {
			return scores[a] > scores[b]
		}
		return a < b
	})

	for pos, seat := range order {
		score := scores[seat]

		// rawPoints keeps one decimal, rounded half away from zero.
		// Tenths are carried as integers so the later ceiling is exact.
		tenths := roundHalfAway(float64(score-c.cfg.BasePoints) / 100)
		uma := c.cfg.UmaPoints[pos]
		original := ceilTenths(tenths + uma*10)

		pre, ok := preGamePoints[playerIDs[seat]]
		if !ok {
			pre = c.cfg.InitialPoints
		}
		tier := c.ladder.Resolve(pre)

		applied := original
		protected := false
		if tier.RankOrder <= c.cfg.NewbieProtectionMaxRank && original < 0 {
			applied = 0
			protected = true
		}

		results[seat] = domain.MahjongCalculation{
			FinalScore:         score,
			RawPoints:          float64(tenths) / 10,
			UmaPoints:          uma,
			RankPoints:         applied,
			OriginalRankPoints: original,
			IsNewbieProtected:  protected,
			Position:           pos + 1,
		}
	}

	return results, nil
}

func roundHalfAway(x float64) int {
	return int(math.Round(x))
}

// ceilTenths is ceil(t/10) in exact integer arithmetic.
func ceilTenths(t int) int {
	q := t / 10
	if t%10 != 0 && t > 0 {
		q++
	}
	return q
}
