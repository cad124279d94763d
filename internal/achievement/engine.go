// Package achievement evaluates bonus-point rules against game results.
package achievement

import (
	"sort"

	"mahjong-tracker/internal/domain"

	"github.com/rs/zerolog"
)

// A win for streak purposes is finishing 1st or 2nd; only a 4th place counts
// as a loss.
func isWin(position int) bool  { return position <= 2 }
func isLoss(position int) bool { return position == domain.SeatCount }

// Engine evaluates the configured achievement rules. A nil or disabled rule
// set is valid and makes every detection return empty, so construction never
// fails even on broken configuration.
type Engine struct {
	rules  domain.AchievementRules
	logger zerolog.Logger
}

func NewEngine(rules domain.AchievementRules, logger zerolog.Logger) *Engine {
	return &Engine{rules: rules, logger: logger}
}

// DisabledRules is the safe default applied when achievement configuration
// is missing or malformed.
func DisabledRules() domain.AchievementRules {
	return domain.AchievementRules{Enabled: false}
}

// DetectAll returns every achievement the current game earns: all matching
// single-game rules plus at most one win-streak and one lose-streak tier.
// history is the player's prior games in chronological order; the current
// game is appended internally.
func (e *Engine) DetectAll(score, position int, allScores [domain.SeatCount]int, history []domain.GameOutcome) []domain.AchievementEarned {
	if !e.rules.Enabled {
		return nil
	}

	earned := e.DetectSingleGame(score, position)
	earned = append(earned, e.DetectStreaks(position, history)...)
	return earned
}

// DetectSingleGame evaluates the single_game_glory rules independently; a
// game may earn several at once.
func (e *Engine) DetectSingleGame(score, position int) []domain.AchievementEarned {
	if !e.rules.Enabled {
		return nil
	}

	var earned []domain.AchievementEarned
	for _, rule := range e.rules.Rules {
		if rule.Category != domain.CategorySingleGame {
			continue
		}
		if !matchesSingleGame(rule, score, position) {
			continue
		}
		earned = append(earned, domain.AchievementEarned{
			AchievementID:   rule.ID,
			AchievementName: rule.Name,
			BonusPoints:     rule.BonusPoints,
			Description:     rule.Description,
			Category:        rule.Category,
		})
	}
	return earned
}

func matchesSingleGame(rule domain.AchievementRule, score, position int) bool {
	switch rule.ConditionType {
	case domain.ConditionFinalScoreGte:
		return score >= rule.ConditionValue
	case domain.ConditionFinalScoreLte:
		return score <= rule.ConditionValue
	case domain.ConditionPositionEq:
		return position == rule.ConditionValue
	case domain.ConditionPositionAndScore:
		return position == rule.ConditionValue && score >= rule.ConditionScore
	default:
		return false
	}
}

// DetectStreaks counts the trailing run of wins (or losses) ending at the
// current game and awards the single highest-threshold streak tier the count
// reaches. Streaks start at length 2. From length 5 on, a linear per-game
// extra is folded into the bonus.
func (e *Engine) DetectStreaks(position int, history []domain.GameOutcome) []domain.AchievementEarned {
	if !e.rules.Enabled {
		return nil
	}

	var earned []domain.AchievementEarned
	if isWin(position) {
		if a := e.detectStreak(domain.CategoryWinStreak, isWin, position, history, e.rules.WinStreakExtraBonusPerGame); a != nil {
			earned = append(earned, *a)
		}
	}
	if isLoss(position) {
		if a := e.detectStreak(domain.CategoryLoseStreak, isLoss, position, history, e.rules.LoseStreakExtraBonusPerGame); a != nil {
			earned = append(earned, *a)
		}
	}
	return earned
}

func (e *Engine) detectStreak(category string, qualifies func(int) bool, position int, history []domain.GameOutcome, perGameBonus int) *domain.AchievementEarned {
	// Trailing run including the current game. Any non-qualifying result
	// breaks the count.
	streak := 1
	for i := len(history) - 1; i >= 0; i-- {
		if !qualifies(history[i].Position) {
			break
		}
		streak++
	}
	if streak < 2 {
		return nil
	}

	var tiers []domain.AchievementRule
	for _, rule := range e.rules.Rules {
		if rule.Category == category {
			tiers = append(tiers, rule)
		}
	}
	sort.Slice(tiers, func(i, j int) bool {
		return tiers[i].ConditionValue > tiers[j].ConditionValue
	})

	for _, rule := range tiers {
		if streak < rule.ConditionValue {
			continue
		}
		extra := 0
		if streak >= 5 && perGameBonus > 0 {
			extra = (streak - 5) * perGameBonus
		}
		e.logger.Debug().
			Str("category", category).
			Str("rule", rule.Name).
			Int("streak", streak).
			Int("extra_bonus", extra).
			Msg("streak achievement earned")
		return &domain.AchievementEarned{
			AchievementID:    rule.ID,
			AchievementName:  rule.Name,
			BonusPoints:      rule.BonusPoints + extra,
			Description:      rule.Description,
			Category:         rule.Category,
			StreakCount:      streak,
			ExtraBonusPoints: extra,
		}
	}
	return nil
}

// TotalBonus sums the bonus points of the earned set; per-game streak extras
// are already folded into BonusPoints at award time.
func (e *Engine) TotalBonus(earned []domain.AchievementEarned) int {
	total := 0
	for _, a := range earned {
		total += a.BonusPoints
	}
	return total
}
