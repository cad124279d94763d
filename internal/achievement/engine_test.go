package achievement

import (
	"testing"

	"mahjong-tracker/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRules() domain.AchievementRules {
	return domain.AchievementRules{
		Enabled:                     true,
		WinStreakExtraBonusPerGame:  2,
		LoseStreakExtraBonusPerGame: 1,
		Rules: []domain.AchievementRule{
			{ID: "huge-score", Name: "一骑绝尘", Category: domain.CategorySingleGame, ConditionType: domain.ConditionFinalScoreGte, ConditionValue: 60000, BonusPoints: 5},
			{ID: "big-score", Name: "大杀四方", Category: domain.CategorySingleGame, ConditionType: domain.ConditionFinalScoreGte, ConditionValue: 50000, BonusPoints: 3},
			{ID: "negative-score", Name: "虽败犹荣", Category: domain.CategorySingleGame, ConditionType: domain.ConditionFinalScoreLte, ConditionValue: 0, BonusPoints: 2},
			{ID: "first-place", Name: "头名", Category: domain.CategorySingleGame, ConditionType: domain.ConditionPositionEq, ConditionValue: 1, BonusPoints: 1},
			{ID: "dominant-first", Name: "断层第一", Category: domain.CategorySingleGame, ConditionType: domain.ConditionPositionAndScore, ConditionValue: 1, ConditionScore: 55000, BonusPoints: 3},
			{ID: "win-streak-2", Name: "二连胜", Category: domain.CategoryWinStreak, ConditionValue: 2, BonusPoints: 2},
			{ID: "win-streak-3", Name: "三连胜", Category: domain.CategoryWinStreak, ConditionValue: 3, BonusPoints: 4},
			{ID: "win-streak-4", Name: "四连胜", Category: domain.CategoryWinStreak, ConditionValue: 4, BonusPoints: 6},
			{ID: "win-streak-5", Name: "五连胜", Category: domain.CategoryWinStreak, ConditionValue: 5, BonusPoints: 10},
			{ID: "lose-streak-2", Name: "连败安慰", Category: domain.CategoryLoseStreak, ConditionValue: 2, BonusPoints: 1},
		},
	}
}

func outcomes(positions ...int) []domain.GameOutcome {
	history := make([]domain.GameOutcome, len(positions))
	for i, p := range positions {
		history[i] = domain.GameOutcome{GameID: "g", Position: p}
	}
	return history
}

var anyScores = [4]int{42000, 31000, 18000, 9000}

func TestDetectAllDisabled(t *testing.T) {
	engine := NewEngine(DisabledRules(), zerolog.Nop())
	earned := engine.DetectAll(60000, 1, anyScores, outcomes(1, 1, 1, 1))
	assert.Empty(t, earned)
}

func TestDetectSingleGameMultipleRules(t *testing.T) {
	engine := NewEngine(testRules(), zerolog.Nop())

	// 62000 at position 1 satisfies both score thresholds, position_eq and
	// position_and_score at once.
	earned := engine.DetectSingleGame(62000, 1)
	ids := earnedIDs(earned)
	assert.ElementsMatch(t, []string{"huge-score", "big-score", "first-place", "dominant-first"}, ids)
}

func TestDetectSingleGameConditions(t *testing.T) {
	engine := NewEngine(testRules(), zerolog.Nop())

	tests := []struct {
		name     string
		score    int
		position int
		want     []string
	}{
		{"nothing earned", 30000, 2, nil},
		{"negative score", -1200, 4, []string{"negative-score"}},
		{"zero score boundary", 0, 4, []string{"negative-score"}},
		{"first place only", 45000, 1, []string{"first-place"}},
		{"position_and_score needs both", 55000, 2, []string{"big-score"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			earned := engine.DetectSingleGame(tt.score, tt.position)
			assert.ElementsMatch(t, tt.want, earnedIDs(earned))
		})
	}
}

func TestDetectStreaksWinTiers(t *testing.T) {
	engine := NewEngine(testRules(), zerolog.Nop())

	t.Run("single win is not a streak", func(t *testing.T) {
		assert.Empty(t, engine.DetectStreaks(1, outcomes(3, 4)))
	})

	t.Run("four game streak hits the 4 tier with no extra", func(t *testing.T) {
		// Three prior top-two finishes plus the current qualifying game.
		earned := engine.DetectStreaks(2, outcomes(1, 2, 1))
		require.Len(t, earned, 1)
		assert.Equal(t, "win-streak-4", earned[0].AchievementID)
		assert.Equal(t, 4, earned[0].StreakCount)
		assert.Equal(t, 6, earned[0].BonusPoints)
		assert.Equal(t, 0, earned[0].ExtraBonusPoints)
	})

	t.Run("streak broken by a mid-history third place", func(t *testing.T) {
		earned := engine.DetectStreaks(1, outcomes(1, 3, 1))
		require.Len(t, earned, 1)
		assert.Equal(t, "win-streak-2", earned[0].AchievementID)
		assert.Equal(t, 2, earned[0].StreakCount)
	})

	t.Run("only the highest satisfied tier is awarded", func(t *testing.T) {
		earned := engine.DetectStreaks(1, outcomes(2, 2, 2))
		require.Len(t, earned, 1)
		assert.Equal(t, "win-streak-4", earned[0].AchievementID)
	})

	t.Run("per game extra beyond five", func(t *testing.T) {
		// Streak of 7: tier 5 base 10 plus (7-5)*2 extra.
		earned := engine.DetectStreaks(1, outcomes(1, 2, 1, 2, 1, 2))
		require.Len(t, earned, 1)
		assert.Equal(t, "win-streak-5", earned[0].AchievementID)
		assert.Equal(t, 7, earned[0].StreakCount)
		assert.Equal(t, 14, earned[0].BonusPoints)
		assert.Equal(t, 4, earned[0].ExtraBonusPoints)
	})

	t.Run("exactly five has no extra", func(t *testing.T) {
		earned := engine.DetectStreaks(2, outcomes(1, 1, 2, 2))
		require.Len(t, earned, 1)
		assert.Equal(t, 10, earned[0].BonusPoints)
		assert.Equal(t, 0, earned[0].ExtraBonusPoints)
	})
}

func TestDetectStreaksLose(t *testing.T) {
	engine := NewEngine(testRules(), zerolog.Nop())

	t.Run("third place is not a loss", func(t *testing.T) {
		assert.Empty(t, engine.DetectStreaks(3, outcomes(4, 4)))
	})

	t.Run("trailing lose streak", func(t *testing.T) {
		earned := engine.DetectStreaks(4, outcomes(1, 4, 4))
		require.Len(t, earned, 1)
		assert.Equal(t, "lose-streak-2", earned[0].AchievementID)
		assert.Equal(t, 3, earned[0].StreakCount)
	})

	t.Run("lose per game extra", func(t *testing.T) {
		earned := engine.DetectStreaks(4, outcomes(4, 4, 4, 4, 4))
		require.Len(t, earned, 1)
		assert.Equal(t, 6, earned[0].StreakCount)
		assert.Equal(t, 1+1, earned[0].BonusPoints)
		assert.Equal(t, 1, earned[0].ExtraBonusPoints)
	})
}

func TestDetectAllCombinesCategories(t *testing.T) {
	engine := NewEngine(testRules(), zerolog.Nop())

	earned := engine.DetectAll(62000, 1, anyScores, outcomes(2, 1))
	ids := earnedIDs(earned)
	assert.Contains(t, ids, "huge-score")
	assert.Contains(t, ids, "win-streak-3")
}

func TestTotalBonus(t *testing.T) {
	engine := NewEngine(testRules(), zerolog.Nop())
	earned := []domain.AchievementEarned{
		{BonusPoints: 5},
		{BonusPoints: 14, ExtraBonusPoints: 4},
	}
	assert.Equal(t, 19, engine.TotalBonus(earned))
	assert.Equal(t, 0, engine.TotalBonus(nil))
}

func earnedIDs(earned []domain.AchievementEarned) []string {
	var ids []string
	for _, a := range earned {
		ids = append(ids, a.AchievementID)
	}
	return ids
}
