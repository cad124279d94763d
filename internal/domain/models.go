package domain

import (
	"time"
)

// SeatCount is the number of players in a game. The whole scoring model is
// built around four-player games; two- and three-player variants are out of
// scope.
const SeatCount = 4

type User struct {
	ID           string
	Username     string
	PasswordHash string
	Nickname     string
	Avatar       string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// GamePlayer is one seat of a recorded game. Seat is the 0-based submission
// order, Position the 1-based finishing place assigned by descending score.
type GamePlayer struct {
	UserID     string
	Seat       int
	FinalScore int
	Position   int
}

type Game struct {
	ID        string
	GameType  string
	CreatedAt time.Time
	Players   []GamePlayer
}

type MinorRankType string

const (
	MinorRankDan  MinorRankType = "dan"
	MinorRankStar MinorRankType = "star"
	MinorRankNone MinorRankType = "none"
)

// RankTier is one point-range bucket of the ladder. Tiers are loaded from
// configuration, sorted by RankOrder, and replaced wholesale on reload.
// MinorRank is materialized from the display name at load time.
type RankTier struct {
	ID              int64
	RankName        string
	MinPoints       int
	MaxPoints       int
	PromotionBonus  int
	DemotionPenalty int
	RankOrder       int
	MajorRank       string
	MinorRankType   MinorRankType
	MinorRankRange  int
	MinorRank       int
}

// GameConfig holds the numeric scoring constants in effect.
type GameConfig struct {
	BasePoints              int
	TotalPoints             int
	InitialPoints           int
	UmaPoints               [SeatCount]int
	NewbieProtectionMaxRank int
}

const (
	ConditionFinalScoreGte    = "final_score_gte"
	ConditionFinalScoreLte    = "final_score_lte"
	ConditionPositionEq       = "position_eq"
	ConditionPositionAndScore = "position_and_score"
)

const (
	CategorySingleGame = "single_game_glory"
	CategoryWinStreak  = "win_streak"
	CategoryLoseStreak = "lose_streak"
)

// AchievementRule is one configured bonus rule. For position_and_score,
// ConditionValue holds the required position and ConditionScore the minimum
// final score; streak rules use ConditionValue as the streak threshold.
type AchievementRule struct {
	ID             string
	Name           string
	Description    string
	Category       string
	ConditionType  string
	ConditionValue int
	ConditionScore int
	BonusPoints    int
}

type AchievementRules struct {
	Enabled                     bool
	Rules                       []AchievementRule
	WinStreakExtraBonusPerGame  int
	LoseStreakExtraBonusPerGame int
}

// AchievementEarned is computed per game at replay time, never stored.
type AchievementEarned struct {
	AchievementID    string
	AchievementName  string
	BonusPoints      int
	Description      string
	Category         string
	StreakCount      int
	ExtraBonusPoints int
}

// MahjongCalculation is the per-seat output of one point calculation.
// RankPoints is the applied delta, OriginalRankPoints the pre-protection
// value; they differ only when newbie protection clamped a negative result.
type MahjongCalculation struct {
	FinalScore         int
	RawPoints          float64
	UmaPoints          int
	RankPoints         int
	OriginalRankPoints int
	IsNewbieProtected  bool
	Position           int
}

// GameOutcome is the slice of a player's history the achievement engine
// needs: finishing positions in chronological order.
type GameOutcome struct {
	GameID   string
	Position int
}

// UserStats is derived from the full replay; it is never persisted.
type UserStats struct {
	UserID          string
	Username        string
	Nickname        string
	TotalPoints     int
	RankLevel       int
	RankPoints      int
	GamesPlayed     int
	Wins            int
	AveragePosition float64
	CurrentRank     string
}

// PointHistoryEntry records one (user, game) pair produced by replay.
type PointHistoryEntry struct {
	GameID               string
	PointsBefore         int
	PointsAfter          int
	PointsChange         int
	OriginalPointsChange int
	IsNewbieProtected    bool
	RankBefore           string
	RankAfter            string
	GameDate             time.Time
	Opponents            []string
	Achievements         []AchievementEarned
}
