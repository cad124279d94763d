package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"mahjong-tracker/internal/cache"
	"mahjong-tracker/internal/domain"
	"mahjong-tracker/internal/gameconfig"
	"mahjong-tracker/internal/rank"
	"mahjong-tracker/internal/repository"
	"mahjong-tracker/internal/scoring"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	known map[string]bool
}

func (f *fakeUsers) FindByID(ctx context.Context, id string) (*domain.User, error) {
	if !f.known[id] {
		return nil, repository.ErrNotFound
	}
	return &domain.User{ID: id, Username: id}, nil
}

type fakeGames struct {
	appended []*domain.Game
	fail     error
}

func (f *fakeGames) Append(ctx context.Context, game *domain.Game) error {
	if f.fail != nil {
		return f.fail
	}
	f.appended = append(f.appended, game)
	return nil
}

type fakeCache struct {
	snap        *cache.Snapshot
	invalidated int
}

func (f *fakeCache) GetOrCompute(ctx context.Context) (*cache.Snapshot, error) {
	return f.snap, nil
}

func (f *fakeCache) Invalidate() { f.invalidated++ }

type fakeConfig struct {
	snap *gameconfig.Snapshot
}

func (f *fakeConfig) Snapshot() *gameconfig.Snapshot { return f.snap }

func testConfigSnapshot() *gameconfig.Snapshot {
	return &gameconfig.Snapshot{
		Game: domain.GameConfig{
			BasePoints:              25000,
			TotalPoints:             100000,
			InitialPoints:           500,
			UmaPoints:               [4]int{20, 10, 0, -10},
			NewbieProtectionMaxRank: 1,
		},
		Ladder: rank.NewLadder([]domain.RankTier{
			{RankOrder: 1, RankName: "雀士一", MinPoints: 0, MaxPoints: 999, MinorRankType: domain.MinorRankDan},
			{RankOrder: 2, RankName: "雀杰一", MinPoints: 1000, MaxPoints: 999999, MinorRankType: domain.MinorRankDan},
		}),
		Achievements: domain.AchievementRules{
			Enabled: true,
			Rules: []domain.AchievementRule{
				{ID: "win-streak-2", Name: "二连胜", Category: domain.CategoryWinStreak, ConditionValue: 2, BonusPoints: 2},
			},
		},
		Hash: "test-hash",
	}
}

func emptyStandings() *cache.Snapshot {
	return &cache.Snapshot{
		Stats:      map[string]*domain.UserStats{},
		Histories:  map[string][]domain.PointHistoryEntry{},
		Outcomes:   map[string][]domain.GameOutcome{},
		ConfigHash: "test-hash",
	}
}

func validInput() CreateGameInput {
	return CreateGameInput{
		GameType: "ranked",
		Players: [4]PlayerInput{
			{UserID: "a", FinalScore: 42000},
			{UserID: "b", FinalScore: 31000},
			{UserID: "c", FinalScore: 18000},
			{UserID: "d", FinalScore: 9000},
		},
	}
}

func newTestService(games *fakeGames, standings *fakeCache) *GameService {
	users := &fakeUsers{known: map[string]bool{"a": true, "b": true, "c": true, "d": true}}
	return NewGameServiceWith(games, users, &fakeConfig{snap: testConfigSnapshot()}, standings, zerolog.Nop())
}

func TestCreateGame(t *testing.T) {
	games := &fakeGames{}
	standings := &fakeCache{snap: emptyStandings()}
	svc := newTestService(games, standings)

	result, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	require.Len(t, games.appended, 1)
	recorded := games.appended[0]
	assert.NotEmpty(t, recorded.ID)
	assert.Equal(t, "ranked", recorded.GameType)
	assert.WithinDuration(t, time.Now(), recorded.CreatedAt, time.Minute)
	require.Len(t, recorded.Players, 4)
	assert.Equal(t, 1, recorded.Players[0].Position)
	assert.Equal(t, 4, recorded.Players[3].Position)

	// Nobody has cached standings, so everyone starts protected at 500.
	assert.Equal(t, 37, result.Results[0].AppliedDelta)
	assert.Equal(t, 0, result.Results[3].AppliedDelta)
	assert.True(t, result.Results[3].Calculation.IsNewbieProtected)

	assert.Equal(t, 1, standings.invalidated)
}

func TestCreateGameRejectsBadSum(t *testing.T) {
	games := &fakeGames{}
	svc := newTestService(games, &fakeCache{snap: emptyStandings()})

	in := validInput()
	in.Players[0].FinalScore = 43000
	_, err := svc.Create(context.Background(), in)
	require.ErrorIs(t, err, scoring.ErrInvalidScoreSum)
	assert.Contains(t, err.Error(), "total must equal 100000")
	assert.Empty(t, games.appended)
}

func TestCreateGameRejectsUnknownPlayer(t *testing.T) {
	games := &fakeGames{}
	svc := newTestService(games, &fakeCache{snap: emptyStandings()})

	in := validInput()
	in.Players[2].UserID = "ghost"
	_, err := svc.Create(context.Background(), in)
	require.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, games.appended)
}

func TestCreateGameRejectsDuplicatePlayer(t *testing.T) {
	svc := newTestService(&fakeGames{}, &fakeCache{snap: emptyStandings()})

	in := validInput()
	in.Players[1].UserID = "a"
	_, err := svc.Create(context.Background(), in)
	assert.Error(t, err)
}

func TestCreateGameNoInvalidateOnAppendFailure(t *testing.T) {
	games := &fakeGames{fail: fmt.Errorf("disk full")}
	standings := &fakeCache{snap: emptyStandings()}
	svc := newTestService(games, standings)

	_, err := svc.Create(context.Background(), validInput())
	require.Error(t, err)
	assert.Equal(t, 0, standings.invalidated)
}

func TestCreateGameUsesCachedStandingsForProtection(t *testing.T) {
	standings := &fakeCache{snap: emptyStandings()}
	// Seat d has climbed out of the protected tiers.
	standings.snap.Stats["d"] = &domain.UserStats{UserID: "d", TotalPoints: 2000}
	svc := newTestService(&fakeGames{}, standings)

	result, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, -26, result.Results[3].AppliedDelta)
	assert.False(t, result.Results[3].Calculation.IsNewbieProtected)
}

func TestCreateGameAwardsStreakFromCachedHistory(t *testing.T) {
	standings := &fakeCache{snap: emptyStandings()}
	standings.snap.Outcomes["a"] = []domain.GameOutcome{{GameID: "g0", Position: 1}}
	svc := newTestService(&fakeGames{}, standings)

	result, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	require.Len(t, result.Results[0].Achievements, 1)
	earned := result.Results[0].Achievements[0]
	assert.Equal(t, "win-streak-2", earned.AchievementID)
	assert.Equal(t, 2, earned.StreakCount)
	assert.Equal(t, 37+2, result.Results[0].AppliedDelta)
}
