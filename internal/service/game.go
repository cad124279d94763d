package service

import (
	"context"
	"fmt"
	"time"

	"mahjong-tracker/internal/achievement"
	"mahjong-tracker/internal/cache"
	"mahjong-tracker/internal/constants"
	"mahjong-tracker/internal/domain"
	"mahjong-tracker/internal/gameconfig"
	"mahjong-tracker/internal/repository"
	"mahjong-tracker/internal/scoring"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// UserFinder and GameAppender are the narrow repository views game creation
// needs; the concrete repositories satisfy them.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

type GameAppender interface {
	Append(ctx context.Context, game *domain.Game) error
}

// StandingsCache is the replay cache surface the services consume.
type StandingsCache interface {
	GetOrCompute(ctx context.Context) (*cache.Snapshot, error)
	Invalidate()
}

type ConfigSource interface {
	Snapshot() *gameconfig.Snapshot
}

type PlayerInput struct {
	UserID     string
	FinalScore int
}

type CreateGameInput struct {
	GameType string
	Players  [domain.SeatCount]PlayerInput
}

// SeatResult is the per-seat outcome returned to the submitter, including
// the applied delta with achievement bonuses folded in.
type SeatResult struct {
	UserID       string
	Calculation  domain.MahjongCalculation
	Achievements []domain.AchievementEarned
	BonusPoints  int
	AppliedDelta int
}

type CreateGameResult struct {
	Game    domain.Game
	Results [domain.SeatCount]SeatResult
}

type GameService struct {
	games  GameAppender
	users  UserFinder
	config ConfigSource
	cache  StandingsCache
	logger zerolog.Logger
}

func NewGameService(games *repository.GameRepository, users *repository.UserRepository, config *gameconfig.Provider, standings *cache.PointsCache, logger zerolog.Logger) *GameService {
	return &GameService{games: games, users: users, config: config, cache: standings, logger: logger}
}

// NewGameServiceWith wires arbitrary implementations; tests use it with
// fakes.
func NewGameServiceWith(games GameAppender, users UserFinder, config ConfigSource, standings StandingsCache, logger zerolog.Logger) *GameService {
	return &GameService{games: games, users: users, config: config, cache: standings, logger: logger}
}

// Create validates and records one game. The cache is invalidated after the
// append succeeds and before the request is acknowledged, so a crash in
// between costs at most a redundant replay, never a stale read.
func (s *GameService) Create(ctx context.Context, in CreateGameInput) (*CreateGameResult, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	cfg := s.config.Snapshot()

	var scores [domain.SeatCount]int
	var ids [domain.SeatCount]string
	seen := make(map[string]bool, domain.SeatCount)
	for i, p := range in.Players {
		if p.UserID == "" {
			return nil, fmt.Errorf("seat %d has no player", i)
		}
		if seen[p.UserID] {
			return nil, fmt.Errorf("player %s appears more than once", p.UserID)
		}
		seen[p.UserID] = true
		scores[i] = p.FinalScore
		ids[i] = p.UserID
	}

	if !scoring.ValidateScores(scores, cfg.Game.TotalPoints) {
		return nil, fmt.Errorf("%w: total must equal %d", scoring.ErrInvalidScoreSum, cfg.Game.TotalPoints)
	}

	for _, id := range ids {
		if _, err := s.users.FindByID(ctx, id); err != nil {
			return nil, fmt.Errorf("player %s: %w", id, err)
		}
	}

	// Pre-game points and trailing histories come from the current cached
	// standings, so newbie protection and streaks see the player's rank as
	// of this moment.
	snap, err := s.cache.GetOrCompute(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load current standings: %w", err)
	}
	pre := make(map[string]int, domain.SeatCount)
	for _, id := range ids {
		if st, ok := snap.Stats[id]; ok {
			pre[id] = st.TotalPoints
		}
	}

	calc := scoring.NewCalculator(cfg.Game, cfg.Ladder)
	results, err := calc.Compute(scores, ids, pre)
	if err != nil {
		return nil, err
	}

	engine := achievement.NewEngine(cfg.Achievements, s.logger)

	gameType := in.GameType
	if gameType == "" {
		gameType = "ranked"
	}
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate game id: %w", err)
	}
	game := domain.Game{
		ID:        id,
		GameType:  gameType,
		CreatedAt: time.Now().UTC(),
	}

	out := CreateGameResult{}
	for seat := range ids {
		res := results[seat]
		game.Players = append(game.Players, domain.GamePlayer{
			UserID:     ids[seat],
			Seat:       seat,
			FinalScore: scores[seat],
			Position:   res.Position,
		})

		earned := engine.DetectAll(res.FinalScore, res.Position, scores, snap.Outcomes[ids[seat]])
		bonus := engine.TotalBonus(earned)
		out.Results[seat] = SeatResult{
			UserID:       ids[seat],
			Calculation:  res,
			Achievements: earned,
			BonusPoints:  bonus,
			AppliedDelta: res.RankPoints + bonus,
		}
	}

	if err := s.games.Append(ctx, &game); err != nil {
		return nil, fmt.Errorf("failed to record game: %w", err)
	}
	s.cache.Invalidate()

	out.Game = game
	s.logger.Info().
		Str("game_id", game.ID).
		Str("game_type", game.GameType).
		Msg("game recorded")
	return &out, nil
}
