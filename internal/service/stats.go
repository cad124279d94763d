package service

import (
	"context"
	"fmt"
	"sort"

	"mahjong-tracker/internal/cache"
	"mahjong-tracker/internal/constants"
	"mahjong-tracker/internal/domain"
	"mahjong-tracker/internal/gameconfig"
	"mahjong-tracker/internal/repository"

	"github.com/rs/zerolog"
)

// HistoryCache extends the standings surface with per-user trajectories.
type HistoryCache interface {
	StandingsCache
	UserStats(ctx context.Context, userID string) (*domain.UserStats, error)
	UserHistory(ctx context.Context, userID string) ([]domain.PointHistoryEntry, error)
	AllStats(ctx context.Context) (map[string]*domain.UserStats, error)
}

type StatsService struct {
	cache  HistoryCache
	config ConfigSource
	logger zerolog.Logger
}

func NewStatsService(standings *cache.PointsCache, config *gameconfig.Provider, logger zerolog.Logger) *StatsService {
	return &StatsService{cache: standings, config: config, logger: logger}
}

func NewStatsServiceWith(standings HistoryCache, config ConfigSource, logger zerolog.Logger) *StatsService {
	return &StatsService{cache: standings, config: config, logger: logger}
}

func (s *StatsService) GetUserStats(ctx context.Context, userID string) (*domain.UserStats, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	stats, err := s.cache.UserStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		return nil, fmt.Errorf("user %s: %w", userID, repository.ErrNotFound)
	}
	return stats, nil
}

// GetUserHistory returns the user's point trajectory, newest first.
func (s *StatsService) GetUserHistory(ctx context.Context, userID string) ([]domain.PointHistoryEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	return s.cache.UserHistory(ctx, userID)
}

// GetLeaderboard returns all standings ordered by total points descending.
// Ties go to the player with more games, then by user id for determinism.
func (s *StatsService) GetLeaderboard(ctx context.Context) ([]domain.UserStats, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	all, err := s.cache.AllStats(ctx)
	if err != nil {
		return nil, err
	}

	board := make([]domain.UserStats, 0, len(all))
	for _, st := range all {
		board = append(board, *st)
	}
	sort.Slice(board, func(i, j int) bool {
		if board[i].TotalPoints != board[j].TotalPoints {
			return board[i].TotalPoints > board[j].TotalPoints
		}
		if board[i].GamesPlayed != board[j].GamesPlayed {
			return board[i].GamesPlayed > board[j].GamesPlayed
		}
		return board[i].UserID < board[j].UserID
	})
	if len(board) > constants.LeaderboardLimit {
		board = board[:constants.LeaderboardLimit]
	}
	return board, nil
}
