// Package cache holds the authoritative derived standings: a full replay of
// the game log, cached per configuration generation.
package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"mahjong-tracker/internal/achievement"
	"mahjong-tracker/internal/constants"
	"mahjong-tracker/internal/domain"
	"mahjong-tracker/internal/gameconfig"
	"mahjong-tracker/internal/scoring"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// GameSource and UserSource are the repository views the replay needs.
type GameSource interface {
	ListAll(ctx context.Context) ([]domain.Game, error)
}

type UserSource interface {
	List(ctx context.Context) ([]domain.User, error)
}

// ConfigSource supplies the active configuration generation and lets the
// cache subscribe to changes. gameconfig.Provider is the production
// implementation.
type ConfigSource interface {
	Snapshot() *gameconfig.Snapshot
	OnChange(fn func())
}

// Snapshot is the result of one full replay. It is immutable once published;
// a new generation replaces it wholesale.
type Snapshot struct {
	Stats      map[string]*domain.UserStats
	Histories  map[string][]domain.PointHistoryEntry
	Outcomes   map[string][]domain.GameOutcome
	ConfigHash string
	ComputedAt time.Time
	Skipped    int
}

// PointsCache replays the entire game log through the point calculator and
// achievement engine whenever the configuration generation changes, and
// serves the cached result otherwise. Concurrent cold reads share a single
// in-flight replay.
type PointsCache struct {
	games     GameSource
	users     UserSource
	config    ConfigSource
	logger    zerolog.Logger
	batchSize int

	mu    sync.RWMutex
	snap  *Snapshot
	gen   int64
	group singleflight.Group

	replays atomic.Int64
}

func New(games GameSource, users UserSource, config ConfigSource, batchSize int, logger zerolog.Logger) *PointsCache {
	if batchSize <= 0 {
		batchSize = constants.ReplayBatchSize
	}
	c := &PointsCache{
		games:     games,
		users:     users,
		config:    config,
		logger:    logger,
		batchSize: batchSize,
	}
	config.OnChange(c.Invalidate)
	return c
}

// Invalidate discards the cached snapshot and advances the cache generation.
// The next read recomputes lazily; a replay already in flight will not publish
// its result over the invalidation.
func (c *PointsCache) Invalidate() {
	c.mu.Lock()
	c.snap = nil
	c.gen++
	c.mu.Unlock()
	c.logger.Debug().Msg("points cache invalidated")
}

// ReplayCount reports how many full replays have run.
func (c *PointsCache) ReplayCount() int64 {
	return c.replays.Load()
}

// GetOrCompute returns the snapshot for the active configuration generation,
// replaying the game log if none is cached. A snapshot computed under a
// different configuration hash counts as a miss. Concurrent callers for the
// same generation share one replay; a replay runs to completion even if its
// caller goes away, so later readers still get the populated cache.
func (c *PointsCache) GetOrCompute(ctx context.Context) (*Snapshot, error) {
	hash := c.config.Snapshot().Hash

	c.mu.RLock()
	snap, gen := c.snap, c.gen
	c.mu.RUnlock()
	if snap != nil && snap.ConfigHash == hash {
		return snap, nil
	}

	// The cache generation is part of the flight key so a caller arriving
	// after an invalidation never joins a replay that started before it.
	key := fmt.Sprintf("%s:%d", hash, gen)
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		cur := c.snap
		c.mu.RUnlock()
		if cur != nil && cur.ConfigHash == hash {
			return cur, nil
		}

		replayCtx, cancel := context.WithTimeout(context.Background(), constants.ReplayTimeout)
		defer cancel()

		fresh, err := c.replay(replayCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		// An invalidation that landed mid-replay wins: leave the cache
		// empty so the next read replays against the newer game log.
		if c.gen == gen {
			c.snap = fresh
		}
		c.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// UserStats returns the derived standings for one user, or nil when the user
// is unknown to the replay.
func (c *PointsCache) UserStats(ctx context.Context, userID string) (*domain.UserStats, error) {
	snap, err := c.GetOrCompute(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Stats[userID], nil
}

// UserHistory returns the user's point trajectory, newest first.
func (c *PointsCache) UserHistory(ctx context.Context, userID string) ([]domain.PointHistoryEntry, error) {
	snap, err := c.GetOrCompute(ctx)
	if err != nil {
		return nil, err
	}
	entries := snap.Histories[userID]
	out := make([]domain.PointHistoryEntry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out, nil
}

// AllStats returns the full standings map for the active generation.
func (c *PointsCache) AllStats(ctx context.Context) (map[string]*domain.UserStats, error) {
	snap, err := c.GetOrCompute(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Stats, nil
}

type runningStats struct {
	points      int
	gamesPlayed int
	wins        int
	positionSum int
}

// replay rebuilds all derived state from scratch: games sorted ascending by
// creation time, every known user seeded at the configured initial points,
// each game scored against the players' running totals at that moment.
func (c *PointsCache) replay(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	cfg := c.config.Snapshot()
	calc := scoring.NewCalculator(cfg.Game, cfg.Ladder)
	engine := achievement.NewEngine(cfg.Achievements, c.logger)

	users, err := c.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users for replay: %w", err)
	}
	games, err := c.games.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list games for replay: %w", err)
	}
	sort.Slice(games, func(i, j int) bool {
		if !games[i].CreatedAt.Equal(games[j].CreatedAt) {
			return games[i].CreatedAt.Before(games[j].CreatedAt)
		}
		return games[i].ID < games[j].ID
	})

	running := make(map[string]*runningStats, len(users))
	userByID := make(map[string]domain.User, len(users))
	for _, u := range users {
		running[u.ID] = &runningStats{points: cfg.Game.InitialPoints}
		userByID[u.ID] = u
	}
	histories := make(map[string][]domain.PointHistoryEntry)
	outcomes := make(map[string][]domain.GameOutcome)
	skipped := 0

	for base := 0; base < len(games); base += c.batchSize {
		end := base + c.batchSize
		if end > len(games) {
			end = len(games)
		}

		for _, game := range games[base:end] {
			if len(game.Players) != domain.SeatCount {
				c.logger.Warn().Str("game_id", game.ID).Int("players", len(game.Players)).Msg("skipping malformed game")
				skipped++
				continue
			}

			players := make([]domain.GamePlayer, len(game.Players))
			copy(players, game.Players)
			sort.Slice(players, func(i, j int) bool { return players[i].Seat < players[j].Seat })

			var scores [domain.SeatCount]int
			var ids [domain.SeatCount]string
			for i, p := range players {
				scores[i] = p.FinalScore
				ids[i] = p.UserID
			}

			// A historical game recorded under a different table total is
			// skipped, not fatal: retroactive config changes must not
			// corrupt the rest of the replay.
			if !scoring.ValidateScores(scores, cfg.Game.TotalPoints) {
				c.logger.Warn().
					Str("game_id", game.ID).
					Int("total_points", cfg.Game.TotalPoints).
					Msg("skipping game with invalid score sum under current configuration")
				skipped++
				continue
			}

			pre := make(map[string]int, domain.SeatCount)
			for _, id := range ids {
				if rs, ok := running[id]; ok {
					pre[id] = rs.points
				}
			}

			results, err := calc.Compute(scores, ids, pre)
			if err != nil {
				c.logger.Warn().Err(err).Str("game_id", game.ID).Msg("skipping uncomputable game")
				skipped++
				continue
			}

			for seat, id := range ids {
				rs, ok := running[id]
				if !ok {
					// Player no longer in the user table; still replay them
					// so the other seats' opponents line up.
					rs = &runningStats{points: cfg.Game.InitialPoints}
					running[id] = rs
				}
				res := results[seat]

				earned := engine.DetectAll(res.FinalScore, res.Position, scores, outcomes[id])
				bonus := engine.TotalBonus(earned)

				before := rs.points
				change := res.RankPoints + bonus
				after := before + change

				opponents := make([]string, 0, domain.SeatCount-1)
				for _, other := range ids {
					if other != id {
						opponents = append(opponents, other)
					}
				}

				histories[id] = append(histories[id], domain.PointHistoryEntry{
					GameID:               game.ID,
					PointsBefore:         before,
					PointsAfter:          after,
					PointsChange:         change,
					OriginalPointsChange: res.OriginalRankPoints + bonus,
					IsNewbieProtected:    res.IsNewbieProtected,
					RankBefore:           cfg.Ladder.Resolve(before).RankName,
					RankAfter:            cfg.Ladder.Resolve(after).RankName,
					GameDate:             game.CreatedAt,
					Opponents:            opponents,
					Achievements:         earned,
				})
				outcomes[id] = append(outcomes[id], domain.GameOutcome{GameID: game.ID, Position: res.Position})

				rs.points = after
				rs.gamesPlayed++
				rs.positionSum += res.Position
				if res.Position == 1 {
					rs.wins++
				}
			}
		}

		c.logger.Debug().
			Int("processed", end).
			Int("total", len(games)).
			Msg("replay batch complete")
	}

	stats := make(map[string]*domain.UserStats, len(running))
	for id, rs := range running {
		tier := cfg.Ladder.Resolve(rs.points)
		avg := 0.0
		if rs.gamesPlayed > 0 {
			avg = float64(rs.positionSum) / float64(rs.gamesPlayed)
		}
		u := userByID[id]
		stats[id] = &domain.UserStats{
			UserID:          id,
			Username:        u.Username,
			Nickname:        u.Nickname,
			TotalPoints:     rs.points,
			RankLevel:       tier.RankOrder,
			RankPoints:      rs.points - tier.MinPoints,
			GamesPlayed:     rs.gamesPlayed,
			Wins:            rs.wins,
			AveragePosition: avg,
			CurrentRank:     tier.RankName,
		}
	}

	c.replays.Add(1)
	c.logger.Info().
		Int("games", len(games)).
		Int("skipped", skipped).
		Int("users", len(stats)).
		Str("config_hash", cfg.Hash).
		Dur("elapsed", time.Since(start)).
		Msg("replay complete")

	return &Snapshot{
		Stats:      stats,
		Histories:  histories,
		Outcomes:   outcomes,
		ConfigHash: cfg.Hash,
		ComputedAt: time.Now(),
		Skipped:    skipped,
	}, nil
}
