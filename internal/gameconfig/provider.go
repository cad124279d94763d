// Package gameconfig loads the scoring configuration (numeric constants, the
// rank ladder, achievement rules) and identifies each loaded generation by a
// content hash.
package gameconfig

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"mahjong-tracker/internal/constants"
	"mahjong-tracker/internal/domain"
	"mahjong-tracker/internal/rank"

	"github.com/rs/zerolog"
)

// Store supplies the raw configuration rows. repository.ConfigRepository is
// the production implementation.
type Store interface {
	GetValues(ctx context.Context) (map[string]string, error)
	ListTiers(ctx context.Context) ([]domain.RankTier, error)
	ListAchievementRules(ctx context.Context) ([]domain.AchievementRule, error)
}

// Snapshot is one immutable configuration generation. Hash covers every
// value; any change, including a single tier boundary, produces a new hash.
type Snapshot struct {
	Game         domain.GameConfig
	Ladder       *rank.Ladder
	Achievements domain.AchievementRules
	Hash         string
}

// Provider owns the active configuration generation. Reload swaps the whole
// snapshot; readers always see a complete, consistent generation.
type Provider struct {
	store  Store
	logger zerolog.Logger

	mu       sync.RWMutex
	snap     *Snapshot
	onChange []func()
}

func NewProvider(store Store, logger zerolog.Logger) (*Provider, error) {
	p := &Provider{store: store, logger: logger}
	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()
	snap, err := p.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load scoring configuration: %w", err)
	}
	p.snap = snap
	logger.Info().
		Str("config_hash", snap.Hash).
		Int("tiers", len(snap.Ladder.Tiers())).
		Bool("achievements_enabled", snap.Achievements.Enabled).
		Msg("scoring configuration loaded")
	return p, nil
}

// Snapshot returns the active configuration generation.
func (p *Provider) Snapshot() *Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// Hash returns the active generation's content hash.
func (p *Provider) Hash() string {
	return p.Snapshot().Hash
}

// OnChange registers a callback fired after a reload that changed the hash.
func (p *Provider) OnChange(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = append(p.onChange, fn)
}

// Reload re-reads the configuration and swaps the active snapshot. Change
// callbacks fire only when the content hash actually moved.
func (p *Provider) Reload(ctx context.Context) error {
	snap, err := p.load(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload scoring configuration: %w", err)
	}

	p.mu.Lock()
	changed := p.snap == nil || p.snap.Hash != snap.Hash
	p.snap = snap
	callbacks := make([]func(), len(p.onChange))
	copy(callbacks, p.onChange)
	p.mu.Unlock()

	if changed {
		p.logger.Info().Str("config_hash", snap.Hash).Msg("scoring configuration changed")
		for _, fn := range callbacks {
			fn()
		}
	}
	return nil
}

func (p *Provider) load(ctx context.Context) (*Snapshot, error) {
	values, err := p.store.GetValues(ctx)
	if err != nil {
		return nil, err
	}
	game := p.parseGameConfig(values)

	tiers, err := p.store.ListTiers(ctx)
	if err != nil || len(tiers) == 0 {
		// Display paths degrade to the default lowest tier rather than fail.
		p.logger.Warn().Err(err).Msg("rank tiers missing or unreadable, using default ladder")
		tiers = rank.DefaultLadder().Tiers()
	}
	ladder := rank.NewLadder(tiers)
	if err := ladder.Validate(); err != nil {
		return nil, fmt.Errorf("rank ladder rejected: %w", err)
	}

	achievements := p.loadAchievements(ctx, values)

	hash, err := configHash(game, ladder.Tiers(), achievements)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Game:         game,
		Ladder:       ladder,
		Achievements: achievements,
		Hash:         hash,
	}, nil
}

func (p *Provider) parseGameConfig(values map[string]string) domain.GameConfig {
	cfg := domain.GameConfig{
		BasePoints:              p.intValue(values, "base_points", constants.DefaultBasePoints),
		TotalPoints:             p.intValue(values, "total_points", constants.DefaultTotalPoints),
		InitialPoints:           p.intValue(values, "initial_points", constants.DefaultInitialPoints),
		UmaPoints:               constants.DefaultUmaPoints,
		NewbieProtectionMaxRank: p.intValue(values, "newbie_protection_max_rank", constants.DefaultNewbieProtectionMaxRank),
	}

	if raw, ok := values["uma_points"]; ok {
		uma, err := parseUma(raw)
		if err != nil {
			p.logger.Warn().Err(err).Str("uma_points", raw).Msg("malformed uma configuration, using default")
		} else {
			cfg.UmaPoints = uma
		}
	}
	return cfg
}

func (p *Provider) loadAchievements(ctx context.Context, values map[string]string) domain.AchievementRules {
	rules := domain.AchievementRules{
		Enabled:                     p.boolValue(values, "achievements_enabled", true),
		WinStreakExtraBonusPerGame:  p.intValue(values, "win_streak_extra_bonus_per_game", 0),
		LoseStreakExtraBonusPerGame: p.intValue(values, "lose_streak_extra_bonus_per_game", 0),
	}

	list, err := p.store.ListAchievementRules(ctx)
	if err != nil {
		// Availability over correctness: a broken achievement table must not
		// take down rank display, so detection degrades to disabled.
		p.logger.Warn().Err(err).Msg("achievement rules unreadable, disabling achievements")
		return achievementFallback()
	}
	rules.Rules = list
	return rules
}

func achievementFallback() domain.AchievementRules {
	return domain.AchievementRules{Enabled: false}
}

func (p *Provider) intValue(values map[string]string, key string, fallback int) int {
	raw, ok := values[key]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		p.logger.Warn().Str("key", key).Str("value", raw).Msg("malformed config value, using default")
		return fallback
	}
	return n
}

func (p *Provider) boolValue(values map[string]string, key string, fallback bool) bool {
	raw, ok := values[key]
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		p.logger.Warn().Str("key", key).Str("value", raw).Msg("malformed config value, using default")
		return fallback
	}
	return b
}

func parseUma(raw string) ([domain.SeatCount]int, error) {
	var uma [domain.SeatCount]int
	parts := strings.Split(raw, ",")
	if len(parts) != domain.SeatCount {
		return uma, fmt.Errorf("uma needs %d values, got %d", domain.SeatCount, len(parts))
	}
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return uma, fmt.Errorf("uma value %q: %w", part, err)
		}
		uma[i] = n
	}
	return uma, nil
}

// configHash digests the full configuration generation. The struct encodes
// deterministically: fixed field order, tiers pre-sorted by rank order,
// rules in table order.
func configHash(game domain.GameConfig, tiers []domain.RankTier, achievements domain.AchievementRules) (string, error) {
	payload, err := json.Marshal(struct {
		Game         domain.GameConfig
		Tiers        []domain.RankTier
		Achievements domain.AchievementRules
	}{game, tiers, achievements})
	if err != nil {
		return "", fmt.Errorf("failed to hash configuration: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
