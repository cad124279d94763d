package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mahjong-tracker/internal/domain"

	"github.com/rs/zerolog"
)

// ConfigRepository backs the gameconfig provider with the scoring_config,
// rank_tiers and achievement_rules tables.
type ConfigRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewConfigRepository(db *sql.DB, logger zerolog.Logger) *ConfigRepository {
	return &ConfigRepository{db: db, logger: logger}
}

func (r *ConfigRepository) GetValues(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM scoring_config`)
	if err != nil {
		return nil, fmt.Errorf("failed to read scoring config: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan config row: %w", err)
		}
		values[k] = v
	}
	return values, rows.Err()
}

// SetValue upserts one scoring constant. The caller is expected to reload
// the config provider afterwards so the change takes effect.
func (r *ConfigRepository) SetValue(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scoring_config (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set config value %q: %w", key, err)
	}
	r.logger.Info().Str("key", key).Str("value", value).Msg("scoring config value updated")
	return nil
}

func (r *ConfigRepository) ListTiers(ctx context.Context) ([]domain.RankTier, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, rank_order, rank_name, min_points, max_points,
		       promotion_bonus, demotion_penalty, major_rank, minor_rank_type, minor_rank_range
		FROM rank_tiers
		ORDER BY rank_order
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rank tiers: %w", err)
	}
	defer rows.Close()

	var tiers []domain.RankTier
	for rows.Next() {
		var t domain.RankTier
		var minorType string
		if err := rows.Scan(&t.ID, &t.RankOrder, &t.RankName, &t.MinPoints, &t.MaxPoints,
			&t.PromotionBonus, &t.DemotionPenalty, &t.MajorRank, &minorType, &t.MinorRankRange); err != nil {
			return nil, fmt.Errorf("failed to scan rank tier: %w", err)
		}
		t.MinorRankType = domain.MinorRankType(minorType)
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

// UpdateTierBounds changes one tier's point range; used by the admin surface
// to exercise retroactive recomputation.
func (r *ConfigRepository) UpdateTierBounds(ctx context.Context, rankOrder, minPoints, maxPoints int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE rank_tiers SET min_points = ?, max_points = ? WHERE rank_order = ?
	`, minPoints, maxPoints, rankOrder)
	if err != nil {
		return fmt.Errorf("failed to update tier %d: %w", rankOrder, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ConfigRepository) ListAchievementRules(ctx context.Context) ([]domain.AchievementRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, category, condition_type, condition_value, condition_score, bonus_points
		FROM achievement_rules
		ORDER BY category, condition_value, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievement rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.AchievementRule
	for rows.Next() {
		var a domain.AchievementRule
		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.Category, &a.ConditionType,
			&a.ConditionValue, &a.ConditionScore, &a.BonusPoints); err != nil {
			return nil, fmt.Errorf("failed to scan achievement rule: %w", err)
		}
		rules = append(rules, a)
	}
	return rules, rows.Err()
}
