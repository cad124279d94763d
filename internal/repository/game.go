package repository

import (
	"context"
	"database/sql"
	"fmt"

	"mahjong-tracker/internal/domain"

	"github.com/rs/zerolog"
)

type GameRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewGameRepository(db *sql.DB, logger zerolog.Logger) *GameRepository {
	return &GameRepository{db: db, logger: logger}
}

// Append persists a game with its four seats in one transaction. Games are
// immutable once created.
func (r *GameRepository) Append(ctx context.Context, game *domain.Game) error {
	if len(game.Players) != domain.SeatCount {
		return fmt.Errorf("game needs %d players, got %d", domain.SeatCount, len(game.Players))
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO games (id, game_type, created_at)
		VALUES (?, ?, ?)
	`, game.ID, game.GameType, game.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert game: %w", err)
	}

	for _, p := range game.Players {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO game_players (game_id, user_id, seat, final_score, position)
			VALUES (?, ?, ?, ?, ?)
		`, game.ID, p.UserID, p.Seat, p.FinalScore, p.Position); err != nil {
			return fmt.Errorf("failed to insert game player: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit game: %w", err)
	}

	r.logger.Debug().Str("game_id", game.ID).Msg("game appended")
	return nil
}

// ListAll returns every game with its seats. Order is not guaranteed; the
// replay sorts by creation time itself.
func (r *GameRepository) ListAll(ctx context.Context) ([]domain.Game, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT g.id, g.game_type, g.created_at, gp.user_id, gp.seat, gp.final_score, gp.position
		FROM games g
		JOIN game_players gp ON gp.game_id = g.id
		ORDER BY g.created_at, g.id, gp.seat
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var games []domain.Game
	index := make(map[string]int)
	for rows.Next() {
		var (
			g domain.Game
			p domain.GamePlayer
		)
		if err := rows.Scan(&g.ID, &g.GameType, &g.CreatedAt, &p.UserID, &p.Seat, &p.FinalScore, &p.Position); err != nil {
			return nil, fmt.Errorf("failed to scan game row: %w", err)
		}
		i, ok := index[g.ID]
		if !ok {
			index[g.ID] = len(games)
			games = append(games, g)
			i = index[g.ID]
		}
		games[i].Players = append(games[i].Players, p)
	}
	return games, rows.Err()
}

func (r *GameRepository) FindByID(ctx context.Context, id string) (*domain.Game, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT g.id, g.game_type, g.created_at, gp.user_id, gp.seat, gp.final_score, gp.position
		FROM games g
		JOIN game_players gp ON gp.game_id = g.id
		WHERE g.id = ?
		ORDER BY gp.seat
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query game: %w", err)
	}
	defer rows.Close()

	var game *domain.Game
	for rows.Next() {
		var (
			g domain.Game
			p domain.GamePlayer
		)
		if err := rows.Scan(&g.ID, &g.GameType, &g.CreatedAt, &p.UserID, &p.Seat, &p.FinalScore, &p.Position); err != nil {
			return nil, fmt.Errorf("failed to scan game row: %w", err)
		}
		if game == nil {
			game = &g
		}
		game.Players = append(game.Players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrNotFound
	}
	return game, nil
}

