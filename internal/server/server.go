// Package server is the thin HTTP transport over the scoring core.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"mahjong-tracker/internal/domain"
	"mahjong-tracker/internal/gameconfig"
	"mahjong-tracker/internal/rank"
	"mahjong-tracker/internal/repository"
	"mahjong-tracker/internal/scoring"
	"mahjong-tracker/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Server struct {
	gameSvc    *service.GameService
	statsSvc   *service.StatsService
	users      *repository.UserRepository
	games      *repository.GameRepository
	configRepo *repository.ConfigRepository
	provider   *gameconfig.Provider
	logger     zerolog.Logger
}

func New(
	gameSvc *service.GameService,
	statsSvc *service.StatsService,
	users *repository.UserRepository,
	games *repository.GameRepository,
	configRepo *repository.ConfigRepository,
	provider *gameconfig.Provider,
	logger zerolog.Logger,
) *Server {
	return &Server{
		gameSvc:    gameSvc,
		statsSvc:   statsSvc,
		users:      users,
		games:      games,
		configRepo: configRepo,
		provider:   provider,
		logger:     logger,
	}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Post("/users", s.handleCreateUser)
		r.Get("/users/{id}/stats", s.handleUserStats)
		r.Get("/users/{id}/history", s.handleUserHistory)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Post("/games", s.handleCreateGame)
		r.Get("/games/{id}", s.handleGetGame)
		r.Get("/config", s.handleGetConfig)
		r.Put("/admin/config", s.handleSetConfig)
		r.Put("/admin/tiers/{order}", s.handleUpdateTier)
	})

	return r
}

type createUserRequest struct {
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" {
		s.writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:        uuid.New().String(),
		Username:  req.Username,
		Nickname:  req.Nickname,
		Avatar:    req.Avatar,
		Role:      "player",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.writeError(w, http.StatusConflict, "username already taken")
			return
		}
		s.logger.Error().Err(err).Str("username", req.Username).Msg("create user failed")
		s.writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	s.writeJSON(w, http.StatusCreated, user)
}

type createGameRequest struct {
	GameType string `json:"gameType"`
	Players  []struct {
		UserID     string `json:"userId"`
		FinalScore int    `json:"finalScore"`
	} `json:"players"`
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Players) != domain.SeatCount {
		s.writeError(w, http.StatusBadRequest, "exactly four players are required")
		return
	}

	in := service.CreateGameInput{GameType: req.GameType}
	for i, p := range req.Players {
		in.Players[i] = service.PlayerInput{UserID: p.UserID, FinalScore: p.FinalScore}
	}

	result, err := s.gameSvc.Create(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, scoring.ErrInvalidScoreSum):
			s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, repository.ErrNotFound):
			s.writeError(w, http.StatusNotFound, err.Error())
		default:
			s.logger.Error().Err(err).Msg("create game failed")
			s.writeError(w, http.StatusInternalServerError, "failed to record game")
		}
		return
	}
	s.writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	game, err := s.games.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "game not found")
			return
		}
		s.logger.Error().Err(err).Msg("get game failed")
		s.writeError(w, http.StatusInternalServerError, "failed to load game")
		return
	}
	s.writeJSON(w, http.StatusOK, game)
}

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.statsSvc.GetUserStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "user not found")
			return
		}
		s.logger.Error().Err(err).Msg("user stats failed")
		s.writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleUserHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.statsSvc.GetUserHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.logger.Error().Err(err).Msg("user history failed")
		s.writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	s.writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := s.statsSvc.GetLeaderboard(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("leaderboard failed")
		s.writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}
	s.writeJSON(w, http.StatusOK, board)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	snap := s.provider.Snapshot()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"game":         snap.Game,
		"tiers":        snap.Ladder.Tiers(),
		"achievements": snap.Achievements,
		"hash":         snap.Hash,
	})
}

type setConfigRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// handleSetConfig updates one scoring constant and reloads the provider;
// the changed hash invalidates the replay cache on the next read.
func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	var req setConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		s.writeError(w, http.StatusBadRequest, "key and value are required")
		return
	}
	if err := s.configRepo.SetValue(r.Context(), req.Key, req.Value); err != nil {
		s.logger.Error().Err(err).Str("key", req.Key).Msg("config update failed")
		s.writeError(w, http.StatusInternalServerError, "failed to update configuration")
		return
	}
	if err := s.provider.Reload(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("config reload failed")
		s.writeError(w, http.StatusInternalServerError, "configuration saved but reload failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"hash": s.provider.Hash()})
}

type updateTierRequest struct {
	MinPoints int `json:"minPoints"`
	MaxPoints int `json:"maxPoints"`
}

func (s *Server) handleUpdateTier(w http.ResponseWriter, r *http.Request) {
	order := chi.URLParam(r, "order")
	var req updateTierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rankOrder, err := strconv.Atoi(order)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid tier order")
		return
	}

	tiers, err := s.configRepo.ListTiers(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("tier update failed")
		s.writeError(w, http.StatusInternalServerError, "failed to update tier")
		return
	}
	// Check the prospective ladder before touching the database. A broken
	// rank_tiers row would fail the provider's next load at boot.
	if err := checkTierBounds(tiers, rankOrder, req.MinPoints, req.MaxPoints); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "tier not found")
			return
		}
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.configRepo.UpdateTierBounds(r.Context(), rankOrder, req.MinPoints, req.MaxPoints); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "tier not found")
			return
		}
		s.logger.Error().Err(err).Msg("tier update failed")
		s.writeError(w, http.StatusInternalServerError, "failed to update tier")
		return
	}
	if err := s.provider.Reload(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("tier reload failed")
		s.writeError(w, http.StatusInternalServerError, "tier saved but reload failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"hash": s.provider.Hash()})
}

// checkTierBounds applies the new range to one tier of the current set and
// verifies the resulting ladder still covers all point totals without gaps.
func checkTierBounds(tiers []domain.RankTier, rankOrder, minPoints, maxPoints int) error {
	found := false
	for i := range tiers {
		if tiers[i].RankOrder == rankOrder {
			tiers[i].MinPoints = minPoints
			tiers[i].MaxPoints = maxPoints
			found = true
		}
	}
	if !found {
		return repository.ErrNotFound
	}
	return rank.NewLadder(tiers).Validate()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
