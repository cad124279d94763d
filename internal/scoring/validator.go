package scoring

import (
	"errors"

	"mahjong-tracker/internal/domain"
)

// ErrInvalidScoreSum is returned when a score vector does not sum to the
// configured table total.
var ErrInvalidScoreSum = errors.New("invalid score sum")

// ValidateScores reports whether the four final scores sum to total. It is
// the gate for new submissions and is re-applied per game during replay,
// where a failure skips the game instead of rejecting anything.
func ValidateScores(scores [domain.SeatCount]int, total int) bool {
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return sum == total
}
